package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/querybench/querybench/pkg/analysis"
)

// WriteConsole renders the analysis report as aligned text tables.
func WriteConsole(w io.Writer, report *analysis.Report) error {
	for _, fa := range report.Fields {
		if err := writeFieldSection(w, report, &fa); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "Recommendation (%s)\n", report.PrimaryField)

	rec := report.Recommendation
	if rec.Conclusive {
		fmt.Fprintf(w, "  winner: %s\n", rec.Winner)
	} else {
		fmt.Fprintln(w, "  inconclusive")
	}

	fmt.Fprintf(w, "  %s\n", rec.Reason)

	return nil
}

func writeFieldSection(w io.Writer, report *analysis.Report, fa *analysis.FieldAnalysis) error {
	fmt.Fprintf(w, "=== %s ===\n\n", fa.Field)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "server\tn\tremoved\tmean\tmedian\tstddev\tci95\tnormal")

	for _, s := range fa.Servers {
		if s.Insufficient {
			fmt.Fprintf(tw, "%s\t%d\t%d\t-\t-\t-\t-\tinsufficient data\n", s.ServerID, s.RawN, s.OutliersRemoved)

			continue
		}

		normal := "not evaluated"
		if s.Normality != nil {
			if s.Normality.Normal {
				normal = fmt.Sprintf("yes (p=%.3f)", s.Normality.PValue)
			} else {
				normal = fmt.Sprintf("no (p=%.3f)", s.Normality.PValue)
			}
		}

		fmt.Fprintf(tw, "%s\t%d\t%d\t%.6f\t%.6f\t%.6f\t[%.6f, %.6f]\t%s\n",
			s.ServerID, s.Cleaned.N, s.OutliersRemoved,
			s.Cleaned.Mean, s.Cleaned.Median, s.Cleaned.StdDev,
			s.Cleaned.CILower, s.Cleaned.CIUpper, normal)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("rendering server table: %w", err)
	}

	if len(fa.Comparisons) > 0 {
		fmt.Fprintln(w)

		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "pair\ttest\tp-value\tsignificant\teffect\tdiff")

		for _, c := range fa.Comparisons {
			pair := c.ServerA + " vs " + c.ServerB

			if !c.Evaluated {
				fmt.Fprintf(tw, "%s\tnot evaluated\t-\t-\t-\t-\n", pair)

				continue
			}

			effect := "-"
			if c.EffectEvaluated {
				effect = fmt.Sprintf("%s (d=%.2f)", c.Effect, c.CohenD)
			}

			fmt.Fprintf(tw, "%s\t%s\t%.4f\t%v\t%s\t%+.1f%%\n",
				pair, c.Test.Method, c.Test.PValue, c.Test.Significant, effect, c.PercentDiff)
		}

		if err := tw.Flush(); err != nil {
			return fmt.Errorf("rendering comparison table: %w", err)
		}
	}

	if len(fa.Ranking) > 0 {
		fmt.Fprintln(w)

		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "rank\tserver\tmean\tvs best")

		for _, r := range fa.Ranking {
			fmt.Fprintf(tw, "%d\t%s\t%.6f\t%+.1f%%\n", r.Position, r.ServerID, r.Mean, r.PercentFromBest)
		}

		if err := tw.Flush(); err != nil {
			return fmt.Errorf("rendering ranking table: %w", err)
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintln(w)

	return nil
}
