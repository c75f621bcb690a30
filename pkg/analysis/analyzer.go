package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Field names one of the timing series each run produces.
type Field string

const (
	FieldElapsedTotal  Field = "elapsed_total_seconds"
	FieldElapsedServer Field = "elapsed_server_seconds"
	FieldLatency       Field = "latency_seconds"
)

// Fields lists the analyzed series in report order.
func Fields() []Field {
	return []Field{FieldElapsedServer, FieldElapsedTotal, FieldLatency}
}

// ServerSeries carries one server's successful run values per field.
type ServerSeries struct {
	ServerID string
	Engine   string
	OSType   string
	Values   map[Field][]float64
}

// Options tune the analysis pipeline. Zero values take the defaults:
// alpha 0.05, confidence level 0.95, elapsed_server_seconds as the
// deciding field and a medium minimum effect for a recommendation.
type Options struct {
	Alpha        float64
	CILevel      float64
	PrimaryField Field
	MinEffect    EffectBucket
}

func (o *Options) withDefaults() Options {
	out := *o

	if out.Alpha == 0 {
		out.Alpha = 0.05
	}

	if out.CILevel == 0 {
		out.CILevel = 0.95
	}

	if out.PrimaryField == "" {
		out.PrimaryField = FieldElapsedServer
	}

	if out.MinEffect == "" {
		out.MinEffect = EffectMedium
	}

	return out
}

// ServerStats summarizes one server's cleaned sample for a field.
type ServerStats struct {
	ServerID string `json:"server_id"`
	Engine   string `json:"engine"`
	OSType   string `json:"os_type"`

	RawN            int          `json:"raw_n"`
	OutliersRemoved int          `json:"outliers_removed"`
	Cleaned         *Descriptive `json:"cleaned,omitempty"`

	// Normality is nil when the test could not run, either for size or
	// for zero variance; such samples route to the rank-based test.
	Normality *NormalityResult `json:"normality,omitempty"`

	// Insufficient marks servers whose cleaned sample is too small to
	// describe; they are excluded from comparisons and ranking.
	Insufficient bool `json:"insufficient"`

	cleaned []float64
}

// Comparison is one pairwise significance test between two servers.
type Comparison struct {
	ServerA string `json:"server_a"`
	ServerB string `json:"server_b"`

	// Evaluated is false when neither test could run on the pair.
	Evaluated bool        `json:"evaluated"`
	Test      *TestResult `json:"test,omitempty"`

	CohenD          float64      `json:"cohen_d"`
	Effect          EffectBucket `json:"effect"`
	EffectEvaluated bool         `json:"effect_evaluated"`

	// PercentDiff is how much server A's cleaned mean deviates from
	// server B's, negative when A is faster.
	PercentDiff float64 `json:"percent_diff"`
}

// Rank places one server in the ascending-by-mean ordering of a field.
type Rank struct {
	Position        int     `json:"position"`
	ServerID        string  `json:"server_id"`
	Mean            float64 `json:"mean"`
	PercentFromBest float64 `json:"percent_from_best"`
}

// Recommendation is the verdict for one field's ranking.
type Recommendation struct {
	Conclusive bool   `json:"conclusive"`
	Winner     string `json:"winner,omitempty"`
	RunnerUp   string `json:"runner_up,omitempty"`
	Reason     string `json:"reason"`
}

// FieldAnalysis bundles everything computed for one timing field.
type FieldAnalysis struct {
	Field          Field          `json:"field"`
	Servers        []ServerStats  `json:"servers"`
	Comparisons    []Comparison   `json:"comparisons"`
	Ranking        []Rank         `json:"ranking"`
	Recommendation Recommendation `json:"recommendation"`
}

// Report is the full analysis outcome.
type Report struct {
	Alpha        float64         `json:"alpha"`
	CILevel      float64         `json:"ci_level"`
	PrimaryField Field           `json:"primary_field"`
	Fields       []FieldAnalysis `json:"fields"`

	// Recommendation mirrors the primary field's verdict.
	Recommendation Recommendation `json:"recommendation"`
}

// Analyzer runs the statistical pipeline over per-server samples.
type Analyzer interface {
	Analyze(series []ServerSeries) (*Report, error)
}

type analyzer struct {
	log  logrus.FieldLogger
	opts Options
}

// Ensure interface compliance.
var _ Analyzer = (*analyzer)(nil)

// NewAnalyzer creates an analyzer with the given options.
func NewAnalyzer(log logrus.FieldLogger, opts Options) Analyzer {
	return &analyzer{
		log:  log.WithField("component", "analyzer"),
		opts: opts.withDefaults(),
	}
}

// Analyze cleans each server's sample, tests it for normality, runs
// pairwise significance tests, ranks the servers by cleaned mean and
// derives the recommendation from the primary field.
func (a *analyzer) Analyze(series []ServerSeries) (*Report, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("analyzing samples: %w", ErrInsufficientData)
	}

	opts := a.opts
	report := &Report{
		Alpha:        opts.Alpha,
		CILevel:      opts.CILevel,
		PrimaryField: opts.PrimaryField,
	}

	for _, field := range Fields() {
		fa := a.analyzeField(field, series)
		report.Fields = append(report.Fields, fa)

		if field == opts.PrimaryField {
			report.Recommendation = fa.Recommendation
		}
	}

	return report, nil
}

func (a *analyzer) analyzeField(field Field, series []ServerSeries) FieldAnalysis {
	log := a.log.WithField("field", field)

	fa := FieldAnalysis{Field: field}

	for _, s := range series {
		fa.Servers = append(fa.Servers, a.summarizeServer(log, field, s))
	}

	for i := 0; i < len(fa.Servers); i++ {
		for j := i + 1; j < len(fa.Servers); j++ {
			sa, sb := &fa.Servers[i], &fa.Servers[j]
			if sa.Insufficient || sb.Insufficient {
				continue
			}

			fa.Comparisons = append(fa.Comparisons, a.compare(log, sa, sb))
		}
	}

	fa.Ranking = rankServers(fa.Servers)
	fa.Recommendation = a.recommend(fa.Ranking, fa.Comparisons)

	return fa
}

func (a *analyzer) summarizeServer(log logrus.FieldLogger, field Field, s ServerSeries) ServerStats {
	stats := ServerStats{
		ServerID: s.ServerID,
		Engine:   s.Engine,
		OSType:   s.OSType,
	}

	raw := s.Values[field]
	stats.RawN = len(raw)

	cleaned, removed := RemoveOutliers(raw)
	stats.OutliersRemoved = removed
	stats.cleaned = cleaned

	// Fewer than three usable runs cannot support the normality check,
	// so the sample is excluded rather than tested.
	if len(cleaned) < 3 {
		log.WithField("server", s.ServerID).WithField("n", len(cleaned)).
			Warn("Fewer than three usable runs, excluding server")

		stats.Insufficient = true

		return stats
	}

	desc, err := Describe(cleaned, a.opts.CILevel)
	if err != nil {
		log.WithField("server", s.ServerID).WithField("n", len(cleaned)).
			Warn("Sample too small to describe, excluding server")

		stats.Insufficient = true

		return stats
	}

	stats.Cleaned = desc

	normality, err := ShapiroWilk(cleaned, a.opts.Alpha)
	if err != nil {
		// Too few values or zero variance; treated as non-normal so the
		// pair falls back to the rank-based test.
		log.WithError(err).WithField("server", s.ServerID).Debug("Normality not evaluated")
	} else {
		stats.Normality = normality
	}

	return stats
}

func (a *analyzer) compare(log logrus.FieldLogger, sa, sb *ServerStats) Comparison {
	cmp := Comparison{
		ServerA: sa.ServerID,
		ServerB: sb.ServerID,
	}

	if sb.Cleaned.Mean != 0 {
		cmp.PercentDiff = (sa.Cleaned.Mean - sb.Cleaned.Mean) / sb.Cleaned.Mean * 100
	}

	bothNormal := sa.Normality != nil && sa.Normality.Normal &&
		sb.Normality != nil && sb.Normality.Normal

	var (
		test *TestResult
		err  error
	)

	if bothNormal {
		test, err = WelchTTest(sa.cleaned, sb.cleaned, a.opts.Alpha)
	} else {
		test, err = MannWhitneyU(sa.cleaned, sb.cleaned, a.opts.Alpha)
	}

	if err != nil {
		if !errors.Is(err, ErrNotEvaluated) {
			log.WithError(err).WithFields(logrus.Fields{
				"server_a": sa.ServerID,
				"server_b": sb.ServerID,
			}).Warn("Significance test failed")
		}
	} else {
		cmp.Evaluated = true
		cmp.Test = test
	}

	d, err := CohenD(sa.cleaned, sb.cleaned)
	if err == nil {
		cmp.CohenD = d
		cmp.Effect = BucketEffect(d)
		cmp.EffectEvaluated = true
	}

	return cmp
}

func rankServers(servers []ServerStats) []Rank {
	ranked := make([]Rank, 0, len(servers))

	for _, s := range servers {
		if s.Insufficient {
			continue
		}

		ranked = append(ranked, Rank{ServerID: s.ServerID, Mean: s.Cleaned.Mean})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Mean != ranked[j].Mean {
			return ranked[i].Mean < ranked[j].Mean
		}

		return ranked[i].ServerID < ranked[j].ServerID
	})

	for i := range ranked {
		ranked[i].Position = i + 1

		if best := ranked[0].Mean; best != 0 {
			ranked[i].PercentFromBest = (ranked[i].Mean - best) / best * 100
		}
	}

	return ranked
}

func (a *analyzer) recommend(ranking []Rank, comparisons []Comparison) Recommendation {
	if len(ranking) < 2 {
		return Recommendation{
			Conclusive: false,
			Reason:     "fewer than two servers produced a usable sample",
		}
	}

	winner := ranking[0].ServerID
	runnerUp := ranking[1].ServerID

	cmp := findComparison(comparisons, winner, runnerUp)
	if cmp == nil || !cmp.Evaluated {
		return Recommendation{
			Conclusive: false,
			Winner:     winner,
			RunnerUp:   runnerUp,
			Reason:     "the decisive pair could not be tested for significance",
		}
	}

	if !cmp.Test.Significant {
		return Recommendation{
			Conclusive: false,
			Winner:     winner,
			RunnerUp:   runnerUp,
			Reason: fmt.Sprintf("difference between %s and %s is not statistically significant (p=%.4f)",
				winner, runnerUp, cmp.Test.PValue),
		}
	}

	if !cmp.EffectEvaluated {
		return Recommendation{
			Conclusive: false,
			Winner:     winner,
			RunnerUp:   runnerUp,
			Reason: fmt.Sprintf("effect size between %s and %s could not be evaluated",
				winner, runnerUp),
		}
	}

	if !effectAtLeast(cmp.Effect, a.opts.MinEffect) {
		return Recommendation{
			Conclusive: false,
			Winner:     winner,
			RunnerUp:   runnerUp,
			Reason: fmt.Sprintf("effect size between %s and %s is %s, below the %s threshold",
				winner, runnerUp, cmp.Effect, a.opts.MinEffect),
		}
	}

	return Recommendation{
		Conclusive: true,
		Winner:     winner,
		RunnerUp:   runnerUp,
		Reason: fmt.Sprintf("%s is significantly faster than %s (p=%.4f, %s effect)",
			winner, runnerUp, cmp.Test.PValue, cmp.Effect),
	}
}

func findComparison(comparisons []Comparison, a, b string) *Comparison {
	for i := range comparisons {
		c := &comparisons[i]
		if (c.ServerA == a && c.ServerB == b) || (c.ServerA == b && c.ServerB == a) {
			return c
		}
	}

	return nil
}
