package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querybench/querybench/pkg/analysis"
	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/report"
	"github.com/querybench/querybench/pkg/upload"
)

var (
	analyzeS3Key    string
	analyzeJSONPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [results.csv]",
	Short: "Re-run the statistical analysis over an existing raw CSV",
	Long: `Analyze reads a raw results CSV produced by a previous run, either
from a local file or from the configured S3 bucket, and renders the
statistical report without touching any database server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// A trailing slash asks for a listing of uploaded result
		// directories instead of an analysis.
		if strings.HasSuffix(analyzeS3Key, "/") {
			return listS3Results(analyzeS3Key)
		}

		return runAnalyze(args)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeS3Key, "s3-key", "",
		"fetch the CSV from the configured bucket instead of a local file; end the key with / to list result directories")
	analyzeCmd.Flags().StringVar(&analyzeJSONPath, "json", "",
		"also write the report as JSON to this path")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(args []string) error {
	data, err := loadCSV(args)
	if err != nil {
		return err
	}

	series, err := report.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing csv: %w", err)
	}

	rep, err := analysis.NewAnalyzer(log, analysis.Options{}).Analyze(series)
	if err != nil {
		return fmt.Errorf("analyzing csv: %w", err)
	}

	if err := report.WriteConsole(os.Stdout, rep); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	if analyzeJSONPath != "" {
		if err := writeJSONReport(analyzeJSONPath, rep); err != nil {
			return err
		}
	}

	return nil
}

func loadCSV(args []string) ([]byte, error) {
	if analyzeS3Key != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("provide either a file path or --s3-key, not both")
		}

		return loadCSVFromS3(analyzeS3Key)
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("a results CSV path is required (or --s3-key)")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading csv file: %w", err)
	}

	return data, nil
}

func s3Reader() (*upload.S3Reader, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("--s3-key requires a config file with an upload section")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.Upload.Bucket == "" {
		return nil, fmt.Errorf("upload.bucket must be set to use --s3-key")
	}

	return upload.NewS3Reader(log, &cfg.Upload.Config), nil
}

func listS3Results(prefix string) error {
	reader, err := s3Reader()
	if err != nil {
		return err
	}

	prefixes, err := reader.ListPrefixes(context.Background(), prefix)
	if err != nil {
		return err
	}

	if len(prefixes) == 0 {
		fmt.Printf("no results under %q\n", prefix)

		return nil
	}

	for _, p := range prefixes {
		fmt.Println(p)
	}

	return nil
}

func loadCSVFromS3(key string) ([]byte, error) {
	reader, err := s3Reader()
	if err != nil {
		return nil, err
	}

	data, err := reader.GetObject(context.Background(), key)
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, fmt.Errorf("object %q not found", key)
	}

	return data, nil
}
