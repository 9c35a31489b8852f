// Command srtoolkit analyzes PubMed literature for systematic reviews:
// MeSH tallies, abstract word frequencies, yearly publication trends and
// structured study extraction, from the terminal or a web dashboard.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/srtoolkit/internal/config"
	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/logger"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/ncbi"
	"github.com/henrybloomingdale/srtoolkit/internal/output"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

var (
	flagJSON     bool
	flagHuman    bool
	flagFull     bool
	flagAPIKey   string
	flagConfig   string
	flagLogLevel string

	flagLimit     int
	flagMeSHTop   int
	flagWordsTop  int
	flagStartYear int
	flagEndYear   int
	flagCSVDir    string

	flagStudyLimit int
	flagCSV        string
	flagRIS        string
)

// Loaded by the root command before any subcommand runs.
var (
	appConfig *config.Config
	appLogger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "srtoolkit",
	Short: "PubMed toolkit for systematic reviews",
	Long: `Search PubMed for a topic, tally MeSH headings, count abstract words,
chart the yearly publication trend and extract structured study records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as structured JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagHuman, "human", "H", false, "Rich colorful terminal output")
	rootCmd.PersistentFlags().BoolVar(&flagFull, "full", false, "Show full abstract (with --human)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "NCBI API key (or set NCBI_API_KEY env var)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./srtoolkit.yaml or ~/.config/srtoolkit/srtoolkit.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	analyzeCmd.Flags().IntVar(&flagLimit, "limit", 0, "Number of articles to analyze (default ncbi.max_results)")
	analyzeCmd.Flags().IntVar(&flagMeSHTop, "mesh-top", pipeline.DefaultMeSHTop, "MeSH terms in the table and query")
	analyzeCmd.Flags().IntVar(&flagWordsTop, "words-top", pipeline.DefaultWordsTop, "Words in the frequency table")
	analyzeCmd.Flags().IntVar(&flagStartYear, "start-year", 0, "First year of the trend (default trend.start_year)")
	analyzeCmd.Flags().IntVar(&flagEndYear, "end-year", 0, "Last year of the trend (default current year)")
	analyzeCmd.Flags().StringVar(&flagCSVDir, "csv-dir", "", "Export mesh.csv, freq.csv and trend.csv into this directory")

	studiesCmd.Flags().IntVar(&flagStudyLimit, "limit", pipeline.DefaultStudyLimit, "Maximum number of studies")
	studiesCmd.Flags().StringVar(&flagCSV, "csv", "", "Export studies to CSV file")
	studiesCmd.Flags().StringVar(&flagRIS, "ris", "", "Export studies to RIS file")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(studiesCmd)
	rootCmd.AddCommand(meshCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: flagConfig, APIKey: flagAPIKey})
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	l, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(l)

	appConfig, appLogger = cfg, l
	return nil
}

func outputCfg() output.OutputConfig {
	return output.OutputConfig{
		JSON:  flagJSON,
		Human: flagHuman,
		Full:  flagFull,
	}
}

func newService() (*pipeline.Service, error) {
	opts := append(appConfig.NCBI.Options(), ncbi.WithLogger(appLogger))
	base := ncbi.NewBaseClient(opts...)
	return pipeline.New(eutils.NewClientWithBase(base), mesh.NewClient(base), pipeline.Config{
		CacheSize:        appConfig.Cache.Size,
		TrendConcurrency: appConfig.Trend.Concurrency,
		Logger:           appLogger,
	})
}

// analyzeCmd implements the analyze subcommand.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <topic>",
	Short: "MeSH tally, word frequency and yearly trend for a topic",
	Long: `Search PubMed for a topic, tally the MeSH headings of the matching records,
build an OR query from the top headings, count words in the abstracts and
count matching publications per year.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		start := flagStartYear
		if start == 0 {
			start = appConfig.Trend.StartYear
		}
		report, err := svc.Analyze(cmd.Context(), pipeline.AnalyzeRequest{
			Topic:     strings.Join(args, " "),
			Limit:     flagLimit,
			MeSHTop:   flagMeSHTop,
			WordsTop:  flagWordsTop,
			StartYear: start,
			EndYear:   flagEndYear,
		})
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		cfg := outputCfg()
		cfg.CSVDir = flagCSVDir
		if !cfg.JSON {
			output.FormatDiagnostics(cmd.ErrOrStderr(), report.Warnings, report.Notices, cfg)
		}
		return output.FormatReport(cmd.OutOrStdout(), report, cfg)
	},
}

// studiesCmd implements the studies subcommand.
var studiesCmd = &cobra.Command{
	Use:   "studies <keyword>",
	Short: "Extract structured study records",
	Long: `Search PubMed and fetch each hit on its own, extracting title, journal,
publication year, authors, DOI and abstract. Records that fail to fetch
or parse are skipped with a warning.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		report, err := svc.Studies(cmd.Context(), strings.Join(args, " "), flagStudyLimit)
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		cfg := outputCfg()
		cfg.CSVFile = flagCSV
		cfg.RISFile = flagRIS
		if !cfg.JSON {
			output.FormatDiagnostics(cmd.ErrOrStderr(), report.Warnings, report.Notices, cfg)
		}
		return output.FormatStudies(cmd.OutOrStdout(), report, cfg)
	},
}

// meshCmd implements the mesh subcommand.
var meshCmd = &cobra.Command{
	Use:   "mesh <term>",
	Short: "Look up a MeSH term",
	Long:  `Search for a MeSH (Medical Subject Headings) term and display its record including tree numbers, scope note, and synonyms.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		record, err := svc.LookupMeSH(cmd.Context(), strings.Join(args, " "))
		if errors.Is(err, mesh.ErrNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("MeSH lookup failed: %w", err)
		}

		return output.FormatMeSHRecord(cmd.OutOrStdout(), record, outputCfg())
	},
}
