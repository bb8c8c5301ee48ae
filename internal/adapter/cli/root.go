// Package cli builds the cobra command tree for the secscan binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bkyoung/secscan/internal/usecase/workflow"
)

// ErrVersionRequested indicates the user requested the CLI version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// ErrFindingsDetected is returned by the scan command when --fail-on-findings
// is set and the report contains findings. The host process maps it to a
// dedicated exit code.
var ErrFindingsDetected = errors.New("findings detected")

// ScanRequest carries the resolved scan parameters from flags and config.
type ScanRequest struct {
	Root      string
	OutputDir string
	Formats   []string
	Provider  string

	// Threshold is the confidence cutoff; -1 means use the config value.
	Threshold   int
	Concurrency int
	ChunkLines  int

	// Triage is a tri-state override: nil means use the config value.
	Triage *bool

	Include []string
	Exclude []string
}

// Scanner runs the analysis pipeline for one request.
type Scanner interface {
	Scan(ctx context.Context, req ScanRequest) (workflow.Report, error)
}

// RunSummary is one past run shown by the runs command.
type RunSummary struct {
	RunID            string
	Provider         string
	Root             string
	StartedAt        time.Time
	FindingsReported int
	Incomplete       bool
}

// HistoryLister retrieves past runs from the store.
type HistoryLister interface {
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Scanner       Scanner
	History       HistoryLister // nil when the store is disabled
	Args          Arguments
	DefaultOutput string
	Version       string
}

// NewRootCommand constructs the root cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "secscan",
		Short: "LLM-driven security analysis for source trees",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(scanCommand(deps.Scanner, deps.DefaultOutput))
	root.AddCommand(runsCommand(deps.History))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func scanCommand(scanner Scanner, defaultOutput string) *cobra.Command {
	var outputDir string
	var formats []string
	var provider string
	var threshold int
	var concurrency int
	var chunkLines int
	var triage bool
	var noTriage bool
	var include []string
	var exclude []string
	var failOnFindings bool

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a source tree for security findings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			req := ScanRequest{
				Root:        root,
				OutputDir:   outputDir,
				Formats:     formats,
				Provider:    provider,
				Threshold:   -1,
				Concurrency: resolvePositive(cmd, "concurrency", concurrency),
				ChunkLines:  resolvePositive(cmd, "chunk-lines", chunkLines),
				Triage:      resolveTriage(cmd, triage, noTriage),
				Include:     include,
				Exclude:     exclude,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = threshold
			}

			report, err := scanner.Scan(cmd.Context(), req)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), report)

			if failOnFindings && len(report.Findings) > 0 {
				return ErrFindingsDetected
			}
			return nil
		},
	}

	if defaultOutput == "" {
		defaultOutput = "out"
	}
	cmd.Flags().StringVar(&outputDir, "output", defaultOutput, "Directory to write report files")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Report formats to write (json, sarif); overrides config")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider to use for the scan (overrides config)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Confidence threshold; findings at or below it are dropped (overrides config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of chunks analyzed in parallel (0 uses config)")
	cmd.Flags().IntVar(&chunkLines, "chunk-lines", 0, "Maximum lines per analysis chunk (0 uses config)")
	cmd.Flags().BoolVar(&triage, "triage", false, "Enable exploitability triage of reported findings (overrides config)")
	cmd.Flags().BoolVar(&noTriage, "no-triage", false, "Skip exploitability triage (faster, but may include more false positives)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Glob patterns of files to scan (overrides config)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Glob patterns of files to skip (overrides config)")
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "Exit non-zero when the report contains findings")

	return cmd
}

func runsCommand(history HistoryLister) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent scan runs from the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if history == nil {
				return fmt.Errorf("run history is disabled; enable store in the configuration")
			}

			runs, err := history.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, run := range runs {
				status := ""
				if run.Incomplete {
					status = " (incomplete)"
				}
				_, _ = fmt.Fprintf(out, "%s  %s  %s  findings=%d%s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.RunID, run.Provider, run.FindingsReported, status)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func printSummary(out io.Writer, report workflow.Report) {
	s := report.Summary
	_, _ = fmt.Fprintf(out, "scanned %d files in %d chunks", s.FilesScanned, s.ChunksTotal)
	if s.ChunksFailed > 0 {
		_, _ = fmt.Fprintf(out, " (%d failed)", s.ChunksFailed)
	}
	_, _ = fmt.Fprintf(out, ": %d findings reported\n", s.FindingsReported)

	if s.Triaged > 0 || s.Inconclusive > 0 {
		_, _ = fmt.Fprintf(out, "triage: %d triaged, %d inconclusive\n", s.Triaged, s.Inconclusive)
	}
	if s.Incomplete {
		_, _ = fmt.Fprintln(out, "warning: run was interrupted, report is partial")
	}

	for _, finding := range report.Findings {
		line := fmt.Sprintf("%s:%d-%d [%s] confidence=%d %s",
			finding.File, finding.LineStart, finding.LineEnd,
			finding.Category, finding.Confidence, finding.Description)
		if finding.Triage != nil && !finding.Triage.Inconclusive {
			verdict := "not exploitable"
			if finding.Triage.Exploitable {
				verdict = "exploitable"
			}
			line += fmt.Sprintf(" (triage: %s %d/10)", verdict, finding.Triage.Confidence)
		}
		_, _ = fmt.Fprintln(out, line)
	}
}

// resolvePositive returns the flag value when explicitly set to a positive
// number, zero otherwise so the caller falls back to config.
func resolvePositive(cmd *cobra.Command, flagName string, value int) int {
	if !cmd.Flags().Changed(flagName) {
		return 0
	}
	if value <= 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: non-positive value %d for --%s, using config default\n", value, flagName)
		return 0
	}
	return value
}

// resolveTriage determines the triage override from the paired flags.
// Priority: --no-triage (disables) > --triage (enables) > config default.
func resolveTriage(cmd *cobra.Command, triage, noTriage bool) *bool {
	enabled := true
	disabled := false
	if cmd.Flags().Changed("no-triage") && noTriage {
		return &disabled
	}
	if cmd.Flags().Changed("triage") && triage {
		return &enabled
	}
	return nil
}
