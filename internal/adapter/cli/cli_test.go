package cli_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bkyoung/secscan/internal/adapter/cli"
	"github.com/bkyoung/secscan/internal/domain"
	"github.com/bkyoung/secscan/internal/usecase/workflow"
)

type scannerStub struct {
	request cli.ScanRequest
	report  workflow.Report
	err     error
}

func (s *scannerStub) Scan(ctx context.Context, req cli.ScanRequest) (workflow.Report, error) {
	s.request = req
	return s.report, s.err
}

type historyStub struct {
	runs []cli.RunSummary
	err  error
}

func (h *historyStub) ListRuns(ctx context.Context, limit int) ([]cli.RunSummary, error) {
	return h.runs, h.err
}

func TestScanCommandInvokesScanner(t *testing.T) {
	stub := &scannerStub{}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner:       stub,
		Args:          cli.Arguments{OutWriter: io.Discard, ErrWriter: io.Discard},
		DefaultOutput: "build",
		Version:       "v1.2.3",
	})

	root.SetArgs([]string{"scan", "./src", "--threshold", "7", "--exclude", "vendor/**"})
	if err := root.Execute(); err != nil {
		t.Fatalf("command execution failed: %v", err)
	}

	if stub.request.Root != "./src" {
		t.Fatalf("expected root ./src, got %s", stub.request.Root)
	}
	if stub.request.OutputDir != "build" {
		t.Fatalf("expected default output dir build, got %s", stub.request.OutputDir)
	}
	if stub.request.Threshold != 7 {
		t.Fatalf("expected threshold 7, got %d", stub.request.Threshold)
	}
	if len(stub.request.Exclude) != 1 || stub.request.Exclude[0] != "vendor/**" {
		t.Fatalf("unexpected exclude patterns: %v", stub.request.Exclude)
	}
}

func TestScanCommandDefaultsToCurrentDirectory(t *testing.T) {
	stub := &scannerStub{}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: stub,
		Args:    cli.Arguments{OutWriter: io.Discard, ErrWriter: io.Discard},
	})

	root.SetArgs([]string{"scan"})
	if err := root.Execute(); err != nil {
		t.Fatalf("command execution failed: %v", err)
	}

	if stub.request.Root != "." {
		t.Fatalf("expected root ., got %s", stub.request.Root)
	}
	if stub.request.Threshold != -1 {
		t.Fatalf("expected threshold -1 when flag unset, got %d", stub.request.Threshold)
	}
	if stub.request.Triage != nil {
		t.Fatalf("expected nil triage override when flags unset")
	}
}

func TestScanCommandTriageFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want *bool
	}{
		{"no flags", []string{"scan"}, nil},
		{"triage enables", []string{"scan", "--triage"}, boolPtr(true)},
		{"no-triage disables", []string{"scan", "--no-triage"}, boolPtr(false)},
		{"no-triage wins", []string{"scan", "--triage", "--no-triage"}, boolPtr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &scannerStub{}
			root := cli.NewRootCommand(cli.Dependencies{
				Scanner: stub,
				Args:    cli.Arguments{OutWriter: io.Discard, ErrWriter: io.Discard},
			})
			root.SetArgs(tt.args)
			if err := root.Execute(); err != nil {
				t.Fatalf("command execution failed: %v", err)
			}

			switch {
			case tt.want == nil:
				if stub.request.Triage != nil {
					t.Fatalf("expected nil triage override, got %v", *stub.request.Triage)
				}
			case stub.request.Triage == nil:
				t.Fatalf("expected triage override %v, got nil", *tt.want)
			case *stub.request.Triage != *tt.want:
				t.Fatalf("expected triage override %v, got %v", *tt.want, *stub.request.Triage)
			}
		})
	}
}

func TestScanCommandFailOnFindings(t *testing.T) {
	stub := &scannerStub{report: workflow.Report{
		Findings: []domain.Finding{{Category: domain.CategoryInjection, File: "a.go", LineStart: 1, LineEnd: 2, Confidence: 9}},
	}}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: stub,
		Args:    cli.Arguments{OutWriter: io.Discard, ErrWriter: io.Discard},
	})

	root.SetArgs([]string{"scan", "--fail-on-findings"})
	err := root.Execute()
	if !errors.Is(err, cli.ErrFindingsDetected) {
		t.Fatalf("expected findings sentinel, got %v", err)
	}
}

func TestScanCommandPrintsSummary(t *testing.T) {
	stub := &scannerStub{report: workflow.Report{
		Findings: []domain.Finding{{
			Category: domain.CategorySecrets, File: "config.go",
			LineStart: 3, LineEnd: 3, Confidence: 8,
			Description: "Hardcoded token",
		}},
		Summary: workflow.Summary{FilesScanned: 2, ChunksTotal: 4, FindingsReported: 1},
	}}
	buf := &bytes.Buffer{}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: stub,
		Args:    cli.Arguments{OutWriter: buf, ErrWriter: io.Discard},
	})

	root.SetArgs([]string{"scan"})
	if err := root.Execute(); err != nil {
		t.Fatalf("command execution failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "scanned 2 files in 4 chunks") {
		t.Fatalf("missing summary line: %q", out)
	}
	if !strings.Contains(out, "config.go:3-3 [secrets] confidence=8 Hardcoded token") {
		t.Fatalf("missing finding line: %q", out)
	}
}

func TestScanCommandPropagatesError(t *testing.T) {
	stub := &scannerStub{err: errors.New("provider unreachable")}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: stub,
		Args:    cli.Arguments{OutWriter: io.Discard, ErrWriter: io.Discard},
	})

	root.SetArgs([]string{"scan"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "provider unreachable") {
		t.Fatalf("expected scanner error, got %v", err)
	}
}

func TestRunsCommandListsHistory(t *testing.T) {
	history := &historyStub{runs: []cli.RunSummary{
		{
			RunID:            "run-20250314T092653Z-a3f9c2",
			Provider:         "anthropic",
			Root:             "/repo",
			StartedAt:        time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
			FindingsReported: 3,
		},
	}}
	buf := &bytes.Buffer{}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: &scannerStub{},
		History: history,
		Args:    cli.Arguments{OutWriter: buf, ErrWriter: io.Discard},
	})

	root.SetArgs([]string{"runs"})
	if err := root.Execute(); err != nil {
		t.Fatalf("command execution failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run-20250314T092653Z-a3f9c2") {
		t.Fatalf("missing run id: %q", out)
	}
	if !strings.Contains(out, "findings=3") {
		t.Fatalf("missing findings count: %q", out)
	}
}

func TestRunsCommandWithoutStore(t *testing.T) {
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: &scannerStub{},
		Args:    cli.Arguments{OutWriter: io.Discard, ErrWriter: io.Discard},
	})

	root.SetArgs([]string{"runs"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected store-disabled error, got %v", err)
	}
}

func TestVersionFlagEmitsVersion(t *testing.T) {
	buf := &bytes.Buffer{}
	root := cli.NewRootCommand(cli.Dependencies{
		Scanner: &scannerStub{},
		Args:    cli.Arguments{OutWriter: buf, ErrWriter: io.Discard},
		Version: "v9.9.9",
	})

	root.SetArgs([]string{"--version"})
	err := root.Execute()
	if !errors.Is(err, cli.ErrVersionRequested) {
		t.Fatalf("expected version sentinel, got %v", err)
	}
	if strings.TrimSpace(buf.String()) != "v9.9.9" {
		t.Fatalf("unexpected version output: %q", buf.String())
	}
}

func boolPtr(v bool) *bool {
	return &v
}
