// Package output renders pipeline results for the terminal and exports
// them as CSV and RIS.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

// OutputConfig controls which output mode(s) are active.
type OutputConfig struct {
	JSON    bool   // Structured JSON
	Human   bool   // Rich terminal output with color
	Full    bool   // Show full abstract (human mode)
	CSVDir  string // Export report tables into this directory
	CSVFile string // Export study records to this CSV path
	RISFile string // Export study records to this RIS path
}

// FormatReport writes an analysis report.
func FormatReport(w io.Writer, r *pipeline.Report, cfg OutputConfig) error {
	if cfg.CSVDir != "" {
		if err := ExportReport(cfg.CSVDir, r); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	}
	if cfg.JSON {
		return writeJSON(w, r)
	}
	if cfg.Human {
		return formatReportHuman(w, r)
	}
	return formatReportPlain(w, r)
}

// FormatStudies writes structured study records.
func FormatStudies(w io.Writer, r *pipeline.StudyReport, cfg OutputConfig) error {
	if cfg.CSVFile != "" {
		if err := writeCSVFile(cfg.CSVFile, StudyTable(r.Studies)); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	}
	if cfg.RISFile != "" {
		if err := writeStudiesRIS(cfg.RISFile, r.Studies); err != nil {
			return fmt.Errorf("RIS export failed: %w", err)
		}
	}
	if cfg.JSON {
		return writeJSON(w, r)
	}
	if cfg.Human {
		return formatStudiesHuman(w, r.Studies, cfg.Full)
	}
	return formatStudiesPlain(w, r.Studies)
}

// FormatMeSHRecord writes a MeSH record.
func FormatMeSHRecord(w io.Writer, record *mesh.Record, cfg OutputConfig) error {
	if cfg.JSON {
		return writeJSON(w, record)
	}
	if cfg.Human {
		return formatMeSHHuman(w, record)
	}
	return formatMeSHPlain(w, record)
}

// FormatDiagnostics writes warnings and notices, one per line. JSON output
// carries them in the payload, so callers skip this in JSON mode.
func FormatDiagnostics(w io.Writer, warnings []eutils.Warning, notices []string, cfg OutputConfig) {
	for _, n := range notices {
		if cfg.Human {
			fmt.Fprintln(w, dim.Render("ℹ "+n))
		} else {
			fmt.Fprintf(w, "notice: %s\n", n)
		}
	}
	for _, warn := range warnings {
		if cfg.Human {
			fmt.Fprintln(w, yellow.Render("⚠ "+warn.String()))
		} else {
			fmt.Fprintf(w, "warning: %s\n", warn)
		}
	}
}

// --- Plain text formatters (default) ---

func formatReportPlain(w io.Writer, r *pipeline.Report) error {
	fmt.Fprintf(w, "Topic: %s\n", r.Topic)
	fmt.Fprintf(w, "Found %d results", r.Total)
	if len(r.PMIDs) < r.Total {
		fmt.Fprintf(w, " (analyzed %d)", len(r.PMIDs))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Top MeSH Terms:")
	if len(r.MeSH) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, tc := range r.TopMeSH() {
		fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "MeSH Query: %s\n", r.MeSHQuery)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Publication Trend (%d-%d):\n", r.StartYear, r.EndYear)
	if len(r.Trend) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, p := range r.Trend {
		fmt.Fprintf(w, "  %d: %d\n", p.Year, p.Count)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Word Frequency:")
	if len(r.Words) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, wc := range r.Words {
		fmt.Fprintf(w, "  %s: %d\n", wc.Word, wc.Count)
	}

	return nil
}

func formatStudiesPlain(w io.Writer, studies []eutils.Study) error {
	if len(studies) == 0 {
		fmt.Fprintln(w, "No studies found.")
		return nil
	}

	for i, s := range studies {
		if i > 0 {
			fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("─", 80))
		}

		fmt.Fprintf(w, "PMID: %s\n", s.PMID)
		fmt.Fprintf(w, "Title: %s\n", s.Title)
		if s.Authors != "" {
			fmt.Fprintf(w, "Authors: %s\n", s.Authors)
		}

		citation := s.Journal
		if s.Year != "" {
			citation += " (" + s.Year + ")"
		}
		fmt.Fprintf(w, "Journal: %s\n", citation)

		if s.DOI != "" {
			fmt.Fprintf(w, "DOI: %s\n", s.DOI)
		}
		fmt.Fprintf(w, "Link: %s\n", s.Link)
		if s.Abstract != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Abstract:")
			fmt.Fprintln(w, s.Abstract)
		}
	}

	return nil
}

func formatMeSHPlain(w io.Writer, record *mesh.Record) error {
	fmt.Fprintf(w, "MeSH Term: %s\n", record.Name)
	fmt.Fprintf(w, "UI: %s\n", record.UI)

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tree Numbers:")
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "  %s\n", tn)
		}
	}

	if record.ScopeNote != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Scope Note:")
		fmt.Fprintf(w, "  %s\n", record.ScopeNote)
	}

	if len(record.EntryTerms) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Entry Terms (synonyms):")
		for _, et := range record.EntryTerms {
			fmt.Fprintf(w, "  - %s\n", et)
		}
	}

	if record.Annotation != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Annotation: %s\n", record.Annotation)
	}

	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
