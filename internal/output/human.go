package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

// --- Styles ---

var (
	cyan       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	bold       = lipgloss.NewStyle().Bold(true)
	dim        = lipgloss.NewStyle().Faint(true)
	green      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	magenta    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
)

// barWidth is the widest bar drawn by the terminal charts.
const barWidth = 40

// truncate cuts a string to maxLen runes, appending "…" if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-1]) + "…"
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Headers(headers...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
			}
			return lipgloss.NewStyle()
		})
}

// bar scales n against top into a run of block characters.
func bar(n, top int) string {
	if top <= 0 || n <= 0 {
		return ""
	}
	width := n * barWidth / top
	if width == 0 {
		width = 1
	}
	return strings.Repeat("█", width)
}

// --- Report ---

func formatReportHuman(w io.Writer, r *pipeline.Report) error {
	header := fmt.Sprintf("🔬 %s: %d results", r.Topic, r.Total)
	if len(r.PMIDs) < r.Total {
		header += fmt.Sprintf(" (analyzed %d)", len(r.PMIDs))
	}
	fmt.Fprintln(w, bold.Render(header))
	fmt.Fprintln(w)

	// MeSH & Query
	fmt.Fprintln(w, labelStyle.Render("🔖 Top MeSH Terms"))
	if len(r.MeSH) == 0 {
		fmt.Fprintln(w, dim.Render("   none"))
	} else {
		t := newTable("#", "MeSH", "Count")
		for i, tc := range r.TopMeSH() {
			t.Row(strconv.Itoa(i+1), cyan.Render(tc.Term), strconv.Itoa(tc.Count))
		}
		fmt.Fprintln(w, t.Render())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, labelStyle.Render("🔗 MeSH Search String"))
	fmt.Fprintln(w, boxStyle.Render(r.MeSHQuery))
	fmt.Fprintln(w)

	// Trend
	fmt.Fprintln(w, labelStyle.Render(fmt.Sprintf("📈 Publication Trend %d-%d", r.StartYear, r.EndYear)))
	maxCount := 0
	for _, p := range r.Trend {
		maxCount = max(maxCount, p.Count)
	}
	if len(r.Trend) == 0 {
		fmt.Fprintln(w, dim.Render("   none"))
	}
	for _, p := range r.Trend {
		fmt.Fprintf(w, "  %d %s %s\n", p.Year, green.Render(bar(p.Count, maxCount)), dim.Render(strconv.Itoa(p.Count)))
	}
	fmt.Fprintln(w)

	// Word frequency
	fmt.Fprintln(w, labelStyle.Render("📊 Word Frequency from Abstracts"))
	if len(r.Words) == 0 {
		fmt.Fprintln(w, dim.Render("   none"))
		return nil
	}
	widest := 0
	for _, wc := range r.Words {
		widest = max(widest, utf8.RuneCountInString(wc.Word))
	}
	top := r.Words[0].Count
	for _, wc := range r.Words {
		pad := strings.Repeat(" ", widest-utf8.RuneCountInString(wc.Word))
		fmt.Fprintf(w, "  %s%s %s %s\n", wc.Word, pad, magenta.Render(bar(wc.Count, top)), dim.Render(strconv.Itoa(wc.Count)))
	}

	return nil
}

// --- Studies ---

func formatStudiesHuman(w io.Writer, studies []eutils.Study, full bool) error {
	if len(studies) == 0 {
		fmt.Fprintln(w, "📄 No studies found.")
		return nil
	}

	for i, s := range studies {
		if i > 0 {
			fmt.Fprintln(w)
		}

		// Title card
		titleLine := bold.Render(s.Title)
		meta := cyan.Render("PMID: " + s.PMID)
		if s.Year != "" {
			meta += dim.Render(" · ") + s.Year
		}
		card := titleLine + "\n" + meta
		fmt.Fprintln(w, boxStyle.Render(card))
		fmt.Fprintln(w)

		if s.Authors != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Authors:"), s.Authors)
		}
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Journal:"), s.Journal)
		if s.DOI != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("DOI:"), yellow.Render(s.DOI))
		}
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Link:"), dim.Render(s.Link))

		if s.Abstract != "" {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  %s\n", labelStyle.Render("Abstract:"))
			abstract := s.Abstract
			if !full && utf8.RuneCountInString(abstract) > 500 {
				fmt.Fprintf(w, "  %s\n", truncate(abstract, 500))
				fmt.Fprintf(w, "  %s\n", dim.Render("[use --full for complete abstract]"))
			} else {
				fmt.Fprintf(w, "  %s\n", abstract)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, dim.Render("💾 Use --csv studies.csv or --ris studies.ris to export"))
	return nil
}

// --- MeSH ---

func formatMeSHHuman(w io.Writer, record *mesh.Record) error {
	// Name + UI header
	fmt.Fprintf(w, "🏷️  %s  %s\n\n", bold.Render(record.Name), dim.Render(record.UI))

	if len(record.TreeNumbers) > 0 {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Tree Numbers:"))
		for _, tn := range record.TreeNumbers {
			fmt.Fprintf(w, "    %s %s\n", magenta.Render("├"), tn)
		}
		fmt.Fprintln(w)
	}

	if record.ScopeNote != "" {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("Scope Note:"))
		wrapped := wordWrap(record.ScopeNote, 76)
		for _, line := range strings.Split(wrapped, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintln(w)
	}

	// Entry terms (synonyms)
	if len(record.EntryTerms) > 0 {
		fmt.Fprintf(w, "  %s ", labelStyle.Render("Synonyms:"))
		colored := make([]string, len(record.EntryTerms))
		for i, et := range record.EntryTerms {
			colored[i] = yellow.Render(et)
		}
		fmt.Fprintln(w, strings.Join(colored, ", "))
		fmt.Fprintln(w)
	}

	if record.Annotation != "" {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Annotation:"), record.Annotation)
	}

	return nil
}

// wordWrap wraps text at the given width, breaking at spaces.
func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}
