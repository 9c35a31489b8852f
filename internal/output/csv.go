package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/henrybloomingdale/srtoolkit/internal/analytics"
	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

// Export file names.
const (
	MeSHFile    = "mesh.csv"
	WordsFile   = "freq.csv"
	TrendFile   = "trend.csv"
	StudiesFile = "studies.csv"
)

// ErrEmptyCSV is returned by ReadTable when the input has no header row.
var ErrEmptyCSV = errors.New("CSV has no header row")

// Table is a header plus rows of string cells, ready for CSV.
type Table struct {
	Header []string
	Rows   [][]string
}

// MeSHTable renders term counts as MeSH,count.
func MeSHTable(terms []mesh.TermCount) Table {
	t := Table{Header: []string{"MeSH", "count"}, Rows: make([][]string, 0, len(terms))}
	for _, tc := range terms {
		t.Rows = append(t.Rows, []string{tc.Term, strconv.Itoa(tc.Count)})
	}
	return t
}

// WordTable renders word counts as word,count.
func WordTable(words []analytics.WordCount) Table {
	t := Table{Header: []string{"word", "count"}, Rows: make([][]string, 0, len(words))}
	for _, wc := range words {
		t.Rows = append(t.Rows, []string{wc.Word, strconv.Itoa(wc.Count)})
	}
	return t
}

// TrendTable renders trend points as year,count.
func TrendTable(points []analytics.TrendPoint) Table {
	t := Table{Header: []string{"year", "count"}, Rows: make([][]string, 0, len(points))}
	for _, p := range points {
		t.Rows = append(t.Rows, []string{strconv.Itoa(p.Year), strconv.Itoa(p.Count)})
	}
	return t
}

// StudyTable renders study records with one column per field.
func StudyTable(studies []eutils.Study) Table {
	t := Table{
		Header: []string{"PMID", "Title", "Journal", "Publication Date", "Authors", "DOI", "Abstract", "Link"},
		Rows:   make([][]string, 0, len(studies)),
	}
	for _, s := range studies {
		t.Rows = append(t.Rows, []string{s.PMID, s.Title, s.Journal, s.Year, s.Authors, s.DOI, s.Abstract, s.Link})
	}
	return t
}

// WriteCSV writes the table as UTF-8, comma-delimited CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("writing CSV rows: %w", err)
	}
	return nil
}

// ReadTable parses CSV written by WriteCSV. Every row must have as many
// fields as the header.
func ReadTable(r io.Reader) (Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyCSV
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}

func writeCSVFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportReport writes mesh.csv, freq.csv and trend.csv into dir, creating
// it if needed. The MeSH export holds every term, not only the top N.
func ExportReport(dir string, r *pipeline.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	files := []struct {
		name  string
		table Table
	}{
		{MeSHFile, MeSHTable(r.MeSH)},
		{WordsFile, WordTable(r.Words)},
		{TrendFile, TrendTable(r.Trend)},
	}
	for _, f := range files {
		if err := writeCSVFile(filepath.Join(dir, f.name), f.table); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}
