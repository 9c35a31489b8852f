package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// Tab names, also used as element ids.
const (
	tabMeSH    = "mesh"
	tabTrend   = "trend"
	tabWords   = "words"
	tabExport  = "export"
	tabStudies = "studies"
)

type pageData struct {
	Form      AnalyzeForm
	StudyForm StudyForm
	Tab       string
	Errors    map[string]string
	Report    *pipeline.Report
	Studies   *pipeline.StudyReport
	Trend     *lineChart
	Words     *barChart
	MaxYear   int
}

// Bounds exposes the form limits to the template.
func (pageData) Bounds() map[string]int {
	return map[string]int{
		"MinArticles":  MinArticles,
		"MaxArticles":  MaxArticles,
		"MinMeSHTop":   MinMeSHTop,
		"MaxMeSHTop":   MaxMeSHTop,
		"MinStartYear": MinStartYear,
		"MaxStudies":   MaxStudyLimit,
	}
}

// ExportQuery is the analysis form as a query string for export links.
func (d pageData) ExportQuery() template.URL {
	return template.URL(d.Form.Query())
}

// StudyQuery is the extractor form as a query string for export links.
func (d pageData) StudyQuery() template.URL {
	return template.URL(d.StudyForm.Query())
}

type pages struct {
	index *template.Template
}

func loadPages() *pages {
	funcs := template.FuncMap{
		"f1":         func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"sortedKeys": sortedKeys,
	}
	return &pages{
		index: template.Must(template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")),
	}
}

// render executes the page into a buffer first so a template failure
// becomes a 500 rather than a half-written page.
func (s *Server) render(c echo.Context, status int, data pageData) error {
	data.MaxYear = s.opts.Now().Year()

	var buf bytes.Buffer
	if err := s.pages.index.ExecuteTemplate(&buf, "index.html", data); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
