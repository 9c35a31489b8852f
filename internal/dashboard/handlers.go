package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/output"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

func (s *Server) handleIndex(c echo.Context) error {
	return s.render(c, http.StatusOK, pageData{
		Form:      s.defaultAnalyzeForm(),
		StudyForm: defaultStudyForm(),
		Tab:       tabMeSH,
	})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	form, errs, err := s.bindAnalyze(c)
	if err != nil {
		return err
	}
	data := pageData{Form: form, StudyForm: defaultStudyForm(), Tab: tabMeSH}
	if errs != nil {
		data.Errors = errs
		return s.render(c, http.StatusBadRequest, data)
	}

	report, err := s.svc.Analyze(c.Request().Context(), form.Request())
	if err != nil {
		data.Errors = map[string]string{"form": err.Error()}
		return s.render(c, http.StatusBadRequest, data)
	}

	data.Report = report
	data.Trend = newLineChart(report.Trend)
	data.Words = newBarChart(report.Words)
	return s.render(c, http.StatusOK, data)
}

func (s *Server) handleStudies(c echo.Context) error {
	form, errs, err := s.bindStudies(c)
	if err != nil {
		return err
	}
	data := pageData{Form: s.defaultAnalyzeForm(), StudyForm: form, Tab: tabStudies}
	if errs != nil {
		data.Errors = errs
		return s.render(c, http.StatusBadRequest, data)
	}

	studies, err := s.svc.Studies(c.Request().Context(), form.Keyword, form.Limit)
	if err != nil {
		data.Errors = map[string]string{"form": err.Error()}
		return s.render(c, http.StatusBadRequest, data)
	}
	data.Studies = studies
	return s.render(c, http.StatusOK, data)
}

type reportExport struct {
	file  string
	table func(*pipeline.Report) output.Table
}

var (
	exportMeSH = reportExport{output.MeSHFile, func(r *pipeline.Report) output.Table {
		return output.MeSHTable(r.MeSH)
	}}
	exportWords = reportExport{output.WordsFile, func(r *pipeline.Report) output.Table {
		return output.WordTable(r.Words)
	}}
	exportTrend = reportExport{output.TrendFile, func(r *pipeline.Report) output.Table {
		return output.TrendTable(r.Trend)
	}}
)

// handleExportReport re-runs the analysis through the memo caches and
// streams one of its tables.
func (s *Server) handleExportReport(x reportExport) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, errs, err := s.bindAnalyze(c)
		if err != nil {
			return err
		}
		if errs != nil {
			return echo.NewHTTPError(http.StatusBadRequest, joinErrors(errs))
		}

		report, err := s.svc.Analyze(c.Request().Context(), form.Request())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return writeCSV(c, x.file, x.table(report))
	}
}

func (s *Server) studiesForExport(c echo.Context) (*pipeline.StudyReport, error) {
	form, errs, err := s.bindStudies(c)
	if err != nil {
		return nil, err
	}
	if errs != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, joinErrors(errs))
	}
	studies, err := s.svc.Studies(c.Request().Context(), form.Keyword, form.Limit)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return studies, nil
}

func (s *Server) handleExportStudiesCSV(c echo.Context) error {
	studies, err := s.studiesForExport(c)
	if err != nil {
		return err
	}
	return writeCSV(c, output.StudiesFile, output.StudyTable(studies.Studies))
}

func (s *Server) handleExportStudiesRIS(c echo.Context) error {
	studies, err := s.studiesForExport(c)
	if err != nil {
		return err
	}
	attach(c, "studies.ris")
	c.Response().Header().Set(echo.HeaderContentType, "application/x-research-info-systems")
	c.Response().WriteHeader(http.StatusOK)
	return output.WriteRIS(c.Response(), studies.Studies)
}

func (s *Server) handleMeSH(c echo.Context) error {
	term := strings.TrimSpace(c.Param("term"))
	if term == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "term is required")
	}

	rec, err := s.svc.LookupMeSH(c.Request().Context(), term)
	switch {
	case errors.Is(err, mesh.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.WarnContext(c.Request().Context(), "MeSH lookup failed", "term", term, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "MeSH lookup failed")
	}
	return c.JSON(http.StatusOK, rec)
}

func writeCSV(c echo.Context, file string, t output.Table) error {
	attach(c, file)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return output.WriteCSV(c.Response(), t)
}

func attach(c echo.Context, file string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file))
}

func joinErrors(errs map[string]string) string {
	msgs := make([]string, 0, len(errs))
	for _, k := range sortedKeys(errs) {
		msgs = append(msgs, errs[k])
	}
	return strings.Join(msgs, ", ")
}
