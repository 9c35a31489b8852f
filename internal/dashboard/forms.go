package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
	"github.com/henrybloomingdale/srtoolkit/internal/validation"
)

// Field bounds of the sidebar and extractor forms.
const (
	MinArticles     = 20
	MaxArticles     = 500
	DefaultArticles = 100
	MinMeSHTop      = 3
	MaxMeSHTop      = 20
	MinStartYear    = 1900
	MaxStudyLimit   = 100
)

// AnalyzeForm is the sidebar form.
type AnalyzeForm struct {
	Topic     string `query:"topic" validate:"required"`
	Articles  int    `query:"articles" validate:"gte=20,lte=500"`
	MeSHTop   int    `query:"mesh_top" validate:"gte=3,lte=20"`
	StartYear int    `query:"start_year" validate:"gte=1900"`
}

// StudyForm is the structured extractor form.
type StudyForm struct {
	Keyword string `query:"keyword" validate:"required"`
	Limit   int    `query:"limit" validate:"gte=1,lte=100"`
}

func (s *Server) defaultAnalyzeForm() AnalyzeForm {
	return AnalyzeForm{
		Articles:  DefaultArticles,
		MeSHTop:   pipeline.DefaultMeSHTop,
		StartYear: s.opts.StartYear,
	}
}

func defaultStudyForm() StudyForm {
	return StudyForm{Limit: pipeline.DefaultStudyLimit}
}

// bindAnalyze fills the form from the query string over its defaults and
// validates it. Field errors are returned keyed by parameter name.
func (s *Server) bindAnalyze(c echo.Context) (AnalyzeForm, map[string]string, error) {
	form := s.defaultAnalyzeForm()
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &form); err != nil {
		return form, nil, err
	}
	form.Topic = strings.TrimSpace(form.Topic)

	errs := s.check(&form)
	if year := s.opts.Now().Year(); form.StartYear > year {
		if errs == nil {
			errs = map[string]string{}
		}
		errs["start_year"] = fmt.Sprintf("start_year must be at most %d", year)
	}
	return form, errs, nil
}

func (s *Server) bindStudies(c echo.Context) (StudyForm, map[string]string, error) {
	form := defaultStudyForm()
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &form); err != nil {
		return form, nil, err
	}
	form.Keyword = strings.TrimSpace(form.Keyword)
	return form, s.check(&form), nil
}

func (s *Server) check(form any) map[string]string {
	err := s.validate.Validate(form)
	if err == nil {
		return nil
	}
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return verr.Errors
	}
	return map[string]string{"form": err.Error()}
}

// Request converts the form into a pipeline request.
func (f AnalyzeForm) Request() pipeline.AnalyzeRequest {
	return pipeline.AnalyzeRequest{
		Topic:     f.Topic,
		Limit:     f.Articles,
		MeSHTop:   f.MeSHTop,
		StartYear: f.StartYear,
	}
}

// Query re-encodes the form for export links.
func (f AnalyzeForm) Query() string {
	v := url.Values{}
	v.Set("topic", f.Topic)
	v.Set("articles", strconv.Itoa(f.Articles))
	v.Set("mesh_top", strconv.Itoa(f.MeSHTop))
	v.Set("start_year", strconv.Itoa(f.StartYear))
	return v.Encode()
}

// Query re-encodes the form for export links.
func (f StudyForm) Query() string {
	v := url.Values{}
	v.Set("keyword", f.Keyword)
	v.Set("limit", strconv.Itoa(f.Limit))
	return v.Encode()
}
