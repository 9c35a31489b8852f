// Package pipeline runs the analysis stages behind both front ends:
// search, fetch, MeSH tally, word frequency, yearly trend and study
// extraction. External failures degrade to warnings and empty results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/henrybloomingdale/srtoolkit/internal/analytics"
	"github.com/henrybloomingdale/srtoolkit/internal/cache"
	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/metrics"
)

const (
	DefaultMeSHTop    = 10
	DefaultWordsTop   = 20
	DefaultStartYear  = 2000
	DefaultStudyLimit = 10

	// NoticeNoRecords is reported when a search matches nothing.
	NoticeNoRecords = "no records found for this topic"
)

var (
	// ErrEmptyTopic is returned when the analysis topic is blank.
	ErrEmptyTopic = errors.New("topic cannot be empty")
	// ErrEmptyKeyword is returned when the study keyword is blank.
	ErrEmptyKeyword = errors.New("keyword cannot be empty")
)

// PubMed is the subset of the E-utilities client the pipeline needs.
type PubMed interface {
	Search(ctx context.Context, query string, opts *eutils.SearchOptions) (*eutils.SearchResult, error)
	Count(ctx context.Context, query string) (int, error)
	FetchRaw(ctx context.Context, pmids []string) ([]byte, error)
	FetchStudies(ctx context.Context, pmids []string) ([]eutils.Study, []eutils.Warning)
}

// Descriptors looks up MeSH descriptor records.
type Descriptors interface {
	Lookup(ctx context.Context, term string) (*mesh.Record, error)
}

// Config tunes a Service.
type Config struct {
	CacheSize        int
	TrendConcurrency int
	Now              func() time.Time
	Logger           *slog.Logger
}

// Service runs analyses with per-stage memoization.
type Service struct {
	pubmed      PubMed
	descriptors Descriptors
	cfg         Config
	logger      *slog.Logger

	searches *cache.Memo[*eutils.SearchResult]
	fetches  *cache.Memo[[]byte]
	trends   *cache.Memo[[]analytics.TrendPoint]
	studies  *cache.Memo[*StudyReport]
	records  *cache.Memo[*mesh.Record]
}

// New creates a Service. descriptors may be nil, in which case LookupMeSH
// is unavailable.
func New(pubmed PubMed, descriptors Descriptors, cfg Config) (*Service, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{pubmed: pubmed, descriptors: descriptors, cfg: cfg, logger: logger}

	var err error
	if s.searches, err = cache.New[*eutils.SearchResult]("search", cfg.CacheSize); err != nil {
		return nil, err
	}
	if s.fetches, err = cache.New[[]byte]("efetch", cfg.CacheSize); err != nil {
		return nil, err
	}
	if s.trends, err = cache.New[[]analytics.TrendPoint]("trend", cfg.CacheSize); err != nil {
		return nil, err
	}
	if s.studies, err = cache.New[*StudyReport]("studies", cfg.CacheSize); err != nil {
		return nil, err
	}
	if s.records, err = cache.New[*mesh.Record]("mesh", cfg.CacheSize); err != nil {
		return nil, err
	}
	return s, nil
}

// AnalyzeRequest holds the inputs of one topic analysis. Zero values take
// the defaults.
type AnalyzeRequest struct {
	Topic     string `json:"topic"`
	Limit     int    `json:"limit,omitempty"`
	MeSHTop   int    `json:"mesh_top,omitempty"`
	WordsTop  int    `json:"words_top,omitempty"`
	StartYear int    `json:"start_year,omitempty"`
	EndYear   int    `json:"end_year,omitempty"`
}

func (r AnalyzeRequest) withDefaults() AnalyzeRequest {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.MeSHTop <= 0 {
		r.MeSHTop = DefaultMeSHTop
	}
	if r.WordsTop <= 0 {
		r.WordsTop = DefaultWordsTop
	}
	if r.StartYear <= 0 {
		r.StartYear = DefaultStartYear
	}
	return r
}

// Validate reports whether the request can run.
func (r AnalyzeRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return ErrEmptyTopic
	}
	if r.EndYear != 0 && r.StartYear > r.EndYear {
		return fmt.Errorf("%w: %d > %d", analytics.ErrInvalidRange, r.StartYear, r.EndYear)
	}
	return nil
}

// Report is the outcome of one analysis run. MeSH holds every term; the
// query uses the first MeSHTop of them.
type Report struct {
	Topic     string                 `json:"topic"`
	Total     int                    `json:"total"`
	PMIDs     []string               `json:"pmids"`
	MeSH      []mesh.TermCount       `json:"mesh"`
	MeSHTop   int                    `json:"mesh_top"`
	MeSHQuery string                 `json:"mesh_query"`
	StartYear int                    `json:"start_year"`
	EndYear   int                    `json:"end_year"`
	Trend     []analytics.TrendPoint `json:"trend"`
	Words     []analytics.WordCount  `json:"words"`
	Warnings  []eutils.Warning       `json:"warnings,omitempty"`
	Notices   []string               `json:"notices,omitempty"`
}

// TopMeSH returns the terms shown in the MeSH table.
func (r *Report) TopMeSH() []mesh.TermCount {
	if r.MeSHTop < len(r.MeSH) {
		return r.MeSH[:r.MeSHTop]
	}
	return r.MeSH
}

func (r *Report) warn(stage string, err error) {
	r.Warnings = append(r.Warnings, eutils.Warning{Message: stage + ": " + err.Error()})
}

// Analyze runs the full topic analysis. Only an invalid request returns
// an error.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error) {
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	end := req.EndYear
	if end == 0 {
		end = s.cfg.Now().Year()
	}

	r := &Report{
		Topic:     req.Topic,
		PMIDs:     []string{},
		MeSH:      []mesh.TermCount{},
		MeSHTop:   req.MeSHTop,
		StartYear: req.StartYear,
		EndYear:   end,
		Trend:     []analytics.TrendPoint{},
		Words:     []analytics.WordCount{},
	}

	res, err := s.search(ctx, req.Topic, req.Limit)
	if err != nil {
		s.degrade(ctx, r, "search", err)
	} else {
		r.Total = res.Count
		r.PMIDs = res.IDs
	}

	if len(r.PMIDs) == 0 {
		if err == nil {
			r.Notices = append(r.Notices, NoticeNoRecords)
		}
		r.MeSHQuery = mesh.FormatQuery(r.MeSH, r.MeSHTop)
		return r, nil
	}

	data, err := s.fetch(ctx, r.PMIDs)
	if err != nil {
		s.degrade(ctx, r, "efetch", err)
	} else {
		if terms, err := mesh.Tally(data); err != nil {
			s.degrade(ctx, r, "mesh", err)
		} else {
			r.MeSH = terms
		}
		if text, err := eutils.AbstractText(data); err != nil {
			s.degrade(ctx, r, "abstracts", err)
		} else {
			r.Words = analytics.WordFrequency(text, req.WordsTop)
		}
	}

	if trend, err := s.trend(ctx, req.Topic, req.StartYear, end); err != nil {
		s.degrade(ctx, r, "trend", err)
	} else {
		r.Trend = trend
	}

	r.MeSHQuery = mesh.FormatQuery(r.MeSH, r.MeSHTop)
	return r, nil
}

func (s *Service) degrade(ctx context.Context, r *Report, stage string, err error) {
	s.logger.WarnContext(ctx, "pipeline stage degraded", "stage", stage, "topic", r.Topic, "error", err)
	metrics.RecordWarning(stage)
	r.warn(stage, err)
}

func (s *Service) search(ctx context.Context, query string, limit int) (*eutils.SearchResult, error) {
	key := fmt.Sprintf("%d\x00%s", limit, query)
	return s.searches.Get(ctx, key, func(ctx context.Context) (*eutils.SearchResult, error) {
		return s.pubmed.Search(ctx, query, &eutils.SearchOptions{Limit: limit})
	})
}

func (s *Service) fetch(ctx context.Context, pmids []string) ([]byte, error) {
	return s.fetches.Get(ctx, strings.Join(pmids, ","), func(ctx context.Context) ([]byte, error) {
		return s.pubmed.FetchRaw(ctx, pmids)
	})
}

func (s *Service) trend(ctx context.Context, topic string, start, end int) ([]analytics.TrendPoint, error) {
	key := fmt.Sprintf("%d\x00%d\x00%s", start, end, topic)
	return s.trends.Get(ctx, key, func(ctx context.Context) ([]analytics.TrendPoint, error) {
		return analytics.YearlyTrend(ctx, s.pubmed, topic, start, end, analytics.TrendOptions{
			Concurrency: s.cfg.TrendConcurrency,
			Now:         s.cfg.Now,
		})
	})
}
