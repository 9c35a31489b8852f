package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/metrics"
)

// ErrNoDescriptors is returned by LookupMeSH when the service was built
// without a MeSH client.
var ErrNoDescriptors = errors.New("MeSH lookup is not configured")

// StudyReport is the outcome of a structured extraction run.
type StudyReport struct {
	Keyword  string           `json:"keyword"`
	Total    int              `json:"total"`
	Studies  []eutils.Study   `json:"studies"`
	Warnings []eutils.Warning `json:"warnings,omitempty"`
	Notices  []string         `json:"notices,omitempty"`
}

// Studies searches for keyword and extracts one Study per matching PMID.
// Records that fail are reported as warnings and skipped. Only reports
// without warnings are memoized.
func (s *Service) Studies(ctx context.Context, keyword string, limit int) (*StudyReport, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}
	if limit <= 0 {
		limit = DefaultStudyLimit
	}

	key := fmt.Sprintf("%d\x00%s", limit, keyword)
	r, err := s.studies.Get(ctx, key, func(ctx context.Context) (*StudyReport, error) {
		r := s.extract(ctx, keyword, limit)
		if len(r.Warnings) > 0 {
			return nil, &partialStudies{report: r, cause: ctx.Err()}
		}
		return r, nil
	})

	var partial *partialStudies
	if errors.As(err, &partial) {
		return partial.report, nil
	}
	return r, err
}

// partialStudies carries a report with warnings through the memo without
// storing it, so the next call retries the failed search or records.
type partialStudies struct {
	report *StudyReport
	cause  error
}

func (e *partialStudies) Error() string {
	return fmt.Sprintf("study extraction for %q finished with %d warnings", e.report.Keyword, len(e.report.Warnings))
}

// Unwrap exposes a cancelled context so the memo can retry for live waiters.
func (e *partialStudies) Unwrap() error {
	return e.cause
}

func (s *Service) extract(ctx context.Context, keyword string, limit int) *StudyReport {
	r := &StudyReport{Keyword: keyword, Studies: []eutils.Study{}}

	res, err := s.search(ctx, keyword, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "pipeline stage degraded", "stage", "search", "keyword", keyword, "error", err)
		metrics.RecordWarning("search")
		r.Warnings = append(r.Warnings, eutils.Warning{Message: "search: " + err.Error()})
		return r
	}
	r.Total = res.Count
	if len(res.IDs) == 0 {
		r.Notices = append(r.Notices, NoticeNoRecords)
		return r
	}

	studies, warnings := s.pubmed.FetchStudies(ctx, res.IDs)
	r.Studies = studies
	for range warnings {
		metrics.RecordWarning("studies")
	}
	r.Warnings = append(r.Warnings, warnings...)
	return r
}

// LookupMeSH returns the MeSH descriptor record for term.
func (s *Service) LookupMeSH(ctx context.Context, term string) (*mesh.Record, error) {
	if s.descriptors == nil {
		return nil, ErrNoDescriptors
	}
	term = strings.TrimSpace(term)
	return s.records.Get(ctx, strings.ToLower(term), func(ctx context.Context) (*mesh.Record, error) {
		return s.descriptors.Lookup(ctx, term)
	})
}
