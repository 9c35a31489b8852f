package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidRange is returned when the start year is after the end year.
var ErrInvalidRange = errors.New("start year is after end year")

// Counter returns the total hit count for a PubMed query.
type Counter interface {
	Count(ctx context.Context, query string) (int, error)
}

// TrendPoint is the number of records matching a topic in one year.
type TrendPoint struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// TrendOptions tunes YearlyTrend.
type TrendOptions struct {
	// Concurrency bounds in-flight count requests. Values below 2 run the
	// years strictly in order, one request at a time.
	Concurrency int
	// Now supplies the current time when end is 0. Defaults to time.Now.
	Now func() time.Time
}

// TrendQuery builds the per-year query: title/abstract match plus
// publication date.
func TrendQuery(topic string, year int) string {
	return fmt.Sprintf("%s[Title/Abstract] AND %d[PDAT]", topic, year)
}

// YearlyTrend issues one count query per year in [start, end] and returns
// the points in ascending year order. end == 0 means the current year.
// A failure for any year fails the whole trend.
func YearlyTrend(ctx context.Context, counter Counter, topic string, start, end int, opts TrendOptions) ([]TrendPoint, error) {
	if end == 0 {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		end = now().Year()
	}
	if start > end {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, start, end)
	}

	points := make([]TrendPoint, end-start+1)
	for i := range points {
		points[i].Year = start + i
	}

	if opts.Concurrency < 2 {
		for i := range points {
			n, err := counter.Count(ctx, TrendQuery(topic, points[i].Year))
			if err != nil {
				return nil, fmt.Errorf("counting %d: %w", points[i].Year, err)
			}
			points[i].Count = n
		}
		return points, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range points {
		g.Go(func() error {
			n, err := counter.Count(gctx, TrendQuery(topic, points[i].Year))
			if err != nil {
				return fmt.Errorf("counting %d: %w", points[i].Year, err)
			}
			points[i].Count = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
