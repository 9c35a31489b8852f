package eutils

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrEmptyQuery is returned when a search term is blank.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// Search performs an ESearch query against PubMed. IDs come back in the
// relevance order NCBI returns them. The limit defaults to the client's
// MaxResults.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")

	limit := c.MaxResults
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Sort != "" {
			params.Set("sort", opts.Sort)
		}
		if opts.MinDate != "" && opts.MaxDate != "" {
			params.Set("datetype", "pdat")
			params.Set("mindate", opts.MinDate)
			params.Set("maxdate", opts.MaxDate)
		}
	}
	if limit <= 0 {
		limit = 100
	}
	params.Set("retmax", strconv.Itoa(limit))

	body, err := c.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	return parseSearch(body)
}

// Count returns only the total hit count for a query.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")
	params.Set("retmax", "0")

	body, err := c.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return 0, fmt.Errorf("count request failed: %w", err)
	}

	result, err := parseSearch(body)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

func parseSearch(body []byte) (*SearchResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("parsing search response: invalid JSON")
	}

	root := gjson.ParseBytes(body)
	if msg := root.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("NCBI search error: %s", msg.String())
	}
	res := root.Get("esearchresult")
	if msg := res.Get("ERROR"); msg.Exists() {
		return nil, fmt.Errorf("NCBI search error: %s", msg.String())
	}

	ids := []string{}
	for _, id := range res.Get("idlist").Array() {
		ids = append(ids, id.String())
	}

	return &SearchResult{
		Count:            int(res.Get("count").Int()),
		IDs:              ids,
		QueryTranslation: res.Get("querytranslation").String(),
	}, nil
}
