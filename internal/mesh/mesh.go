// Package mesh covers everything MeSH: counting descriptor occurrences in
// fetched records, turning the top descriptors back into a PubMed query,
// and looking up descriptor records in the NCBI MeSH database.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/henrybloomingdale/srtoolkit/internal/ncbi"
	"github.com/henrybloomingdale/srtoolkit/internal/pubmedxml"
)

// TermCount is one descriptor and how often it occurs across a batch.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Tally counts every MeshHeading/DescriptorName in the document. Counts
// are corpus-wide, not per record. The result is sorted by count
// descending; equal counts keep first-seen order.
func Tally(data []byte) ([]TermCount, error) {
	root, err := pubmedxml.Parse(data)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var terms []TermCount
	for _, d := range root.FindAll("MeshHeading", "DescriptorName") {
		term := strings.TrimSpace(d.InnerText())
		if term == "" {
			continue
		}
		if i, ok := index[term]; ok {
			terms[i].Count++
			continue
		}
		index[term] = len(terms)
		terms = append(terms, TermCount{Term: term, Count: 1})
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Count > terms[j].Count
	})
	return terms, nil
}

// FormatQuery joins the first n terms into a disjunctive MeSH query,
// e.g. ("Diabetes"[MeSH] OR "Insulin"[MeSH]).
func FormatQuery(terms []TermCount, n int) string {
	if n < 0 || n > len(terms) {
		n = len(terms)
	}
	parts := make([]string, n)
	for i, t := range terms[:n] {
		parts[i] = `"` + t.Term + `"[MeSH]`
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Record represents a MeSH descriptor record.
type Record struct {
	UI          string   `json:"ui"`
	Name        string   `json:"name"`
	ScopeNote   string   `json:"scope_note"`
	TreeNumbers []string `json:"tree_numbers"`
	EntryTerms  []string `json:"entry_terms"`
	Annotation  string   `json:"annotation,omitempty"`
}

// Client provides MeSH lookup functionality.
// It embeds ncbi.BaseClient for shared rate limiting and common parameters.
type Client struct {
	*ncbi.BaseClient
}

// NewClient creates a new MeSH lookup client using an existing NCBI base client.
func NewClient(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}

// ErrNotFound is returned when no MeSH descriptor matches a term.
var ErrNotFound = errors.New("MeSH term not found")

// Lookup searches for a MeSH term and returns its record.
func (c *Client) Lookup(ctx context.Context, term string) (*Record, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("MeSH term cannot be empty")
	}

	ids, err := c.searchMeSH(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, term)
	}

	return c.fetchMeSH(ctx, ids[0])
}

func (c *Client) searchMeSH(ctx context.Context, term string) ([]string, error) {
	params := url.Values{}
	params.Set("db", "mesh")
	params.Set("term", term)
	params.Set("retmode", "json")

	body, err := c.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("MeSH search failed: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("parsing MeSH search response: invalid JSON")
	}

	var ids []string
	for _, id := range gjson.GetBytes(body, "esearchresult.idlist").Array() {
		ids = append(ids, id.String())
	}
	return ids, nil
}

func (c *Client) fetchMeSH(ctx context.Context, uid string) (*Record, error) {
	params := url.Values{}
	params.Set("db", "mesh")
	params.Set("id", uid)
	params.Set("rettype", "full")
	params.Set("retmode", "text")

	body, err := c.DoGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("MeSH fetch failed: %w", err)
	}

	record := parseRecord(string(body))
	return &record, nil
}

// parseRecord parses the NCBI MeSH full text format ("KEY = value" lines).
func parseRecord(text string) Record {
	var record Record

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "*NEWRECORD" {
			continue
		}

		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "MH":
			record.Name = value
		case "UI":
			record.UI = value
		case "MS":
			record.ScopeNote = value
		case "MN":
			record.TreeNumbers = append(record.TreeNumbers, value)
		case "AN":
			record.Annotation = value
		case "ENTRY", "PRINT ENTRY":
			// "Term|T047|..."
			entry, _, _ := strings.Cut(value, "|")
			record.EntryTerms = append(record.EntryTerms, strings.TrimSpace(entry))
		}
	}

	return record
}
