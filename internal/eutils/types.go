// Package eutils provides a client for the PubMed side of NCBI E-utilities
// and the parsers that turn efetch XML into abstracts and study records.
package eutils

import (
	"fmt"
	"strings"
)

// SearchResult represents the result of an ESearch query.
type SearchResult struct {
	Count            int      `json:"count"`
	IDs              []string `json:"ids"`
	QueryTranslation string   `json:"query_translation"`
}

// SearchOptions configures a search query.
type SearchOptions struct {
	Limit   int    `json:"limit,omitempty"`
	Sort    string `json:"sort,omitempty"`
	MinDate string `json:"min_date,omitempty"`
	MaxDate string `json:"max_date,omitempty"`
}

// Author is one entry of an AuthorList. Group authors carry only
// CollectiveName.
type Author struct {
	LastName       string `json:"last_name,omitempty"`
	ForeName       string `json:"fore_name,omitempty"`
	CollectiveName string `json:"collective_name,omitempty"`
}

// Name renders the author as "LastName ForeName", or the collective name.
func (a Author) Name() string {
	if name := strings.TrimSpace(a.LastName + " " + a.ForeName); name != "" {
		return name
	}
	return a.CollectiveName
}

// Study is the structured record extracted for one PMID. DOI and
// Abstract are empty when the record has none. Authors is AuthorList
// rendered with Author.Name and joined by "; ".
type Study struct {
	PMID       string   `json:"pmid"`
	Title      string   `json:"title"`
	Journal    string   `json:"journal"`
	Year       string   `json:"year"`
	Authors    string   `json:"authors"`
	AuthorList []Author `json:"author_list,omitempty"`
	DOI        string   `json:"doi,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	Link       string   `json:"link"`
}

// Warning is a non-fatal problem, optionally tied to one PMID.
type Warning struct {
	PMID    string `json:"pmid,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.PMID == "" {
		return w.Message
	}
	return fmt.Sprintf("PMID %s: %s", w.PMID, w.Message)
}

// Permalink returns the PubMed page URL for a PMID.
func Permalink(pmid string) string {
	return fmt.Sprintf(PermalinkTemplate, pmid)
}
