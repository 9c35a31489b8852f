package eutils

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/henrybloomingdale/srtoolkit/internal/pubmedxml"
)

var (
	// ErrNoIDs is returned when a fetch is attempted with no PMIDs.
	ErrNoIDs = errors.New("at least one PMID is required")
	// ErrUnexpectedContentType is returned when efetch answers with
	// something other than XML (typically an HTML error page).
	ErrUnexpectedContentType = errors.New("unexpected content type")
)

// FetchRaw retrieves the efetch XML for the given PMIDs in one request.
func (c *Client) FetchRaw(ctx context.Context, pmids []string) ([]byte, error) {
	if len(pmids) == 0 {
		return nil, ErrNoIDs
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")

	resp, err := c.Do(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}
	if !isXML(resp.ContentType) {
		return nil, fmt.Errorf("%w %q from efetch", ErrUnexpectedContentType, resp.ContentType)
	}

	return resp.Body, nil
}

// isXML accepts text/xml, application/xml and any +xml media type. NCBI
// always labels efetch XML, so a missing header is treated as not XML.
func isXML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/xml" || mediaType == "application/xml" || strings.HasSuffix(mediaType, "+xml")
}

// AbstractText concatenates the text of every AbstractText element in the
// document, joined by single spaces. Record boundaries are not kept.
func AbstractText(data []byte) (string, error) {
	root, err := pubmedxml.Parse(data)
	if err != nil {
		return "", err
	}

	nodes := root.FindAll("", "AbstractText")
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.InnerText()
	}
	return strings.Join(parts, " "), nil
}
