package eutils

import (
	"context"
	"log/slog"
	"strings"

	"github.com/henrybloomingdale/srtoolkit/internal/pubmedxml"
)

// FetchStudies fetches each PMID on its own and extracts a Study. A PMID
// that cannot be fetched or parsed is reported as a Warning and skipped;
// the rest of the batch continues.
func (c *Client) FetchStudies(ctx context.Context, pmids []string) ([]Study, []Warning) {
	studies := make([]Study, 0, len(pmids))
	var warnings []Warning

	for _, pmid := range pmids {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, Warning{PMID: pmid, Message: "cancelled: " + err.Error()})
			break
		}

		data, err := c.FetchRaw(ctx, []string{pmid})
		if err == nil {
			var s Study
			if s, err = ParseStudy(pmid, data); err == nil {
				studies = append(studies, s)
				continue
			}
		}

		c.logger().WarnContext(ctx, "study extraction failed", "pmid", pmid, "error", err)
		warnings = append(warnings, Warning{PMID: pmid, Message: "error parsing data: " + err.Error()})
	}

	return studies, warnings
}

// ParseStudy extracts the structured fields of one efetch document. Each
// field takes the first matching element.
func ParseStudy(pmid string, data []byte) (Study, error) {
	root, err := pubmedxml.Parse(data)
	if err != nil {
		return Study{}, err
	}

	s := Study{
		PMID:     pmid,
		Title:    pubmedxml.PlainText(root.Find("", "ArticleTitle")),
		Journal:  text(root.Find("Journal", "Title")),
		Year:     text(root.Find("PubDate", "Year")),
		Abstract: pubmedxml.PlainText(root.Find("Abstract", "AbstractText")),
		Link:     Permalink(pmid),
	}
	s.AuthorList = authors(root)
	names := make([]string, len(s.AuthorList))
	for i, a := range s.AuthorList {
		names[i] = a.Name()
	}
	s.Authors = strings.Join(names, "; ")
	if doi := root.FindWithAttr("ELocationID", "EIdType", "doi"); doi != nil {
		s.DOI = strings.TrimSpace(doi.Text())
	}

	return s, nil
}

func text(n *pubmedxml.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Text())
}

// authors collects every Author in document order, skipping empty ones.
func authors(root *pubmedxml.Node) []Author {
	var list []Author
	for _, n := range root.FindAll("", "Author") {
		a := Author{
			LastName:       strings.TrimSpace(n.ChildText("LastName")),
			ForeName:       strings.TrimSpace(n.ChildText("ForeName")),
			CollectiveName: strings.TrimSpace(n.ChildText("CollectiveName")),
		}
		if a.Name() != "" {
			list = append(list, a)
		}
	}
	return list
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
