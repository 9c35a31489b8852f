package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
)

// WriteRIS writes study records in RIS format for citation managers.
func WriteRIS(out io.Writer, studies []eutils.Study) error {
	w := bufio.NewWriter(out)
	for i, s := range studies {
		writeRISTag(w, "TY", "JOUR")
		writeRISTag(w, "TI", s.Title)

		if len(s.AuthorList) > 0 {
			for _, au := range s.AuthorList {
				writeRISTag(w, "AU", risAuthor(au))
			}
		} else {
			for _, au := range risAuthors(s.Authors) {
				writeRISTag(w, "AU", au)
			}
		}

		writeRISTag(w, "PY", s.Year)
		writeRISTag(w, "JO", s.Journal)
		writeRISTag(w, "DO", s.DOI)
		writeRISTag(w, "AB", s.Abstract)
		if s.PMID != "" {
			writeRISTag(w, "ID", "PMID:"+s.PMID)
		}
		writeRISTag(w, "UR", s.Link)
		writeRISTag(w, "ER", "")

		if i < len(studies)-1 {
			if _, err := w.WriteString("\n"); err != nil {
				return fmt.Errorf("writing RIS separator: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing RIS output: %w", err)
	}

	return nil
}

func writeStudiesRIS(path string, studies []eutils.Study) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating RIS file: %w", err)
	}
	if err := WriteRIS(f, studies); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRISTag(w *bufio.Writer, tag, value string) {
	if tag == "" {
		return
	}
	if tag != "ER" && strings.TrimSpace(value) == "" {
		return
	}
	if tag == "ER" {
		_, _ = w.WriteString("ER  -\n")
		return
	}
	_, _ = w.WriteString(tag + "  - " + sanitizeRISValue(value) + "\n")
}

func sanitizeRISValue(v string) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.TrimSpace(v)
}

func risAuthor(a eutils.Author) string {
	if a.CollectiveName != "" {
		return a.CollectiveName
	}
	last := strings.TrimSpace(a.LastName)
	fore := strings.TrimSpace(a.ForeName)
	if last == "" {
		return fore
	}
	if fore == "" {
		return last
	}
	return last + ", " + fore
}

// risAuthors splits a "; " joined author string back into names, for
// studies that carry no AuthorList.
func risAuthors(authors string) []string {
	var names []string
	for _, name := range strings.Split(authors, ";") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
