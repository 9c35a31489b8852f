package eutils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func xmlHandler(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
		w.Write(body)
	}
}

func TestFetchRaw_Success(t *testing.T) {
	fixture := loadTestdata(t, "efetch_batch.xml")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("id"); got != "38000001,38000002,38000003" {
			t.Errorf("expected comma-joined ids, got %q", got)
		}
		if got := q.Get("retmode"); got != "xml" {
			t.Errorf("expected retmode=xml, got %q", got)
		}
		xmlHandler(fixture)(w, r)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("test"))
	body, err := c.FetchRaw(context.Background(), []string{"38000001", "38000002", "38000003"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != len(fixture) {
		t.Errorf("expected %d bytes, got %d", len(fixture), len(body))
	}
}

func TestFetchRaw_NonXMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.Write([]byte("<html><body>Bad Gateway</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.FetchRaw(context.Background(), []string{"1"})
	if !errors.Is(err, ErrUnexpectedContentType) {
		t.Errorf("expected ErrUnexpectedContentType, got %v", err)
	}
}

func TestFetchRaw_NoIDsSendsNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.FetchRaw(context.Background(), nil); !errors.Is(err, ErrNoIDs) {
		t.Errorf("expected ErrNoIDs, got %v", err)
	}
	if called {
		t.Error("expected no request for empty id list")
	}
}

func TestIsXML(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"text/xml; charset=UTF-8", true},
		{"application/xml", true},
		{"application/atom+xml", true},
		{"text/html; charset=UTF-8", false},
		{"application/json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isXML(tt.in); got != tt.want {
			t.Errorf("isXML(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAbstractText(t *testing.T) {
	text, err := AbstractText(loadTestdata(t, "efetch_batch.xml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Insulin therapy improves glycemic control. " +
		"Glycemic targets were reached with basal insulin. " +
		"Pumps reduce glycemic variability in adults. "
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
}

func TestAbstractText_NoAbstracts(t *testing.T) {
	text, err := AbstractText([]byte(`<PubmedArticleSet><PubmedArticle/></PubmedArticleSet>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestAbstractText_Malformed(t *testing.T) {
	_, err := AbstractText([]byte(`<PubmedArticleSet><AbstractText>cut off`))
	if err == nil {
		t.Fatal("expected error for malformed XML")
	}
	if !strings.Contains(err.Error(), "parsing PubMed XML") {
		t.Errorf("expected parse error, got %v", err)
	}
}
