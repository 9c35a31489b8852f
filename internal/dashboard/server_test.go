package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrybloomingdale/srtoolkit/internal/analytics"
	"github.com/henrybloomingdale/srtoolkit/internal/eutils"
	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/ncbi"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
)

type fakeService struct {
	mu          sync.Mutex
	report      *pipeline.Report
	studies     *pipeline.StudyReport
	analyzeErr  error
	lookupErr   error
	lastRequest pipeline.AnalyzeRequest
	lastKeyword string
	lastLimit   int
}

func (f *fakeService) Analyze(_ context.Context, req pipeline.AnalyzeRequest) (*pipeline.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRequest = req
	return f.report, f.analyzeErr
}

func (f *fakeService) Studies(_ context.Context, keyword string, limit int) (*pipeline.StudyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKeyword, f.lastLimit = keyword, limit
	return f.studies, nil
}

func (f *fakeService) LookupMeSH(_ context.Context, term string) (*mesh.Record, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return &mesh.Record{UI: "D007328", Name: term}, nil
}

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		Topic: "insulin",
		Total: 1234,
		PMIDs: []string{"38000001", "38000002", "38000003"},
		MeSH: []mesh.TermCount{
			{Term: "Insulin", Count: 2},
			{Term: "Humans", Count: 2},
			{Term: "Diabetes Mellitus, Type 2", Count: 1},
		},
		MeSHTop:   2,
		MeSHQuery: `("Insulin"[MeSH] OR "Humans"[MeSH])`,
		StartYear: 2000,
		EndYear:   2002,
		Trend:     []analytics.TrendPoint{{Year: 2000, Count: 5}, {Year: 2001, Count: 0}, {Year: 2002, Count: 12}},
		Words:     []analytics.WordCount{{Word: "glycemic", Count: 3}, {Word: "insulin", Count: 2}},
		Warnings:  []eutils.Warning{{Message: "trend: HTTP 502"}},
	}
}

func sampleStudies() *pipeline.StudyReport {
	return &pipeline.StudyReport{
		Keyword: "asthma",
		Studies: []eutils.Study{{
			PMID:    "111",
			Title:   "Inhaled steroids, revisited",
			Journal: "Thorax",
			Year:    "2021",
			Authors: "Smith Jane; Doe John",
			AuthorList: []eutils.Author{
				{LastName: "Smith", ForeName: "Jane"},
				{LastName: "Doe", ForeName: "John"},
			},
			Link: "https://pubmed.ncbi.nlm.nih.gov/111/",
		}},
		Warnings: []eutils.Warning{{PMID: "222", Message: "error parsing data: EOF"}},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2002, time.July, 1, 0, 0, 0, 0, time.UTC)
}

func newTestServer(svc Service) *Server {
	return New(svc, Options{Logger: quietLogger(), Now: fixedNow})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{}), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	body := rec.Body.String()
	assert.Contains(t, body, "Run MeSH + Trend Analysis")
	assert.Contains(t, body, `name="articles" min="20" max="500" value="100"`)
	assert.Contains(t, body, `max="2002" value="2000"`)
	assert.Contains(t, body, "Structured Extract")
}

func TestAnalyze(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	rec := get(t, newTestServer(svc), "/analyze?topic=insulin&articles=50&mesh_top=5&start_year=2000")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.AnalyzeRequest{Topic: "insulin", Limit: 50, MeSHTop: 5, StartYear: 2000}, svc.lastRequest)

	body := rec.Body.String()
	assert.Contains(t, body, `id="mesh-table"`)
	assert.Contains(t, body, "Humans")
	assert.NotContains(t, body, "Diabetes Mellitus, Type 2", "table stops at the top N terms")
	assert.Contains(t, body, `(&#34;Insulin&#34;[MeSH] OR &#34;Humans&#34;[MeSH])`)
	assert.Contains(t, body, `id="trend-chart"`)
	assert.Contains(t, body, `id="word-chart"`)
	assert.Contains(t, body, "trend: HTTP 502")
	assert.Contains(t, body, "/export/mesh.csv?articles=50&amp;mesh_top=5&amp;start_year=2000&amp;topic=insulin")
}

func TestAnalyze_Defaults(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	rec := get(t, newTestServer(svc), "/analyze?topic=copd")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.AnalyzeRequest{Topic: "copd", Limit: 100, MeSHTop: 10, StartYear: 2000}, svc.lastRequest)
}

func TestAnalyze_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"missing topic", "/analyze?topic=+", "topic is required"},
		{"too few articles", "/analyze?topic=x&articles=5", "articles must be at least 20"},
		{"too many articles", "/analyze?topic=x&articles=501", "articles must be at most 500"},
		{"mesh top", "/analyze?topic=x&mesh_top=21", "mesh_top must be at most 20"},
		{"old start", "/analyze?topic=x&start_year=1899", "start_year must be at least 1900"},
		{"future start", "/analyze?topic=x&start_year=2003", "start_year must be at most 2002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{report: sampleReport()}
			rec := get(t, newTestServer(svc), tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, svc.lastRequest.Topic, "service must not run on invalid input")
		})
	}
}

func TestAnalyze_BadNumber(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{}), "/analyze?topic=x&articles=lots")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_ServiceError(t *testing.T) {
	svc := &fakeService{analyzeErr: pipeline.ErrEmptyTopic}
	rec := get(t, newTestServer(svc), "/analyze?topic=x")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "topic cannot be empty")
}

func TestStudies(t *testing.T) {
	svc := &fakeService{studies: sampleStudies()}
	rec := get(t, newTestServer(svc), "/studies?keyword=asthma&limit=3")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "asthma", svc.lastKeyword)
	assert.Equal(t, 3, svc.lastLimit)

	body := rec.Body.String()
	assert.Contains(t, body, `id="studies-table"`)
	assert.Contains(t, body, "Inhaled steroids, revisited")
	assert.Contains(t, body, "PMID 222: error parsing data: EOF")
	assert.Contains(t, body, "/export/studies.csv?keyword=asthma&amp;limit=3")
}

func TestStudies_Validation(t *testing.T) {
	svc := &fakeService{studies: sampleStudies()}

	rec := get(t, newTestServer(svc), "/studies?keyword=asthma&limit=101")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit must be at most 100")

	rec = get(t, newTestServer(svc), "/studies?limit=5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "keyword is required")
}

func TestExportReport(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/export/mesh.csv", "MeSH,count\nInsulin,2\nHumans,2\n\"Diabetes Mellitus, Type 2\",1\n"},
		{"/export/freq.csv", "word,count\nglycemic,3\ninsulin,2\n"},
		{"/export/trend.csv", "year,count\n2000,5\n2001,0\n2002,12\n"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, newTestServer(&fakeService{report: sampleReport()}), tt.path+"?topic=insulin")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
			assert.Equal(t, `attachment; filename="`+filepath.Base(tt.path)+`"`, rec.Header().Get(echo.HeaderContentDisposition))
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestExportReport_Invalid(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{report: sampleReport()}), "/export/mesh.csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "topic is required")
}

func TestExportStudies(t *testing.T) {
	s := newTestServer(&fakeService{studies: sampleStudies()})

	rec := get(t, s, "/export/studies.csv?keyword=asthma")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(),
		"PMID,Title,Journal,Publication Date,Authors,DOI,Abstract,Link\n111,\"Inhaled steroids, revisited\",Thorax,2021,"))

	rec = get(t, s, "/export/studies.ris?keyword=asthma")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="studies.ris"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Contains(t, rec.Body.String(), "TY  - JOUR")
	assert.Contains(t, rec.Body.String(), "AU  - Doe, John")
}

func TestMeSHLookup(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{}), "/mesh/Insulin")
	require.Equal(t, http.StatusOK, rec.Code)

	var got mesh.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "D007328", got.UI)
	assert.Equal(t, "Insulin", got.Name)

	rec = get(t, newTestServer(&fakeService{lookupErr: mesh.ErrNotFound}), "/mesh/zzzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, newTestServer(&fakeService{lookupErr: errors.New("HTTP 503")}), "/mesh/Insulin")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeService{})

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCharts(t *testing.T) {
	assert.Nil(t, newLineChart(nil))
	assert.Nil(t, newBarChart(nil))

	lc := newLineChart([]analytics.TrendPoint{{Year: 2000, Count: 5}, {Year: 2001, Count: 0}, {Year: 2002, Count: 10}})
	require.Len(t, lc.Markers, 3)
	assert.Equal(t, 10, lc.Max)
	assert.InDelta(t, padLeft, lc.Markers[0].X, 0.001)
	assert.InDelta(t, chartWidth-padRight, lc.Markers[2].X, 0.001)
	assert.InDelta(t, padTop, lc.Markers[2].Y, 0.001, "max count touches the top")
	assert.InDelta(t, lc.Bottom, lc.Markers[1].Y, 0.001, "zero sits on the axis")

	single := newLineChart([]analytics.TrendPoint{{Year: 2010, Count: 0}})
	require.Len(t, single.Markers, 1)
	assert.InDelta(t, lc.Bottom, single.Markers[0].Y, 0.001)

	long := make([]analytics.TrendPoint, 60)
	for i := range long {
		long[i] = analytics.TrendPoint{Year: 1960 + i, Count: i}
	}
	assert.LessOrEqual(t, len(newLineChart(long).Ticks), maxTicks+1)

	bc := newBarChart([]analytics.WordCount{{Word: "glycemic", Count: 4}, {Word: "insulin", Count: 2}})
	require.Len(t, bc.Bars, 2)
	assert.InDelta(t, 2*bc.Bars[1].Width, bc.Bars[0].Width, 0.001)
}

// End to end through the real pipeline against a stub NCBI server.
func TestAnalyze_EndToEnd(t *testing.T) {
	batch, err := os.ReadFile(filepath.Join("..", "..", "testdata", "efetch_batch.xml"))
	require.NoError(t, err)

	ncbiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			if strings.Contains(r.URL.Query().Get("term"), "[PDAT]") {
				w.Write([]byte(`{"esearchresult":{"count":"7","idlist":[]}}`))
				return
			}
			w.Write([]byte(`{"esearchresult":{"count":"3","idlist":["38000001","38000002","38000003"]}}`))
		case "/efetch.fcgi":
			w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
			w.Write(batch)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ncbiSrv.Close()

	base := ncbi.NewBaseClient(ncbi.WithBaseURL(ncbiSrv.URL), ncbi.WithAPIKey("test"), ncbi.WithLogger(quietLogger()))
	svc, err := pipeline.New(eutils.NewClientWithBase(base), mesh.NewClient(base), pipeline.Config{
		CacheSize: 8,
		Now:       fixedNow,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	s := newTestServer(svc)

	rec := get(t, s, "/export/trend.csv?topic=insulin&start_year=2001")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "year,count\n2001,7\n2002,7\n", rec.Body.String())

	rec = get(t, s, "/export/mesh.csv?topic=insulin&start_year=2001")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MeSH,count\nInsulin,2\nHumans,2\n\"Diabetes Mellitus, Type 2\",1\n", rec.Body.String())
}
