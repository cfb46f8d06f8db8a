package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/metrics"
	"github.com/JonMunkholm/csvmerge/internal/store"
)

type upload struct {
	name, data string
}

// fakeStore keeps runs in memory and drains the COPY source like pgx would.
type fakeStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]store.Run
	rows    map[uuid.UUID][][]any
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[uuid.UUID]store.Run{}, rows: map[uuid.UUID][][]any{}}
}

func (f *fakeStore) SaveRun(ctx context.Context, run store.Run, src pgx.CopyFromSource) (int64, error) {
	var rows [][]any
	for src.Next() {
		v, err := src.Values()
		if err != nil {
			return 0, err
		}
		rows = append(rows, append([]any(nil), v...))
	}
	if err := src.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	run.CreatedAt = time.Now()
	f.runs[run.ID] = run
	f.rows[run.ID] = rows
	return int64(len(rows)), nil
}

func (f *fakeStore) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	return &run, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) string { return "" })
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	return NewServer(cfg, opts...)
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

var twoFiles = []upload{
	{"a.csv", "id,name\n1,Alice\n"},
	{"b.csv", "id,age\n2,30\n"},
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="files"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestMerge_Download(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/merge", twoFiles, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "id,name,age\n1,Alice,\n2,,30\n", rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="merged.csv"`)
	assert.Equal(t, "2", rec.Header().Get(HeaderRowsWritten))
	assert.Equal(t, "0", rec.Header().Get(HeaderFieldMismatches))
	assert.Empty(t, rec.Header().Get(HeaderMergeStored))

	_, err := uuid.Parse(rec.Header().Get(HeaderMergeID))
	assert.NoError(t, err)
}

func TestMerge_FormOptions(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/merge", twoFiles, map[string]string{
		"fill":          "NA",
		"out_delimiter": ";",
		"out_encoding":  "latin1",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "id;name;age\n1;Alice;NA\n2;NA;30\n", rec.Body.String())
	assert.Equal(t, "text/csv; charset=iso-8859-1", rec.Header().Get("Content-Type"))
}

func TestMerge_FieldMismatchHeader(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/merge", []upload{{"a.csv", "a,b\n1\n2,3\n"}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b\n1,\n2,3\n", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get(HeaderFieldMismatches))
}

func TestMerge_Errors(t *testing.T) {
	tests := []struct {
		name       string
		files      []upload
		fields     map[string]string
		configure  func(*config.Config)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no files",
			fields:     map[string]string{"fill": "x"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MRG001",
		},
		{
			name:       "every file empty",
			files:      []upload{{"a.csv", ""}, {"b.csv", ""}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MRG001",
		},
		{
			name:       "too many files",
			files:      twoFiles,
			configure:  func(c *config.Config) { c.Upload.MaxFiles = 1 },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE006",
		},
		{
			name:       "file too large",
			files:      []upload{{"big.csv", "id,name\n1,a much longer value\n"}},
			configure:  func(c *config.Config) { c.Upload.MaxFileSize = 10 },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE005",
		},
		{
			name:       "strict header conflict",
			files:      twoFiles,
			fields:     map[string]string{"strict_header": "on"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "MRG002",
		},
		{
			name:       "invalid delimiter",
			files:      twoFiles,
			fields:     map[string]string{"delimiter": "ab"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MRG003",
		},
		{
			name:       "invalid skip lines",
			files:      twoFiles,
			fields:     map[string]string{"skip_lines": "many"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MRG003",
		},
		{
			name:       "invalid utf-8",
			files:      []upload{{"bad.csv", "a\n\xff\n"}},
			fields:     map[string]string{"encoding": "utf-8"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "FILE003",
		},
		{
			name:       "store without database",
			files:      twoFiles,
			fields:     map[string]string{"store": "true"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "STO001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.configure != nil {
				tt.configure(cfg)
			}
			s := newTestServer(t, cfg)

			rec := serve(s, multipartRequest(t, "/api/merge", tt.files, tt.fields))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestMerge_NotMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader("id\n1\n"))
	req.Header.Set("Content-Type", "text/csv")

	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMerge_ErrorAsHTML(t *testing.T) {
	s := newTestServer(t, nil)

	req := multipartRequest(t, "/api/merge", nil, map[string]string{"fill": "x"})
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
	assert.Contains(t, rec.Body.String(), "Code: MRG001")

	req = multipartRequest(t, "/api/merge", nil, map[string]string{"fill": "x"})
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	assert.NotContains(t, rec.Body.String(), "<!DOCTYPE html>")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
}

func TestMerge_Busy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxConcurrent = 1
	cfg.Upload.MaxWaitTime = 20 * time.Millisecond
	s := newTestServer(t, cfg)

	require.NoError(t, s.Limiter().Acquire(context.Background()))
	defer s.Limiter().Release()

	rec := serve(s, multipartRequest(t, "/api/merge", twoFiles, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UPL002", decodeError(t, rec).Code)
}

func TestMerge_Store(t *testing.T) {
	fs := newFakeStore()
	s := newTestServer(t, nil, WithStore(fs))

	rec := serve(s, multipartRequest(t, "/api/merge", twoFiles, map[string]string{"store": "on"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "true", rec.Header().Get(HeaderMergeStored))

	id := uuid.MustParse(rec.Header().Get(HeaderMergeID))
	rows := fs.rows[id]
	require.Len(t, rows, 2)
	assert.Equal(t, "a.csv", rows[0][2])
	assert.Equal(t, "b.csv", rows[1][2])

	var data map[string]string
	require.NoError(t, json.Unmarshal(rows[1][3].(json.RawMessage), &data))
	assert.Equal(t, map[string]string{"id": "2", "name": "", "age": "30"}, data)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/merges/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var run store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, []string{"a.csv", "b.csv"}, run.Inputs)
	assert.Equal(t, []string{"id", "name", "age"}, run.Columns)
	assert.Equal(t, 2, run.RowsWritten)
}

func TestMerge_StoreWithOutputFormat(t *testing.T) {
	fs := newFakeStore()
	s := newTestServer(t, nil, WithStore(fs))

	rec := serve(s, multipartRequest(t, "/api/merge", twoFiles, map[string]string{
		"store":         "true",
		"out_delimiter": "tab",
		"out_encoding":  "utf-16le",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	id := uuid.MustParse(rec.Header().Get(HeaderMergeID))
	assert.Len(t, fs.rows[id], 2)
}

func TestGetRun_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/merges/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "STO001", decodeError(t, rec).Code)

	s = newTestServer(t, nil, WithStore(newFakeStore()))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/merges/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RUN002", decodeError(t, rec).Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/merges/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUN001", decodeError(t, rec).Code)
}

func TestPreview_JSON(t *testing.T) {
	var data strings.Builder
	data.WriteString("n\n")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&data, "%d\n", i)
	}

	s := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/preview", []upload{{"n.csv", data.String()}}, map[string]string{
		"out_encoding": "utf-16le",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Report merge.Report `json:"report"`
		Header []string     `json:"header"`
		Rows   [][]string   `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp.Report.RowsWritten)
	assert.Equal(t, []string{"n"}, resp.Header)
	require.Len(t, resp.Rows, PreviewRows)
	assert.Equal(t, []string{"1"}, resp.Rows[0])
	assert.Equal(t, []string{"20"}, resp.Rows[PreviewRows-1])
}

func TestPreview_HTML(t *testing.T) {
	s := newTestServer(t, nil)

	req := multipartRequest(t, "/api/preview", twoFiles, nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")
	assert.Contains(t, rec.Body.String(), "Alice")
	assert.NotContains(t, rec.Body.String(), "<!DOCTYPE html>")

	req = multipartRequest(t, "/api/preview", twoFiles, nil)
	req.Header.Set("Accept", "text/html")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Database)
	assert.Equal(t, testConfig(t).Upload.MaxConcurrent, resp.Merges.MaxConcurrent)

	fs := newFakeStore()
	fs.pingErr = errors.New("connection refused")
	s = newTestServer(t, nil, WithStore(fs))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.New()
	s := newTestServer(t, nil, WithMetrics(rec))

	require.Equal(t, http.StatusOK, serve(s, multipartRequest(t, "/api/merge", twoFiles, nil)).Code)
	serve(s, multipartRequest(t, "/api/merge", twoFiles, map[string]string{"strict_header": "true"}))

	resp := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `status="ok"} 1`)
	assert.Contains(t, body, `csvmerge_merges_total{kind="HeaderConflict",status="failed"} 1`)
	assert.Contains(t, body, "csvmerge_rows_written_total 2")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&merge.Error{Kind: merge.KindNoInputs}, http.StatusBadRequest},
		{&merge.Error{Kind: merge.KindOutputFailed}, http.StatusInternalServerError},
		{&merge.Error{Kind: merge.KindCancelled, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{&merge.Error{Kind: merge.KindCancelled, Err: context.Canceled}, http.StatusRequestTimeout},
		{fmt.Errorf("lookup: %w", store.ErrRunNotFound), http.StatusNotFound},
		{ErrTooManyMerges, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
