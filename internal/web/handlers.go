package web

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/store"
	"github.com/JonMunkholm/csvmerge/internal/web/templates"
)

const (
	// PreviewRows is how many merged rows the preview returns.
	PreviewRows = 20

	// maxFormMemory is held in memory while parsing uploads; the rest spills
	// to temp files.
	maxFormMemory = 32 << 20

	mergedFileName = "merged.csv"
)

// Response headers on a merge download.
const (
	HeaderMergeID         = "X-Merge-Id"
	HeaderRowsWritten     = "X-Rows-Written"
	HeaderFieldMismatches = "X-Field-Mismatches"
	HeaderMergeStored     = "X-Merge-Stored"
)

// mergeRequest is a parsed upload.
type mergeRequest struct {
	sources []merge.Source
	opts    merge.Options
	format  merge.Format
	store   bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	m := s.cfg.Merge
	data := templates.IndexData{
		MaxFiles:      s.cfg.Upload.MaxFiles,
		MaxFileSizeMB: s.cfg.Upload.MaxFileSize >> 20,
		StoreEnabled:  s.store != nil,
		Defaults: templates.FormDefaults{
			FillValue:       m.FillValue,
			Delimiter:       m.Delimiter,
			Encoding:        m.Encoding,
			OutputDelimiter: m.OutputDelimiter,
			OutputEncoding:  m.OutputEncoding,
			SkipLines:       m.SkipLines,
			StrictHeader:    m.StrictHeader,
			NormalizeHeader: m.NormalizeHeaders,
			SkipBlankRows:   m.SkipBlankRows,
		},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// handleMerge merges the uploaded files and streams the result back as an
// attachment.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	// 1. Wait for a merge slot
	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()
	defer s.metrics.Track()()

	// 2. Parse the upload and options
	req, err := s.parseMergeRequest(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.store && s.store == nil {
		s.respondErrorStatus(w, r, errStoreDisabled, http.StatusBadRequest)
		return
	}

	// 3. Merge into a private temp dir
	dir, err := os.MkdirTemp("", "csvmerge-*")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("failed to create work dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, mergedFileName)
	rep, err := s.merger.MergeFile(r.Context(), req.sources, merge.Sink{Path: out, Format: req.format}, req.opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logger := logging.WithFields(r.Context(), "merge_id", rep.ID)

	// 4. Store the rows before anything is sent, so a failure can still be reported
	if req.store {
		if err := s.saveRun(r.Context(), out, req.format, rep); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.Header().Set(HeaderMergeStored, "true")
		logger.Info("merge stored", "rows", rep.RowsWritten)
	}

	// 5. Stream the merged file
	f, err := os.Open(out)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("failed to open merged output: %w", err))
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", contentType(req.format.Encoding))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", mergedFileName))
	h.Set(HeaderMergeID, rep.ID)
	h.Set(HeaderRowsWritten, strconv.Itoa(rep.RowsWritten))
	h.Set(HeaderFieldMismatches, strconv.Itoa(rep.FieldMismatches))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("download interrupted", "error", err)
	}
}

// previewResponse is the JSON body of a preview.
type previewResponse struct {
	Report *merge.Report `json:"report"`
	Header []string      `json:"header"`
	Rows   [][]string    `json:"rows"`
}

// handlePreview runs the full merge but returns only the report and the
// first PreviewRows rows. The output format fields are ignored.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// 1. Wait for a merge slot
	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()
	defer s.metrics.Track()()

	// 2. Parse the upload and options
	req, err := s.parseMergeRequest(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// 3. Merge as plain UTF-8 CSV so the preview can read it back
	dir, err := os.MkdirTemp("", "csvmerge-preview-*")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("failed to create work dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, mergedFileName)
	rep, err := s.merger.MergeFile(r.Context(), req.sources, merge.Sink{Path: out}, req.opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// 4. Read the first rows back
	header, rows, err := readPreview(out, PreviewRows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	data := templates.PreviewData{Report: rep, Header: header, Rows: rows}
	switch {
	case isHTMX(r):
		s.render(w, r, templates.PreviewTable(data))
	case wantsHTML(r):
		s.render(w, r, templates.Preview(data))
	default:
		writeJSON(w, http.StatusOK, previewResponse{Report: rep, Header: header, Rows: rows})
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, r, errStoreDisabled)
		return
	}

	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w %q", errInvalidMergeID, raw))
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type healthResponse struct {
	Status   string        `json:"status"`
	Database string        `json:"database"`
	Merges   LimiterStatus `json:"merges"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "disabled", Merges: s.limiter.Status()}
	status := http.StatusOK

	if s.store != nil {
		resp.Database = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

// parseMergeRequest reads the multipart upload and overlays form options on
// the configured merge defaults.
func (s *Server) parseMergeRequest(w http.ResponseWriter, r *http.Request) (*mergeRequest, error) {
	limits := s.cfg.Upload

	// Room for every file at the size limit plus form overhead
	bodyLimit := limits.MaxFileSize*int64(limits.MaxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request exceeds %d bytes", errFileTooLarge, bodyLimit)
		}
		return nil, fmt.Errorf("%w: %v", errMalformedUpload, err)
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil, errNoFile
	}
	if len(files) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, the limit is %d", errTooManyFiles, len(files), limits.MaxFiles)
	}

	sources := make([]merge.Source, 0, len(files))
	for i, fh := range files {
		if fh.Size > limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes, the limit is %d", errFileTooLarge, fh.Filename, fh.Size, limits.MaxFileSize)
		}
		sources = append(sources, uploadSource(i, fh))
	}

	mc := s.cfg.Merge
	if err := overlayForm(&mc, r); err != nil {
		return nil, &merge.Error{Kind: merge.KindInvalidOptions, Err: err}
	}
	opts, format, err := mc.Resolve()
	if err != nil {
		if merge.KindOf(err) == 0 {
			err = &merge.Error{Kind: merge.KindInvalidOptions, Err: err}
		}
		return nil, err
	}

	wantStore, err := formBool(r, "store", false)
	if err != nil {
		return nil, &merge.Error{Kind: merge.KindInvalidOptions, Err: err}
	}

	return &mergeRequest{sources: sources, opts: opts, format: format, store: wantStore}, nil
}

func uploadSource(i int, fh *multipart.FileHeader) merge.Source {
	name := fh.Filename
	if name == "" {
		name = fmt.Sprintf("upload-%d.csv", i+1)
	}
	return merge.Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// overlayForm applies the form fields a request sent. Blank text fields
// keep the configured default, except fill where blank is a real value.
func overlayForm(mc *config.MergeConfig, r *http.Request) error {
	if v, ok := r.PostForm["fill"]; ok && len(v) > 0 {
		mc.FillValue = v[0]
	}
	for name, dst := range map[string]*string{
		"delimiter":     &mc.Delimiter,
		"encoding":      &mc.Encoding,
		"out_delimiter": &mc.OutputDelimiter,
		"out_encoding":  &mc.OutputEncoding,
		"invalid_utf8":  &mc.InvalidUTF8,
	} {
		if v := strings.TrimSpace(r.PostFormValue(name)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(r.PostFormValue("skip_lines")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid skip_lines %q", v)
		}
		mc.SkipLines = n
	}

	var err error
	if mc.StrictHeader, err = formBool(r, "strict_header", mc.StrictHeader); err != nil {
		return err
	}
	if mc.NormalizeHeaders, err = formBool(r, "normalize_headers", mc.NormalizeHeaders); err != nil {
		return err
	}
	if mc.SkipBlankRows, err = formBool(r, "skip_blank_rows", mc.SkipBlankRows); err != nil {
		return err
	}
	return nil
}

// formBool parses a checkbox or boolean field, returning def when absent.
func formBool(r *http.Request, name string, def bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(r.PostFormValue(name)))
	switch v {
	case "":
		return def, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, v)
	}
	return b, nil
}

// saveRun re-reads the committed output and copies it into the store.
func (s *Server) saveRun(ctx context.Context, path string, format merge.Format, rep *merge.Report) error {
	if s.store == nil {
		return errStoreDisabled
	}

	run, err := store.RunFromReport(rep)
	if err != nil {
		return fmt.Errorf("failed to save merge run: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to save merge run: %w", err)
	}
	defer f.Close()

	rows, err := store.NewMergedRows(f, format, rep, run.ID)
	if err != nil {
		return fmt.Errorf("failed to save merge run: %w", err)
	}
	if _, err := s.store.SaveRun(ctx, run, rows); err != nil {
		return fmt.Errorf("failed to save merge run: %w", err)
	}
	return nil
}

// readPreview returns the header and at most n rows of a UTF-8 merged file.
func readPreview(path string, n int) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open merged output: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read merged header: %w", err)
	}

	rows := make([][]string, 0, n)
	for len(rows) < n {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read merged row: %w", err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// contentType names the charset of the download.
func contentType(enc csvio.Encoding) string {
	charset := "utf-8"
	switch enc {
	case csvio.EncodingUTF16LE:
		charset = "utf-16le"
	case csvio.EncodingUTF16BE:
		charset = "utf-16be"
	case csvio.EncodingLatin1:
		charset = "iso-8859-1"
	case csvio.EncodingWindows1252:
		charset = "windows-1252"
	}
	return "text/csv; charset=" + charset
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render view", "error", err)
	}
}
