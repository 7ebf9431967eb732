package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/blobstore"
	"github.com/Veraticus/ledger-sieve/internal/certs"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/pipeline"
	"github.com/Veraticus/ledger-sieve/internal/spreadsheet"
	"github.com/Veraticus/ledger-sieve/internal/testutil"
	"github.com/Veraticus/ledger-sieve/internal/testutil/ledgers"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	handler http.Handler
	uploads *blobstore.FileStore
	outputs *blobstore.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	uploads, err := blobstore.NewFileStore(fs, "Uploads")
	require.NoError(t, err)
	outputs, err := blobstore.NewFileStore(fs, "FilteredOutput")
	require.NoError(t, err)
	runs := testutil.SetupRunStore(t)

	p, err := pipeline.New(testutil.ToyArtifacts(t), spreadsheet.NewRegistry(), uploads, outputs,
		pipeline.WithRunStore(runs))
	require.NoError(t, err)

	srv, err := New(p, Options{Runs: runs, MaxUploadBytes: 1 << 20})
	require.NoError(t, err)
	return &fixture{handler: srv.Router(), uploads: uploads, outputs: outputs}
}

type upload struct {
	fields   map[string]string
	fileName string
	data     []byte
	noFile   bool
}

func defaultFields() map[string]string {
	return map[string]string{"description": "0", "ref_no": "1", "credit": "2"}
}

func predictRequest(t *testing.T, u upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range u.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if !u.noFile {
		fw, err := mw.CreateFormFile("file", u.fileName)
		require.NoError(t, err)
		_, err = fw.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// flashFrom follows a redirect the way a browser would and returns the
// message shown on the upload form.
func flashFrom(t *testing.T, h http.Handler, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	page := serve(h, req)
	require.Equal(t, http.StatusOK, page.Code)

	body := page.Body.String()
	start := strings.Index(body, `role="alert">`)
	if start < 0 {
		return ""
	}
	body = body[start+len(`role="alert">`):]
	return body[:strings.Index(body, "</div>")]
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/predict"`)
	assert.NotContains(t, rec.Body.String(), `role="alert"`)
}

func TestPredict_Success(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, predictRequest(t, upload{
		fields:   defaultFields(),
		fileName: "ledger.xlsx",
		data:     ledgers.NewBuilder(t).WithFixture(ledgers.FixtureMixed).XLSX(),
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "15.50")
	assert.Contains(t, body, "ACME refund")
	assert.Contains(t, body, "Travel reimbursement")
	assert.NotContains(t, body, "Office supplies payment")
}

func TestPredict_FlashMessages(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		input func(t *testing.T) upload
	}{
		{
			name:  "no file part",
			want:  "No file uploaded.",
			input: func(*testing.T) upload { return upload{fields: defaultFields(), noFile: true} },
		},
		{
			name: "empty file name",
			want: "No file uploaded.",
			input: func(*testing.T) upload {
				return upload{fields: defaultFields(), fileName: "", data: []byte("x")}
			},
		},
		{
			name: "missing Ref_No",
			want: "Uploaded file is missing &#34;Description&#34; or &#34;Ref_No&#34; columns.",
			input: func(t *testing.T) upload {
				return upload{
					fields:   defaultFields(),
					fileName: "ledger.xlsx",
					data:     ledgers.NewBuilder(t).WithColumns("Description", "Ref", "Amount").WithRow("refund", "R", 1).XLSX(),
				}
			},
		},
		{
			name: "non-integer index",
			want: "Column positions must be whole numbers.",
			input: func(t *testing.T) upload {
				fields := defaultFields()
				fields["credit"] = "two"
				return upload{fields: fields, fileName: "ledger.xlsx", data: ledgers.NewBuilder(t).WithFixture(ledgers.FixtureMixed).XLSX()}
			},
		},
		{
			name: "index out of range",
			want: "Column index 9 for credit is out of range; the file has 3 columns.",
			input: func(t *testing.T) upload {
				fields := defaultFields()
				fields["credit"] = "9"
				return upload{fields: fields, fileName: "ledger.xlsx", data: ledgers.NewBuilder(t).WithFixture(ledgers.FixtureMixed).XLSX()}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := serve(f.handler, predictRequest(t, tt.input(t)))
			assert.Equal(t, tt.want, flashFrom(t, f.handler, rec))

			ok, err := f.outputs.Exists(context.Background(), pipeline.FilteredOutputKey)
			require.NoError(t, err)
			assert.False(t, ok, "nothing written")
		})
	}
}

func TestPredict_FlashShownOnce(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, predictRequest(t, upload{fields: defaultFields(), noFile: true}))
	require.NotEmpty(t, flashFrom(t, f.handler, rec))

	cleared := serve(f.handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, cleared.Body.String(), `role="alert"`)
}

func TestPredict_TooLarge(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, predictRequest(t, upload{
		fields:   defaultFields(),
		fileName: "big.csv",
		data:     bytes.Repeat([]byte("a"), 2<<20),
	}))
	assert.Equal(t, "Uploaded file is too large.", flashFrom(t, f.handler, rec))
}

func TestPredict_UnreadableFile(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, predictRequest(t, upload{
		fields:   defaultFields(),
		fileName: "ledger.xlsx",
		data:     []byte("definitely not a workbook"),
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not be read")
}

func TestPredict_UnsupportedFileType(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, predictRequest(t, upload{
		fields:   defaultFields(),
		fileName: "ledger.xls",
		data:     []byte{0xD0, 0xCF, 0x11, 0xE0},
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "are not supported")
	assert.Contains(t, body, ".csv, .ofx, .qfx, .xlsm, .xlsx")
}

func TestDownload(t *testing.T) {
	f := newFixture(t)

	before := serve(f.handler, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, before.Code)

	run := serve(f.handler, predictRequest(t, upload{
		fields:   defaultFields(),
		fileName: "ledger.xlsx",
		data:     ledgers.NewBuilder(t).WithFixture(ledgers.FixtureMixed).XLSX(),
	}))
	require.Equal(t, http.StatusOK, run.Code)

	after := serve(f.handler, httptest.NewRequest(http.MethodGet, "/download", nil))
	require.Equal(t, http.StatusOK, after.Code)
	assert.Equal(t, XLSXContentType, after.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="filtered_data.xlsx"`, after.Header().Get("Content-Disposition"))

	table, err := spreadsheet.NewXLSXCodec().Decode(after.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestRunsAndHealth(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		rec := serve(f.handler, predictRequest(t, upload{
			fields:   defaultFields(),
			fileName: "ledger.xlsx",
			data:     ledgers.NewBuilder(t).WithFixture(ledgers.FixtureMixed).XLSX(),
		}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(f.handler, httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []runJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "ledger.xlsx", runs[0].FileName)
	assert.Equal(t, 2, runs[0].Matched)

	bad := serve(f.handler, httptest.NewRequest(http.MethodGet, "/runs?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	health := serve(f.handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())
}

type failingClassifier struct{ err error }

func (c failingClassifier) Run(context.Context, pipeline.Request) (*model.PipelineResult, error) {
	return nil, c.err
}

func (c failingClassifier) FetchFilteredOutput(context.Context) ([]byte, error) { return nil, c.err }

func (c failingClassifier) OutputName() string { return pipeline.FilteredOutputKey }

func TestHandler_InternalErrors(t *testing.T) {
	srv, err := New(failingClassifier{err: errors.New("disk on fire")}, Options{})
	require.NoError(t, err)
	h := srv.Handler()

	rec := serve(h, predictRequest(t, upload{fields: defaultFields(), fileName: "a.xlsx", data: []byte("x")}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire", "internal details stay in the logs")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	runs := serve(h, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.JSONEq(t, `[]`, runs.Body.String(), "no run store serves an empty history")
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.handler, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNew_RequiresClassifier(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, `Uploaded file is missing "Description"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	assert.Equal(t, `Uploaded file is missing "Description"`, popFlash(httptest.NewRecorder(), req))
	assert.Empty(t, popFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// Reserve a free port, then hand it to the server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	go func() { done <- ListenAndServe(ctx, h, ListenConfig{Addr: addr}, nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get((&url.URL{Scheme: "http", Host: addr, Path: "/"}).String())
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestListenAndServe_SelfSignedTLS(t *testing.T) {
	tlsCfg, err := certs.NewFileManager(afero.NewMemMapFs(), "/certs").TLSConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	go func() { done <- ListenAndServe(ctx, h, ListenConfig{Addr: addr, TLS: tlsCfg}, nil) }()

	transport := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // self-signed test certificate
	client := &http.Client{Transport: transport}
	require.Eventually(t, func() bool {
		resp, err := client.Get((&url.URL{Scheme: "https", Host: addr, Path: "/"}).String())
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	transport.CloseIdleConnections()
}

func TestListenAndServe_ProductionNeedsDomains(t *testing.T) {
	err := ListenAndServe(context.Background(), http.NotFoundHandler(), ListenConfig{Production: true}, nil)
	assert.Error(t, err)
}

var _ Classifier = (*pipeline.Pipeline)(nil)
