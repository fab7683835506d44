package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitionBody struct {
	ExpectedStatus     string `json:"expected_status"`
	TargetStatus       string `json:"target_status"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
}

// transitionEcho декодирует тело перехода и возвращает его же с новым статусом.
func transitionEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transitionBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Empty(t, r.Header.Get("Content-Encoding"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": req.TargetStatus,
			"reason": req.CancellationReason,
		})
	})
}

func gzipped(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	require.NoError(t, json.NewEncoder(gz).Encode(v))
	require.NoError(t, gz.Close())
	return &buf
}

func readBody(t *testing.T, res *http.Response) []byte {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return body
}

func TestGzipMiddleware_Transitions(t *testing.T) {
	cancel := transitionBody{
		ExpectedStatus:     "CONFIRMED",
		TargetStatus:       "CANCELLED",
		CancellationReason: "venue closed",
	}

	tests := []struct {
		name           string
		compressBody   bool
		acceptEncoding string
		wantEncoding   string
	}{
		{name: "compressed request, compressed response", compressBody: true, acceptEncoding: "gzip", wantEncoding: "gzip"},
		{name: "compressed request, plain response", compressBody: true},
		{name: "plain request, compressed response", acceptEncoding: "gzip", wantEncoding: "gzip"},
		{name: "plain request, plain response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.compressBody {
				body = gzipped(t, cancel)
			} else {
				raw, err := json.Marshal(cancel)
				require.NoError(t, err)
				body = bytes.NewReader(raw)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/bookings/b1/transitions", body)
			req.Header.Set("Content-Type", "application/json")
			if tt.compressBody {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(transitionEcho(t)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))

			var got map[string]string
			require.NoError(t, json.Unmarshal(readBody(t, res), &got))
			assert.Equal(t, "CANCELLED", got["status"])
			assert.Equal(t, "venue closed", got["reason"])
		})
	}
}

func TestGzipMiddleware_CorruptBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/bookings/b1/quotations", strings.NewReader(`{"locale":"th"}`))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not see an undecodable body")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGzipMiddleware_SkipsDocumentDownloads(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/documents/INV-20260301-000007", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())
}
