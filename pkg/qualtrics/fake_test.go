package qualtrics

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testToken  = "good-token"
	apiPrefix  = "/API/v3/"
	exportsURL = apiPrefix + "responseexports/"
)

// fakeAPI is a scripted stand-in for the Qualtrics v3 endpoints the client uses.
type fakeAPI struct {
	t *testing.T

	mu          sync.Mutex
	requests    map[string]int
	surveyPages []string
	definitions map[string]string
	statuses    []string // progress statuses returned in order; the last one repeats
	polls       map[string]int
	archive     []byte
	archives    map[string][]byte // per export id, falls back to archive
	downloads   int
	exportBody  []map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{
		t:           t,
		requests:    make(map[string]int),
		definitions: make(map[string]string),
		polls:       make(map[string]int),
		archives:    make(map[string][]byte),
		statuses:    []string{StatusComplete},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := New(Config{
		Token:         token,
		BaseURL:       srv.URL + apiPrefix,
		PollInterval:  time.Millisecond,
		ExportTimeout: 5 * time.Second,
		HTTPTimeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

func (f *fakeAPI) stats() (downloads int, polls map[string]int, bodies []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	polls = make(map[string]int, len(f.polls))
	for k, v := range f.polls {
		polls[k] = v
	}
	return f.downloads, polls, append([]map[string]any(nil), f.exportBody...)
}

func (f *fakeAPI) totalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.requests {
		n += v
	}
	return n
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.requests[r.Method+" "+path]++

	if r.Header.Get("X-API-TOKEN") != testToken && r.Header.Get("Authorization") != "Bearer "+testToken {
		writeQualtricsError(w, http.StatusUnauthorized, "AUTH_ERROR", "Invalid API token")
		return
	}

	switch {
	case r.Method == http.MethodGet && path == apiPrefix+"surveys":
		page := 0
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		if page >= len(f.surveyPages) {
			writeQualtricsError(w, http.StatusBadRequest, "BAD_PAGE", "no such page")
			return
		}
		_, _ = w.Write([]byte(f.surveyPages[page]))

	case r.Method == http.MethodGet && strings.HasPrefix(path, apiPrefix+"survey-definitions/"):
		id := strings.TrimPrefix(path, apiPrefix+"survey-definitions/")
		body, ok := f.definitions[id]
		if !ok {
			writeQualtricsError(w, http.StatusNotFound, "QVAL_NOT_FOUND", "Survey not found")
			return
		}
		_, _ = w.Write([]byte(body))

	case r.Method == http.MethodPost && path == exportsURL:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decode export body: %v", err)
		}
		f.exportBody = append(f.exportBody, body)
		id := "ES_codes"
		if body["useLabels"] == true {
			id = "ES_labels"
		}
		fmt.Fprintf(w, `{"result":{"id":%q},"meta":{"httpStatus":"200 - OK"}}`, id)

	case r.Method == http.MethodGet && strings.HasSuffix(path, "/file"):
		f.downloads++
		id := strings.TrimSuffix(strings.TrimPrefix(path, exportsURL), "/file")
		body := f.archive
		if b, ok := f.archives[id]; ok {
			body = b
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)

	case r.Method == http.MethodGet && strings.HasPrefix(path, exportsURL):
		id := strings.TrimPrefix(path, exportsURL)
		n := f.polls[id]
		f.polls[id] = n + 1
		status := f.statuses[len(f.statuses)-1]
		if n < len(f.statuses) {
			status = f.statuses[n]
		}
		pct := 50.0
		if status == StatusComplete {
			pct = 100
		}
		file := ""
		if status == StatusComplete {
			file = "http://" + r.Host + exportsURL + id + "/file"
		}
		fmt.Fprintf(w, `{"result":{"status":%q,"percentComplete":%v,"file":%q}}`, status, pct, file)

	default:
		writeQualtricsError(w, http.StatusNotFound, "NOT_FOUND", "unknown route "+path)
	}
}

func writeQualtricsError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"meta":{"httpStatus":"%d - %s","error":{"errorMessage":%q,"errorCode":%q}}}`,
		status, http.StatusText(status), msg, code)
}

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
