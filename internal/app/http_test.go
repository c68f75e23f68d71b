package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sehansi-9/gztprocessor/internal/backend"
	"github.com/sehansi-9/gztprocessor/internal/logging"
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

func serve(t *testing.T, server *HTTPServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("X-Editor", "Avery")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

// load opens the first president's gazette list, as the editor does on entry.
func load(t *testing.T, server *HTTPServer, scope string) {
	t.Helper()
	if rr := serve(t, server, http.MethodGet, "/api/"+scope+"/presidents/0/gazettes", ""); rr.Code != http.StatusOK {
		t.Fatalf("load %s gazettes: status %d body=%s", scope, rr.Code, rr.Body.String())
	}
}

func TestPresidentRoutes(t *testing.T) {
	h := newHarness(t).withGazettes(orgMetas()...)
	server := NewHTTPServer(h.svc, "*", nil, logging.Nop())

	rr := serve(t, server, http.MethodGet, "/api/mindep/presidents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	items, _ := decode(t, rr)["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected two presidents, got %v", items)
	}

	rr = serve(t, server, http.MethodGet, "/api/mindep/presidents/0/gazettes", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	gazettes, _ := decode(t, rr)["gazettes"].([]any)
	if len(gazettes) != 3 {
		t.Fatalf("expected three gazettes, got %v", gazettes)
	}

	if rr := serve(t, server, http.MethodGet, "/api/cabinet/presidents", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown scope, got %d", rr.Code)
	}
	if rr := serve(t, server, http.MethodGet, "/api/mindep/presidents/x/gazettes", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a bad president index, got %d", rr.Code)
	}
	if rr := serve(t, server, http.MethodDelete, "/api/mindep/presidents/0/gazettes", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestAddGazetteRoute(t *testing.T) {
	h := newHarness(t).withGazettes(orgMetas()...)
	h.backend.fetchRawFn = func(context.Context, roster.Scope, roster.Format, string, string) (json.RawMessage, error) {
		return json.RawMessage(`[{"name":"Minister of Defence","departments":[{"name":"Sri Lanka Army"}]}]`), nil
	}
	server := NewHTTPServer(h.svc, "*", nil, logging.Nop())

	rr := serve(t, server, http.MethodPost, "/api/mindep/presidents/0/gazettes", `{"number":"2180/01","date":"2020-06-01","format":"initial"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["kind"] != "initial" || payload["warning"] != true {
		t.Fatalf("unexpected gazette: %v", payload)
	}

	rr = serve(t, server, http.MethodPost, "/api/mindep/presidents/0/gazettes", `{"number":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed body, got %d", rr.Code)
	}
}

func TestActionAndCommitRoutes(t *testing.T) {
	h := newHarness(t).withGazettes(orgMetas()...)
	server := NewHTTPServer(h.svc, "*", nil, logging.Nop())
	base := "/api/mindep/presidents/0/gazettes/1"
	load(t, server, "mindep")

	for _, body := range []string{
		`{"action":"addEntry","section":"terminates"}`,
		`{"action":"changeField","section":"terminates","index":0,"field":"department","value":"Sri Lanka Army"}`,
		`{"action":"changeField","section":"terminates","index":0,"field":"from_ministry","value":"Minister of Defence"}`,
	} {
		if rr := serve(t, server, http.MethodPost, base+"/actions", body); rr.Code != http.StatusOK {
			t.Fatalf("expected status 200 for %s, got %d body=%s", body, rr.Code, rr.Body.String())
		}
	}

	rr := serve(t, server, http.MethodPost, base+"/actions", `{"action":"changeField","section":"terminates","index":5,"field":"department","value":"x"}`)
	if rr.Code != http.StatusUnprocessableEntity || decode(t, rr)["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected 422 VALIDATION_ERROR, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodPost, base+"/commit", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["records"] != float64(1) || payload["format"] != "amendment" {
		t.Fatalf("unexpected commit outcome: %v", payload)
	}
	journal, _ := payload["journal"].(map[string]any)
	if journal["author"] != "Avery" {
		t.Fatalf("expected the editor header to name the journal author, got %v", journal)
	}

	rr = serve(t, server, http.MethodGet, "/api/commits?scope=mindep&limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if items, _ := decode(t, rr)["items"].([]any); len(items) != 1 {
		t.Fatalf("expected one commit log entry, got %v", items)
	}
	if rr := serve(t, server, http.MethodGet, "/api/commits?scope=cabinet", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unknown scope, got %d", rr.Code)
	}
}

func TestCommitRouteReportsBackendFailure(t *testing.T) {
	h := newHarness(t).withGazettes(orgMetas()...)
	h.sender.commitFn = func(context.Context, roster.Scope, roster.Format, string, string, any) error {
		return &backend.ReportedError{Op: "commit", Message: "duplicate gazette"}
	}
	server := NewHTTPServer(h.svc, "*", nil, logging.Nop())
	load(t, server, "person")

	rr := serve(t, server, http.MethodPost, "/api/person/presidents/0/gazettes/1/commit", "")
	if rr.Code != http.StatusBadGateway || decode(t, rr)["code"] != "COMMIT_FAILED" {
		t.Fatalf("expected 502 COMMIT_FAILED, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRosterRoutes(t *testing.T) {
	h := newHarness(t).withGazettes(orgMetas()...)
	server := NewHTTPServer(h.svc, "*", nil, logging.Nop())
	base := "/api/person/presidents/0/gazettes/2"
	load(t, server, "person")

	rr := serve(t, server, http.MethodGet, base+"/roster?q=perera", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decode(t, rr); payload["query"] != "perera" || payload["scope"] != "person" {
		t.Fatalf("unexpected roster view: %v", payload)
	}

	rr = serve(t, server, http.MethodPost, base+"/roster/latest", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decode(t, rr); payload["gazette"] != "2170/08" {
		t.Fatalf("unexpected latest state: %v", payload)
	} else if _, ok := payload["overwritten"].(bool); !ok {
		t.Fatalf("expected an overwritten flag, got %v", payload)
	}

	rr = serve(t, server, http.MethodGet, base+"/downloads", "")
	links, _ := decode(t, rr)["links"].(map[string]any)
	if len(links) != 3 {
		t.Fatalf("expected three download links, got %v", links)
	}

	if rr := serve(t, server, http.MethodGet, base+"/unknown", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := serve(t, server, http.MethodGet, "/api/person/presidents/0/gazettes/7", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing gazette, got %d", rr.Code)
	}
}

func TestSearchAndMetricsRoutes(t *testing.T) {
	h := newHarness(t)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "gztp_test_total", Help: "test"}))
	server := NewHTTPServer(h.svc, "https://editor.example", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logging.Nop())

	if rr := serve(t, server, http.MethodGet, "/api/search", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without q, got %d", rr.Code)
	}
	rr := serve(t, server, http.MethodGet, "/api/search?q=navy&scope=mindep", "")
	if rr.Code != http.StatusOK || decode(t, rr)["engine"] != "local" {
		t.Fatalf("unexpected search response: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, server, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "gztp_test_total") {
		t.Fatalf("expected metrics exposition, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://editor.example" {
		t.Fatalf("unexpected CORS origin %q", got)
	}
}
