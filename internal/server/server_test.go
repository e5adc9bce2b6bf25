package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/byteowlz/dropcheck/internal/config"
	"github.com/byteowlz/dropcheck/internal/extractor"
	"github.com/byteowlz/dropcheck/internal/popup"
	"github.com/byteowlz/dropcheck/internal/render"
	"github.com/byteowlz/dropcheck/pkg/dropcheck"
)

type fakeChecker struct {
	mu    sync.Mutex
	calls []dropcheck.CheckOptions
	res   *dropcheck.CheckResult
	err   error
}

func (f *fakeChecker) Check(ctx context.Context, opts dropcheck.CheckOptions) (*dropcheck.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return f.res, f.err
}

func testConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.RateLimit = 0
	cfg.FetchPages = true
	return cfg
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCheckRendered(t *testing.T) {
	price := 19.99
	checker := &fakeChecker{res: &dropcheck.CheckResult{
		Outcome: popup.Outcome{
			State:   popup.StateRendered,
			Product: extractor.ProductInfo{Title: "Lamp", Price: &price},
		},
		Snapshot: render.Snapshot{
			Status: popup.StatusResults,
			Cards:  []render.Card{{Title: "Lamp II", URL: "https://shop.example/l"}},
		},
	}}
	h := New(checker, testConfig(), nil).Handler()

	rec := post(t, h, `{"url":"https://www.amazon.com/dp/X","html":"<html></html>"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp checkResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "rendered" || resp.Status != "Results:" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Cards) != 1 || resp.Cards[0].Title != "Lamp II" {
		t.Errorf("cards = %+v", resp.Cards)
	}
	if resp.Product == nil || resp.Product.Title != "Lamp" || *resp.Product.Price != 19.99 {
		t.Errorf("product = %+v", resp.Product)
	}
	if resp.RequestID == "" || rec.Header().Get("X-Request-ID") != resp.RequestID {
		t.Errorf("request id mismatch: body %q header %q", resp.RequestID, rec.Header().Get("X-Request-ID"))
	}

	if len(checker.calls) != 1 || checker.calls[0].HTML != "<html></html>" {
		t.Errorf("checker called with %+v", checker.calls)
	}
}

func TestCheckStatusHasEmptyCards(t *testing.T) {
	checker := &fakeChecker{res: &dropcheck.CheckResult{
		Outcome:  popup.Outcome{State: popup.StateStatus},
		Snapshot: render.Snapshot{Status: popup.StatusNoTitle},
	}}
	rec := post(t, New(checker, testConfig(), nil).Handler(), `{"url":"https://example.com/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"cards":[]`) {
		t.Errorf("cards should be an empty array: %s", body)
	}
	if strings.Contains(body, `"product"`) {
		t.Errorf("product should be omitted without a title: %s", body)
	}
}

func TestCheckBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", `url=x`, http.StatusBadRequest},
		{"missing url", `{}`, http.StatusBadRequest},
		{"relative url", `{"url":"/dp/X"}`, http.StatusBadRequest},
		{"non-web scheme", `{"url":"chrome://settings"}`, http.StatusBadRequest},
	}

	checker := &fakeChecker{}
	h := New(checker, testConfig(), nil).Handler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.body)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
		})
	}
	if len(checker.calls) != 0 {
		t.Errorf("checker should not run for bad requests, got %d calls", len(checker.calls))
	}
}

func TestCheckWithoutHTMLNeedsFetchPages(t *testing.T) {
	cfg := testConfig()
	cfg.FetchPages = false
	checker := &fakeChecker{res: &dropcheck.CheckResult{}}
	h := New(checker, cfg, nil).Handler()

	rec := post(t, h, `{"url":"http://169.254.169.254/latest/meta-data/"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fetch_pages") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if len(checker.calls) != 0 {
		t.Fatalf("checker ran without page HTML: %+v", checker.calls)
	}

	rec = post(t, h, `{"url":"https://www.amazon.com/dp/X","html":"<html></html>"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("posted HTML should still be checked, status = %d", rec.Code)
	}
}

func TestCheckBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 32
	rec := post(t, New(&fakeChecker{}, cfg, nil).Handler(),
		`{"url":"https://example.com/","html":"`+strings.Repeat("x", 100)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCheckError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("boom")}
	rec := post(t, New(checker, testConfig(), nil).Handler(), `{"url":"https://example.com/"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 1
	checker := &fakeChecker{res: &dropcheck.CheckResult{}}
	h := New(checker, cfg, nil).Handler()

	if rec := post(t, h, `{"url":"https://example.com/"}`); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := post(t, h, `{"url":"https://example.com/"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	New(&fakeChecker{}, testConfig(), nil).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"chrome-extension://*"}
	h := New(&fakeChecker{}, cfg, nil).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/check", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abcdef" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/check", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestConcurrentChecksAreIndependent(t *testing.T) {
	checker := &fakeChecker{res: &dropcheck.CheckResult{Snapshot: render.Snapshot{Status: "no results found"}}}
	h := New(checker, testConfig(), nil).Handler()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := post(t, h, `{"url":"https://example.com/"}`)
			ids[i] = rec.Header().Get("X-Request-ID")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("request ids not unique: %v", ids)
		}
		seen[id] = true
	}
}
