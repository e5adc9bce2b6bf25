package host

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/byteowlz/dropcheck/internal/extractor"
	"github.com/byteowlz/dropcheck/internal/fetcher"
)

// Verify interfaces are satisfied at compile time
var _ Host = (*PageHost)(nil)
var _ Loader = (*WebLoader)(nil)
var _ Loader = (*ReaderLoader)(nil)
var _ Opener = SystemOpener{}
var _ Opener = PrintOpener{}

const amazonPage = `<html><body>
	<span id="productTitle">Desk Lamp</span>
	<span class="a-price"><span class="a-offscreen">$39.99</span></span>
</body></html>`

func TestPageHost_ActiveTab(t *testing.T) {
	h := NewPageHost("", NewStringLoader(""), nil, nil)
	if _, err := h.ActiveTab(context.Background()); !errors.Is(err, ErrNoActiveTab) {
		t.Errorf("expected ErrNoActiveTab, got %v", err)
	}

	h = NewPageHost(" https://www.amazon.com/dp/B01 ", NewStringLoader(""), nil, nil)
	tab, err := h.ActiveTab(context.Background())
	if err != nil {
		t.Fatalf("ActiveTab failed: %v", err)
	}
	if tab.URL != "https://www.amazon.com/dp/B01" {
		t.Errorf("unexpected tab URL %q", tab.URL)
	}
}

func TestPageHost_ExecuteString(t *testing.T) {
	h := NewPageHost("https://www.amazon.com/dp/B01", NewStringLoader(amazonPage), nil, nil)
	tab, _ := h.ActiveTab(context.Background())

	info, err := h.Execute(context.Background(), tab, extractor.Extract)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if info.Title != "Desk Lamp" {
		t.Errorf("title = %q", info.Title)
	}
	if info.Price == nil || *info.Price != 39.99 {
		t.Errorf("price = %v", info.Price)
	}
	if page := h.LastPage(); page == nil || page.Hostname() != "www.amazon.com" {
		t.Errorf("unexpected last page %+v", page)
	}
}

func TestPageHost_ExecuteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(amazonPage), 0644); err != nil {
		t.Fatal(err)
	}

	h := NewPageHost("https://www.amazon.de/dp/B01", NewFileLoader(path), nil, nil)
	tab, _ := h.ActiveTab(context.Background())
	info, err := h.Execute(context.Background(), tab, extractor.Extract)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if info.Title != "Desk Lamp" {
		t.Errorf("title = %q", info.Title)
	}
}

func TestPageHost_ExecuteMissingFile(t *testing.T) {
	h := NewPageHost("https://www.amazon.de/dp/B01", NewFileLoader(filepath.Join(t.TempDir(), "nope.html")), nil, nil)
	tab, _ := h.ActiveTab(context.Background())
	if _, err := h.Execute(context.Background(), tab, extractor.Extract); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPageHost_ExecuteWeb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="Garden Chair"></head><body></body></html>`))
	}))
	defer server.Close()

	loader := NewWebLoader(nil, nil, fetcher.FetchOptions{Mode: fetcher.FetchModeStatic}, nil)
	h := NewPageHost(server.URL+"/item", loader, nil, nil)
	tab, _ := h.ActiveTab(context.Background())

	info, err := h.Execute(context.Background(), tab, extractor.Extract)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if info.Title != "Garden Chair" {
		t.Errorf("title = %q", info.Title)
	}
	if info.Price != nil {
		t.Errorf("generic page should have no price, got %v", *info.Price)
	}
}

func TestPrintOpener(t *testing.T) {
	var buf bytes.Buffer
	h := NewPageHost("https://www.etsy.com/listing/1", NewStringLoader(""), PrintOpener{W: &buf}, nil)

	if err := h.OpenTab(context.Background(), "https://aliexpress.com/item/1"); err != nil {
		t.Fatalf("OpenTab failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "https://aliexpress.com/item/1" {
		t.Errorf("unexpected output %q", buf.String())
	}

	for _, bad := range []string{"javascript:alert(1)", "file:///etc/passwd", "https://"} {
		if err := h.OpenTab(context.Background(), bad); err == nil {
			t.Errorf("expected %q to be refused", bad)
		}
	}
}

// fakeLauncher puts an xdg-open on PATH that records the link after a delay.
func fakeLauncher(t *testing.T) (marker string) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("fake launcher is a shell script for xdg-open")
	}
	dir := t.TempDir()
	marker = filepath.Join(dir, "opened")
	script := "#!/bin/sh\nsleep 0.3\nprintf '%s' \"$1\" > '" + marker + "'\n"
	if err := os.WriteFile(filepath.Join(dir, "xdg-open"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return marker
}

func TestSystemOpener_SurvivesCancel(t *testing.T) {
	marker := fakeLauncher(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := SystemOpener{}.Open(ctx, "https://aliexpress.com/item/1")
	cancel()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(marker)
		if err == nil {
			if string(data) != "https://aliexpress.com/item/1" {
				t.Errorf("launcher got %q", data)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("launcher never completed after cancel: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSystemOpener_Refuses(t *testing.T) {
	marker := fakeLauncher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (SystemOpener{}).Open(ctx, "https://aliexpress.com/item/1"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if err := (SystemOpener{}).Open(context.Background(), "file:///etc/passwd"); err == nil {
		t.Error("expected non-web link to be refused")
	}

	time.Sleep(400 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Error("launcher ran for a refused link")
	}
}
