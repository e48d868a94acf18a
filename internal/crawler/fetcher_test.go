package crawler_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/internal/crawler"
	"github.com/mnemo-ai/mnemo/internal/log"
)

func newHTTPFetcher(retries int) *crawler.HTTPFetcher {
	return crawler.NewHTTPFetcher(crawler.HTTPFetcherConfig{
		UserAgent:  "mnemo-test",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	}, log.NewNop())
}

func TestHTTPFetcher_ParsesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Test Page</title></head><body>
			<nav>site navigation</nav>
			<article><p>The actual article content lives here and says useful things.</p></article>
			<a href="/relative">rel</a>
			<a href="https://absolute.example/x#frag">abs</a>
			<a href="mailto:nobody@example.com">mail</a>
			</body></html>`)
	}))
	defer srv.Close()

	page, err := newHTTPFetcher(0).Fetch(t.Context(), srv.URL+"/doc")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.Title != "Test Page" {
		t.Errorf("Title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "actual article content") {
		t.Errorf("Text = %q, want article content", page.Text)
	}

	wantLinks := map[string]bool{
		srv.URL + "/relative":        false,
		"https://absolute.example/x": false,
	}
	for _, l := range page.Links {
		if strings.HasPrefix(l, "mailto:") {
			t.Errorf("non-http link survived: %s", l)
		}
		if strings.Contains(l, "#") {
			t.Errorf("fragment survived: %s", l)
		}
		if _, ok := wantLinks[l]; ok {
			wantLinks[l] = true
		}
	}
	for l, seen := range wantLinks {
		if !seen {
			t.Errorf("link %s missing from %v", l, page.Links)
		}
	}
}

func TestHTTPFetcher_RobotsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	f := newHTTPFetcher(0)

	if _, err := f.Fetch(t.Context(), srv.URL+"/public"); err != nil {
		t.Errorf("allowed path error = %v", err)
	}
	_, err := f.Fetch(t.Context(), srv.URL+"/private/secret")
	if !errors.Is(err, crawler.ErrRobotsDisallowed) {
		t.Errorf("disallowed path error = %v, want ErrRobotsDisallowed", err)
	}
}

func TestHTTPFetcher_Retries5xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>recovered</body></html>")
	}))
	defer srv.Close()

	page, err := newHTTPFetcher(3).Fetch(t.Context(), srv.URL+"/flaky")
	if err != nil {
		t.Fatalf("Fetch() error = %v after recovery", err)
	}
	if !strings.Contains(page.Text, "recovered") {
		t.Errorf("Text = %q", page.Text)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestHTTPFetcher_NoRetryOn404(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newHTTPFetcher(3).Fetch(t.Context(), srv.URL+"/gone")
	var serr *crawler.HTTPStatusError
	if !errors.As(err, &serr) || serr.Code != 404 {
		t.Fatalf("Fetch() error = %v, want HTTPStatusError 404", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1 (4xx is permanent)", got)
	}
}

func TestHTTPFetcher_RejectsBinaryContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer srv.Close()

	_, err := newHTTPFetcher(0).Fetch(t.Context(), srv.URL+"/file.pdf")
	if !errors.Is(err, crawler.ErrUnsupportedContent) {
		t.Errorf("Fetch() error = %v, want ErrUnsupportedContent", err)
	}
}

func TestHTTPFetcher_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "plain text document\n")
	}))
	defer srv.Close()

	page, err := newHTTPFetcher(0).Fetch(t.Context(), srv.URL+"/readme.txt")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.Text != "plain text document" {
		t.Errorf("Text = %q", page.Text)
	}
	if len(page.Links) != 0 {
		t.Errorf("Links = %v, want none for plain text", page.Links)
	}
}

func TestScope_SameRegistrableDomain(t *testing.T) {
	s, err := crawler.NewScope("https://docs.example.co.uk/start")
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}

	allowed := []string{
		"https://docs.example.co.uk/other",
		"https://www.example.co.uk/",
		"http://example.co.uk/page",
	}
	for _, u := range allowed {
		if !s.Allows(u) {
			t.Errorf("Allows(%s) = false, want true", u)
		}
	}

	denied := []string{
		"https://other.co.uk/",
		"https://example.com/",
		"https://notexample.co.uk/",
	}
	for _, u := range denied {
		if err := s.Check(u); !errors.Is(err, crawler.ErrOutOfScope) {
			t.Errorf("Check(%s) = %v, want ErrOutOfScope", u, err)
		}
	}
}

func TestScope_BareHostScopesToItself(t *testing.T) {
	s, err := crawler.NewScope("http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}
	if !s.Allows("http://localhost:8080/page") {
		t.Error("same-host localhost link rejected")
	}
	if s.Allows("http://otherhost/") {
		t.Error("different bare host accepted")
	}
}
