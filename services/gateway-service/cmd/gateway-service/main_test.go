package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseList(t *testing.T) {
	got := parseList(" a , b ,, c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("parseList = %v", got)
	}
	if got := parseList(""); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestIsTruthy(t *testing.T) {
	for _, s := range []string{"1", "true", "Yes", " ON "} {
		if !isTruthy(s) {
			t.Fatalf("isTruthy(%q) = false", s)
		}
	}
	for _, s := range []string{"", "0", "false", "nope"} {
		if isTruthy(s) {
			t.Fatalf("isTruthy(%q) = true", s)
		}
	}
}

func TestRegisterProxyMatchesSubpaths(t *testing.T) {
	mux := http.NewServeMux()
	registerProxy(mux, "/api/v1/swaps", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, path := range []string{"/api/v1/swaps", "/api/v1/swaps/history"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != http.StatusNoContent {
			t.Fatalf("path %s: expected 204, got %d", path, rw.Code)
		}
	}
}

func TestRenderCheckoutReturnPageEscapes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/billing/success?session_id=%3Cscript%3E&state=tok", nil)
	rw := httptest.NewRecorder()
	renderCheckoutReturnPage(rw, req, "Payment successful", "success")

	body := rw.Body.String()
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Fatalf("expected escaped session id in body:\n%s", body)
	}
}

func TestHTMLEscape(t *testing.T) {
	got := htmlEscape(`<a href="x">&'`)
	want := "&lt;a href=&quot;x&quot;&gt;&amp;&#39;"
	if got != want {
		t.Fatalf("htmlEscape = %q, want %q", got, want)
	}
}
