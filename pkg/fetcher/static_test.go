package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticFetcher_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title> Pick me </title></head><body><div id="card">hi</div></body></html>`)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{UserAgent: "inspectai-test"})
	content, err := f.Fetch(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if content.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", content.StatusCode)
	}
	if content.Title != "Pick me" {
		t.Errorf("Title = %q", content.Title)
	}
	if !strings.Contains(content.HTML, `<div id="card">hi</div>`) {
		t.Errorf("HTML missing body: %q", content.HTML)
	}
	if gotUA != "inspectai-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if f.Type() != "static" {
		t.Errorf("Type() = %q", f.Type())
	}
}

func TestStaticFetcher_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer srv.Close()

	_, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL, Options{MaxBytes: 1024})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestStaticFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	content, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL, Options{})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if content.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", content.StatusCode)
	}
}
