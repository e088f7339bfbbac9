package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`
		<html>
			<head>
				<title>Fallback title</title>
				<meta property="og:title" content=" Creamy Risotto ">
				<meta name="description" content="Ready in 30 minutes.">
				<meta property="og:image" content="/img/risotto.jpg">
			</head>
			<body><h1>Risotto</h1></body>
		</html>`))
	}))
	defer ts.Close()

	pv, err := New(0).Fetch(context.Background(), ts.URL+"/recipes/risotto")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if pv.Title != "Creamy Risotto" {
		t.Errorf("Expected og:title, got %q", pv.Title)
	}
	if pv.Description != "Ready in 30 minutes." {
		t.Errorf("Expected description meta, got %q", pv.Description)
	}
	if pv.Image != ts.URL+"/img/risotto.jpg" {
		t.Errorf("Expected absolute image URL, got %q", pv.Image)
	}
}

func TestFetchFallbacks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title> Plain Page </title>
			<link rel="image_src" href="https://cdn.test/plain.png"></head></html>`))
	}))
	defer ts.Close()

	pv, err := New(0).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pv.Title != "Plain Page" {
		t.Errorf("Expected <title> fallback, got %q", pv.Title)
	}
	if pv.Image != "https://cdn.test/plain.png" {
		t.Errorf("Expected image_src fallback, got %q", pv.Image)
	}
}

func TestResolveImage_NoImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Nothing here</body></html>`))
	}))
	defer ts.Close()

	_, err := New(0).ResolveImage(context.Background(), ts.URL)
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestResolveImage_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	if _, err := New(0).ResolveImage(context.Background(), ts.URL); err == nil {
		t.Error("Expected error for 404 page")
	}
}
