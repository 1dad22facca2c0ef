package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Kerb data</title></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Kerb data</h1>
<p>Cities rarely know how their kerb space is used. Delivery vans, ride hailing and private cars all compete for the same few metres of kerb, and most councils still rely on manual surveys done once a year.</p>
<p>Sensor networks and camera counts now make it possible to measure kerb occupancy continuously, which opens the door to dynamic pricing and bookable loading bays.</p>
<script>alert("x")</script>
</article>
</body></html>`

func TestScraperFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Errorf("Expected a user agent")
		}
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	page, err := NewScraper().Fetch(context.Background(), srv.URL+"/kerb")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(page.Title, "Kerb data") {
		t.Errorf("Expected title to contain 'Kerb data', got %q", page.Title)
	}
	if !strings.Contains(page.Text, "kerb occupancy") {
		t.Errorf("Expected article text, got %q", page.Text)
	}
	if strings.Contains(page.Text, "alert(") {
		t.Errorf("Expected scripts to be stripped")
	}
	if page.Summary() == "" {
		t.Errorf("Expected a summary")
	}
}

func TestScraperFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewScraper().Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("Expected a status error, got %v", err)
	}
}
