package lite

import (
	"context"
	"testing"

	"github.com/use-agent/agentweb/model"
)

func TestRenderUsesPreFetchedHTMLWithoutNetwork(t *testing.T) {
	html := `<html><head><title>Cached Page</title></head><body><h1>Hi</h1></body></html>`
	rec, err := Render(context.Background(), "https://example.com/page", Options{
		PreFetchedHTML: html,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "Cached Page" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.BackendTag != model.BackendLite {
		t.Errorf("backendTag = %q, want lite", rec.BackendTag)
	}
	if len(rec.Headings) != 1 {
		t.Errorf("headings = %v", rec.Headings)
	}
}
