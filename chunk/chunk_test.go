package chunk

import (
	"strings"
	"testing"

	"github.com/use-agent/agentweb/model"
)

func samplePage() *model.PageRecord {
	p := &model.PageRecord{
		URL:   "https://example.com/",
		Title: "Example Article",
		Meta:  map[string]string{"description": "An example page about widgets."},
		Headings: []model.Heading{
			{Level: 1, Text: "Getting Started"},
			{Level: 2, Text: "Installation"},
		},
		TextContent: "Getting Started\n\n" +
			"This is a reasonably sized paragraph that explains how to install the widget and use it in your project today.\n\n" +
			"Installation\n\n" +
			"Run the installer and follow the on-screen instructions to complete setup of the widget toolkit.",
		Forms: []model.Form{
			{Action: "/search", Method: "GET", Fields: []model.FormField{
				{Kind: model.FieldInput, Type: "text", Name: "q"},
			}},
		},
		Links: []model.Link{
			{Text: "Read the documentation", Href: "https://example.com/docs"},
			{Text: "Home", Href: "https://example.com/"},
		},
	}
	p.ComputeStats()
	return p
}

func TestChunkPageFirstHasHighestScore(t *testing.T) {
	chunks := ChunkPage(samplePage(), DefaultOptions())
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, c := range chunks[1:] {
		if c.Score > chunks[0].Score {
			t.Errorf("chunk %+v scores higher than first chunk %+v", c, chunks[0])
		}
	}
}

func TestChunkPageIncludesSummaryAndTOC(t *testing.T) {
	chunks := ChunkPage(samplePage(), DefaultOptions())
	var hasSummary, hasTOC, hasForm bool
	for _, c := range chunks {
		switch c.Type {
		case model.ChunkSummary:
			hasSummary = true
		case model.ChunkTOC:
			hasTOC = true
		case model.ChunkForm:
			hasForm = true
		}
	}
	if !hasSummary {
		t.Error("expected a summary chunk")
	}
	if !hasTOC {
		t.Error("expected a toc chunk since page has headings")
	}
	if !hasForm {
		t.Error("expected a form chunk")
	}
}

func TestChunkPageNoTOCWithoutHeadings(t *testing.T) {
	p := samplePage()
	p.Headings = nil
	chunks := ChunkPage(p, DefaultOptions())
	for _, c := range chunks {
		if c.Type == model.ChunkTOC {
			t.Error("did not expect a toc chunk when page has no headings")
		}
	}
}

func TestParagraphScoring(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		density   float64
		underHead bool
		want      int
	}{
		{"mid-length gets +2", strings.Repeat("w", 100), 0, false, 2},
		{"too short is penalized", "short", 0, false, -2},
		{"nav word penalized", "home and other things", 0, false, -3},
		{"under heading bonus", strings.Repeat("w", 100), 0, true, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := paragraphScore(c.text, c.density, c.underHead)
			if got != c.want {
				t.Errorf("paragraphScore(%q, density=%v, underHeading=%v) = %d, want %d", c.text, c.density, c.underHead, got, c.want)
			}
		})
	}
}

func TestFindRelevantOrdersByTokenOccurrence(t *testing.T) {
	chunks := []model.Chunk{
		{ID: 0, Score: 0, Text: "widgets are great for building things"},
		{ID: 1, Score: 0, Text: "widgets widgets widgets everywhere you look"},
	}
	ranked := FindRelevant(chunks, "widgets", 10)
	if ranked[0].ID != 1 {
		t.Errorf("expected chunk with more occurrences to rank first, got %+v", ranked[0])
	}
}

func TestFindRelevantRespectsLimit(t *testing.T) {
	chunks := []model.Chunk{
		{ID: 0, Score: 1, Text: "a"},
		{ID: 1, Score: 2, Text: "b"},
		{ID: 2, Score: 3, Text: "c"},
	}
	ranked := FindRelevant(chunks, "", 2)
	if len(ranked) != 2 {
		t.Fatalf("len = %d, want 2", len(ranked))
	}
}

func TestDetectType(t *testing.T) {
	cases := []struct {
		text string
		want model.ChunkType
	}{
		{"```go\ncode\n```", model.ChunkCode},
		{"- item one", model.ChunkListItem},
		{"note: remember this", model.ChunkCallout},
		{"See https://example.com for more", model.ChunkLink},
		{"Short", model.ChunkLabel},
		{"A longer paragraph that ends with a period and has real sentences.", model.ChunkParagraph},
	}
	for _, c := range cases {
		if got := detectType(c.text, ""); got != c.want {
			t.Errorf("detectType(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}
