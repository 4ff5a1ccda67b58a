package orchestrate

import (
	"strings"
	"testing"
	"time"

	"github.com/use-agent/agentweb/model"
)

func TestRenderSummaryFormat(t *testing.T) {
	section := "Intro"
	chunks := []model.Chunk{
		{ID: 0, Type: model.ChunkSummary, Text: "first block", Score: 10},
		{ID: 1, Type: model.ChunkParagraph, Section: &section, Text: "second block", Score: 5},
	}

	summary := renderSummary(chunks)

	if !strings.Contains(summary, "[chunk:0] type=summary score=10\nfirst block") {
		t.Errorf("summary missing expected first block header/body:\n%s", summary)
	}
	if !strings.Contains(summary, `[chunk:1] type=paragraph section="Intro" score=5`) {
		t.Errorf("summary missing expected section header:\n%s", summary)
	}
	if !strings.Contains(summary, "\n\n---\n\n") {
		t.Errorf("summary missing blank-line-wrapped separator:\n%s", summary)
	}
}

func TestRenderSummaryEmptyForNoChunks(t *testing.T) {
	if got := renderSummary(nil); got != "" {
		t.Errorf("renderSummary(nil) = %q, want empty string", got)
	}
}

func TestDegradedSummaryCapsAt2000Chars(t *testing.T) {
	long := strings.Repeat("x", 3000)
	got := degradedSummary(long)
	if len(got) != summaryDegradeCap {
		t.Errorf("len(degradedSummary) = %d, want %d", len(got), summaryDegradeCap)
	}
}

func TestDegradedSummaryPassesThroughShortText(t *testing.T) {
	short := "hello world"
	if got := degradedSummary(short); got != short {
		t.Errorf("degradedSummary(%q) = %q, want unchanged", short, got)
	}
}

func TestDefaultTTLForBackend(t *testing.T) {
	if got := defaultTTLForBackend(model.BackendPlaywright); got != playwrightTTLMs {
		t.Errorf("defaultTTLForBackend(playwright) = %d, want %d", got, playwrightTTLMs)
	}
	if got := defaultTTLForBackend(model.BackendLite); got != defaultTTLMs {
		t.Errorf("defaultTTLForBackend(lite) = %d, want %d", got, defaultTTLMs)
	}
	if got := defaultTTLForBackend(model.BackendLiteFallback); got != defaultTTLMs {
		t.Errorf("defaultTTLForBackend(lite-fallback) = %d, want %d", got, defaultTTLMs)
	}
}

func TestErrorResultTagsBackendError(t *testing.T) {
	result := errorResult("https://example.com", time.Now(), errTest{})
	if result.Backend != model.BackendError {
		t.Errorf("Backend = %q, want error", result.Backend)
	}
	if result.Error == "" {
		t.Error("expected a non-empty Error message")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
