package orchestrate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/agentweb/model"
	"github.com/use-agent/agentweb/webhook"
)

// BatchOptions configures a batch render job.
type BatchOptions struct {
	Render BatchRenderOptions
	// WebhookURL, if set, receives a "batch.completed" event once every
	// URL has finished rendering.
	WebhookURL    string
	WebhookSecret string
}

// BatchRenderOptions is RenderOptions without Force, Query and
// ChunkLimit; every render in a batch uses the default chunk limit.
type BatchRenderOptions struct {
	Timeout    time.Duration
	Verbose    bool
	NoCache    bool
	CacheTtlMs int64
}

func (b BatchRenderOptions) toRenderOptions() RenderOptions {
	return RenderOptions{
		Timeout:    b.Timeout,
		Verbose:    b.Verbose,
		NoCache:    b.NoCache,
		CacheTtlMs: b.CacheTtlMs,
	}
}

// BatchResult is the outcome of one BatchRender call.
type BatchResult struct {
	JobID   string              `json:"jobId"`
	Results []BatchRenderResult `json:"results"`
}

// BatchRenderResult pairs a requested URL with its render outcome.
type BatchRenderResult struct {
	URL    string            `json:"url"`
	Result model.RenderResult `json:"result"`
}

// BatchRender fans render out across urls. Each render call remains
// internally sequential per spec §5; independent calls run
// concurrently, exactly as the multi-call policy allows. If opts has a
// WebhookURL, a "batch.completed" event is delivered asynchronously
// once all URLs have finished.
func (o *Orchestrator) BatchRender(ctx context.Context, urls []string, opts BatchOptions) BatchResult {
	jobID := uuid.NewString()
	results := make([]BatchRenderResult, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = BatchRenderResult{
				URL:    u,
				Result: o.Render(ctx, u, opts.Render.toRenderOptions()),
			}
		}(i, u)
	}
	wg.Wait()

	batch := BatchResult{JobID: jobID, Results: results}

	if opts.WebhookURL != "" {
		client := webhook.NewClient()
		client.DeliverAsync(opts.WebhookURL, opts.WebhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     jobID,
			Timestamp: time.Now().UnixMilli(),
			Data:      batch,
		})
	}

	slog.Info("orchestrate: batch render completed", "jobId", jobID, "urls", len(urls))
	return batch
}
