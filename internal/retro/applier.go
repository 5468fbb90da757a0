package retro

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/mailwarden/internal/model"
)

// MessageStore is the slice of the message store the applier consumes:
// paginated listing plus bulk and per-item label mutation.
type MessageStore interface {
	List(ctx context.Context, query, pageToken string) (ids []string, nextPageToken string, err error)
	BatchModify(ctx context.Context, ids []string, action model.RuleAction) error
	Modify(ctx context.Context, id string, action model.RuleAction) error
}

// Observer receives progress events. It is a side channel: a nil
// observer changes nothing about the run.
type Observer interface {
	PageFetched(pageNum, idsSoFar int)
	ChunkDone(processed, total int)
}

// Config bounds one run.
type Config struct {
	BatchSize      int           // ids per bulk mutation call
	MaxItems       int           // 0 means unbounded; reaching it sets Truncated
	RateLimitDelay time.Duration // cooperative delay between remote calls
}

// DefaultBatchSize is used when Config.BatchSize is unset.
const DefaultBatchSize = 100

// Applier walks the store and applies one rule action retroactively.
// Pages and chunks are processed strictly in order, never concurrently;
// that bounds load on the remote API and keeps the report race-free
// without locks.
type Applier struct {
	Store    MessageStore
	Config   Config
	Observer Observer

	// sleep is swapped out by tests. The delay only throttles this
	// run; concurrent runs are not coordinated.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates an applier over the given store.
func New(store MessageStore, cfg Config, obs Observer) *Applier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Applier{Store: store, Config: cfg, Observer: obs, sleep: sleepCtx}
}

// Apply collects candidate ids matching the selector, then mutates
// them in chunks. The run never aborts on a single item or chunk
// failure; it always returns a complete report. Context cancellation
// stops after the current chunk and returns the partial report.
func (a *Applier) Apply(ctx context.Context, selector model.RuleSelector, action model.RuleAction) Report {
	report := Report{RunID: uuid.NewString()}
	if action.IsZero() {
		return report
	}

	ids, truncated, err := a.collect(ctx, selector.SearchQuery())
	report.TotalFound = len(ids)
	report.Truncated = truncated
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		report.ErrorCount++
		if ctx.Err() != nil {
			return report
		}
		// Listing stopped early on a store error; whatever was
		// collected still gets processed so the report describes
		// real work, not an abort.
	}

	a.mutate(ctx, ids, action, &report)
	return report
}

// collect paginates the store in continuation-token order until the
// token runs out or MaxItems is reached.
func (a *Applier) collect(ctx context.Context, query string) (ids []string, truncated bool, err error) {
	pageToken := ""
	for page := 1; ; page++ {
		if page > 1 {
			a.sleep(ctx, a.Config.RateLimitDelay)
		}
		if ctx.Err() != nil {
			return ids, false, fmt.Errorf("list cancelled: %w", ctx.Err())
		}

		pageIDs, next, err := a.Store.List(ctx, query, pageToken)
		if err != nil {
			return ids, false, fmt.Errorf("list page %d: %w", page, err)
		}
		ids = append(ids, pageIDs...)
		if a.Observer != nil {
			a.Observer.PageFetched(page, len(ids))
		}

		if a.Config.MaxItems > 0 && len(ids) >= a.Config.MaxItems {
			return ids[:a.Config.MaxItems], true, nil
		}
		if next == "" {
			return ids, false, nil
		}
		pageToken = next
	}
}

// mutate splits ids into consecutive chunks and applies the action.
// Multi-id chunks try one bulk call first; on bulk failure every id in
// the chunk is retried individually, so one poisoned id costs the
// chunk one extra pass, not the run.
func (a *Applier) mutate(ctx context.Context, ids []string, action model.RuleAction, report *Report) {
	for start := 0; start < len(ids); start += a.Config.BatchSize {
		if start > 0 {
			a.sleep(ctx, a.Config.RateLimitDelay)
		}
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("run cancelled: %v", ctx.Err()))
			report.ErrorCount++
			return
		}

		end := start + a.Config.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		if len(chunk) > 1 {
			if err := a.Store.BatchModify(ctx, chunk, action); err == nil {
				report.Processed += len(chunk)
				a.notifyChunk(report, len(ids))
				continue
			}
			// Bulk call failed: fall back to one call per id so a
			// single bad id cannot sink the whole chunk.
		}

		for i, id := range chunk {
			if i > 0 {
				a.sleep(ctx, a.Config.RateLimitDelay)
			}
			if err := a.Store.Modify(ctx, id, action); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id, err))
				report.ErrorCount++
				continue
			}
			report.Processed++
		}
		a.notifyChunk(report, len(ids))
	}
}

func (a *Applier) notifyChunk(report *Report, total int) {
	if a.Observer != nil {
		a.Observer.ChunkDone(report.Processed, total)
	}
}

// sleepCtx waits for the delay or the context, whichever ends first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
