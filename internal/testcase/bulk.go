package testcase

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// bulkConcurrency caps simultaneous full creations so a large batch does
// not trip upstream rate limits.
const bulkConcurrency = 5

// BulkItemResult is one batch entry, reported at its input index.
type BulkItemResult struct {
	Index         int               `json:"index"`
	Summary       string            `json:"summary"`
	Success       bool              `json:"success"`
	Result        *FullCreateResult `json:"result,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

// BulkResult aggregates a batch.
type BulkResult struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkItemResult `json:"items"`
}

// BulkCreate runs full creations with bounded concurrency. Items are
// isolated: one failure never stops the rest, and results keep the input
// order regardless of completion order. An item counts as failed only
// when its issue was not created.
func (s *Service) BulkCreate(ctx context.Context, inputs []FullCreateInput) BulkResult {
	res := BulkResult{Total: len(inputs), Items: make([]BulkItemResult, len(inputs))}
	if len(inputs) == 0 {
		return res
	}

	sem := semaphore.NewWeighted(bulkConcurrency)
	var wg sync.WaitGroup
	for i, in := range inputs {
		item := BulkItemResult{Index: i, Summary: in.Test.Summary}
		if err := sem.Acquire(ctx, 1); err != nil {
			item.FailureReason = err.Error()
			res.Items[i] = item
			continue
		}
		wg.Add(1)
		go func(i int, in FullCreateInput, item BulkItemResult) {
			defer wg.Done()
			defer sem.Release(1)
			out, err := s.FullCreate(ctx, in)
			if err != nil {
				item.FailureReason = err.Error()
			} else {
				item.Success = true
				item.Result = &out
			}
			res.Items[i] = item
		}(i, in, item)
	}
	wg.Wait()

	for _, item := range res.Items {
		if item.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	s.logger.Info("bulk creation finished",
		"total", res.Total, "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}
