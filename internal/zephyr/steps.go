package zephyr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const stepAPIBase = "/public/rest/api/" + apiVersion + "/teststep"

// deleteRetryDelay is the base pause between private delete attempts
// inside the replacement flow; attempt n waits n times this.
const deleteRetryDelay = 200 * time.Millisecond

const deleteAttempts = 3

func (c *Client) projectQuery() string {
	return "projectId=" + strconv.Itoa(c.cfg.ProjectID)
}

// GetTestCase fetches a test case's steps, ordered by their position.
func (c *Client) GetTestCase(ctx context.Context, issueID string) (TestCaseWithSteps, error) {
	uri := stepAPIBase + "/" + url.PathEscape(issueID)
	data, err := c.do(ctx, http.MethodGet, uri, c.projectQuery(), nil)
	if err != nil {
		return TestCaseWithSteps{}, err
	}
	return TestCaseWithSteps{ID: issueID, TestSteps: parseSteps(data)}, nil
}

// AddSteps appends steps one at a time, preserving input order. Only the
// final step carries the expected result; intermediate steps send an
// explicit empty result so the remote clears any prior value and the
// expectation reads as the outcome of the whole scenario.
func (c *Client) AddSteps(ctx context.Context, issueID string, steps []StepInput) AddStepsResult {
	var res AddStepsResult
	uri := stepAPIBase + "/" + url.PathEscape(issueID)
	for i, in := range steps {
		if strings.TrimSpace(in.Step) == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("step %d: empty step text", i+1))
			continue
		}
		body := map[string]string{"step": in.Step, "data": in.Data, "result": ""}
		if i == len(steps)-1 {
			body["result"] = in.Result
		}
		data, err := c.do(ctx, http.MethodPost, uri, c.projectQuery(), body)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("step %d: %v", i+1, err))
			continue
		}
		res.StepsCreated++
		if id := parseCreatedStepID(data); id != "" {
			res.CreatedIDs = append(res.CreatedIDs, id)
		}
	}
	return res
}

// DeleteStep removes a single step from a test case.
func (c *Client) DeleteStep(ctx context.Context, issueID, stepID string) error {
	uri := stepAPIBase + "/" + url.PathEscape(issueID) + "/" + url.PathEscape(stepID)
	_, err := c.do(ctx, http.MethodDelete, uri, c.projectQuery(), nil)
	return err
}

// deleteStepStubborn retries a delete a few times with a short linear
// backoff. Replacement batches hit per-issue write contention upstream, so
// a failed delete often succeeds moments later.
func (c *Client) deleteStepStubborn(ctx context.Context, issueID, stepID string) error {
	var lastErr error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		lastErr = c.DeleteStep(ctx, issueID, stepID)
		if lastErr == nil {
			return nil
		}
		if attempt < deleteAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * deleteRetryDelay):
			}
		}
	}
	return lastErr
}

// ReplaceSteps swaps a test case's steps for a new set. The whole flow
// holds the issue's lock so concurrent replacements of the same issue
// cannot interleave deletes and creates.
//
// Phases: snapshot the current steps, delete them with bounded
// concurrency, verify and sweep leftovers, then create the new steps
// sequentially. Only a failed snapshot aborts; later failures are
// reported in the result and the flow continues, so a partially
// replaced case is still left as close to the target as possible.
func (c *Client) ReplaceSteps(ctx context.Context, issueID string, steps []StepInput) (ReplaceResult, error) {
	var res ReplaceResult
	if len(steps) == 0 {
		return res, nil
	}

	err := c.locks.WithLock(issueID, func() error {
		existing, err := c.GetTestCase(ctx, issueID)
		if err != nil {
			return fmt.Errorf("snapshot steps for %s: %w", issueID, err)
		}

		res.StepsDeleted = c.deleteAll(ctx, issueID, existing.TestSteps, &res.Errors)
		res.StepsDeleted += c.sweepLeftovers(ctx, issueID, &res.Errors)

		added := c.AddSteps(ctx, issueID, steps)
		res.StepsCreated = added.StepsCreated
		res.CreatedIDs = added.CreatedIDs
		res.Errors = append(res.Errors, added.Errors...)
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return res, nil
}

// deleteAll removes the snapshotted steps with bounded concurrency,
// recording per-step failures. Returns the number actually deleted.
func (c *Client) deleteAll(ctx context.Context, issueID string, steps []TestStep, errs *[]string) int {
	if len(steps) == 0 {
		return 0
	}

	sem := semaphore.NewWeighted(deleteConcurrency)
	var (
		mu      sync.Mutex
		deleted int
		wg      sync.WaitGroup
	)
	for _, st := range steps {
		if st.ID == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			*errs = append(*errs, fmt.Sprintf("delete step %s: %v", st.ID, err))
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(stepID string) {
			defer wg.Done()
			defer sem.Release(1)
			if err := c.deleteStepStubborn(ctx, issueID, stepID); err != nil {
				mu.Lock()
				*errs = append(*errs, fmt.Sprintf("delete step %s: %v", stepID, err))
				mu.Unlock()
				return
			}
			mu.Lock()
			deleted++
			mu.Unlock()
		}(st.ID)
	}
	wg.Wait()
	return deleted
}

// sweepLeftovers re-reads the case after the parallel delete wave and
// removes anything still present, one at a time. A final read confirms
// the case is empty before new steps go in.
func (c *Client) sweepLeftovers(ctx context.Context, issueID string, errs *[]string) int {
	remaining, err := c.GetTestCase(ctx, issueID)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("verify deletion for %s: %v", issueID, err))
		return 0
	}
	if len(remaining.TestSteps) == 0 {
		return 0
	}

	c.logger.Warn("leftover steps after delete wave",
		"issue_id", issueID, "count", len(remaining.TestSteps))

	deleted := 0
	for _, st := range remaining.TestSteps {
		if st.ID == "" {
			continue
		}
		if err := c.deleteStepStubborn(ctx, issueID, st.ID); err != nil {
			*errs = append(*errs, fmt.Sprintf("delete leftover step %s: %v", st.ID, err))
			continue
		}
		deleted++
	}

	final, err := c.GetTestCase(ctx, issueID)
	if err == nil && len(final.TestSteps) > 0 {
		ids := make([]string, 0, len(final.TestSteps))
		for _, st := range final.TestSteps {
			ids = append(ids, st.ID)
		}
		sort.Strings(ids)
		*errs = append(*errs, fmt.Sprintf("steps still present after cleanup: %s", strings.Join(ids, ", ")))
	}
	return deleted
}
