package testcase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testgenie-labs/testgenie-go/internal/jira"
	"github.com/testgenie-labs/testgenie-go/internal/zephyr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIssues struct {
	mu      sync.Mutex
	nextID  int
	created []jira.CreateTestInput

	failSummary string // creation fails for this summary
	linkErrors  []string
}

func (f *fakeIssues) CreateTestIssue(ctx context.Context, in jira.CreateTestInput) (jira.CreatedIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.Summary == f.failSummary && f.failSummary != "" {
		return jira.CreatedIssue{}, errors.New("jira rejected the issue")
	}
	f.nextID++
	f.created = append(f.created, in)
	id := strconv.Itoa(10000 + f.nextID)
	return jira.CreatedIssue{
		ID: id, Key: "TG-" + strconv.Itoa(f.nextID), LinkErrors: f.linkErrors,
	}, nil
}

type fakeSteps struct {
	mu      sync.Mutex
	calls   map[string][]zephyr.StepInput
	failAll bool
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeSteps) AddSteps(ctx context.Context, issueID string, steps []zephyr.StepInput) zephyr.AddStepsResult {
	cur := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string][]zephyr.StepInput)
	}
	f.calls[issueID] = steps
	f.mu.Unlock()

	if f.failAll {
		return zephyr.AddStepsResult{Errors: []string{"zephyr is down"}}
	}
	return zephyr.AddStepsResult{StepsCreated: len(steps)}
}

type fakeExecs struct {
	mu     sync.Mutex
	linked []string
	err    error
	result zephyr.EnsureExecutionResult
}

func (f *fakeExecs) EnsureExecution(ctx context.Context, issueID, versionID, cycleID, folderID string, statusID *int) (zephyr.EnsureExecutionResult, error) {
	f.mu.Lock()
	f.linked = append(f.linked, issueID+"/"+cycleID)
	f.mu.Unlock()
	if f.err != nil {
		return zephyr.EnsureExecutionResult{}, f.err
	}
	res := f.result
	if res.ExecutionID == "" {
		res.ExecutionID = "exec-" + issueID
		res.Created = true
	}
	return res, nil
}

func newTestService(issues *fakeIssues, steps *fakeSteps, execs *fakeExecs) *Service {
	return NewService(discardLogger(), issues, steps, execs)
}

func intPtr(v int) *int { return &v }

func fullInput(summary string, stepCount int) FullCreateInput {
	in := FullCreateInput{
		Test: jira.CreateTestInput{Summary: summary},
		Cycle: &CycleLink{
			VersionID: "-1", CycleID: "7", StatusID: intPtr(1),
		},
	}
	for i := 0; i < stepCount; i++ {
		in.Steps = append(in.Steps, zephyr.StepInput{Step: fmt.Sprintf("step %d", i+1)})
	}
	return in
}

func TestFullCreate(t *testing.T) {
	issues := &fakeIssues{}
	steps := &fakeSteps{}
	execs := &fakeExecs{}
	svc := newTestService(issues, steps, execs)

	res, err := svc.FullCreate(context.Background(), fullInput("Checkout flow", 3))
	if err != nil {
		t.Fatalf("FullCreate: %v", err)
	}
	if res.Issue.Key != "TG-1" {
		t.Errorf("issue = %+v", res.Issue)
	}
	if res.Steps.StepsCreated != 3 {
		t.Errorf("steps = %+v", res.Steps)
	}
	if res.Execution == nil || !res.Execution.Created {
		t.Errorf("execution = %+v", res.Execution)
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors = %v", res.Errors)
	}
	if got := steps.calls[res.Issue.ID]; len(got) != 3 {
		t.Errorf("steps pushed for %q = %v", res.Issue.ID, got)
	}
	if len(execs.linked) != 1 || execs.linked[0] != res.Issue.ID+"/7" {
		t.Errorf("linked = %v", execs.linked)
	}
}

func TestFullCreateIssueFailureIsFatal(t *testing.T) {
	issues := &fakeIssues{failSummary: "Broken"}
	steps := &fakeSteps{}
	execs := &fakeExecs{}
	svc := newTestService(issues, steps, execs)

	if _, err := svc.FullCreate(context.Background(), fullInput("Broken", 2)); err == nil {
		t.Fatal("expected error")
	}
	if len(steps.calls) != 0 {
		t.Error("steps pushed despite failed issue creation")
	}
	if len(execs.linked) != 0 {
		t.Error("execution linked despite failed issue creation")
	}
}

func TestFullCreateStepFailuresNonFatal(t *testing.T) {
	issues := &fakeIssues{}
	steps := &fakeSteps{failAll: true}
	execs := &fakeExecs{}
	svc := newTestService(issues, steps, execs)

	res, err := svc.FullCreate(context.Background(), fullInput("Flaky zephyr", 2))
	if err != nil {
		t.Fatalf("step failures must not fail the creation: %v", err)
	}
	if res.Issue.Key == "" {
		t.Error("issue missing from result")
	}
	if len(res.Errors) != 1 || res.Errors[0] != "zephyr is down" {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestFullCreateExecutionFailureNonFatal(t *testing.T) {
	issues := &fakeIssues{}
	steps := &fakeSteps{}
	execs := &fakeExecs{err: errors.New("cycle gone")}
	svc := newTestService(issues, steps, execs)

	res, err := svc.FullCreate(context.Background(), fullInput("Cycle trouble", 1))
	if err != nil {
		t.Fatalf("execution failure must not fail the creation: %v", err)
	}
	if res.Execution == nil || res.Execution.Error == "" {
		t.Errorf("execution = %+v", res.Execution)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestFullCreateValidation(t *testing.T) {
	svc := newTestService(&fakeIssues{}, &fakeSteps{}, &fakeExecs{})

	if _, err := svc.FullCreate(context.Background(), FullCreateInput{}); err == nil {
		t.Fatal("expected error for blank summary")
	}

	in := fullInput("No cycle id", 1)
	in.Cycle.CycleID = ""
	if _, err := svc.FullCreate(context.Background(), in); err == nil {
		t.Fatal("expected error for cycle link without id")
	}
}

func TestFullCreateWithoutOptionalParts(t *testing.T) {
	issues := &fakeIssues{}
	steps := &fakeSteps{}
	execs := &fakeExecs{}
	svc := newTestService(issues, steps, execs)

	res, err := svc.FullCreate(context.Background(), FullCreateInput{
		Test: jira.CreateTestInput{Summary: "Issue only"},
	})
	if err != nil {
		t.Fatalf("FullCreate: %v", err)
	}
	if res.Execution != nil {
		t.Errorf("execution present without cycle link: %+v", res.Execution)
	}
	if len(steps.calls) != 0 {
		t.Error("steps pushed without step input")
	}
}

func TestFullCreateCarriesLinkErrors(t *testing.T) {
	issues := &fakeIssues{linkErrors: []string{"link TG-2 to GONE-1: 404"}}
	svc := newTestService(issues, &fakeSteps{}, &fakeExecs{})

	res, err := svc.FullCreate(context.Background(), fullInput("With links", 0))
	if err != nil {
		t.Fatalf("FullCreate: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v", res.Errors)
	}
}
