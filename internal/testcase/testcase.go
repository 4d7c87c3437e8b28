// Package testcase orchestrates test creation across Jira and Zephyr: the
// Jira issue is the identity, Zephyr holds the steps and the cycle link.
package testcase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/testgenie-labs/testgenie-go/internal/jira"
	"github.com/testgenie-labs/testgenie-go/internal/zephyr"
)

// IssueCreator is the Jira side of a full creation.
type IssueCreator interface {
	CreateTestIssue(ctx context.Context, in jira.CreateTestInput) (jira.CreatedIssue, error)
}

// StepWriter is the Zephyr step side.
type StepWriter interface {
	AddSteps(ctx context.Context, issueID string, steps []zephyr.StepInput) zephyr.AddStepsResult
}

// ExecutionLinker links issues into cycles.
type ExecutionLinker interface {
	EnsureExecution(ctx context.Context, issueID, versionID, cycleID, folderID string, statusID *int) (zephyr.EnsureExecutionResult, error)
}

// Service wires the two backends.
type Service struct {
	logger *slog.Logger
	issues IssueCreator
	steps  StepWriter
	execs  ExecutionLinker
}

func NewService(logger *slog.Logger, issues IssueCreator, steps StepWriter, execs ExecutionLinker) *Service {
	return &Service{logger: logger, issues: issues, steps: steps, execs: execs}
}

// CycleLink is the optional execution side of a full creation.
type CycleLink struct {
	VersionID string `json:"version_id"`
	CycleID   string `json:"cycle_id"`
	FolderID  string `json:"folder_id,omitempty"`
	StatusID  *int   `json:"status_id,omitempty"`
}

// FullCreateInput is one test to create end to end.
type FullCreateInput struct {
	Test  jira.CreateTestInput `json:"test"`
	Steps []zephyr.StepInput   `json:"steps,omitempty"`
	Cycle *CycleLink           `json:"cycle,omitempty"`
}

// FullCreateResult reports the issue plus the step and execution halves.
// Errors carries everything non-fatal that went wrong after the issue
// existed.
type FullCreateResult struct {
	Issue     jira.CreatedIssue             `json:"issue"`
	Steps     zephyr.AddStepsResult         `json:"steps"`
	Execution *zephyr.EnsureExecutionResult `json:"execution,omitempty"`
	Errors    []string                      `json:"errors,omitempty"`
}

// FullCreate creates the Jira issue, then pushes steps and the cycle link
// in parallel. Only a failed issue creation is fatal; once the issue
// exists, step or execution failures are reported but the issue is kept.
func (s *Service) FullCreate(ctx context.Context, in FullCreateInput) (FullCreateResult, error) {
	var res FullCreateResult
	if strings.TrimSpace(in.Test.Summary) == "" {
		return res, fmt.Errorf("test summary is required")
	}
	if in.Cycle != nil && in.Cycle.CycleID == "" {
		return res, fmt.Errorf("cycle link requires a cycle id")
	}

	created, err := s.issues.CreateTestIssue(ctx, in.Test)
	if err != nil {
		return res, fmt.Errorf("create test issue: %w", err)
	}
	res.Issue = created
	res.Errors = append(res.Errors, created.LinkErrors...)

	g, gctx := errgroup.WithContext(ctx)
	var stepRes zephyr.AddStepsResult
	var execRes *zephyr.EnsureExecutionResult

	if len(in.Steps) > 0 {
		g.Go(func() error {
			stepRes = s.steps.AddSteps(gctx, created.ID, in.Steps)
			return nil
		})
	}
	if in.Cycle != nil {
		g.Go(func() error {
			er, err := s.execs.EnsureExecution(gctx, created.ID,
				in.Cycle.VersionID, in.Cycle.CycleID, in.Cycle.FolderID, in.Cycle.StatusID)
			if err != nil {
				er.Error = err.Error()
			}
			execRes = &er
			return nil
		})
	}
	g.Wait()

	res.Steps = stepRes
	res.Errors = append(res.Errors, stepRes.Errors...)
	if execRes != nil {
		res.Execution = execRes
		if execRes.Error != "" {
			res.Errors = append(res.Errors, "execution: "+execRes.Error)
		}
	}

	s.logger.Info("full test creation finished",
		"issue_key", created.Key,
		"steps_created", stepRes.StepsCreated,
		"errors", len(res.Errors))
	return res, nil
}
