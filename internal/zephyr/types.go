package zephyr

// TestStep is one ordered action/data/expected-result unit of a test case.
// ID is assigned by Zephyr on creation and is absent on input.
type TestStep struct {
	ID      string `json:"id"`
	Step    string `json:"step"`
	Data    string `json:"data,omitempty"`
	Result  string `json:"result,omitempty"`
	OrderID int    `json:"orderId"`
}

// StepInput is a step supplied by a caller for creation.
type StepInput struct {
	Step   string `json:"step"`
	Data   string `json:"data,omitempty"`
	Result string `json:"result,omitempty"`
}

// TestCaseWithSteps is the step view of a test case. Zephyr's step endpoint
// only knows the issue id; descriptive fields stay on the Jira side.
type TestCaseWithSteps struct {
	ID        string     `json:"id"`
	TestSteps []TestStep `json:"testSteps"`
}

// AddStepsResult accumulates creation outcomes for a step batch.
type AddStepsResult struct {
	StepsCreated int      `json:"steps_created"`
	CreatedIDs   []string `json:"created_ids"`
	Errors       []string `json:"errors"`
}

// ReplaceResult reports a full step replacement. A non-empty Errors list
// with nonzero counts means best-effort partial success, not total failure;
// there is deliberately no success boolean.
type ReplaceResult struct {
	StepsDeleted int      `json:"steps_deleted"`
	StepsCreated int      `json:"steps_created"`
	CreatedIDs   []string `json:"created_ids"`
	Errors       []string `json:"errors"`
}

// Execution is a normalized view of a Zephyr execution record.
type Execution struct {
	ExecutionID string `json:"execution_id"`
	IssueID     string `json:"issueId,omitempty"`
	CycleID     string `json:"cycleId,omitempty"`
	VersionID   string `json:"versionId,omitempty"`
	StatusID    int    `json:"statusId,omitempty"`
	StatusName  string `json:"statusName,omitempty"`
}

// Cycle is a normalized test cycle.
type Cycle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectID   int    `json:"projectId"`
	VersionID   int    `json:"versionId"`
	Description string `json:"description,omitempty"`
	Build       string `json:"build,omitempty"`
	Environment string `json:"environment,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	FolderID    string `json:"folderId,omitempty"`
}

// CyclesPage is a client-side filtered and paged cycle listing.
type CyclesPage struct {
	Items  []Cycle `json:"items"`
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ExecutionStatus maps a status name (PASS, FAIL, WIP, BLOCKED,
// UNEXECUTED) to its numeric id.
type ExecutionStatus struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// CreateKind classifies the outcome of an execution creation attempt.
type CreateKind int

const (
	// CreateCreated: the remote system created a new execution.
	CreateCreated CreateKind = iota
	// CreateAlreadyExists: creation was rejected as a duplicate and the
	// existing execution was resolved by lookup.
	CreateAlreadyExists
	// CreateFailed: creation failed for any other reason.
	CreateFailed
)

// CreateExecutionOutcome is the explicit result of AddTestToCycle; callers
// branch on Kind instead of sniffing error text.
type CreateExecutionOutcome struct {
	Kind        CreateKind
	ExecutionID string
	Reason      string
}

// EnsureExecutionResult reports create-or-find plus the optional status
// update. Error carries a creation failure without aborting batch callers.
type EnsureExecutionResult struct {
	ExecutionID   string `json:"execution_id"`
	Created       bool   `json:"created"`
	StatusUpdated bool   `json:"status_updated"`
	Error         string `json:"error,omitempty"`
}

// CreateCycleInput carries the optional metadata for a new cycle.
type CreateCycleInput struct {
	VersionID   int    `json:"version_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Build       string `json:"build,omitempty"`
	Environment string `json:"environment,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}
