package zephyr

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Zephyr wraps logically identical lists in several envelope shapes
// depending on endpoint and deployment age. Each parse function tries the
// known envelope keys in a fixed order and finally treats the payload as
// already being the target list.

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if i, err := strconv.Atoi(t); err == nil {
			return i
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// unwrapList resolves an envelope document to its item list: the first
// present envelope key wins, a bare list is used as-is, and a map without
// any known envelope is treated as id-keyed items.
func unwrapList(doc any, envelopes ...string) []any {
	switch t := doc.(type) {
	case []any:
		return t
	case map[string]any:
		for _, key := range envelopes {
			if v, ok := t[key]; ok && v != nil {
				if list, ok := v.([]any); ok {
					return list
				}
			}
		}
		items := make([]any, 0, len(t))
		for _, v := range t {
			items = append(items, v)
		}
		return items
	}
	return nil
}

func parseSteps(data []byte) []TestStep {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	var raw []any
	switch t := doc.(type) {
	case []any:
		raw = t
	case map[string]any:
		if v := firstValue(t, "testSteps", "values", "results"); v != nil {
			raw, _ = v.([]any)
		}
	}

	steps := make([]TestStep, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		// The step object may be nested one level down.
		if inner := firstValue(m, "teststep", "testStep"); inner != nil {
			if im, ok := inner.(map[string]any); ok {
				m = im
			}
		}
		steps = append(steps, TestStep{
			ID:      asString(m["id"]),
			Step:    asString(firstValue(m, "step", "testStep")),
			Data:    asString(firstValue(m, "data", "testData")),
			Result:  asString(firstValue(m, "result", "expectedResult")),
			OrderID: asInt(m["orderId"]),
		})
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].OrderID != steps[j].OrderID {
			return steps[i].OrderID < steps[j].OrderID
		}
		return steps[i].ID < steps[j].ID
	})
	return steps
}

// parseCreatedStepID extracts the new step id from a creation response,
// which nests it under "teststep" on some deployments.
func parseCreatedStepID(data []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	if id := asString(doc["id"]); id != "" {
		return id
	}
	if inner, ok := doc["teststep"].(map[string]any); ok {
		return asString(inner["id"])
	}
	return ""
}

// parseCreatedExecutionID extracts the execution id from a create
// response. The endpoint answers with a flat {id}, a nested
// {execution:{id}} or an envelope list depending on deployment.
func parseCreatedExecutionID(data []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err == nil {
		if id := asString(firstValue(doc, "id", "executionId")); id != "" {
			return id
		}
		if inner, ok := doc["execution"].(map[string]any); ok {
			if id := asString(firstValue(inner, "id", "executionId")); id != "" {
				return id
			}
		}
	}
	if execs := parseExecutions(data); len(execs) > 0 {
		return execs[0].ExecutionID
	}
	return ""
}

func parseExecutions(data []byte) []Execution {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	raw := unwrapList(doc, "executions", "searchObjectList", "values")
	out := make([]Execution, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if inner, ok := m["execution"].(map[string]any); ok {
			m = inner
		}
		id := asString(firstValue(m, "id", "executionId"))
		if id == "" {
			continue
		}
		ex := Execution{
			ExecutionID: id,
			IssueID:     asString(m["issueId"]),
			CycleID:     asString(m["cycleId"]),
			VersionID:   asString(m["versionId"]),
		}
		if cycle, ok := m["cycle"].(map[string]any); ok && ex.CycleID == "" {
			ex.CycleID = asString(cycle["id"])
		}
		if version, ok := m["version"].(map[string]any); ok && ex.VersionID == "" {
			ex.VersionID = asString(version["id"])
		}
		if status, ok := m["status"].(map[string]any); ok {
			ex.StatusID = asInt(status["id"])
			ex.StatusName = asString(status["name"])
		}
		out = append(out, ex)
	}
	return out
}

func parseCycles(data []byte, projectID, versionID int) []Cycle {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	var items []Cycle
	appendCycle := func(fallbackID string, m map[string]any) {
		c := Cycle{
			ID:          asString(firstValue(m, "id", "cycleId")),
			Name:        asString(firstValue(m, "name", "cycleName")),
			ProjectID:   projectID,
			VersionID:   versionID,
			Description: asString(m["description"]),
			Build:       asString(m["build"]),
			Environment: asString(m["environment"]),
			StartDate:   asString(firstValue(m, "startDate", "from")),
			EndDate:     asString(firstValue(m, "endDate", "to")),
			FolderID:    asString(m["folderId"]),
		}
		if pid := asInt(m["projectId"]); pid != 0 {
			c.ProjectID = pid
		}
		if vid, ok := m["versionId"]; ok {
			c.VersionID = asInt(vid)
		}
		if c.ID == "" {
			c.ID = fallbackID
		}
		items = append(items, c)
	}

	switch t := doc.(type) {
	case map[string]any:
		// Cycle listings come back as a map keyed by cycle id with a
		// recordsCount entry mixed in.
		for key, v := range t {
			if key == "recordsCount" {
				continue
			}
			if m, ok := v.(map[string]any); ok {
				appendCycle(key, m)
			}
		}
	case []any:
		for _, v := range t {
			if m, ok := v.(map[string]any); ok {
				appendCycle("", m)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func parseStatuses(data []byte) []ExecutionStatus {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make([]ExecutionStatus, 0, len(raw))
	for _, m := range raw {
		out = append(out, ExecutionStatus{
			Name: asString(m["name"]),
			ID:   asInt(m["id"]),
		})
	}
	return out
}
