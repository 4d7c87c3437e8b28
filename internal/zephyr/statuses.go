package zephyr

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultStatusMap matches the stock Zephyr Squad status catalogue.
// Projects with custom statuses override it with a YAML file.
var defaultStatusMap = map[string]int{
	"PASS":       1,
	"FAIL":       2,
	"WIP":        3,
	"BLOCKED":    4,
	"UNEXECUTED": -1,
}

// StatusMap resolves execution status names to their numeric ids without
// a round trip to the API. It is used as a fallback when the statuses
// endpoint is unavailable.
type StatusMap struct {
	byName map[string]int
}

// DefaultStatusMap returns the stock catalogue.
func DefaultStatusMap() *StatusMap {
	m := make(map[string]int, len(defaultStatusMap))
	for k, v := range defaultStatusMap {
		m[k] = v
	}
	return &StatusMap{byName: m}
}

// LoadStatusMap reads a YAML file of name: id pairs layered over the
// defaults. An empty path returns the defaults unchanged.
func LoadStatusMap(path string) (*StatusMap, error) {
	sm := DefaultStatusMap()
	if path == "" {
		return sm, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status map: %w", err)
	}
	var overrides map[string]int
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse status map %s: %w", path, err)
	}
	for name, id := range overrides {
		sm.byName[strings.ToUpper(name)] = id
	}
	return sm, nil
}

// Lookup resolves a status name case-insensitively.
func (s *StatusMap) Lookup(name string) (int, bool) {
	id, ok := s.byName[strings.ToUpper(name)]
	return id, ok
}

// Statuses returns the catalogue sorted by name, in the same shape the
// statuses endpoint produces.
func (s *StatusMap) Statuses() []ExecutionStatus {
	out := make([]ExecutionStatus, 0, len(s.byName))
	for name, id := range s.byName {
		out = append(out, ExecutionStatus{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
