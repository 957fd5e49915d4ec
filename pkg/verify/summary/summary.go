// Package summary accumulates per-scenario outcomes across a verification
// run and renders them as one human-readable report. Scenarios record into
// a shared Summary from multiple goroutines; the report is rendered once at
// the end of the run.
package summary

import (
	"fmt"
	"strings"
	"sync"
)

// Status classifies one recorded outcome.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusInfo Status = "info"
)

func (s Status) icon() string {
	switch s {
	case StatusPass:
		return "✅"
	case StatusFail:
		return "❌"
	case StatusWarn:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Entry is one recorded outcome.
type Entry struct {
	Name     string
	Status   Status
	Actual   string
	Expected string
}

// Summary is a position-stable, idempotent set of outcomes keyed by case
// name: recording the same name again replaces the entry in place, so a
// scenario that first records a provisional outcome and later overwrites it
// with the final one keeps its position in the report. Safe for concurrent
// use.
type Summary struct {
	mu      sync.Mutex
	order   []string
	entries map[string]Entry
}

// New creates an empty Summary.
func New() *Summary {
	return &Summary{entries: make(map[string]Entry)}
}

// Record sets the outcome for name. Passed selects pass or fail status;
// actual and expected describe the observation for the report.
func (s *Summary) Record(name string, passed bool, actual, expected string) {
	status := StatusFail
	if passed {
		status = StatusPass
	}
	s.set(Entry{Name: name, Status: status, Actual: actual, Expected: expected})
}

// Warn records a non-fatal anomaly for name. Warnings do not fail the run.
func (s *Summary) Warn(name, note string) {
	s.set(Entry{Name: name, Status: StatusWarn, Actual: note})
}

// Info records an informational note for name.
func (s *Summary) Info(name, note string) {
	s.set(Entry{Name: name, Status: StatusInfo, Actual: note})
}

func (s *Summary) set(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.Name]; !exists {
		s.order = append(s.order, e.Name)
	}
	s.entries[e.Name] = e
}

// Entries returns the outcomes in recording order.
func (s *Summary) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name])
	}
	return out
}

// Failed reports whether any entry failed. Warnings and infos do not count.
func (s *Summary) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Status == StatusFail {
			return true
		}
	}
	return false
}

// Len returns the number of recorded entries.
func (s *Summary) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Render formats the report. Entries appear in recording order, one line
// each, icon first, with actual/expected detail where recorded.
func (s *Summary) Render() string {
	entries := s.Entries()

	var b strings.Builder
	b.WriteString("==================== VERIFICATION SUMMARY ====================\n")
	if len(entries) == 0 {
		b.WriteString("no outcomes recorded\n")
	}

	width := 0
	for _, e := range entries {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}

	var passed, failed, warned int
	for _, e := range entries {
		switch e.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warned++
		}
		b.WriteString(fmt.Sprintf("%s %-*s", e.Status.icon(), width, e.Name))
		switch {
		case e.Expected != "":
			b.WriteString(fmt.Sprintf("  actual=%s expected=%s", e.Actual, e.Expected))
		case e.Actual != "":
			b.WriteString("  " + e.Actual)
		}
		b.WriteString("\n")
	}

	b.WriteString("==============================================================\n")
	b.WriteString(fmt.Sprintf("%d passed, %d failed, %d warnings\n", passed, failed, warned))
	return b.String()
}
