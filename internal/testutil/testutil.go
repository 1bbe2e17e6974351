package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/eotdiff/internal/domain"
)

// TaskOption customizes a task built by Task
type TaskOption func(*domain.Task)

// Task builds a leaf task with a 480 minute duration and no predecessors.
// Empty start or finish strings leave the date unset.
func Task(uid int, name, start, finish string, opts ...TaskOption) domain.Task {
	task := domain.Task{
		UID:             uid,
		Name:            name,
		Start:           datePtr(start),
		Finish:          datePtr(finish),
		DurationMinutes: domain.IntPtr(480),
		PercentComplete: domain.FloatPtr(0),
		Predecessors:    []int{},
	}
	for _, opt := range opts {
		opt(&task)
	}
	return task
}

// Duration sets the task duration in minutes.
func Duration(minutes int) TaskOption {
	return func(t *domain.Task) { t.DurationMinutes = domain.IntPtr(minutes) }
}

// NoDuration clears the task duration.
func NoDuration() TaskOption {
	return func(t *domain.Task) { t.DurationMinutes = nil }
}

// Predecessors sets the predecessor UIDs.
func Predecessors(uids ...int) TaskOption {
	return func(t *domain.Task) { t.Predecessors = uids }
}

// Percent sets percent complete.
func Percent(p float64) TaskOption {
	return func(t *domain.Task) { t.PercentComplete = domain.FloatPtr(p) }
}

// Summary marks the task as a summary row.
func Summary() TaskOption {
	return func(t *domain.Task) { t.IsSummary = true }
}

// Inferred marks the UID as synthesized by the importer.
func Inferred() TaskOption {
	return func(t *domain.Task) { t.UIDInferred = true }
}

// Baseline sets the baseline dates.
func Baseline(start, finish string) TaskOption {
	return func(t *domain.Task) {
		t.BaselineStart = datePtr(start)
		t.BaselineFinish = datePtr(finish)
	}
}

// MustDate parses YYYY-MM-DD or panics.
func MustDate(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *domain.Date {
	if s == "" {
		return nil
	}
	d := MustDate(s)
	return &d
}

// FindDiff returns the first diff whose display name equals name.
func FindDiff(t *testing.T, diffs []domain.TaskDiff, name string) domain.TaskDiff {
	t.Helper()
	for _, d := range diffs {
		if d.DisplayName() == name {
			return d
		}
	}
	t.Fatalf("no diff named %q", name)
	return domain.TaskDiff{}
}

// WriteFile writes content to a file in a temporary directory
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// AssertNoError asserts that an error is nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

// AssertError asserts that an error is not nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// AssertFloat asserts two floats agree within 1e-6
func AssertFloat(t *testing.T, label string, got, want float64) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > 1e-6 {
		t.Errorf("%s = %v, want %v", label, got, want)
	}
}
