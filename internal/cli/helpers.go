package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/parse"
	"gopkg.in/yaml.v3"
)

// ExitError carries a process exit code alongside the error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// loadAssignments reads an assignment map, or returns nil when path is empty.
func loadAssignments(path string) (domain.AssignmentMap, error) {
	if path == "" {
		return nil, nil
	}
	amap, err := parse.AssignmentsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	return amap, nil
}

// saveAssignments writes amap as YAML for .yaml/.yml paths and JSON otherwise.
func saveAssignments(path string, amap domain.AssignmentMap) error {
	if path == "" {
		return nil
	}

	var (
		data []byte
		err  error
	)
	if parse.FormatForPath(path) == parse.FormatYAML {
		data, err = yaml.Marshal(amap)
	} else {
		data, err = json.MarshalIndent(amap, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode assignments: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save assignments: %w", err)
	}
	return nil
}
