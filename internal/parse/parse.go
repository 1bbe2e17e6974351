package parse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lherron/eotdiff/internal/domain"
	"gopkg.in/yaml.v3"
)

// Format represents supported input formats
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat attempts to determine the format of the input data
// Returns an error if the format cannot be reliably determined
func DetectFormat(data []byte) (Format, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("input is empty")
	}

	// Check for JSON - validate it's actually valid JSON
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var js json.RawMessage
		if err := json.Unmarshal(data, &js); err == nil {
			return FormatJSON, nil
		}
		// A flow-style YAML document can also start with { or [
		var y interface{}
		if err := yaml.Unmarshal(data, &y); err == nil && isStructured(y) {
			return FormatYAML, nil
		}
		return "", fmt.Errorf("input appears to be JSON but is invalid")
	}

	// YAML parser is very permissive - plain text is valid YAML
	// Only treat as YAML if it has structure (map or array)
	var y interface{}
	if err := yaml.Unmarshal(data, &y); err == nil && isStructured(y) {
		return FormatYAML, nil
	}
	return "", fmt.Errorf("input is neither JSON nor structured YAML")
}

func isStructured(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

// FormatForPath picks a format from a file extension, or "" to auto-detect.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return ""
}

// Decode unmarshals data in the given format into v.
// If format is empty, auto-detects the format
func Decode(data []byte, format Format, v interface{}) error {
	if format == "" {
		detected, err := DetectFormat(data)
		if err != nil {
			return err
		}
		format = detected
	}

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	case FormatYAML, "yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}

// DecodeFile reads path and decodes it, using the extension as a format hint.
func DecodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Decode(data, FormatForPath(path), v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// taskFile accepts either a bare task list or {tasks: [...]}.
type taskFile struct {
	Tasks []domain.Task `json:"tasks" yaml:"tasks"`
}

// Tasks parses a normalized task list and checks the importer contract
// (unique UIDs).
func Tasks(data []byte, format Format) ([]domain.Task, error) {
	if format == "" {
		detected, err := DetectFormat(data)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	var tasks []domain.Task
	if isList(data, format) {
		if err := Decode(data, format, &tasks); err != nil {
			return nil, err
		}
	} else {
		var f taskFile
		if err := Decode(data, format, &f); err != nil {
			return nil, err
		}
		tasks = f.Tasks
	}

	if err := Normalize(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Normalize defaults missing predecessor lists in place and checks the
// importer contract.
func Normalize(tasks []domain.Task) error {
	for i := range tasks {
		if tasks[i].Predecessors == nil {
			tasks[i].Predecessors = []int{}
		}
	}
	return domain.ValidateTasks(tasks)
}

func isList(data []byte, format Format) bool {
	if format == FormatJSON {
		return strings.HasPrefix(strings.TrimSpace(string(data)), "[")
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, ok := doc.([]interface{})
	return ok
}

// TasksFile loads a task list from path.
func TasksFile(path string) ([]domain.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	tasks, err := Tasks(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tasks, nil
}

// OverridesFile loads a list of manual match overrides from path.
func OverridesFile(path string) ([]domain.MatchOverride, error) {
	var overrides []domain.MatchOverride
	if err := DecodeFile(path, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// AttributionRequest parses and validates an assignment request.
func AttributionRequest(data []byte, format Format) (*domain.AttributionRequest, error) {
	var req domain.AttributionRequest
	if err := Decode(data, format, &req); err != nil {
		return nil, err
	}
	req.ApplyDefaults()
	if err := domain.ValidateAttributionRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

// AttributionRequestFile loads an assignment request from path.
func AttributionRequestFile(path string) (*domain.AttributionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	req, err := AttributionRequest(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return req, nil
}

// AssignmentsFile loads a persisted assignment map. A missing file yields
// an empty map so a first run can name the file it will later save to.
func AssignmentsFile(path string) (domain.AssignmentMap, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return domain.AssignmentMap{}, nil
	}
	amap := domain.AssignmentMap{}
	if err := DecodeFile(path, &amap); err != nil {
		return nil, err
	}
	for key, a := range amap {
		if err := domain.ValidateCauseTag(a.CauseTag); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return amap, nil
}

// ResultFile loads a JSON compare result written by `eotdiff compare --format json`.
func ResultFile(path string) (*domain.CompareResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var result domain.CompareResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s: invalid JSON: %w", path, err)
	}
	return &result, nil
}
