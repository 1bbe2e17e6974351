package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lherron/eotdiff/internal/cli/appctx"
	"github.com/lherron/eotdiff/internal/config"
	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/match"
	"github.com/lherron/eotdiff/internal/parse"
	"github.com/lherron/eotdiff/internal/testutil"
	"github.com/spf13/cobra"
)

func testApp(output string) *appctx.App {
	return appctx.New(&config.Config{
		LogLevel: "error",
		Output:   output,
		Matcher:  config.MatcherConfig{UIDBonus: match.DefaultUIDBonus, MaxPool: match.DefaultMaxPool},
	}, io.Discard)
}

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	return cmd, &out
}

func writeTasks(t *testing.T, dir, name string, tasks ...domain.Task) string {
	t.Helper()
	data, err := json.Marshal(tasks)
	if err != nil {
		t.Fatal(err)
	}
	return testutil.WriteFile(t, dir, name, string(data))
}

func resetCompareFlags(t *testing.T) {
	t.Cleanup(func() {
		compareBaseline = false
		compareOverrides = ""
		compareAssignments = ""
		compareSaveAssignments = ""
		attributeAssignments = ""
		attributeSaveAssignments = ""
	})
}

func TestRunCompare_SavesAssignments(t *testing.T) {
	resetCompareFlags(t)
	dir := t.TempDir()
	left := writeTasks(t, dir, "left.json", testutil.Task(1, "Excavate", "2025-01-06", "2025-01-10"))
	right := writeTasks(t, dir, "right.json", testutil.Task(1, "Excavate", "2025-01-06", "2025-01-15"))
	compareSaveAssignments = filepath.Join(dir, "causes.yaml")

	cmd, out := testCmd()
	if err := runCompare(testApp("json"), cmd, []string{left, right}); err != nil {
		t.Fatalf("runCompare() error = %v", err)
	}

	var result domain.CompareResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not a compare result: %v", err)
	}
	if result.Summary.ChangedTasks != 1 {
		t.Errorf("changed = %d", result.Summary.ChangedTasks)
	}

	amap, err := parse.AssignmentsFile(compareSaveAssignments)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := amap["1|1|changed"]; !ok {
		t.Errorf("saved assignments = %v", amap)
	}
}

func TestRunCompare_MissingFile(t *testing.T) {
	resetCompareFlags(t)
	dir := t.TempDir()
	right := writeTasks(t, dir, "right.json", testutil.Task(1, "A", "2025-01-01", "2025-01-02"))

	cmd, _ := testCmd()
	err := runCompare(testApp("json"), cmd, []string{filepath.Join(dir, "nope.json"), right})
	if err == nil || !strings.Contains(err.Error(), "left programme") {
		t.Errorf("err = %v", err)
	}
}

func TestRunAttribute(t *testing.T) {
	resetCompareFlags(t)
	dir := t.TempDir()
	left := writeTasks(t, dir, "left.json", testutil.Task(1, "Excavate", "2025-01-06", "2025-01-10"))
	right := writeTasks(t, dir, "right.json", testutil.Task(1, "Excavate", "2025-01-06", "2025-01-15"))

	cmd, out := testCmd()
	if err := runCompare(testApp("json"), cmd, []string{left, right}); err != nil {
		t.Fatal(err)
	}
	resultPath := testutil.WriteFile(t, dir, "result.json", out.String())
	requestPath := testutil.WriteFile(t, dir, "request.yaml", `assignments:
  - row_key: "1|1|changed"
    cause_tag: neutral
    reason_code: weather
`)
	attributeSaveAssignments = filepath.Join(dir, "causes.json")

	cmd, out = testCmd()
	if err := runAttribute(testApp("json"), cmd, []string{resultPath, requestPath}); err != nil {
		t.Fatalf("runAttribute() error = %v", err)
	}

	var updated domain.CompareResult
	if err := json.Unmarshal(out.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Diffs[0].CauseTag != domain.CauseNeutral || updated.Diffs[0].ReasonCode != domain.ReasonWeather {
		t.Errorf("diff = %+v", updated.Diffs[0])
	}
	testutil.AssertFloat(t, "neutral slippage", updated.FaultAllocation.TaskSlippageDays.NeutralDays, 5)

	amap, err := parse.AssignmentsFile(attributeSaveAssignments)
	if err != nil {
		t.Fatal(err)
	}
	if amap["1|1|changed"].CauseTag != domain.CauseNeutral {
		t.Errorf("saved = %v", amap)
	}
}

func TestRunSeries(t *testing.T) {
	t.Cleanup(func() {
		seriesWorkers = 0
		seriesContinueOnError = false
	})
	dir := t.TempDir()
	rev0 := writeTasks(t, dir, "rev0.json", testutil.Task(1, "Frame", "2025-02-03", "2025-02-07"))
	rev1 := writeTasks(t, dir, "rev1.json", testutil.Task(1, "Frame", "2025-02-03", "2025-02-10"))
	rev2 := writeTasks(t, dir, "rev2.json", testutil.Task(1, "Frame", "2025-02-03", "2025-02-12"))
	seriesWorkers = 2

	cmd, out := testCmd()
	if err := runSeries(testApp("json"), cmd, []string{rev0, rev1, rev2}); err != nil {
		t.Fatalf("runSeries() error = %v", err)
	}

	var windows []domain.SeriesWindow
	if err := json.Unmarshal(out.Bytes(), &windows); err != nil {
		t.Fatal(err)
	}
	if len(windows) != 2 {
		t.Fatalf("windows = %d", len(windows))
	}
	testutil.AssertFloat(t, "window 0", windows[0].Summary.ProjectFinishDelayDays, 3)
	testutil.AssertFloat(t, "window 1", windows[1].Summary.ProjectFinishDelayDays, 2)
	testutil.AssertFloat(t, "cumulative", windows[1].CumulativeDelayDays, 5)
}

func TestRunSeries_PartialFailure(t *testing.T) {
	t.Cleanup(func() {
		seriesWorkers = 0
		seriesContinueOnError = false
	})
	dir := t.TempDir()
	rev0 := writeTasks(t, dir, "rev0.json", testutil.Task(1, "Frame", "2025-02-03", "2025-02-07"))
	rev1 := writeTasks(t, dir, "rev1.json", testutil.Task(1, "Frame", "2025-02-03", "2025-02-10"))
	missing := filepath.Join(dir, "rev2.json")
	seriesWorkers = 1
	seriesContinueOnError = true

	cmd, out := testCmd()
	err := runSeries(testApp("tsv"), cmd, []string{rev0, rev1, missing})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 5 {
		t.Fatalf("err = %v, want exit code 5", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.HasSuffix(lines[1], "\tok") {
		t.Errorf("first window = %q", lines[1])
	}
	if strings.HasSuffix(lines[2], "\tok") {
		t.Errorf("second window should fail: %q", lines[2])
	}
}

func TestRunVersion_JSON(t *testing.T) {
	versionJSON = true
	t.Cleanup(func() { versionJSON = false })

	cmd, out := testCmd()
	if err := runVersion(cmd, nil); err != nil {
		t.Fatal(err)
	}
	var info map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info["version"] != Version {
		t.Errorf("version = %v", info["version"])
	}
	commands, _ := info["supported_commands"].([]interface{})
	if len(commands) != 5 {
		t.Errorf("supported_commands = %v", commands)
	}
}
