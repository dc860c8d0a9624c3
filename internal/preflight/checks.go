// Package preflight provides input validation checks run before analysis.
package preflight

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int64  // Required value (if applicable)
	Actual   int64  // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks for a test directory and the
// directory outputs go to.
func RunAll(testDir, outDir string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 6),
		Passed: true,
	}

	dirCheck := checkTestDir(testDir)
	result.add(dirCheck)
	if !dirCheck.Passed {
		return result
	}

	result.add(checkInputFile(testDir, ingest.ByteTimeFile, true))
	result.add(checkInputFile(testDir, ingest.PositionFile, false))
	result.add(checkInputFile(testDir, ingest.LatencyFile, false))
	result.add(checkInputFile(testDir, ingest.SocketFile, false))

	if outDir == "" {
		outDir = testDir
	}
	result.add(checkWritable(outDir))

	return result
}

// checkTestDir verifies the test directory exists.
func checkTestDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{
			Name:    "test_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot access %s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "test_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}
	return Check{
		Name:    "test_dir",
		Passed:  true,
		Message: dir,
	}
}

// checkInputFile verifies an input file is present and not empty. Missing
// optional files only warn.
func checkInputFile(dir, name string, required bool) Check {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		msg := "missing"
		if !required {
			msg = "missing (optional)"
		}
		return Check{
			Name:    name,
			Passed:  !required,
			Warning: !required,
			Message: msg,
		}
	}
	if info.IsDir() {
		return Check{
			Name:    name,
			Passed:  false,
			Message: "is a directory",
		}
	}
	if info.Size() == 0 {
		return Check{
			Name:    name,
			Passed:  !required,
			Warning: true,
			Message: "empty file",
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Actual:  info.Size(),
		Message: fmt.Sprintf("%d bytes", info.Size()),
	}
}

// checkWritable verifies outputs can be created in dir.
func checkWritable(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s not writable: %v", dir, err),
		}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return Check{
		Name:    "output_dir",
		Passed:  true,
		Message: fmt.Sprintf("%s writable", dir),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	FprintResults(os.Stdout, result)
}

// FprintResults prints the preflight check results to w.
func FprintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "test_dir":
		return "pass the directory holding the test's JSON files"
	case ingest.ByteTimeFile:
		return "the test did not record per-stream progress; re-run the measurement"
	case "output_dir":
		return "choose another directory with -out"
	default:
		return "see documentation"
	}
}
