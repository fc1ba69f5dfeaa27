package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render writes a result as stable text for golden comparison. Nodes are
// named by creation index and paths are relative to the work directory, so
// the output does not depend on key hashes, timing or the temp dir.
func Render(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	b.WriteString("graph:\n")
	for _, line := range result.Graph {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	b.WriteString("trace:\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&b, "  %d #%d %s %s", ev.Seq, ev.Node, ev.Op, ev.Status)
		if ev.Cached {
			b.WriteString(" (cached)")
		}
		if ev.SkippedBy != "" {
			fmt.Fprintf(&b, " by %s", ev.SkippedBy)
		}
		b.WriteString("\n")
	}

	b.WriteString("targets:\n")
	for _, path := range sortedKeys(result.Targets) {
		fmt.Fprintf(&b, "  %s %s\n", path, result.Targets[path])
	}

	fmt.Fprintf(&b, "temp left: %d\n", result.TempLeft)

	b.WriteString("artifacts:\n")
	for _, path := range sortedKeys(result.Artifacts) {
		fmt.Fprintf(&b, "  %s:\n", path)
		for _, line := range strings.Split(strings.TrimSuffix(result.Artifacts[path], "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario in a fresh temp dir and compares the
// rendered result against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check assertions as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, t.TempDir())
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Render(scenario.Name, result))
	return result, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
