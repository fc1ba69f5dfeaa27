package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
		})
	}
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return scenario
}

func TestRun_FailureSkipsOnlyDependents(t *testing.T) {
	scenario := mustParse(t, `
name: parallel_failure
description: "A failure in one family leaves the other family alone"
recipe:
  A.ttf:
    - source: A.designspace
    - operation: buildTTF
    - operation: fix
  A.woff2:
    - source: A.ttf
    - operation: compress
  B.ttf:
    - source: B.designspace
    - operation: buildTTF
    - operation: fix
    - operation: autohint
sources: [A.designspace, B.designspace]
fail: [fix]
workers: 4
assertions:
  - type: target_status
    target: A.woff2
    status: skipped
  - type: op_count
    op: compress
    count: 0
  - type: op_count
    op: autohint
    count: 0
`)

	result, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion errors: %v", result.Errors)

	assert.Equal(t, "failed", result.Targets["A.ttf"])
	assert.Equal(t, "skipped", result.Targets["B.ttf"])
	assert.Equal(t, "skipped", result.Targets["A.woff2"])
	for _, ev := range result.Trace {
		if ev.Status == "skipped" {
			assert.NotEmpty(t, ev.SkippedBy, "node #%d", ev.Node)
		}
	}
}

func TestRun_IndependentFamilyBuilds(t *testing.T) {
	scenario := mustParse(t, `
name: independent
description: "Only the failing family is lost"
recipe:
  A.ttf:
    - source: A.designspace
    - operation: buildOTF
  B.ttf:
    - source: B.designspace
    - operation: buildTTF
    - operation: autohint
sources: [A.designspace, B.designspace]
fail: [buildOTF]
workers: 2
assertions:
  - type: target_status
    target: A.ttf
    status: failed
  - type: target_status
    target: B.ttf
    status: built
  - type: artifact
    path: B.ttf
    content: "source B.designspace\nbuildTTF\nautohint\n"
`)

	result, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
	assert.Equal(t, 0, result.TempLeft)
}

func TestRun_SelectTargets(t *testing.T) {
	scenario := mustParse(t, `
name: select
description: "Selecting a target builds only its ancestors"
recipe:
  A.ttf:
    - source: A.designspace
    - operation: buildTTF
  B.ttf:
    - source: B.designspace
    - operation: buildTTF
targets: [B.ttf]
sources: [A.designspace, B.designspace]
assertions:
  - type: op_count
    op: buildTTF
    count: 1
  - type: artifact
    path: A.ttf
    absent: true
`)

	result, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
	assert.Equal(t, map[string]string{"B.ttf": "built"}, result.Targets)
	assert.Len(t, result.Graph, 1)
}

func TestRun_KeepTemps(t *testing.T) {
	scenario := mustParse(t, `
name: keep
description: "Temps stay when cleanup is off"
recipe:
  A.ttf:
    - source: A.designspace
    - operation: buildTTF
    - operation: fix
keep_temps: true
sources: [A.designspace]
assertions:
  - type: artifact
    path: .fontrecipe/tmp/0001-buildTTF.ttf
    content: "source A.designspace\nbuildTTF\n"
`)

	result, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
	assert.Equal(t, 1, result.TempLeft)
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	scenario := mustParse(t, `
name: wrong
description: "Assertions that do not hold are reported"
recipe:
  A.ttf:
    - source: A.designspace
    - operation: buildTTF
sources: [A.designspace]
assertions:
  - type: target_status
    target: A.ttf
    status: failed
  - type: op_count
    op: buildTTF
    count: 2
`)

	result, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: target_status")
	assert.Contains(t, result.Errors[1], "Expected: 2 executions of buildTTF")
}

func TestRun_CompileError(t *testing.T) {
	scenario := mustParse(t, `
name: unknown_op
description: "Unknown operations stop the scenario before anything runs"
recipe:
  A.ttf:
    - source: A.designspace
    - operation: buildMagic
sources: [A.designspace]
assertions:
  - type: op_count
    op: buildMagic
    count: 0
`)

	_, err := Run(scenario, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile recipe")
	assert.Contains(t, err.Error(), "buildMagic")
}
