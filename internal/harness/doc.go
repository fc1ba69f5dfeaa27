// Package harness runs end-to-end build scenarios.
//
// A scenario compiles an inline recipe against the fake operation catalogue
// from testutil and runs it through the real engine, then checks the
// outcome with assertions and an optional golden rendering.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	recipe:
//	  Foo.ttf:
//	    - source: Foo.designspace
//	    - operation: buildTTF
//	sources: [Foo.designspace]
//	fail: [fix]
//	workers: 1
//	fail_fast: false
//	assertions:
//	  - type: target_status
//	    target: Foo.ttf
//	    status: built
//	  - type: artifact
//	    path: Foo.ttf
//	    content: "source Foo.designspace\nbuildTTF\n"
//	  - type: final_state
//	    table: runs
//	    where: { id: test-run-default }
//	    expect: { status: succeeded }
//
// # Assertion Types
//
//   - target_status: Verifies a target was built, failed or skipped
//   - artifact: Verifies a file's content, or that it is absent
//   - op_count: Verifies an operation executed exactly N times
//   - op_order: Verifies operations first executed in the given order
//   - final_state: Queries a history table and verifies expected values
//
// # Deterministic Testing
//
// Scenarios default to one worker, so dispatch follows graph creation
// order and traces are reproducible. Each run uses a fixed run ID and a
// fresh in-memory store. Fake operations write the chain of steps that
// made an artifact as its content.
package harness
