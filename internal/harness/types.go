package harness

// TraceEvent is one node outcome, in the order the engine stamped it.
// Nodes are named by creation index so traces do not depend on key hashes.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Node      int    `json:"node"`
	Op        string `json:"op"`
	Output    string `json:"output"`
	Status    string `json:"status"`
	Cached    bool   `json:"cached,omitempty"`
	SkippedBy string `json:"skipped_by,omitempty"` // "#<index>" of the failed root
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Graph is the compiled graph, one line per node.
	Graph []string `json:"graph"`

	// Trace holds every node outcome in stamp order.
	Trace []TraceEvent `json:"trace"`

	// Calls lists executed operation names in start order. Cached nodes
	// do not appear.
	Calls []string `json:"calls"`

	// Targets maps each selected target to built, failed or skipped.
	Targets map[string]string `json:"targets"`

	// Artifacts holds the content of every target file present after the run.
	Artifacts map[string]string `json:"artifacts"`

	// TempLeft counts files left under the temp root.
	TempLeft int `json:"temp_left"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Targets:   make(map[string]string),
		Artifacts: make(map[string]string),
		Errors:    []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Event returns the trace event for the node with the given creation index.
func (r *Result) Event(node int) (TraceEvent, bool) {
	for _, e := range r.Trace {
		if e.Node == node {
			return e, true
		}
	}
	return TraceEvent{}, false
}
