package compiler

import (
	"fmt"
	"path/filepath"
)

// DefaultTempRoot is where intermediate artifacts go, relative to WorkDir.
const DefaultTempRoot = ".fontrecipe/tmp"

// LockRoot holds per-artifact lock files, relative to WorkDir. It does not
// follow TempRoot: builds sharing a working directory must share locks.
const LockRoot = ".fontrecipe/locks"

// Session is the explicit context of one build invocation. It is threaded
// through Build and the engine instead of relying on the process working
// directory.
//
// A Session is not safe for concurrent Builds.
type Session struct {
	// WorkDir is the directory relative artifact paths resolve against.
	WorkDir string

	// TempRoot holds intermediate artifacts. Relative to WorkDir unless absolute.
	TempRoot string

	// Cleanup removes temporary artifacts once nothing consumes them.
	Cleanup bool

	counter int
}

// NewSession returns a session rooted at workDir with cleanup enabled.
func NewSession(workDir string) *Session {
	return &Session{WorkDir: workDir, TempRoot: DefaultTempRoot, Cleanup: true}
}

// TempPath names the next temporary artifact: <TempRoot>/<NNNN>-<op><ext>.
// Names are assigned in fold order, so the same recipe gets the same names.
func (s *Session) TempPath(op, ext string) string {
	s.counter++
	return filepath.Join(s.tempRoot(), fmt.Sprintf("%04d-%s%s", s.counter, op, ext))
}

// Abs resolves an artifact path against WorkDir.
func (s *Session) Abs(p string) string {
	if filepath.IsAbs(p) || s.WorkDir == "" {
		return p
	}
	return filepath.Join(s.WorkDir, p)
}

// TempDir returns the absolute temp root.
func (s *Session) TempDir() string {
	return s.Abs(s.tempRoot())
}

// LockDir returns the directory holding per-artifact lock files.
func (s *Session) LockDir() string {
	return s.Abs(LockRoot)
}

func (s *Session) tempRoot() string {
	if s.TempRoot == "" {
		return DefaultTempRoot
	}
	return s.TempRoot
}

func (s *Session) reset() {
	s.counter = 0
}
