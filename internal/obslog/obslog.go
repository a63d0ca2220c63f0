// Package obslog provides the structured logging and per-operation step
// timing used across the virtual-branch packages, styled directly on
// modules/trace: logrus for leveled diagnostics, a Tracker for step timing.
package obslog

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func location(skip int) (string, int) {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "?", line
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?", line
	}
	return fn.Name(), line
}

// Errorf logs msg at the caller's site and returns it as a plain error,
// matching modules/trace.Errorf's shape so call sites read identically
// whether they sit in the retained object-model tree or in vbranch.
func Errorf(format string, a ...any) error {
	fn, line := location(2)
	msg := fmt.Sprintf(format, a...)
	logrus.Error(fn, ":", line, " ", msg)
	return errors.New(msg)
}

// Warnf logs a recoverable condition — used by hunkdiff.Collect when a path
// read fails and the pass continues per spec.md §4.C's failure mode.
func Warnf(format string, a ...any) {
	fn, line := location(2)
	logrus.Warn(fn, ":", line, " ", fmt.Sprintf(format, a...))
}

// Tracker times the suspension-point sequence of one mutating operation
// (spec.md §5), emitting a step line per call to StepNext when debug is on.
type Tracker struct {
	debug bool
	last  time.Time
}

func NewTracker(debugMode bool) *Tracker {
	return &Tracker{debug: debugMode, last: time.Now()}
}

func (t *Tracker) StepNext(format string, a ...any) {
	if !t.debug {
		return
	}
	s := fmt.Sprintf(format, a...)
	now := time.Now()
	fmt.Fprintf(os.Stderr, "\x1b[35m* %s use time: %v\x1b[0m\n", strings.Trim(s, "\n"), now.Sub(t.last))
	t.last = now
}
