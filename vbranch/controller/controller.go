// Package controller implements spec.md §4.J: a single-writer-at-a-time
// gate around every mutating virtual-branch operation for one project,
// grounded on gitbutler-branch/src/controller.rs's Controller, which wraps
// a tokio Semaphore(1) around each operation and only skips the permit
// when the caller explicitly opts out (project.ignore_project_semaphore).
package controller

import (
	"context"
	"os"

	"github.com/antgroup/zeta-workspace/internal/obslog"
	"golang.org/x/sync/semaphore"
)

// IgnoreSemaphore is the escape hatch mirroring the original's
// ignore_project_semaphore flag: passing true skips the permit entirely,
// for callers that already hold exclusive access (e.g. a read-only query
// running alongside a long write, or test harnesses).
type IgnoreSemaphore bool

const (
	UseSemaphore  IgnoreSemaphore = false
	SkipSemaphore IgnoreSemaphore = true
)

// traceEnv turns on the controller's step timing, the same on/off knob
// modules/trace.NewTracker's debugMode param leaves to its caller — here
// read once from the environment rather than threaded through every Do
// call site.
const traceEnv = "ZETA_WORKSPACE_TRACE"

// Controller serializes mutating operations against one project's virtual
// branch state. It holds no domain logic of its own; callers pass the
// actual operation as a closure to Do, the same shape as the original's
// per-method self.permit(...).await followed by the real call.
type Controller struct {
	sem   *semaphore.Weighted
	debug bool
}

// New returns a Controller allowing exactly one in-flight permit holder.
func New() *Controller {
	return &Controller{sem: semaphore.NewWeighted(1), debug: os.Getenv(traceEnv) != ""}
}

// Do runs fn while holding the project's single write permit, unless
// ignore is true. The permit is released before Do returns, regardless of
// whether fn returned an error, matching the original's permit scope
// (acquired, then dropped, around exactly one operation). Acquiring the
// permit and running fn are each timed through an obslog.Tracker (spec.md
// §5: every suspension point in a mutating op, starting with the
// semaphore acquire itself, is a point worth accounting for).
func Do[T any](ctx context.Context, c *Controller, ignore IgnoreSemaphore, fn func(ctx context.Context) (T, error)) (T, error) {
	tr := obslog.NewTracker(c.debug)
	if !ignore {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			var zero T
			return zero, err
		}
		defer c.sem.Release(1)
		tr.StepNext("acquire project permit")
	}
	result, err := fn(ctx)
	tr.StepNext("run mutating operation")
	return result, err
}

// TryDo is Do's non-blocking counterpart: it returns immediately with
// false if another operation currently holds the permit, instead of
// waiting. Unused by the original (which only ever awaits the permit) but
// useful for a UI layer that wants to surface "another operation is in
// progress" rather than block the caller.
func TryDo[T any](ctx context.Context, c *Controller, ignore IgnoreSemaphore, fn func(ctx context.Context) (T, error)) (result T, acquired bool, err error) {
	tr := obslog.NewTracker(c.debug)
	if ignore {
		result, err = fn(ctx)
		tr.StepNext("run mutating operation (semaphore skipped)")
		return result, true, err
	}
	if !c.sem.TryAcquire(1) {
		var zero T
		return zero, false, nil
	}
	defer c.sem.Release(1)
	tr.StepNext("acquire project permit")
	result, err = fn(ctx)
	tr.StepNext("run mutating operation")
	return result, true, err
}
