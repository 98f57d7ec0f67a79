// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package paint

import "errors"

// ErrTaskExecutionCapExceeded signals a PaintingTask was re-run more times
// than config.Config.TaskExecutionCap allows without settling — typically
// a caller/callee pair whose field-effect feedback never stabilizes
// (spec.md §5 Concurrency & Resource Model, §7).
var ErrTaskExecutionCapExceeded = errors.New("paint: task execution cap exceeded")

// ErrTaskTimeout signals one PaintingTask exceeded config.Config.TaskTimeout.
// It is method-scoped: the session logs it and moves on, unlike the
// session-wide context cancellation it would otherwise be indistinguishable
// from by error value.
var ErrTaskTimeout = errors.New("paint: task exceeded its execution deadline")

// ErrClassNotFound and ErrMethodNotFound mirror classfile's sentinels
// (spec.md §7) so a session-level failure to resolve the analysis entry
// point is distinguishable from an internal assertion failure.
var (
	ErrClassNotFound  = errors.New("paint: entry class not found")
	ErrMethodNotFound = errors.New("paint: entry method not found")
)
