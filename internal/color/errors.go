// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package color

import "errors"

// ErrIterationCapExceeded signals the brush fixpoint loop did not settle
// within the configured cap (spec.md §7 "IterationCapExceeded").
var ErrIterationCapExceeded = errors.New("color: brush fixpoint did not converge within iteration cap")
