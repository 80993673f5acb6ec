// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mesherr defines the error kinds from spec.md §7:
// ContractViolation, ConfigurationError, CommunicatorError, and
// Unsupported. Call sites wrap one of the sentinel errors with
// fmt.Errorf("...: %w", Kind) so callers can branch with errors.Is
// while still getting a specific message.
package mesherr

import "errors"

// ContractViolation covers null arguments, operations attempted in
// the wrong lifecycle phase, duplicate partition setup, mismatched
// tree dimensions, and invalid tree ids. The library treats these as
// assertion failures: callers that hit one have a bug.
var ContractViolation = errors.New("contract violation")

// ConfigurationError covers commit without a communicator, commit
// with zero trees, and similar "this cmesh can never be made valid as
// configured" failures.
var ConfigurationError = errors.New("configuration error")

// CommunicatorError wraps a transport-level failure surfaced verbatim
// from a Communicator's Dup/Rank/Size.
var CommunicatorError = errors.New("communicator error")

// Unsupported covers requests for functionality this revision
// deliberately does not implement for some inputs, e.g. uniform_bounds
// on a cmesh containing Pyramid trees.
var Unsupported = errors.New("unsupported")

// Is reports whether err wraps kind (one of the four sentinels above).
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
