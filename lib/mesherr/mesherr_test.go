// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package mesherr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jackerschott/cmesh-go/lib/mesherr"
)

func TestIsMatchesWrappedSentinel(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("cmesh.SetTree: already committed: %w", mesherr.ContractViolation)
	assert.True(t, mesherr.Is(err, mesherr.ContractViolation))
	assert.False(t, mesherr.Is(err, mesherr.ConfigurationError))
}

func TestSentinelsAreDistinct(t *testing.T) {
	t.Parallel()
	kinds := []error{
		mesherr.ContractViolation,
		mesherr.ConfigurationError,
		mesherr.CommunicatorError,
		mesherr.Unsupported,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if i == j {
				continue
			}
			assert.False(t, mesherr.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
