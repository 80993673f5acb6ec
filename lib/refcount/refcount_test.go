// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package refcount_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackerschott/cmesh-go/lib/refcount"
)

// P7: ref/unref round-trip.
func TestRefUnrefRoundTrip(t *testing.T) {
	t.Parallel()
	for n := 1; n <= 5; n++ {
		n := n
		t.Run("", func(t *testing.T) {
			t.Parallel()
			c := refcount.New()
			for i := 0; i < n; i++ {
				c.Ref()
			}
			torn := false
			for i := 0; i < n; i++ {
				c.Unref(func() { torn = true })
				require.False(t, torn)
			}
			c.Unref(func() { torn = true })
			assert.True(t, torn)
		})
	}
}

func TestRefAfterZeroPanics(t *testing.T) {
	t.Parallel()
	c := refcount.New()
	c.Unref(func() {})
	assert.Panics(t, func() { c.Ref() })
}
