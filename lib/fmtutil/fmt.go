// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fmtutil holds small fmt.Formatter helpers shared by the
// textui package.
package fmtutil

import (
	"fmt"
	"strings"
)

// FmtStateString returns the fmt.Printf format string that produced a
// given fmt.State and verb, so a custom Format method can forward its
// flags/width/precision to an inner printer.Fprintf call.
func FmtStateString(st fmt.State, verb rune) string {
	var ret strings.Builder
	ret.WriteByte('%')
	for _, flag := range []int{'-', '+', '#', ' ', '0'} {
		if st.Flag(flag) {
			ret.WriteByte(byte(flag))
		}
	}
	if width, ok := st.Width(); ok {
		fmt.Fprintf(&ret, "%v", width)
	}
	if prec, ok := st.Precision(); ok {
		if prec == 0 {
			ret.WriteByte('.')
		} else {
			fmt.Fprintf(&ret, ".%v", prec)
		}
	}
	ret.WriteRune(verb)
	return ret.String()
}
