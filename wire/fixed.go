// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "strconv"

// Fixed is the protocol's signed 24.8 fixed-point number: 24 bits of
// magnitude and 8 fractional bits, stored as the raw bit pattern in a
// signed 32-bit integer. One wire word.
type Fixed int32

// FixedFromInt converts a whole number to fixed point.
func FixedFromInt(value int32) Fixed {
	return Fixed(value * 256)
}

// FixedFromFloat converts a float to fixed point, truncating toward
// zero any precision beyond 1/256.
func FixedFromFloat(value float64) Fixed {
	return Fixed(value * 256)
}

// Float returns the value as a float64.
func (f Fixed) Float() float64 {
	return float64(f) / 256
}

// Int returns the whole part, truncated toward zero.
func (f Fixed) Int() int32 {
	return int32(f) / 256
}

// IsInt reports whether the value has no fractional part.
func (f Fixed) IsInt() bool {
	return f&255 == 0
}

func (f Fixed) String() string {
	return strconv.FormatFloat(f.Float(), 'g', -1, 64)
}
