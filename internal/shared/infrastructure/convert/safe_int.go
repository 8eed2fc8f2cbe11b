// Package convert provides checked numeric conversions.
package convert

import "fmt"

// IntToUintSafe converts an int to uint, panicking if negative.
// Use this only for values that are guaranteed by business logic to be non-negative.
func IntToUintSafe(v int) uint {
	if v < 0 {
		panic(fmt.Sprintf("cannot convert negative int to uint: %d", v))
	}
	return uint(v)
}

// MinorToMajor converts an amount in minor currency units (cents) to major
// units for display and storage in decimal columns.
func MinorToMajor(minor int64) float64 {
	return float64(minor) / 100
}
