package enums

import (
	"fmt"
	"slices"
)

func member[T ~string](known []T, v T) bool {
	return slices.Contains(known, v)
}

// parse matches raw exactly against known. label names the enum in the error.
func parse[T ~string](known []T, raw, label string) (T, error) {
	if v := T(raw); member(known, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", label, raw)
}
