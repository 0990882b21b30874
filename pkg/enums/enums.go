// Package enums holds the string-backed domain enumerations persisted in the
// database and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

func isMember[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parseMember[T ~string](set []T, raw, kind string) (T, error) {
	if v := T(raw); isMember(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
