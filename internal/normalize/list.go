// SPDX-License-Identifier: MIT
/*
Package normalize turns raw preference values into the bounded structs the
engine adapters accept. Every function is pure apart from file loading for
the file-backed namespaces.
*/
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ParseList splits raw on ';' and parses exactly n finite numbers. Any
// deviation rejects the whole list.
func ParseList(raw string, n int) ([]float64, error) {
	fields := strings.Split(raw, ";")
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d fields but got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %q is not a number", i, f)
		}
		out[i] = v
	}
	if floats.HasNaN(out) {
		return nil, errors.New("list contains NaN")
	}
	for i, v := range out {
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("field %d is not finite", i)
		}
	}
	return out, nil
}

// ParseIntList is ParseList for integer fields.
func ParseIntList(raw string, n int) ([]int, error) {
	fields := strings.Split(raw, ";")
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d fields but got %d", n, len(fields))
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("field %d: %q is not an integer", i, f)
		}
		out[i] = v
	}
	return out, nil
}

// FormatList joins values with ';' using the shortest representation that
// parses back to the same value.
func FormatList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}

func clamp[T int | float32 | float64](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
