// Package version compares dotted numeric bridge versions such as "0.2".
package version

import (
	"strconv"
	"strings"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
)

// Compare compares two dotted versions segment by segment. The shorter version
// is padded with "0" segments, so "0.2" and "0.2.0" are equal. It returns -1,
// 0 or +1, or a validation error if a segment is not a non-negative integer.
func Compare(a, b string) (int, error) {
	partsA, err := parse(a)
	if err != nil {
		return 0, err
	}
	partsB, err := parse(b)
	if err != nil {
		return 0, err
	}

	for len(partsA) < len(partsB) {
		partsA = append(partsA, 0)
	}
	for len(partsB) < len(partsA) {
		partsB = append(partsB, 0)
	}

	for i := range partsA {
		switch {
		case partsA[i] < partsB[i]:
			return -1, nil
		case partsA[i] > partsB[i]:
			return 1, nil
		}
	}
	return 0, nil
}

// Valid reports whether v can be compared.
func Valid(v string) bool {
	_, err := parse(v)
	return err == nil
}

func parse(v string) ([]uint64, error) {
	if v == "" {
		return nil, errors.NewValidationError("version is empty").WithField("version")
	}
	segments := strings.Split(v, ".")
	parts := make([]uint64, len(segments))
	for i, s := range segments {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, errors.NewValidationError("segment "+strconv.Quote(s)+" is not a number").
				WithField("version").
				WithValue(v)
		}
		parts[i] = n
	}
	return parts, nil
}
