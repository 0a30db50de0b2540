package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
)

// Compare orders two property values. Nil sorts before everything else,
// numbers compare numerically (numeric strings included), timestamps
// chronologically and anything else by its string form.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if af, bf, ok := numbers(a, b); ok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	if at, ok := domain.ToTime(a); ok {
		if bt, ok := domain.ToTime(b); ok {
			return at.Compare(bt)
		}
	}

	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func numbers(a, b any) (float64, float64, bool) {
	af, aok := domain.ToFloat(a)
	bf, bok := domain.ToFloat(b)

	switch {
	case aok && bok:
		return af, bf, true
	case aok:
		if s, ok := b.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return af, f, true
			}
		}
	case bok:
		if s, ok := a.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, bf, true
			}
		}
	}

	return 0, 0, false
}
