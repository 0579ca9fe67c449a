// Package filter describes metadata predicates applied to k-NN queries.
package filter

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// MaxConditions limits predicates per filter.
const MaxConditions = 32

// Op is a predicate operator.
type Op string

// Supported operators.
const (
	OpEq Op = "eq"
	OpNe Op = "ne"
)

// Condition is a single per-key predicate over a canonical metadata value.
type Condition struct {
	key      string
	operator Op
	value    string
}

// Key returns the metadata key the predicate applies to.
func (c Condition) Key() string { return c.key }

// Operator returns the predicate operator.
func (c Condition) Operator() Op { return c.operator }

// Value returns the canonical form of the predicate value (see Canon).
func (c Condition) Value() string { return c.value }

// Filter is a conjunction of per-key predicates.
// The zero value matches every document.
type Filter struct {
	conditions []Condition
}

// New builds a filter from equality and inequality predicates.
// Values are canonicalized with Canon. Conditions are ordered by key and
// operator so that equal filters compile to identical store queries.
func New(eq map[string]any, ne map[string]any) (Filter, error) {
	total := len(eq) + len(ne)
	if total == 0 {
		return Filter{}, nil
	}
	if total > MaxConditions {
		return Filter{}, fmt.Errorf("filter has %d conditions, max is %d", total, MaxConditions)
	}

	conds := make([]Condition, 0, total)
	for _, group := range []struct {
		op     Op
		values map[string]any
	}{
		{OpEq, eq},
		{OpNe, ne},
	} {
		for k, v := range group.values {
			if k == "" {
				return Filter{}, errors.New("filter key must not be empty")
			}
			cv, err := Canon(v)
			if err != nil {
				return Filter{}, fmt.Errorf("filter key %q: %w", k, err)
			}
			conds = append(conds, Condition{key: k, operator: group.op, value: cv})
		}
	}

	sort.Slice(conds, func(i, j int) bool {
		if conds[i].key != conds[j].key {
			return conds[i].key < conds[j].key
		}
		return conds[i].operator < conds[j].operator
	})

	return Filter{conditions: conds}, nil
}

// Conditions returns a copy of the predicates in deterministic order.
func (f Filter) Conditions() []Condition {
	out := make([]Condition, len(f.conditions))
	copy(out, f.conditions)
	return out
}

// IsEmpty reports whether the filter matches every document.
func (f Filter) IsEmpty() bool { return len(f.conditions) == 0 }

// Floats up to 2^53 hold exact integers; above that FormatInt would
// fabricate digits the value never had.
const maxExactFloatInt = float64(1 << 53)

// Canon formats a scalar metadata value in its canonical indexed form.
// The type prefix keeps strings distinct from numbers and booleans, and
// integral floats compare equal to the matching integer: JSON decoding
// yields float64 for every number, while Go callers usually pass int.
func Canon(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return "s:" + t, nil
	case bool:
		return "b:" + strconv.FormatBool(t), nil
	case int:
		return "n:" + strconv.FormatInt(int64(t), 10), nil
	case int8:
		return "n:" + strconv.FormatInt(int64(t), 10), nil
	case int16:
		return "n:" + strconv.FormatInt(int64(t), 10), nil
	case int32:
		return "n:" + strconv.FormatInt(int64(t), 10), nil
	case int64:
		return "n:" + strconv.FormatInt(t, 10), nil
	case uint:
		return "n:" + strconv.FormatUint(uint64(t), 10), nil
	case uint8:
		return "n:" + strconv.FormatUint(uint64(t), 10), nil
	case uint16:
		return "n:" + strconv.FormatUint(uint64(t), 10), nil
	case uint32:
		return "n:" + strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return "n:" + strconv.FormatUint(t, 10), nil
	case float32:
		return "n:" + canonFloat(float64(t)), nil
	case float64:
		return "n:" + canonFloat(t), nil
	default:
		return "", fmt.Errorf("unsupported metadata value type %T", v)
	}
}

func canonFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < maxExactFloatInt {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
