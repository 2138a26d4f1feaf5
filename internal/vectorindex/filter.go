package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidFilter is returned for filters that cannot be evaluated.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter is a boolean expression over point payloads. The concrete node types
// are And, Or, Not, MatchValue, MatchAny and Range. A nil Filter matches everything.
type Filter interface {
	filterNode()
}

// And matches when every clause matches. An empty And matches everything.
type And struct {
	Clauses []Filter
}

// Or matches when at least one clause matches.
type Or struct {
	Clauses []Filter
}

// Not inverts its clause.
type Not struct {
	Clause Filter
}

// MatchValue matches when payload[Key] equals Value.
type MatchValue struct {
	Key   string
	Value any
}

// MatchAny matches when payload[Key] equals any of Values.
type MatchAny struct {
	Key    string
	Values []any
}

// Range matches numeric payload values within the inclusive bounds that are set.
type Range struct {
	Key string
	Gte *float64
	Lte *float64
}

func (And) filterNode()        {}
func (Or) filterNode()         {}
func (Not) filterNode()        {}
func (MatchValue) filterNode() {}
func (MatchAny) filterNode()   {}
func (Range) filterNode()      {}

// AllOf builds an And node, dropping nil clauses.
func AllOf(clauses ...Filter) And {
	return And{Clauses: compact(clauses)}
}

// AnyOf builds an Or node, dropping nil clauses.
func AnyOf(clauses ...Filter) Or {
	return Or{Clauses: compact(clauses)}
}

// Negate builds a Not node.
func Negate(clause Filter) Not {
	return Not{Clause: clause}
}

// Eq builds a MatchValue node.
func Eq(key string, value any) MatchValue {
	return MatchValue{Key: key, Value: value}
}

// In builds a MatchAny node from strings.
func In(key string, values ...string) MatchAny {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return MatchAny{Key: key, Values: anyValues}
}

func compact(clauses []Filter) []Filter {
	out := make([]Filter, 0, len(clauses))
	for _, c := range clauses {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Validate reports structural problems in f.
func Validate(f Filter) error {
	switch node := f.(type) {
	case nil:
		return nil
	case And:
		for _, c := range node.Clauses {
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	case Or:
		if len(node.Clauses) == 0 {
			return fmt.Errorf("%w: empty or", ErrInvalidFilter)
		}
		for _, c := range node.Clauses {
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	case Not:
		if node.Clause == nil {
			return fmt.Errorf("%w: empty not", ErrInvalidFilter)
		}
		return Validate(node.Clause)
	case MatchValue:
		if err := validateKey(node.Key); err != nil {
			return err
		}
		if !isScalar(node.Value) {
			return fmt.Errorf("%w: non-scalar value %T for %q", ErrInvalidFilter, node.Value, node.Key)
		}
		return nil
	case MatchAny:
		if err := validateKey(node.Key); err != nil {
			return err
		}
		if len(node.Values) == 0 {
			return fmt.Errorf("%w: empty value set for %q", ErrInvalidFilter, node.Key)
		}
		for _, v := range node.Values {
			if !isScalar(v) {
				return fmt.Errorf("%w: non-scalar value %T for %q", ErrInvalidFilter, v, node.Key)
			}
		}
		return nil
	case Range:
		if err := validateKey(node.Key); err != nil {
			return err
		}
		if node.Gte == nil && node.Lte == nil {
			return fmt.Errorf("%w: unbounded range for %q", ErrInvalidFilter, node.Key)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported node %T", ErrInvalidFilter, f)
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidFilter)
	}
	for _, r := range key {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: bad key %q", ErrInvalidFilter, key)
		}
	}
	return nil
}

// Matches evaluates f against payload. Missing keys never match a leaf.
func Matches(f Filter, payload Payload) bool {
	switch node := f.(type) {
	case nil:
		return true
	case And:
		for _, c := range node.Clauses {
			if !Matches(c, payload) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range node.Clauses {
			if Matches(c, payload) {
				return true
			}
		}
		return false
	case Not:
		return !Matches(node.Clause, payload)
	case MatchValue:
		v, ok := payload[node.Key]
		return ok && ScalarEqual(v, node.Value)
	case MatchAny:
		v, ok := payload[node.Key]
		if !ok {
			return false
		}
		for _, candidate := range node.Values {
			if ScalarEqual(v, candidate) {
				return true
			}
		}
		return false
	case Range:
		v, ok := payload[node.Key]
		if !ok {
			return false
		}
		f, ok := toFloat(v)
		if !ok {
			return false
		}
		if node.Gte != nil && f < *node.Gte {
			return false
		}
		if node.Lte != nil && f > *node.Lte {
			return false
		}
		return true
	default:
		return false
	}
}

// ScalarEqual compares payload scalars. Numbers compare by value across integer
// and float types; strings compare exactly.
func ScalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

// ScalarString renders a scalar the way it appears in a JSON payload read as text.
func ScalarString(v any) string {
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
