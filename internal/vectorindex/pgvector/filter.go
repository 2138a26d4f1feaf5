package pgvector

import (
	"fmt"
	"strings"

	"github.com/spigell/talentcore/internal/vectorindex"
)

// compileFilter renders f as a parameterized boolean SQL expression over the
// jsonb payload column. Every leaf is NULL-safe so NOT behaves like the
// in-process evaluator when a key is missing.
func compileFilter(f vectorindex.Filter) (string, []any, error) {
	var args []any
	sql, err := compileNode(f, &args)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func compileNode(f vectorindex.Filter, args *[]any) (string, error) {
	switch node := f.(type) {
	case nil:
		return "TRUE", nil
	case vectorindex.And:
		return compileGroup(node.Clauses, " AND ", "TRUE", args)
	case vectorindex.Or:
		return compileGroup(node.Clauses, " OR ", "FALSE", args)
	case vectorindex.Not:
		inner, err := compileNode(node.Clause, args)
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil
	case vectorindex.MatchValue:
		*args = append(*args, node.Key, vectorindex.ScalarString(node.Value))
		return "COALESCE(payload->>? = ?, FALSE)", nil
	case vectorindex.MatchAny:
		values := make([]string, len(node.Values))
		for i, v := range node.Values {
			values[i] = vectorindex.ScalarString(v)
		}
		*args = append(*args, node.Key, values)
		return "COALESCE(payload->>? IN ?, FALSE)", nil
	case vectorindex.Range:
		var bounds []string
		*args = append(*args, node.Key)
		if node.Gte != nil {
			bounds = append(bounds, "(payload->>?)::float8 >= ?")
			*args = append(*args, node.Key, *node.Gte)
		}
		if node.Lte != nil {
			bounds = append(bounds, "(payload->>?)::float8 <= ?")
			*args = append(*args, node.Key, *node.Lte)
		}
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(payload->?) = 'number' THEN %s ELSE FALSE END)", strings.Join(bounds, " AND ")), nil
	default:
		return "", fmt.Errorf("%w: unsupported node %T", vectorindex.ErrInvalidFilter, f)
	}
}

func compileGroup(clauses []vectorindex.Filter, op, empty string, args *[]any) (string, error) {
	if len(clauses) == 0 {
		return empty, nil
	}

	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		sql, err := compileNode(c, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, op) + ")", nil
}
