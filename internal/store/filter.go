package store

import (
	"fmt"
	"strings"

	"github.com/monitordev/monitor/internal/errors"
)

// Op is a filter comparison operator.
type Op int

// Operators.
const (
	// OpEq matches documents whose field equals the value.
	OpEq Op = iota
	// OpIn matches documents whose field is one of the values.
	OpIn
	// OpGte matches documents whose field is >= the value.
	OpGte
	// OpContainsAll matches documents whose array field contains
	// every value.
	OpContainsAll
	// OpPermission matches documents whose permissions map grants the
	// user one of the listed levels.
	OpPermission
)

// Cond is one predicate over a dotted JSON field path.
type Cond struct {
	Path   string
	Op     Op
	Value  any
	Values []string
}

// Filter is a conjunction of predicates. A nil filter matches all
// documents.
type Filter []Cond

// Eq returns an equality predicate.
func Eq(path string, value any) Cond {
	return Cond{Path: path, Op: OpEq, Value: value}
}

// In returns a membership predicate. An empty value set matches
// nothing.
func In(path string, values []string) Cond {
	return Cond{Path: path, Op: OpIn, Values: values}
}

// Gte returns a greater-or-equal predicate.
func Gte(path string, value any) Cond {
	return Cond{Path: path, Op: OpGte, Value: value}
}

// ContainsAll returns an array containment predicate.
func ContainsAll(path string, values []string) Cond {
	return Cond{Path: path, Op: OpContainsAll, Values: values}
}

// UserHasPermission returns a predicate matching documents whose
// permissions map grants userID one of the given level names. The
// user id is bound as an argument, never spliced into a JSON path.
func UserHasPermission(userID string, levels []string) Cond {
	return Cond{Path: "permissions", Op: OpPermission, Value: userID, Values: levels}
}

// compile renders the filter as a WHERE clause with bound args. The
// clause is empty for an empty filter.
func (f Filter) compile() (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for _, cond := range f {
		if err := validatePath(cond.Path); err != nil {
			return "", nil, err
		}
		field := fmt.Sprintf("json_extract(data, '$.%s')", cond.Path)
		switch cond.Op {
		case OpEq:
			clauses = append(clauses, field+" = ?")
			args = append(args, cond.Value)
		case OpGte:
			clauses = append(clauses, field+" >= ?")
			args = append(args, cond.Value)
		case OpIn:
			if len(cond.Values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			placeholders := strings.Repeat("?, ", len(cond.Values))
			clauses = append(clauses,
				fmt.Sprintf("%s IN (%s)", field, placeholders[:len(placeholders)-2]))
			for _, v := range cond.Values {
				args = append(args, v)
			}
		case OpContainsAll:
			for _, v := range cond.Values {
				clauses = append(clauses, fmt.Sprintf(
					"EXISTS (SELECT 1 FROM json_each(data, '$.%s') WHERE json_each.value = ?)",
					cond.Path))
				args = append(args, v)
			}
		case OpPermission:
			if len(cond.Values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			placeholders := strings.Repeat("?, ", len(cond.Values))
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(data, '$.permissions') WHERE json_each.key = ? AND json_each.value IN (%s))",
				placeholders[:len(placeholders)-2]))
			args = append(args, cond.Value)
			for _, v := range cond.Values {
				args = append(args, v)
			}
		default:
			return "", nil, errors.Newf(errors.KindInternal, "unknown filter op %d", cond.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// validatePath rejects field paths that could escape the json_extract
// expression. Paths come from code, not users, so this is a guard
// against programming mistakes rather than input sanitization.
func validatePath(path string) error {
	if path == "" {
		return errors.New(errors.KindInternal, "empty filter path")
	}
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return errors.Newf(errors.KindInternal, "invalid filter path %q", path)
		}
	}
	return nil
}
