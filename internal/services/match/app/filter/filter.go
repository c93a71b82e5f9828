// Package filter provides AIP-160 filter expression parsing and in-memory
// predicate evaluation. Visibility filtering already happens after the
// storage query, so filters are applied to loaded records rather than
// translated to SQL.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// FieldType describes a supported filter field type.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
)

// Fields defines filterable fields and their types.
type Fields map[string]FieldType

// Values is one record's field values, keyed by filter field name. String
// fields carry string values, int fields int64 values.
type Values map[string]any

// Predicate reports whether a record matches the parsed filter.
type Predicate func(Values) bool

// Compile parses an AIP-160 filter expression for the provided fields and
// returns a predicate. An empty filter matches everything.
func Compile(filterStr string, fields Fields) (Predicate, error) {
	if strings.TrimSpace(filterStr) == "" {
		return func(Values) bool { return true }, nil
	}

	decls, err := declarations(fields)
	if err != nil {
		return nil, err
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}

	return compileExpr(filter.CheckedExpr.Expr, fields)
}

func declarations(fields Fields) (*filtering.Declarations, error) {
	decls := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, kind := range fields {
		switch kind {
		case FieldString:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeString))
		case FieldInt:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeInt))
		default:
			return nil, fmt.Errorf("unsupported field type for %s", name)
		}
	}
	return filtering.NewDeclarations(decls...)
}

func compileExpr(e *expr.Expr, fields Fields) (Predicate, error) {
	if e == nil {
		return func(Values) bool { return true }, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return compileCall(kind.CallExpr, fields)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func compileCall(call *expr.Expr_Call, fields Fields) (Predicate, error) {
	switch call.Function {
	case "_&&_", "AND":
		return compileBinary(call.Args, fields, func(left, right bool) bool { return left && right })
	case "_||_", "OR":
		return compileBinary(call.Args, fields, func(left, right bool) bool { return left || right })
	case "_!_", "NOT":
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := compileExpr(call.Args[0], fields)
		if err != nil {
			return nil, err
		}
		return func(v Values) bool { return !inner(v) }, nil
	case "_==_", "=":
		return compileComparison(call.Args, fields, "=")
	case "_!=_", "!=":
		return compileComparison(call.Args, fields, "!=")
	case "_<_", "<":
		return compileComparison(call.Args, fields, "<")
	case "_<=_", "<=":
		return compileComparison(call.Args, fields, "<=")
	case "_>_", ">":
		return compileComparison(call.Args, fields, ">")
	case "_>=_", ">=":
		return compileComparison(call.Args, fields, ">=")
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func compileBinary(args []*expr.Expr, fields Fields, combine func(bool, bool) bool) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("binary operator requires 2 arguments")
	}
	left, err := compileExpr(args[0], fields)
	if err != nil {
		return nil, err
	}
	right, err := compileExpr(args[1], fields)
	if err != nil {
		return nil, err
	}
	return func(v Values) bool { return combine(left(v), right(v)) }, nil
}

func compileComparison(args []*expr.Expr, fields Fields, op string) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	kind, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return nil, err
	}

	switch kind {
	case FieldString:
		want, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %s expects a string value", field)
		}
		switch op {
		case "=":
			return func(v Values) bool { got, _ := v[field].(string); return got == want }, nil
		case "!=":
			return func(v Values) bool { got, _ := v[field].(string); return got != want }, nil
		default:
			return nil, fmt.Errorf("operator %s is not supported for string field %s", op, field)
		}
	case FieldInt:
		want, ok := toInt64(value)
		if !ok {
			return nil, fmt.Errorf("field %s expects an integer value", field)
		}
		return func(v Values) bool {
			got, ok := toInt64(v[field])
			if !ok {
				return false
			}
			switch op {
			case "=":
				return got == want
			case "!=":
				return got != want
			case "<":
				return got < want
			case "<=":
				return got <= want
			case ">":
				return got > want
			case ">=":
				return got >= want
			default:
				return false
			}
		}, nil
	default:
		return nil, fmt.Errorf("unsupported field type for %s", field)
	}
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	default:
		return nil, fmt.Errorf("expected constant, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}
