package sqlite

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/louisbranch/statecraft/internal/services/chronicle/storage"
)

// condition is a SQL WHERE fragment with positional parameters.
type condition struct {
	clause string
	params []any
}

// archiveColumns maps filter identifiers to archive columns.
var archiveColumns = map[string]string{
	"session_id": "session_id",
	"id":         "id",
	"type":       "type",
	"raw_type":   "raw_type",
	"priority":   "priority",
	"zone_id":    "zone_id",
	"tick":       "tick",
	"created_at": "created_at",
}

func archiveDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("session_id", filtering.TypeString),
		filtering.DeclareIdent("id", filtering.TypeString),
		filtering.DeclareIdent("type", filtering.TypeString),
		filtering.DeclareIdent("raw_type", filtering.TypeString),
		filtering.DeclareIdent("priority", filtering.TypeString),
		filtering.DeclareIdent("zone_id", filtering.TypeString),
		filtering.DeclareIdent("tick", filtering.TypeInt),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// parseFilter translates an AIP-160 expression into a WHERE condition. A
// blank filter matches everything.
func parseFilter(raw string) (condition, error) {
	if strings.TrimSpace(raw) == "" {
		return condition{}, nil
	}
	decls, err := archiveDeclarations()
	if err != nil {
		return condition{}, fmt.Errorf("create declarations: %w", err)
	}
	filter, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return condition{}, fmt.Errorf("%w: %v", storage.ErrInvalidFilter, err)
	}
	cond, err := translate(filter.CheckedExpr.GetExpr())
	if err != nil {
		return condition{}, fmt.Errorf("%w: %v", storage.ErrInvalidFilter, err)
	}
	return cond, nil
}

func translate(e *expr.Expr) (condition, error) {
	if e == nil {
		return condition{}, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return condition{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}

	switch fn := call.CallExpr.Function; fn {
	case "_&&_", "AND":
		return translateLogical(call.CallExpr.Args, "AND")
	case "_||_", "OR":
		return translateLogical(call.CallExpr.Args, "OR")
	case "!_", "NOT":
		if len(call.CallExpr.Args) != 1 {
			return condition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translate(call.CallExpr.Args[0])
		if err != nil {
			return condition{}, err
		}
		return condition{clause: "NOT (" + inner.clause + ")", params: inner.params}, nil
	case "_==_", "=":
		return translateComparison(call.CallExpr.Args, "=")
	case "_!=_", "!=":
		return translateComparison(call.CallExpr.Args, "!=")
	case "_<_", "<":
		return translateComparison(call.CallExpr.Args, "<")
	case "_<=_", "<=":
		return translateComparison(call.CallExpr.Args, "<=")
	case "_>_", ">":
		return translateComparison(call.CallExpr.Args, ">")
	case "_>=_", ">=":
		return translateComparison(call.CallExpr.Args, ">=")
	default:
		return condition{}, fmt.Errorf("unsupported function: %s", fn)
	}
}

func translateLogical(args []*expr.Expr, op string) (condition, error) {
	if len(args) < 2 {
		return condition{}, fmt.Errorf("%s requires at least 2 arguments", op)
	}
	parts := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		cond, err := translate(arg)
		if err != nil {
			return condition{}, err
		}
		parts = append(parts, cond.clause)
		params = append(params, cond.params...)
	}
	return condition{clause: "(" + strings.Join(parts, " "+op+" ") + ")", params: params}, nil
}

func translateComparison(args []*expr.Expr, op string) (condition, error) {
	if len(args) != 2 {
		return condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return condition{}, fmt.Errorf("expected identifier, got %T", args[0].ExprKind)
	}
	column, ok := archiveColumns[ident.IdentExpr.Name]
	if !ok {
		return condition{}, fmt.Errorf("unknown field: %s", ident.IdentExpr.Name)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return condition{}, err
	}
	return condition{clause: fmt.Sprintf("%s %s ?", column, op), params: []any{value}}, nil
}

func extractValue(e *expr.Expr) (any, error) {
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		switch c := kind.ConstExpr.ConstantKind.(type) {
		case *expr.Constant_StringValue:
			return c.StringValue, nil
		case *expr.Constant_Int64Value:
			return c.Int64Value, nil
		case *expr.Constant_Uint64Value:
			return c.Uint64Value, nil
		case *expr.Constant_DoubleValue:
			return c.DoubleValue, nil
		case *expr.Constant_BoolValue:
			return c.BoolValue, nil
		default:
			return nil, fmt.Errorf("unsupported constant type: %T", c)
		}
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampMillis(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

// extractTimestampMillis converts timestamp("...") to the archive's unix
// millisecond columns.
func extractTimestampMillis(e *expr.Expr) (int64, error) {
	c, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	s, ok := c.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, s.StringValue)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", s.StringValue)
	}
	return toMillis(t), nil
}
