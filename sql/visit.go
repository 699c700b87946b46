package sql

// Children returns the direct sub expressions of a node in evaluation order.
// Subqueries are not entered, a subquery expression is a leaf for the visitor.
func Children(expr Expr) []Expr {
	switch expr.Type() {
	case ExprCall:
		return expr.(*Call).Parameters

	case ExprUnary:
		return []Expr{expr.(*Unary).Operand}

	case ExprBinary:
		b := expr.(*Binary)
		return []Expr{b.L, b.R}

	case ExprTernary:
		t := expr.(*Ternary)
		return []Expr{t.Cond, t.B0, t.B1}

	case ExprBetween:
		b := expr.(*Between)
		return []Expr{b.Operand, b.Lower, b.Upper}

	case ExprIn:
		in := expr.(*In)
		out := []Expr{in.Operand}
		return append(out, in.List...)

	case ExprIsNull:
		return []Expr{expr.(*IsNull).Operand}

	case ExprQuantified:
		return []Expr{expr.(*Quantified).Operand}

	case ExprCase:
		c := expr.(*Case)
		out := []Expr{}
		if c.Operand != nil {
			out = append(out, c.Operand)
		}
		for _, w := range c.When {
			out = append(out, w.Cond, w.Value)
		}
		if c.Else != nil {
			out = append(out, c.Else)
		}
		return out

	case ExprCast:
		return []Expr{expr.(*Cast).Operand}

	default:
		return nil
	}
}

// Visitor used by pre order visiting, returning false stops descending into
// the children of the current node
type PreOrderVisitor func(Expr) (bool, error)

type PostOrderVisitor func(Expr) error

func visitExprPreOrder(
	visitor PreOrderVisitor,
	expr Expr,
) error {
	goon, err := visitor(expr)
	if err != nil {
		return err
	}
	if !goon {
		return nil
	}
	for _, x := range Children(expr) {
		if err := visitExprPreOrder(visitor, x); err != nil {
			return err
		}
	}
	return nil
}

func visitExprPostOrder(
	visitor PostOrderVisitor,
	expr Expr,
) error {
	for _, x := range Children(expr) {
		if err := visitExprPostOrder(visitor, x); err != nil {
			return err
		}
	}
	return visitor(expr)
}

func VisitExprPreOrder(
	visitor PreOrderVisitor,
	expr Expr,
) error {
	if expr == nil {
		return nil
	}
	return visitExprPreOrder(visitor, expr)
}

func VisitExprPostOrder(
	visitor PostOrderVisitor,
	expr Expr,
) error {
	if expr == nil {
		return nil
	}
	return visitExprPostOrder(visitor, expr)
}

// Subqueries returns every query nested directly inside of the expression
// tree, ie the queries of EXISTS, IN, ANY/ALL and scalar subqueries
func Subqueries(expr Expr) []*Query {
	out := []*Query{}
	VisitExprPreOrder(
		func(e Expr) (bool, error) {
			switch e.Type() {
			case ExprExists:
				out = append(out, e.(*Exists).Query)
				break
			case ExprSubquery:
				out = append(out, e.(*Subquery).Query)
				break
			case ExprIn:
				if q := e.(*In).Query; q != nil {
					out = append(out, q)
				}
				break
			case ExprQuantified:
				out = append(out, e.(*Quantified).Query)
				break
			default:
				break
			}
			return true, nil
		},
		expr,
	)
	return out
}
