package sql

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Stringify the AST. We do not use method but use free function

func opString(op int) string {
	switch op {
	case TkAdd:
		return "+"
	case TkSub:
		return "-"
	case TkMul:
		return "*"
	case TkDiv:
		return "/"
	case TkMod:
		return "%"
	case TkConcat:
		return "||"
	case TkLt:
		return "<"
	case TkLe:
		return "<="
	case TkGt:
		return ">"
	case TkGe:
		return ">="
	case TkEq:
		return "="
	case TkNe:
		return "!="
	case TkAnd:
		return "and"
	case TkOr:
		return "or"
	case TkNot:
		return "not"
	case TkLike:
		return "like"
	case TkNotLike:
		return "not like"
	default:
		panic("unreachable")
	}
}

// compound nodes are parenthesized when they show up as an operand
func isCompound(expr Expr) bool {
	switch expr.Type() {
	case ExprBinary, ExprTernary, ExprBetween, ExprIn, ExprIsNull, ExprQuantified:
		return true
	default:
		return false
	}
}

func doPrintOperand(expr Expr, buf *bytes.Buffer) {
	if isCompound(expr) {
		buf.WriteString("(")
		doPrintExpr(expr, buf)
		buf.WriteString(")")
	} else {
		doPrintExpr(expr, buf)
	}
}

func doPrintExprList(list []Expr, buf *bytes.Buffer) {
	for idx, x := range list {
		if idx > 0 {
			buf.WriteString(", ")
		}
		doPrintExpr(x, buf)
	}
}

func doPrintExprConst(c *Const, buf *bytes.Buffer) {
	switch c.Ty {
	case ConstBool:
		buf.WriteString(fmt.Sprintf("%t", c.Bool))
		break
	case ConstStr:
		buf.WriteString("'")
		buf.WriteString(strings.ReplaceAll(c.String, "'", "''"))
		buf.WriteString("'")
		break
	case ConstInt:
		buf.WriteString(fmt.Sprintf("%d", c.Int))
		break
	case ConstReal:
		s := strconv.FormatFloat(c.Real, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
		break
	case ConstNull:
		buf.WriteString("null")
		break
	default:
		panic("unreachable")
	}
}

func doPrintExprCall(c *Call, buf *bytes.Buffer) {
	buf.WriteString(c.Name)
	buf.WriteString("(")
	if c.Star {
		buf.WriteString("*")
	} else {
		if c.Distinct {
			buf.WriteString("distinct ")
		}
		doPrintExprList(c.Parameters, buf)
	}
	buf.WriteString(")")
}

func doPrintExpr(expr Expr, buf *bytes.Buffer) {
	switch expr.Type() {
	case ExprConst:
		doPrintExprConst(expr.(*Const), buf)
		break

	case ExprRef:
		buf.WriteString(expr.(*Ref).FullName())
		break

	case ExprCall:
		doPrintExprCall(expr.(*Call), buf)
		break

	case ExprUnary:
		u := expr.(*Unary)
		if u.Op == TkNot {
			buf.WriteString("not ")
		} else {
			buf.WriteString(opString(u.Op))
		}
		doPrintOperand(u.Operand, buf)
		break

	case ExprBinary:
		b := expr.(*Binary)
		doPrintOperand(b.L, buf)
		buf.WriteString(" ")
		buf.WriteString(opString(b.Op))
		buf.WriteString(" ")
		doPrintOperand(b.R, buf)
		break

	case ExprTernary:
		t := expr.(*Ternary)
		doPrintOperand(t.Cond, buf)
		buf.WriteString(" ? ")
		doPrintOperand(t.B0, buf)
		buf.WriteString(" : ")
		doPrintOperand(t.B1, buf)
		break

	case ExprBetween:
		b := expr.(*Between)
		doPrintOperand(b.Operand, buf)
		if b.Not {
			buf.WriteString(" not")
		}
		buf.WriteString(" between ")
		doPrintOperand(b.Lower, buf)
		buf.WriteString(" and ")
		doPrintOperand(b.Upper, buf)
		break

	case ExprIn:
		in := expr.(*In)
		doPrintOperand(in.Operand, buf)
		if in.Not {
			buf.WriteString(" not")
		}
		buf.WriteString(" in (")
		if in.Query != nil {
			doPrintQuery(in.Query, buf)
		} else {
			doPrintExprList(in.List, buf)
		}
		buf.WriteString(")")
		break

	case ExprIsNull:
		n := expr.(*IsNull)
		doPrintOperand(n.Operand, buf)
		if n.Not {
			buf.WriteString(" is not null")
		} else {
			buf.WriteString(" is null")
		}
		break

	case ExprExists:
		buf.WriteString("exists (")
		doPrintQuery(expr.(*Exists).Query, buf)
		buf.WriteString(")")
		break

	case ExprSubquery:
		buf.WriteString("(")
		doPrintQuery(expr.(*Subquery).Query, buf)
		buf.WriteString(")")
		break

	case ExprQuantified:
		q := expr.(*Quantified)
		doPrintOperand(q.Operand, buf)
		buf.WriteString(" ")
		buf.WriteString(opString(q.Op))
		if q.All {
			buf.WriteString(" all (")
		} else {
			buf.WriteString(" any (")
		}
		doPrintQuery(q.Query, buf)
		buf.WriteString(")")
		break

	case ExprCase:
		c := expr.(*Case)
		buf.WriteString("case")
		if c.Operand != nil {
			buf.WriteString(" ")
			doPrintOperand(c.Operand, buf)
		}
		for _, w := range c.When {
			buf.WriteString(" when ")
			doPrintExpr(w.Cond, buf)
			buf.WriteString(" then ")
			doPrintExpr(w.Value, buf)
		}
		if c.Else != nil {
			buf.WriteString(" else ")
			doPrintExpr(c.Else, buf)
		}
		buf.WriteString(" end")
		break

	case ExprCast:
		c := expr.(*Cast)
		buf.WriteString("cast(")
		doPrintExpr(c.Operand, buf)
		buf.WriteString(" as ")
		buf.WriteString(c.TypeName)
		buf.WriteString(")")
		break

	default:
		panic("unreachable")
	}
}

// ----------------------------------------------------------------------------
// Statement
// ----------------------------------------------------------------------------
func doPrintStmtProjection(projection *Projection, buf *bytes.Buffer) {
	for idx, x := range projection.ValueList {
		if idx > 0 {
			buf.WriteString(", ")
		}

		switch x.Type() {
		case SelectVarCol:
			col := x.(*Col)
			doPrintExpr(col.Value, buf)
			if col.As != "" {
				buf.WriteString(" as ")
				buf.WriteString(col.As)
			}
			break

		default:
			star := x.(*Star)
			if star.Qualifier != "" {
				buf.WriteString(star.Qualifier)
				buf.WriteString(".")
			}
			buf.WriteString("*")
			break
		}
	}
}

func joinKindString(kind int) string {
	switch kind {
	case JoinLeft:
		return "left join"
	case JoinRight:
		return "right join"
	case JoinFull:
		return "full join"
	case JoinCross:
		return "cross join"
	default:
		return "join"
	}
}

func doPrintFromItem(item FromItem, buf *bytes.Buffer) {
	switch item.Type() {
	case FromTable:
		x := item.(*FromVar)
		if x.Query != nil {
			buf.WriteString("(")
			doPrintQuery(x.Query, buf)
			buf.WriteString(")")
		} else if x.Call != nil {
			doPrintExprCall(x.Call, buf)
		} else {
			buf.WriteString(x.Name)
		}
		if x.Alias != "" {
			buf.WriteString(" as ")
			buf.WriteString(x.Alias)
		}
		break

	default:
		j := item.(*Join)
		doPrintFromItem(j.L, buf)
		buf.WriteString(" ")
		buf.WriteString(joinKindString(j.Kind))
		buf.WriteString(" ")
		if j.R.Type() == FromJoin {
			buf.WriteString("(")
			doPrintFromItem(j.R, buf)
			buf.WriteString(")")
		} else {
			doPrintFromItem(j.R, buf)
		}
		if j.On != nil {
			buf.WriteString(" on ")
			doPrintExpr(j.On, buf)
		} else if len(j.Using) > 0 {
			buf.WriteString(" using (")
			buf.WriteString(strings.Join(j.Using, ", "))
			buf.WriteString(")")
		}
		break
	}
}

func doPrintTail(orderBy *OrderBy, offset, fetch Expr, buf *bytes.Buffer) {
	if orderBy != nil {
		buf.WriteString(" order by ")
		for idx, x := range orderBy.Items {
			if idx > 0 {
				buf.WriteString(", ")
			}
			doPrintExpr(x.Value, buf)
			if x.Desc {
				buf.WriteString(" desc")
			}
			switch x.Nulls {
			case NullsFirst:
				buf.WriteString(" nulls first")
				break
			case NullsLast:
				buf.WriteString(" nulls last")
				break
			default:
				break
			}
		}
	}
	if offset != nil {
		buf.WriteString(" offset ")
		doPrintExpr(offset, buf)
	}
	if fetch != nil {
		buf.WriteString(" limit ")
		doPrintExpr(fetch, buf)
	}
}

func doPrintSelect(s *Select, buf *bytes.Buffer) {
	buf.WriteString("select ")
	if s.Distinct {
		buf.WriteString("distinct ")
		if len(s.DistinctOn) > 0 {
			buf.WriteString("on (")
			doPrintExprList(s.DistinctOn, buf)
			buf.WriteString(") ")
		}
	}
	if s.Top != nil {
		buf.WriteString("top ")
		doPrintOperand(s.Top, buf)
		buf.WriteString(" ")
	}

	doPrintStmtProjection(s.Projection, buf)

	if s.Into != nil {
		buf.WriteString(" into ")
		doPrintExprCall(s.Into, buf)
	}

	if s.From != nil {
		buf.WriteString(" from ")
		for idx, x := range s.From.VarList {
			if idx > 0 {
				buf.WriteString(", ")
			}
			doPrintFromItem(x, buf)
		}
	}
	if s.Where != nil {
		buf.WriteString(" where ")
		doPrintExpr(s.Where.Condition, buf)
	}
	if s.GroupBy != nil {
		buf.WriteString(" group by ")
		doPrintExprList(s.GroupBy.Name, buf)
	}
	if s.Having != nil {
		buf.WriteString(" having ")
		doPrintExpr(s.Having.Condition, buf)
	}
	doPrintTail(s.OrderBy, s.Offset, s.Fetch, buf)
}

func combineOpString(op int) string {
	switch op {
	case CombineUnionAll:
		return "union all"
	case CombineExcept:
		return "except"
	case CombineIntersect:
		return "intersect"
	default:
		return "union"
	}
}

func doPrintQueryNode(node QueryNode, buf *bytes.Buffer) {
	switch node.Type() {
	case QuerySelect:
		doPrintSelect(node.(*Select), buf)
		break

	case QueryCombine:
		c := node.(*Combine)
		doPrintCombineOperand(c.L, buf)
		buf.WriteString(" ")
		buf.WriteString(combineOpString(c.Op))
		buf.WriteString(" ")
		doPrintCombineOperand(c.R, buf)
		doPrintTail(c.OrderBy, c.Offset, c.Fetch, buf)
		break

	default:
		buf.WriteString("(")
		doPrintQuery(node.(*Query), buf)
		buf.WriteString(")")
		break
	}
}

func doPrintCombineOperand(node QueryNode, buf *bytes.Buffer) {
	if node.Type() == QueryCombine {
		buf.WriteString("(")
		doPrintQueryNode(node, buf)
		buf.WriteString(")")
	} else {
		doPrintQueryNode(node, buf)
	}
}

func doPrintQuery(q *Query, buf *bytes.Buffer) {
	if q.With != nil {
		buf.WriteString("with ")
		if q.With.Recursive {
			buf.WriteString("recursive ")
		}
		for idx, cte := range q.With.List {
			if idx > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(cte.Name)
			if len(cte.Columns) > 0 {
				buf.WriteString("(")
				buf.WriteString(strings.Join(cte.Columns, ", "))
				buf.WriteString(")")
			}
			buf.WriteString(" as (")
			doPrintQuery(cte.Query, buf)
			buf.WriteString(")")
		}
		buf.WriteString(" ")
	}
	doPrintQueryNode(q.Body, buf)
}

func PrintExpr(expr Expr) string {
	if expr == nil {
		return ""
	}
	b := &bytes.Buffer{}
	doPrintExpr(expr, b)
	return b.String()
}

func PrintQuery(q *Query) string {
	b := &bytes.Buffer{}
	doPrintQuery(q, b)
	return b.String()
}

func PrintQueryNode(node QueryNode) string {
	b := &bytes.Buffer{}
	doPrintQueryNode(node, b)
	return b.String()
}

func PrintStatement(s *Statement) string {
	return PrintQuery(s.Query)
}
