package plan

import (
	"context"
	"regexp"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

// ----------------------------------------------------------------------------
//
// Delegate compiler. An expression is resolved once into a tree of exec units
// reading the frame of the layout it was compiled against. Operators publish
// their input row into that frame before evaluating.
//
// 1. aggregate calls are never evaluated here, they become placeholders
//    reading the group row at the offset of their aggregate target
//
// 2. operators whose operands are all constant, and pure functions with
//    constant arguments, are folded
//
// 3. non pure functions with constant arguments are evaluated once per run,
//    the value is kept in the memo map of the statement under the call's id
//
// ----------------------------------------------------------------------------

type compiler struct {
	ctx       context.Context
	q         *QueryContext
	l         *layout
	expanding map[string]bool
}

// compile resolves expr against the layout. While compiling, the layout is
// what nested subqueries bind their outer references to.
func (self *QueryContext) compile(ctx context.Context, l *layout, expr sql.Expr) (exec.Unit, error) {
	prev := self.cur
	self.cur = l
	defer func() { self.cur = prev }()

	c := &compiler{
		ctx:       ctx,
		q:         self,
		l:         l,
		expanding: make(map[string]bool),
	}
	return c.expr(expr)
}

func (self *QueryContext) compileList(ctx context.Context, l *layout, exprs []sql.Expr) ([]exec.Unit, error) {
	out := make([]exec.Unit, 0, len(exprs))
	for _, e := range exprs {
		u, err := self.compile(ctx, l, e)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// constant evaluates an expression which must not read any row
func (self *QueryContext) constant(ctx context.Context, what string, expr sql.Expr) (value.Value, error) {
	if self.refersColumns(expr) || len(sql.Subqueries(expr)) > 0 {
		return value.Null, self.stmt.err(
			"compile",
			"%s must be a constant expression: %s",
			what,
			sql.PrintExpr(expr),
		)
	}
	u, err := self.compile(ctx, newLayout(), expr)
	if err != nil {
		return value.Null, err
	}
	return u.Eval(ctx)
}

func isConst(u exec.Unit) bool {
	_, ok := u.(*exec.Const)
	return ok
}

func constValue(c *sql.Const) value.Value {
	switch c.Ty {
	case sql.ConstBool:
		return value.NewBoolean(c.Bool)
	case sql.ConstStr:
		return value.NewString(c.String)
	case sql.ConstInt:
		return value.NewInteger(c.Int)
	case sql.ConstReal:
		return value.NewFloat(c.Real)
	default:
		return value.Null
	}
}

func binaryOp(tk int) (value.Operation, bool) {
	switch tk {
	case sql.TkAdd:
		return value.OpAdd, true
	case sql.TkSub:
		return value.OpSub, true
	case sql.TkMul:
		return value.OpMul, true
	case sql.TkDiv:
		return value.OpDiv, true
	case sql.TkMod:
		return value.OpMod, true
	case sql.TkConcat:
		return value.OpConcat, true
	case sql.TkEq:
		return value.OpEq, true
	case sql.TkNe:
		return value.OpNe, true
	case sql.TkLt:
		return value.OpLt, true
	case sql.TkLe:
		return value.OpLe, true
	case sql.TkGt:
		return value.OpGt, true
	case sql.TkGe:
		return value.OpGe, true
	case sql.TkAnd:
		return value.OpAnd, true
	case sql.TkOr:
		return value.OpOr, true
	default:
		return value.OpAdd, false
	}
}

// commonType is the type shared by every unit, dynamic when they disagree
func commonType(units ...exec.Unit) value.DataType {
	t := value.TypeNull
	for _, u := range units {
		if u == nil {
			continue
		}
		ut := u.Type()
		if ut == value.TypeNull {
			continue
		}
		if t == value.TypeNull {
			t = ut
		} else if t != ut {
			return value.TypeDynamic
		}
	}
	return t
}

func (self *compiler) err(f string, args ...interface{}) error {
	return self.q.stmt.err("compile", f, args...)
}

// fold evaluates f right away when every operand is constant
func (self *compiler) fold(
	t value.DataType,
	operands []exec.Unit,
	f func(context.Context) (value.Value, error),
) (exec.Unit, error) {
	for _, o := range operands {
		if !isConst(o) {
			return &exec.Func{T: t, F: f}, nil
		}
	}
	v, err := f(self.ctx)
	if err != nil {
		return nil, err
	}
	return &exec.Const{V: v}, nil
}

func (self *compiler) list(exprs []sql.Expr) ([]exec.Unit, error) {
	out := make([]exec.Unit, 0, len(exprs))
	for _, e := range exprs {
		u, err := self.expr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (self *compiler) expr(e sql.Expr) (exec.Unit, error) {
	switch e.Type() {
	case sql.ExprConst:
		return &exec.Const{V: constValue(e.(*sql.Const))}, nil
	case sql.ExprRef:
		return self.bindRef(e.(*sql.Ref))
	case sql.ExprCall:
		return self.call(e.(*sql.Call))
	case sql.ExprUnary:
		return self.unary(e.(*sql.Unary))
	case sql.ExprBinary:
		return self.binary(e.(*sql.Binary))
	case sql.ExprTernary:
		return self.ternary(e.(*sql.Ternary))
	case sql.ExprBetween:
		return self.between(e.(*sql.Between))
	case sql.ExprIn:
		return self.in(e.(*sql.In))
	case sql.ExprIsNull:
		return self.isNull(e.(*sql.IsNull))
	case sql.ExprExists:
		return self.exists(e.(*sql.Exists))
	case sql.ExprSubquery:
		return self.scalarSubquery(e.(*sql.Subquery))
	case sql.ExprQuantified:
		return self.quantified(e.(*sql.Quantified))
	case sql.ExprCase:
		return self.caseWhen(e.(*sql.Case))
	case sql.ExprCast:
		return self.cast(e.(*sql.Cast))
	default:
		return nil, self.err("unknown expression %s", sql.PrintExpr(e))
	}
}

// ----------------------------------------------------------------------------
// calls

// aggRef is the placeholder of an aggregate call, it reads the group row
type aggRef struct {
	frame  *exec.Frame
	target *exec.AggregateTarget
}

func (self *aggRef) Eval(context.Context) (value.Value, error) {
	o := self.target.Offset
	if o < 0 || o >= len(self.frame.Row) {
		return value.Null, nil
	}
	return self.frame.Row[o], nil
}

func (self *aggRef) Type() value.DataType { return self.target.Column.Type }

func (self *compiler) aggregate(c *sql.Call) (exec.Unit, error) {
	t, ok := self.q.aggs[c.Id]
	if !ok || self.l == nil || !self.l.grouped {
		return nil, self.err("aggregate function %s is not allowed here", c.Name)
	}
	return &aggRef{
		frame:  self.l.frame,
		target: t,
	}, nil
}

func (self *compiler) call(c *sql.Call) (exec.Unit, error) {
	stmt := self.q.stmt
	reg := stmt.registry()

	if reg.IsAggregate(c.Name) {
		return self.aggregate(c)
	}

	f, ok := reg.Scalar(c.Name)
	if !ok {
		if _, ok := reg.Table(c.Name); ok {
			return nil, self.err("table function %s cannot be used in an expression", c.Name)
		}
		return nil, self.err("unknown function %s", c.Name)
	}
	if c.Star || c.Distinct {
		return nil, self.err("function %s is not an aggregate", c.Name)
	}
	if err := f.CheckArity(len(c.Parameters)); err != nil {
		return nil, self.err("%s", err)
	}

	args, err := self.list(c.Parameters)
	if err != nil {
		return nil, err
	}
	return self.scalar(c.Id, f, args)
}

func (self *compiler) scalar(id int, f *function.Scalar, args []exec.Unit) (exec.Unit, error) {
	static := true
	types := make([]value.DataType, 0, len(args))
	for _, a := range args {
		types = append(types, a.Type())
		if !isConst(a) {
			static = false
		}
	}
	t := f.Type(types)

	eval := func(ctx context.Context) (value.Value, error) {
		vals, err := exec.EvalAll(ctx, args, nil)
		if err != nil {
			return value.Null, err
		}
		return f.Call(ctx, vals)
	}

	switch {
	case static && f.Pure:
		return self.fold(t, args, eval)

	case static:
		stmt := self.q.stmt
		return &exec.Func{
			T: t,
			F: func(ctx context.Context) (value.Value, error) {
				if v, ok := stmt.memo[id]; ok {
					return v, nil
				}
				v, err := eval(ctx)
				if err != nil {
					return value.Null, err
				}
				stmt.memo[id] = v
				return v, nil
			},
		}, nil

	default:
		return &exec.Func{T: t, F: eval}, nil
	}
}

// ----------------------------------------------------------------------------
// operators

func (self *compiler) unary(x *sql.Unary) (exec.Unit, error) {
	u, err := self.expr(x.Operand)
	if err != nil {
		return nil, err
	}
	op := value.OpNot
	t := value.TypeBoolean
	if x.Op == sql.TkSub {
		op = value.OpNeg
		t = u.Type()
	}
	return self.fold(t, []exec.Unit{u}, func(ctx context.Context) (value.Value, error) {
		v, err := u.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Unary(op, v)
	})
}

func (self *compiler) binary(x *sql.Binary) (exec.Unit, error) {
	switch x.Op {
	case sql.TkAnd, sql.TkOr:
		return self.logical(x)
	case sql.TkLike, sql.TkNotLike:
		return self.like(x)
	default:
		break
	}

	op, ok := binaryOp(x.Op)
	if !ok {
		return nil, self.err("unknown operator in %s", sql.PrintExpr(x))
	}
	l, err := self.expr(x.L)
	if err != nil {
		return nil, err
	}
	r, err := self.expr(x.R)
	if err != nil {
		return nil, err
	}
	t, err := value.ResultType(op, l.Type(), r.Type())
	if err != nil {
		return nil, self.err("%s: %s", sql.PrintExpr(x), err)
	}

	return self.fold(t, []exec.Unit{l, r}, func(ctx context.Context) (value.Value, error) {
		lv, err := l.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		rv, err := r.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Binary(op, lv, rv)
	})
}

// logical evaluates AND / OR lazily with three valued logic
func (self *compiler) logical(x *sql.Binary) (exec.Unit, error) {
	l, err := self.expr(x.L)
	if err != nil {
		return nil, err
	}
	r, err := self.expr(x.R)
	if err != nil {
		return nil, err
	}
	isAnd := x.Op == sql.TkAnd

	return self.fold(value.TypeBoolean, []exec.Unit{l, r}, func(ctx context.Context) (value.Value, error) {
		lv, err := l.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		if !lv.IsNull() && lv.Truth() != isAnd {
			return value.NewBoolean(!isAnd), nil
		}
		rv, err := r.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		if !rv.IsNull() && rv.Truth() != isAnd {
			return value.NewBoolean(!isAnd), nil
		}
		if lv.IsNull() || rv.IsNull() {
			return value.Null, nil
		}
		return value.NewBoolean(isAnd), nil
	})
}

func (self *compiler) like(x *sql.Binary) (exec.Unit, error) {
	l, err := self.expr(x.L)
	if err != nil {
		return nil, err
	}
	r, err := self.expr(x.R)
	if err != nil {
		return nil, err
	}
	not := x.Op == sql.TkNotLike

	var re *regexp.Regexp
	if c, ok := r.(*exec.Const); ok && !c.V.IsNull() {
		re, err = sql.CompileLike(c.V.String())
		if err != nil {
			return nil, self.err("invalid LIKE pattern %s: %s", c.V, err)
		}
	}

	return self.fold(value.TypeBoolean, []exec.Unit{l, r}, func(ctx context.Context) (value.Value, error) {
		lv, err := l.Eval(ctx)
		if err != nil || lv.IsNull() {
			return value.Null, err
		}
		pattern := re
		if pattern == nil {
			rv, err := r.Eval(ctx)
			if err != nil || rv.IsNull() {
				return value.Null, err
			}
			pattern, err = sql.CompileLike(rv.String())
			if err != nil {
				return value.Null, err
			}
		}
		return value.NewBoolean(pattern.MatchString(lv.String()) != not), nil
	})
}

func (self *compiler) ternary(x *sql.Ternary) (exec.Unit, error) {
	units, err := self.list([]sql.Expr{x.Cond, x.B0, x.B1})
	if err != nil {
		return nil, err
	}
	cond, b0, b1 := units[0], units[1], units[2]

	return self.fold(commonType(b0, b1), units, func(ctx context.Context) (value.Value, error) {
		ok, err := exec.EvalBool(ctx, cond)
		if err != nil {
			return value.Null, err
		}
		if ok {
			return b0.Eval(ctx)
		}
		return b1.Eval(ctx)
	})
}

func (self *compiler) between(x *sql.Between) (exec.Unit, error) {
	units, err := self.list([]sql.Expr{x.Operand, x.Lower, x.Upper})
	if err != nil {
		return nil, err
	}
	return self.fold(value.TypeBoolean, units, func(ctx context.Context) (value.Value, error) {
		vals, err := exec.EvalAll(ctx, units, nil)
		if err != nil {
			return value.Null, err
		}
		ge, err := value.Binary(value.OpGe, vals[0], vals[1])
		if err != nil {
			return value.Null, err
		}
		le, err := value.Binary(value.OpLe, vals[0], vals[2])
		if err != nil {
			return value.Null, err
		}
		res, _ := value.Binary(value.OpAnd, ge, le)
		if x.Not {
			return value.Unary(value.OpNot, res)
		}
		return res, nil
	})
}

// member implements the IN semantic over a candidate list: true when a value
// matches, null when none matches but one of them or the operand is null
func member(v value.Value, candidates []value.Value, not bool) value.Value {
	if v.IsNull() {
		if len(candidates) == 0 {
			return value.NewBoolean(not)
		}
		return value.Null
	}
	sawNull := false
	for _, c := range candidates {
		if c.IsNull() {
			sawNull = true
			continue
		}
		if value.Equal(v, c) {
			return value.NewBoolean(!not)
		}
	}
	if sawNull {
		return value.Null
	}
	return value.NewBoolean(not)
}

func (self *compiler) in(x *sql.In) (exec.Unit, error) {
	operand, err := self.expr(x.Operand)
	if err != nil {
		return nil, err
	}

	if x.Query != nil {
		sp, err := self.subplan(x.Query, "subquery of IN", true)
		if err != nil {
			return nil, err
		}
		return &exec.Func{
			T: value.TypeBoolean,
			F: func(ctx context.Context) (value.Value, error) {
				v, err := operand.Eval(ctx)
				if err != nil {
					return value.Null, err
				}
				data, err := sp.rows(ctx)
				if err != nil {
					return value.Null, err
				}
				candidates := make([]value.Value, 0, len(data))
				for _, row := range data {
					candidates = append(candidates, row[0])
				}
				return member(v, candidates, x.Not), nil
			},
		}, nil
	}

	items, err := self.list(x.List)
	if err != nil {
		return nil, err
	}
	return self.fold(value.TypeBoolean, append([]exec.Unit{operand}, items...), func(ctx context.Context) (value.Value, error) {
		v, err := operand.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		candidates, err := exec.EvalAll(ctx, items, nil)
		if err != nil {
			return value.Null, err
		}
		return member(v, candidates, x.Not), nil
	})
}

func (self *compiler) isNull(x *sql.IsNull) (exec.Unit, error) {
	u, err := self.expr(x.Operand)
	if err != nil {
		return nil, err
	}
	return self.fold(value.TypeBoolean, []exec.Unit{u}, func(ctx context.Context) (value.Value, error) {
		v, err := u.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		return value.NewBoolean(v.IsNull() != x.Not), nil
	})
}

func (self *compiler) caseWhen(x *sql.Case) (exec.Unit, error) {
	var operand, els exec.Unit
	var err error
	if x.Operand != nil {
		if operand, err = self.expr(x.Operand); err != nil {
			return nil, err
		}
	}
	if x.Else != nil {
		if els, err = self.expr(x.Else); err != nil {
			return nil, err
		}
	}
	conds := make([]exec.Unit, 0, len(x.When))
	vals := make([]exec.Unit, 0, len(x.When))
	for _, w := range x.When {
		c, err := self.expr(w.Cond)
		if err != nil {
			return nil, err
		}
		v, err := self.expr(w.Value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
		vals = append(vals, v)
	}

	return &exec.Func{
		T: commonType(append(vals, els)...),
		F: func(ctx context.Context) (value.Value, error) {
			var ov value.Value
			if operand != nil {
				v, err := operand.Eval(ctx)
				if err != nil {
					return value.Null, err
				}
				ov = v
			}
			for i, c := range conds {
				if operand != nil {
					cv, err := c.Eval(ctx)
					if err != nil {
						return value.Null, err
					}
					if !value.Equal(ov, cv) {
						continue
					}
				} else {
					ok, err := exec.EvalBool(ctx, c)
					if err != nil {
						return value.Null, err
					}
					if !ok {
						continue
					}
				}
				return vals[i].Eval(ctx)
			}
			if els != nil {
				return els.Eval(ctx)
			}
			return value.Null, nil
		},
	}, nil
}

func (self *compiler) cast(x *sql.Cast) (exec.Unit, error) {
	t, ok := value.ParseDataType(x.TypeName)
	if !ok {
		return nil, self.err("unknown type %s", x.TypeName)
	}
	u, err := self.expr(x.Operand)
	if err != nil {
		return nil, err
	}
	return self.fold(t, []exec.Unit{u}, func(ctx context.Context) (value.Value, error) {
		v, err := u.Eval(ctx)
		if err != nil {
			return value.Null, err
		}
		return value.Cast(v, t)
	})
}

// ----------------------------------------------------------------------------
// subquery expressions

func (self *compiler) exists(x *sql.Exists) (exec.Unit, error) {
	sp, err := self.subplan(x.Query, "subquery of EXISTS", false)
	if err != nil {
		return nil, err
	}
	return &exec.Func{
		T: value.TypeBoolean,
		F: func(ctx context.Context) (value.Value, error) {
			ok, err := sp.exists(ctx)
			if err != nil {
				return value.Null, err
			}
			return value.NewBoolean(ok), nil
		},
	}, nil
}

func (self *compiler) scalarSubquery(x *sql.Subquery) (exec.Unit, error) {
	sp, err := self.subplan(x.Query, "scalar subquery", true)
	if err != nil {
		return nil, err
	}
	return &exec.Func{
		T: sp.q.columns[0].Type,
		F: func(ctx context.Context) (value.Value, error) {
			data, err := sp.rows(ctx)
			if err != nil {
				return value.Null, err
			}
			switch len(data) {
			case 0:
				return value.Null, nil
			case 1:
				return data[0][0], nil
			default:
				return value.Null, self.err("scalar subquery returned more than one row")
			}
		},
	}, nil
}

func (self *compiler) quantified(x *sql.Quantified) (exec.Unit, error) {
	op, ok := binaryOp(x.Op)
	if !ok || !op.IsComparison() {
		return nil, self.err("invalid comparison in %s", sql.PrintExpr(x))
	}
	operand, err := self.expr(x.Operand)
	if err != nil {
		return nil, err
	}
	sp, err := self.subplan(x.Query, "subquery of ANY/ALL", true)
	if err != nil {
		return nil, err
	}

	return &exec.Func{
		T: value.TypeBoolean,
		F: func(ctx context.Context) (value.Value, error) {
			v, err := operand.Eval(ctx)
			if err != nil {
				return value.Null, err
			}
			data, err := sp.rows(ctx)
			if err != nil {
				return value.Null, err
			}
			sawNull := false
			for _, row := range data {
				c, err := value.Binary(op, v, row[0])
				if err != nil {
					return value.Null, err
				}
				if c.IsNull() {
					sawNull = true
					continue
				}
				if c.Truth() != x.All {
					// a match for ANY, a mismatch for ALL decides
					return value.NewBoolean(!x.All), nil
				}
			}
			if sawNull {
				return value.Null, nil
			}
			return value.NewBoolean(x.All), nil
		},
	}, nil
}
