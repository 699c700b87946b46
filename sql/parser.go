package sql

// parser of the sql, which is tailered for our own usage. We briefly describe
// the grammar of sql as following EBNF
//
// ### statement -------------------------------------------------------------
//
// statement := query ';'?
// query := with? combine query-tail
// with := WITH RECURSIVE? cte (',' cte)*
// cte := ID ('(' ID (',' ID)* ')')? AS '(' query ')'
//
// combine := intersect ((UNION ALL? | EXCEPT) intersect)*
// intersect := query-primary (INTERSECT query-primary)*
// query-primary := select | '(' query ')'
// query-tail := order-by? offset? fetch?
//
// select :=
//     SELECT (DISTINCT (ON '(' expr-list ')')? | ALL)? (TOP unary)?
//     projection
//     (INTO call)?
//     from?
//     where?
//     group-by?
//     having?
//
// projection := project-var (',' project-var)*
// project-var := STAR | ID '.' STAR | expr as?
// as := (AS? ID)?
//
// from := FROM table-ref (',' table-ref)*
// table-ref := table-atom (join-type JOIN table-atom join-cond?)*
// table-atom := ID call-args? as? | '(' query ')' as? | '(' table-ref ')'
// join-type := INNER? | LEFT OUTER? | RIGHT OUTER? | FULL OUTER? | CROSS
// join-cond := ON expr | USING '(' ID (',' ID)* ')'
//
// where := WHERE expr
// group-by := GROUPBY expr-list
// having := HAVING expr
// order-by := ORDERBY order-item (',' order-item)*
// order-item := expr (ASC|DESC)? (NULLS (FIRST|LAST))?
// offset := OFFSET expr (ROW|ROWS)?
// fetch := LIMIT expr | FETCH (FIRST|NEXT) expr? (ROW|ROWS) ONLY
//
// ### expression -------------------------------------------------------------
// expr := ternary
// ternary := binary ('?' binary ':' binary)?
//
// binary := precedence climbing over the following levels, lowest first
//   OR
//   AND
//   NOT (prefix)
//   comparison, [NOT] LIKE, [NOT] IN, [NOT] BETWEEN, IS [NOT] NULL,
//     comparison (ANY|SOME|ALL) '(' query ')'
//   ||
//   + -
//   * / %
//
// unary := ('-'|'+')* primary
// primary := atomic ('::' type-name)*
// atomic :=
//   const |
//   ID ('.' ID)? |
//   ID call-args |
//   '(' expr ')' |
//   '(' query ')' |
//   EXISTS '(' query ')' |
//   CASE expr? (WHEN expr THEN expr)+ (ELSE expr)? END |
//   CAST '(' expr AS type-name ')'
// call-args := '(' (STAR | DISTINCT? expr-list)? ')'
//
// const := INT | FLOAT | TRUE | FALSE | NULL | STR
//
// ----------------------------------------------------------------------------

import (
	"fmt"
)

type Parser struct {
	L      *Lexer
	nextId int
}

func newParser(xx string) *Parser {
	return &Parser{
		L: newLexer(xx),
	}
}

func NewParser(xx string) *Parser {
	return newParser(xx)
}

// Parse is a shortcut of NewParser(xx).Parse()
func Parse(xx string) (*Statement, error) {
	return newParser(xx).Parse()
}

func (self *Parser) posStart() int {
	return self.L.Start
}

func (self *Parser) posEnd() int {
	return self.L.PrevEnd
}

func (self *Parser) snippet(start, end int) string {
	if start >= end {
		start = end
	}
	return self.L.Source[start:end]
}

func (self *Parser) err(msg string) error {
	if self.L.Token == TkError {
		return fmt.Errorf("%s", self.L.Lexeme.Text)
	} else {
		return fmt.Errorf("%s: %s", self.L.dinfo(), msg)
	}
}

func (self *Parser) expect(tk int, what string) error {
	if self.L.Token == tk {
		self.L.Next()
		return nil
	} else {
		return self.err(fmt.Sprintf("expect %s", what))
	}
}

func (self *Parser) currentCodeInfo(start int) CodeInfo {
	return CodeInfo{
		Start:   start,
		End:     self.posEnd(),
		Snippet: self.snippet(start, self.posEnd()),
	}
}

func (self *Parser) node(start int) Node {
	id := self.nextId
	self.nextId++
	return Node{
		Id:       id,
		CodeInfo: self.currentCodeInfo(start),
	}
}

func (self *Parser) isId() bool {
	return self.L.Token == TkId || isSoftKeyword(self.L.Token)
}

func (self *Parser) Parse() (*Statement, error) {
	self.L.Next()
	start := self.posStart()

	q, err := self.parseQuery()
	if err != nil {
		return nil, err
	}

	if self.L.Token == TkSemicolon {
		self.L.Next()
	}
	if self.L.Token != TkEof {
		return nil, self.err("dangling code after parser thinks the statement is finished")
	}
	return &Statement{
		CodeInfo:  self.currentCodeInfo(start),
		Query:     q,
		NodeCount: self.nextId,
	}, nil
}

func (self *Parser) parseQuery() (*Query, error) {
	start := self.posStart()
	q := &Query{}

	if self.L.Token == TkWith {
		if w, err := self.parseWith(); err != nil {
			return nil, err
		} else {
			q.With = w
		}
	}

	body, err := self.parseCombine()
	if err != nil {
		return nil, err
	}
	if err := self.parseQueryTail(body); err != nil {
		return nil, err
	}

	q.Body = body
	q.CodeInfo = self.currentCodeInfo(start)
	return q, nil
}

func (self *Parser) parseWith() (*With, error) {
	start := self.posStart()
	w := &With{}

	self.L.Next() // eat with
	if self.L.Token == TkRecursive {
		w.Recursive = true
		self.L.Next()
	}

	if err := self.parseSqlList(
		func(_ int) error {
			cteStart := self.posStart()
			cte := &CTE{}

			if !self.isId() {
				return self.err("expect a name for common table expression")
			}
			cte.Name = self.L.Lexeme.Text
			self.L.Next()

			if self.L.Token == TkLPar {
				self.L.Next()
				if names, err := self.parseIdList(); err != nil {
					return err
				} else {
					cte.Columns = names
				}
				if err := self.expect(TkRPar, "')' to close column list"); err != nil {
					return err
				}
			}

			if err := self.expect(TkAs, "*as* after common table expression name"); err != nil {
				return err
			}
			if err := self.expect(TkLPar, "'(' to start common table expression"); err != nil {
				return err
			}
			if q, err := self.parseQuery(); err != nil {
				return err
			} else {
				cte.Query = q
			}
			if err := self.expect(TkRPar, "')' to close common table expression"); err != nil {
				return err
			}

			cte.CodeInfo = self.currentCodeInfo(cteStart)
			w.List = append(w.List, cte)
			return nil
		},
	); err != nil {
		return nil, err
	}

	w.CodeInfo = self.currentCodeInfo(start)
	return w, nil
}

// union and except share the lowest precedence, intersect binds tighter
func (self *Parser) parseCombine() (QueryNode, error) {
	start := self.posStart()

	lhs, err := self.parseIntersect()
	if err != nil {
		return nil, err
	}

	for {
		op := -1
		switch self.L.Token {
		case TkUnion:
			op = CombineUnion
			if self.L.Next() == TkAll {
				op = CombineUnionAll
				self.L.Next()
			} else if self.L.Token == TkDistinct {
				self.L.Next()
			}
			break

		case TkExcept:
			op = CombineExcept
			self.L.Next()
			break

		default:
			return lhs, nil
		}

		rhs, err := self.parseIntersect()
		if err != nil {
			return nil, err
		}

		lhs = &Combine{
			CodeInfo: self.currentCodeInfo(start),
			Op:       op,
			L:        lhs,
			R:        rhs,
		}
	}
}

func (self *Parser) parseIntersect() (QueryNode, error) {
	start := self.posStart()

	lhs, err := self.parseQueryPrimary()
	if err != nil {
		return nil, err
	}

	for self.L.Token == TkIntersect {
		self.L.Next()

		rhs, err := self.parseQueryPrimary()
		if err != nil {
			return nil, err
		}

		lhs = &Combine{
			CodeInfo: self.currentCodeInfo(start),
			Op:       CombineIntersect,
			L:        lhs,
			R:        rhs,
		}
	}
	return lhs, nil
}

func (self *Parser) parseQueryPrimary() (QueryNode, error) {
	switch self.L.Token {
	case TkSelect:
		return self.parseSelect()

	case TkLPar:
		self.L.Next()
		q, err := self.parseQuery()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar, "')' to close query"); err != nil {
			return nil, err
		}
		return q, nil

	default:
		return nil, self.err("unknown statement, expect *select*")
	}
}

// order by, offset and fetch after a query body are attached to the top most
// node of that body
func (self *Parser) parseQueryTail(body QueryNode) error {
	var orderBy *OrderBy
	var offset Expr
	var fetch Expr

LOOP:
	for {
		switch self.L.Token {
		case TkOrderBy:
			if orderBy != nil {
				return self.err("order by clause has already been specified")
			}
			if n, err := self.parseOrderBy(); err != nil {
				return err
			} else {
				orderBy = n
			}
			break

		case TkOffset:
			if offset != nil {
				return self.err("offset clause has already been specified")
			}
			if n, err := self.parseOffset(); err != nil {
				return err
			} else {
				offset = n
			}
			break

		case TkLimit, TkFetch:
			if fetch != nil {
				return self.err("limit/fetch clause has already been specified")
			}
			if n, err := self.parseFetch(); err != nil {
				return err
			} else {
				fetch = n
			}
			break

		default:
			break LOOP
		}
	}

	if orderBy == nil && offset == nil && fetch == nil {
		return nil
	}

	switch body.Type() {
	case QuerySelect:
		s := body.(*Select)
		if fetch != nil && s.Top != nil {
			return self.err("TOP and LIMIT/FETCH cannot be specified together")
		}
		s.OrderBy = orderBy
		s.Offset = offset
		s.Fetch = fetch
		break

	case QueryCombine:
		c := body.(*Combine)
		c.OrderBy = orderBy
		c.Offset = offset
		c.Fetch = fetch
		break

	default:
		return self.err("order by/offset/fetch is not allowed after a parenthesized query")
	}
	return nil
}

func (self *Parser) parseSelect() (*Select, error) {
	start := self.posStart()
	s := &Select{}

	self.L.Next() // skip the *select* keyword

	switch self.L.Token {
	case TkDistinct:
		s.Distinct = true
		if self.L.Next() == TkOn {
			self.L.Next()
			if err := self.expect(TkLPar, "'(' after DISTINCT ON"); err != nil {
				return nil, err
			}
			if l, err := self.parseExprList(); err != nil {
				return nil, err
			} else {
				s.DistinctOn = l
			}
			if err := self.expect(TkRPar, "')' to close DISTINCT ON list"); err != nil {
				return nil, err
			}
		}
		break

	case TkAll:
		self.L.Next()
		break

	default:
		break
	}

	if self.L.Token == TkTop {
		self.L.Next()
		if n, err := self.parseUnary(); err != nil {
			return nil, err
		} else {
			s.Top = n
		}
	}

	// projection
	if n, err := self.parseProjection(); err != nil {
		return nil, err
	} else {
		s.Projection = n
	}

	if self.L.Token == TkInto {
		self.L.Next()
		callStart := self.posStart()
		if !self.isId() {
			return nil, self.err("expect an output function after *into*")
		}
		name := self.L.Lexeme.Text
		if self.L.Next() != TkLPar {
			return nil, self.err("expect a '(' for the output function")
		}
		if n, err := self.parseCallArgs(name, callStart); err != nil {
			return nil, err
		} else {
			s.Into = n
		}
	}

LOOP:
	for {
		switch self.L.Token {
		case TkFrom:
			if s.From != nil {
				return nil, self.err("from cluase has already been specified")
			}

			if n, err := self.parseFrom(); err != nil {
				return nil, err
			} else {
				s.From = n
			}
			break

		case TkWhere:
			if s.Where != nil {
				return nil, self.err("where clause has already been specified")
			}
			if n, err := self.parseWhere(); err != nil {
				return nil, err
			} else {
				s.Where = n
			}
			break

		case TkGroupBy:
			if s.GroupBy != nil {
				return nil, self.err("group by clause has already been specified")
			}
			if n, err := self.parseGroupBy(); err != nil {
				return nil, err
			} else {
				s.GroupBy = n
			}
			break

		case TkHaving:
			if s.Having != nil {
				return nil, self.err("having clause has already been specified")
			}
			if n, err := self.parseHaving(); err != nil {
				return nil, err
			} else {
				s.Having = n
			}
			break

		default:
			break LOOP
		}
	}

	s.CodeInfo = self.currentCodeInfo(start)
	return s, nil
}

func (self *Parser) parseAlias() (string, error) {
	if self.L.Token == TkAs {
		self.L.Next()
		if !self.isId() && self.L.Token != TkStr {
			return "", self.err("expect an alias identifier after *as*")
		}
		alias := self.L.Lexeme.Text
		self.L.Next()
		return alias, nil
	}
	if self.L.Token == TkId {
		alias := self.L.Lexeme.Text
		self.L.Next()
		return alias, nil
	}
	return "", nil
}

func (self *Parser) parseProjectionVar() (SelectVar, error) {
	start := self.posStart()

	switch self.L.Token {
	case TkMul: // star
		self.L.Next()
		return &Star{
			CodeInfo: self.currentCodeInfo(start),
		}, nil

	case TkId:
		// qualified star, ie t.*, needs 2 tokens of look ahead
		saved := *self.L
		qualifier := self.L.Lexeme.Text
		if self.L.Next() == TkDot && self.L.Next() == TkMul {
			self.L.Next()
			return &Star{
				CodeInfo:  self.currentCodeInfo(start),
				Qualifier: qualifier,
			}, nil
		}
		*self.L = saved
		break

	default:
		break
	}

	val, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	alias, err := self.parseAlias()
	if err != nil {
		return nil, err
	}

	return &Col{
		CodeInfo: self.currentCodeInfo(start),
		As:       alias,
		Value:    val,
	}, nil
}

// SQLLIST, which is a name I coin to represent grammar like following :
// element (',' element)*, the difference between the normal one is that the
// list will never be empty.

func (self *Parser) parseSqlList(
	visitor func(int) error,
) error {
	if err := visitor(0); err != nil {
		return err
	}
	idx := 1

	for {
		if self.L.Token != TkComma {
			break
		}
		self.L.Next()
		if err := visitor(idx); err != nil {
			return err
		}
		idx++
	}

	return nil
}

func (self *Parser) parseExprList() ([]Expr, error) {
	out := []Expr{}
	if err := self.parseSqlList(
		func(_ int) error {
			if e, err := self.parseExpr(); err != nil {
				return err
			} else {
				out = append(out, e)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}
	return out, nil
}

func (self *Parser) parseIdList() ([]string, error) {
	out := []string{}
	if err := self.parseSqlList(
		func(_ int) error {
			if !self.isId() {
				return self.err("expect an identifier")
			}
			out = append(out, self.L.Lexeme.Text)
			self.L.Next()
			return nil
		},
	); err != nil {
		return nil, err
	}
	return out, nil
}

func (self *Parser) parseProjection() (*Projection, error) {
	x := SelectVarList{}
	start := self.posStart()

	if err := self.parseSqlList(
		func(_ int) error {
			if n, err := self.parseProjectionVar(); err != nil {
				return err
			} else {
				x = append(x, n)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}

	return &Projection{
		CodeInfo:  self.currentCodeInfo(start),
		ValueList: x,
	}, nil
}

func (self *Parser) parseTableAtom() (FromItem, error) {
	start := self.posStart()

	switch {
	case self.L.Token == TkLPar:
		self.L.Next()

		if self.L.Token == TkSelect || self.L.Token == TkWith {
			q, err := self.parseQuery()
			if err != nil {
				return nil, err
			}
			if err := self.expect(TkRPar, "')' to close subquery"); err != nil {
				return nil, err
			}
			alias, err := self.parseAlias()
			if err != nil {
				return nil, err
			}
			return &FromVar{
				CodeInfo: self.currentCodeInfo(start),
				Query:    q,
				Alias:    alias,
			}, nil
		}

		ref, err := self.parseTableRef()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar, "')' to close table reference"); err != nil {
			return nil, err
		}
		return ref, nil

	case self.isId():
		fromVar := &FromVar{
			Name: self.L.Lexeme.Text,
		}
		self.L.Next()

		if self.L.Token == TkLPar {
			if c, err := self.parseCallArgs(fromVar.Name, start); err != nil {
				return nil, err
			} else {
				fromVar.Call = c
			}
		}

		alias, err := self.parseAlias()
		if err != nil {
			return nil, err
		}
		fromVar.Alias = alias
		fromVar.CodeInfo = self.currentCodeInfo(start)
		return fromVar, nil

	default:
		return nil, self.err("expect a table name, table function or subquery")
	}
}

func (self *Parser) parseTableRef() (FromItem, error) {
	start := self.posStart()

	lhs, err := self.parseTableAtom()
	if err != nil {
		return nil, err
	}

	for {
		kind := -1

		switch self.L.Token {
		case TkJoin:
			kind = JoinInner
			break
		case TkInner:
			kind = JoinInner
			self.L.Next()
			break
		case TkLeft, TkRight, TkFull:
			switch self.L.Token {
			case TkLeft:
				kind = JoinLeft
				break
			case TkRight:
				kind = JoinRight
				break
			default:
				kind = JoinFull
				break
			}
			if self.L.Next() == TkOuter {
				self.L.Next()
			}
			break
		case TkCross:
			kind = JoinCross
			self.L.Next()
			break
		default:
			return lhs, nil
		}

		if err := self.expect(TkJoin, "*join*"); err != nil {
			return nil, err
		}

		rhs, err := self.parseTableAtom()
		if err != nil {
			return nil, err
		}

		join := &Join{
			Kind: kind,
			L:    lhs,
			R:    rhs,
		}

		if kind != JoinCross {
			switch self.L.Token {
			case TkOn:
				self.L.Next()
				if e, err := self.parseExpr(); err != nil {
					return nil, err
				} else {
					join.On = e
				}
				break

			case TkUsing:
				self.L.Next()
				if err := self.expect(TkLPar, "'(' after *using*"); err != nil {
					return nil, err
				}
				if names, err := self.parseIdList(); err != nil {
					return nil, err
				} else {
					join.Using = names
				}
				if err := self.expect(TkRPar, "')' to close *using* list"); err != nil {
					return nil, err
				}
				break

			default:
				return nil, self.err("expect *on* or *using* for join condition")
			}
		}

		join.CodeInfo = self.currentCodeInfo(start)
		lhs = join
	}
}

func (self *Parser) parseFrom() (*From, error) {
	from := &From{}
	start := self.posStart()

	self.L.Next() // eat the *from*

	if err := self.parseSqlList(
		func(_ int) error {
			if n, err := self.parseTableRef(); err != nil {
				return err
			} else {
				from.VarList = append(from.VarList, n)
			}
			return nil
		},
	); err != nil {
		return nil, err
	}

	from.CodeInfo = self.currentCodeInfo(start)
	return from, nil
}

func (self *Parser) parseWhere() (*Where, error) {
	start := self.posStart()

	self.L.Next()
	if n, err := self.parseExpr(); err != nil {
		return nil, err
	} else {
		return &Where{
			CodeInfo:  self.currentCodeInfo(start),
			Condition: n,
		}, nil
	}
}

func (self *Parser) parseGroupBy() (*GroupBy, error) {
	start := self.posStart()

	self.L.Next() // eat group by

	l, err := self.parseExprList()
	if err != nil {
		return nil, err
	}

	return &GroupBy{
		CodeInfo: self.currentCodeInfo(start),
		Name:     l,
	}, nil
}

func (self *Parser) parseHaving() (*Having, error) {
	if x, err := self.parseWhere(); err != nil {
		return nil, err
	} else {
		return (*Having)(x), nil
	}
}

func (self *Parser) parseOrderBy() (*OrderBy, error) {
	oB := &OrderBy{}
	start := self.posStart()
	self.L.Next() // eat order by

	if err := self.parseSqlList(
		func(_ int) error {
			item := &OrderItem{}
			if c, err := self.parseExpr(); err != nil {
				return err
			} else {
				item.Value = c
			}

			switch self.L.Token {
			case TkAsc:
				self.L.Next()
				break
			case TkDesc:
				item.Desc = true
				self.L.Next()
				break
			default:
				break
			}

			if self.L.Token == TkNulls {
				switch self.L.Next() {
				case TkFirst:
					item.Nulls = NullsFirst
					break
				case TkLast:
					item.Nulls = NullsLast
					break
				default:
					return self.err("expect FIRST or LAST after NULLS")
				}
				self.L.Next()
			}

			oB.Items = append(oB.Items, item)
			return nil
		},
	); err != nil {
		return nil, err
	}

	oB.CodeInfo = self.currentCodeInfo(start)
	return oB, nil
}

func (self *Parser) parseOffset() (Expr, error) {
	self.L.Next()
	e, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if self.L.Token == TkRow || self.L.Token == TkRows {
		self.L.Next()
	}
	return e, nil
}

func (self *Parser) parseFetch() (Expr, error) {
	start := self.posStart()

	if self.L.Token == TkLimit {
		self.L.Next()
		return self.parseExpr()
	}

	// FETCH FIRST|NEXT n ROWS ONLY, the count defaults to 1
	switch self.L.Next() {
	case TkFirst, TkNext:
		self.L.Next()
		break
	default:
		return nil, self.err("expect FIRST or NEXT after FETCH")
	}

	var count Expr
	if self.L.Token == TkRow || self.L.Token == TkRows {
		count = &Const{
			Node: self.node(start),
			Ty:   ConstInt,
			Int:  1,
		}
	} else {
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			count = e
		}
		if self.L.Token != TkRow && self.L.Token != TkRows {
			return nil, self.err("expect ROW or ROWS after FETCH count")
		}
	}
	self.L.Next()

	if err := self.expect(TkOnly, "ONLY to finish FETCH clause"); err != nil {
		return nil, err
	}
	return count, nil
}

// ----------------------------------------------------------------------------
// Expression Parsing
// ----------------------------------------------------------------------------

func (self *Parser) parseExpr() (Expr, error) {
	return self.parseTernary()
}

func (self *Parser) parseTernary() (Expr, error) {
	start := self.posStart()

	cond, err := self.parseBinary()
	if err != nil {
		return nil, err
	}

	// check whether we have a ? mark
	if self.L.Token == TkQuestion {
		self.L.Next()

		l, err := self.parseBinary()
		if err != nil {
			return nil, err
		}

		if err := self.expect(TkColon, "':' for ternary expression"); err != nil {
			return nil, err
		}

		r, err := self.parseBinary()
		if err != nil {
			return nil, err
		}

		return &Ternary{
			Node: self.node(start),
			Cond: cond,
			B0:   l,
			B1:   r,
		}, nil
	}
	return cond, nil
}

const maxOpPrec = 7
const invalidOpPrec = -1
const precNot = 2
const precPredicate = 3

func (self *Parser) binPrec(tk int) int {
	switch tk {
	case TkOr:
		return 0
	case TkAnd:
		return 1
	case TkEq, TkNe, TkLt, TkLe, TkGt, TkGe, TkIn, TkBetween, TkLike, TkIs, TkNot:
		return precPredicate
	case TkConcat:
		return 4
	case TkAdd, TkSub:
		return 5
	case TkMul, TkDiv, TkMod:
		return 6
	default:
		return invalidOpPrec
	}
}

// Binary parsing, precedence climbing
func (self *Parser) doParseBin(prec int) (Expr, error) {
	if prec == maxOpPrec {
		return self.parseUnary()
	}

	start := self.posStart()

	var l Expr

	// prefix NOT binds looser than the predicates, ie NOT a = b is NOT (a = b)
	if self.L.Token == TkNot && prec <= precNot {
		self.L.Next()
		operand, err := self.doParseBin(precNot)
		if err != nil {
			return nil, err
		}
		l = &Unary{
			Node:    self.node(start),
			Op:      TkNot,
			Operand: operand,
		}
	} else {
		operand, err := self.parseUnary()
		if err != nil {
			return nil, err
		}
		l = operand
	}

	return self.doParseBinRest(l, prec, start)
}

func (self *Parser) parseBinary() (Expr, error) {
	return self.doParseBin(0)
}

func (self *Parser) parseSubqueryInPar() (*Query, error) {
	if err := self.expect(TkLPar, "'(' to start subquery"); err != nil {
		return nil, err
	}
	q, err := self.parseQuery()
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkRPar, "')' to close subquery"); err != nil {
		return nil, err
	}
	return q, nil
}

func (self *Parser) doParseBinInRHS(
	in *In,
) error {
	if err := self.expect(TkLPar, "'(' for IN operator's rhs"); err != nil {
		return err
	}

	if self.L.Token == TkSelect || self.L.Token == TkWith {
		q, err := self.parseQuery()
		if err != nil {
			return err
		}
		in.Query = q
	} else {
		if self.L.Token == TkRPar {
			return self.err("IN operator's RHS is an empty set, which is not allowed")
		}
		l, err := self.parseExprList()
		if err != nil {
			return err
		}
		in.List = l
	}

	return self.expect(TkRPar, "')' to close IN operator's rhs")
}

func (self *Parser) doParseBinRest(lhs Expr,
	prec int,
	start int,
) (Expr, error) {

	for {
		tk := self.L.Token
		nextPrec := self.binPrec(tk)

		if nextPrec == invalidOpPrec {
			break
		} else if nextPrec < prec {
			break
		}

		ntk := self.L.Next() // eat the operator token
		not := false

		if tk == TkNot {
			switch ntk {
			case TkIn, TkBetween, TkLike:
				tk = ntk
				not = true
				self.L.Next()
				break
			default:
				return nil, self.err(
					"NOT operator shows up, but expect a suffix operator, " +
						"example like NOT IN, NOT BETWEEN, NOT LIKE",
				)
			}
		}

		var newNode Expr
		switch tk {
		case TkBetween:
			lower, err := self.doParseBin(nextPrec + 1)
			if err != nil {
				return nil, err
			}
			if err := self.expect(TkAnd, "AND for BETWEEN operator"); err != nil {
				return nil, err
			}
			upper, err := self.doParseBin(nextPrec + 1)
			if err != nil {
				return nil, err
			}
			newNode = &Between{
				Node:    self.node(start),
				Not:     not,
				Operand: lhs,
				Lower:   lower,
				Upper:   upper,
			}
			break

		case TkIn:
			in := &In{
				Not:     not,
				Operand: lhs,
			}
			if err := self.doParseBinInRHS(in); err != nil {
				return nil, err
			}
			in.Node = self.node(start)
			newNode = in
			break

		case TkIs:
			isNull := &IsNull{
				Operand: lhs,
			}
			if self.L.Token == TkNot {
				isNull.Not = true
				self.L.Next()
			}
			if err := self.expect(TkNull, "NULL after IS"); err != nil {
				return nil, err
			}
			isNull.Node = self.node(start)
			newNode = isNull
			break

		case TkLike:
			v, err := self.doParseBin(nextPrec + 1)
			if err != nil {
				return nil, err
			}
			op := TkLike
			if not {
				op = TkNotLike
			}
			newNode = &Binary{
				Node: self.node(start),
				Op:   op,
				L:    lhs,
				R:    v,
			}
			break

		default:
			if IsComparisonOp(tk) && (ntk == TkAny || ntk == TkSome || ntk == TkAll) {
				all := ntk == TkAll
				self.L.Next()
				q, err := self.parseSubqueryInPar()
				if err != nil {
					return nil, err
				}
				newNode = &Quantified{
					Node:    self.node(start),
					Op:      tk,
					All:     all,
					Operand: lhs,
					Query:   q,
				}
				break
			}

			v, err := self.doParseBin(nextPrec + 1)
			if err != nil {
				return nil, err
			}
			newNode = &Binary{
				Node: self.node(start),
				Op:   tk,
				L:    lhs,
				R:    v,
			}
			break
		}

		lhs = newNode
	}

	return lhs, nil
}

func (self *Parser) parseUnary() (Expr, error) {
	start := self.posStart()

	switch self.L.Token {
	case TkAdd:
		self.L.Next()
		return self.parseUnary()

	case TkSub:
		self.L.Next()
		operand, err := self.parseUnary()
		if err != nil {
			return nil, err
		}

		// fold negative literal
		if c, ok := operand.(*Const); ok {
			switch c.Ty {
			case ConstInt:
				c.Int = -c.Int
				c.CodeInfo = self.currentCodeInfo(start)
				return c, nil
			case ConstReal:
				c.Real = -c.Real
				c.CodeInfo = self.currentCodeInfo(start)
				return c, nil
			default:
				break
			}
		}

		return &Unary{
			Node:    self.node(start),
			Op:      TkSub,
			Operand: operand,
		}, nil

	case TkNot:
		// ie "!x" within an arithmetic operand
		self.L.Next()
		operand, err := self.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{
			Node:    self.node(start),
			Op:      TkNot,
			Operand: operand,
		}, nil

	default:
		return self.parsePrimary()
	}
}

func (self *Parser) parseTypeName() (string, error) {
	if self.L.Token != TkId {
		return "", self.err("expect a type name")
	}
	name := self.L.Lexeme.Text
	self.L.Next()

	// type modifiers, ie varchar(10), are accepted and ignored
	if self.L.Token == TkLPar {
		for self.L.Token != TkRPar {
			if self.L.Token == TkEof || self.L.Token == TkError {
				return "", self.err("type modifier is not closed")
			}
			self.L.Next()
		}
		self.L.Next()
	}
	return name, nil
}

func (self *Parser) parsePrimary() (Expr, error) {
	start := self.posStart()

	atomic, err := self.parseAtomic()
	if err != nil {
		return nil, err
	}

	for self.L.Token == TkDColon {
		self.L.Next()
		name, err := self.parseTypeName()
		if err != nil {
			return nil, err
		}
		atomic = &Cast{
			Node:     self.node(start),
			Operand:  atomic,
			TypeName: name,
		}
	}

	return atomic, nil
}

func (self *Parser) parseCallArgs(name string, start int) (*Call, error) {
	call := &Call{
		Name:       name,
		Parameters: []Expr{},
	}

	self.L.Next() // eat '('

	switch self.L.Token {
	case TkRPar:
		break

	case TkMul:
		call.Star = true
		self.L.Next()
		break

	default:
		if self.L.Token == TkDistinct {
			call.Distinct = true
			self.L.Next()
		}
		l, err := self.parseExprList()
		if err != nil {
			return nil, err
		}
		call.Parameters = l
		break
	}

	if err := self.expect(TkRPar, "')' to close function call"); err != nil {
		return nil, err
	}

	call.Node = self.node(start)
	return call, nil
}

func (self *Parser) parseCase() (Expr, error) {
	start := self.posStart()
	c := &Case{}

	self.L.Next() // eat case

	if self.L.Token != TkWhen {
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			c.Operand = e
		}
	}

	for self.L.Token == TkWhen {
		self.L.Next()
		w := &When{}
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			w.Cond = e
		}
		if err := self.expect(TkThen, "*then* after *when* condition"); err != nil {
			return nil, err
		}
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			w.Value = e
		}
		c.When = append(c.When, w)
	}

	if len(c.When) == 0 {
		return nil, self.err("expect at least one *when* branch for case")
	}

	if self.L.Token == TkElse {
		self.L.Next()
		if e, err := self.parseExpr(); err != nil {
			return nil, err
		} else {
			c.Else = e
		}
	}

	if err := self.expect(TkEnd, "*end* to close case"); err != nil {
		return nil, err
	}

	c.Node = self.node(start)
	return c, nil
}

func (self *Parser) parseConstExpr() *Const {
	start := self.posStart()

	c := &Const{}

	switch self.L.Token {
	case TkTrue, TkFalse:
		c.Ty = ConstBool
		c.Bool = self.L.Token == TkTrue
		break

	case TkNull:
		c.Ty = ConstNull
		break

	case TkStr:
		c.Ty = ConstStr
		c.String = self.L.Lexeme.Text
		break

	case TkInt:
		c.Ty = ConstInt
		c.Int = self.L.Lexeme.Int
		break

	case TkReal:
		c.Ty = ConstReal
		c.Real = self.L.Lexeme.Real
		break

	default:
		return nil
	}

	self.L.Next()
	c.Node = self.node(start)
	return c
}

func (self *Parser) parseAtomic() (Expr, error) {
	start := self.posStart()

	switch self.L.Token {
	// =======================================================================
	// Const value

	case TkTrue, TkFalse, TkNull, TkStr, TkInt, TkReal:
		return self.parseConstExpr(), nil

	case TkLPar:
		self.L.Next()

		if self.L.Token == TkSelect || self.L.Token == TkWith {
			q, err := self.parseQuery()
			if err != nil {
				return nil, err
			}
			if err := self.expect(TkRPar, "')' to close subquery"); err != nil {
				return nil, err
			}
			return &Subquery{
				Node:  self.node(start),
				Query: q,
			}, nil
		}

		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar, "')' to close expression"); err != nil {
			return nil, err
		}
		return e, nil

	case TkExists:
		self.L.Next()
		q, err := self.parseSubqueryInPar()
		if err != nil {
			return nil, err
		}
		return &Exists{
			Node:  self.node(start),
			Query: q,
		}, nil

	case TkCase:
		return self.parseCase()

	case TkCast:
		self.L.Next()
		if err := self.expect(TkLPar, "'(' after *cast*"); err != nil {
			return nil, err
		}
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkAs, "*as* inside of cast"); err != nil {
			return nil, err
		}
		name, err := self.parseTypeName()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar, "')' to close cast"); err != nil {
			return nil, err
		}
		return &Cast{
			Node:     self.node(start),
			Operand:  e,
			TypeName: name,
		}, nil

	default:
		if !self.isId() {
			return nil, self.err("unexpected token for expression")
		}

		id := self.L.Lexeme.Text
		self.L.Next()

		switch self.L.Token {
		case TkLPar:
			return self.parseCallArgs(id, start)

		case TkDot:
			if self.L.Next(); !self.isId() {
				return nil, self.err("expect a column name after '.'")
			}
			name := self.L.Lexeme.Text
			self.L.Next()
			return &Ref{
				Node:      self.node(start),
				Qualifier: id,
				Name:      name,
			}, nil

		default:
			return &Ref{
				Node: self.node(start),
				Name: id,
			}, nil
		}
	}
}
