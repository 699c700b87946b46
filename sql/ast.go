package sql

const (
	ConstNull = iota
	ConstBool
	ConstStr
	ConstInt
	ConstReal
)

const (
	ExprConst = iota
	ExprRef
	ExprCall
	ExprUnary
	ExprBinary
	ExprTernary
	ExprBetween
	ExprIn
	ExprIsNull
	ExprExists
	ExprSubquery
	ExprQuantified
	ExprCase
	ExprCast
)

const (
	SelectVarCol = iota
	SelectVarStar
)

const (
	QuerySelect = iota
	QueryCombine
	QueryNested
)

const (
	CombineUnion = iota
	CombineUnionAll
	CombineExcept
	CombineIntersect
)

const (
	FromTable = iota
	FromJoin
)

const (
	JoinInner = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

const (
	NullsDefault = iota
	NullsFirst
	NullsLast
)

type CodeInfo struct {
	Start   int
	End     int
	Snippet string
}

// Node is embedded by every expression. Id is assigned by the parser in
// creation order and is unique within one statement, the planner uses it to
// key per node records instead of hanging state on the tree.
type Node struct {
	Id       int
	CodeInfo CodeInfo
}

func (self *Node) NodeId() int     { return self.Id }
func (self *Node) CInfo() CodeInfo { return self.CodeInfo }

/** -------------------------------------------------------------------------
 ** Statement
 ** -----------------------------------------------------------------------*/

type Statement struct {
	CodeInfo CodeInfo
	Query    *Query

	// number of expression ids handed out while parsing
	NodeCount int
}

type With struct {
	CodeInfo  CodeInfo
	Recursive bool
	List      []*CTE
}

type CTE struct {
	CodeInfo CodeInfo
	Name     string
	Columns  []string
	Query    *Query
}

// QueryNode is either a single select block, a combine of 2 query nodes or a
// parenthesized query with its own with clause
type QueryNode interface {
	Type() int
	CInfo() CodeInfo
}

type Query struct {
	CodeInfo CodeInfo
	With     *With
	Body     QueryNode
}

func (self *Query) Type() int       { return QueryNested }
func (self *Query) CInfo() CodeInfo { return self.CodeInfo }

type Combine struct {
	CodeInfo CodeInfo
	Op       int
	L        QueryNode
	R        QueryNode
	OrderBy  *OrderBy
	Offset   Expr
	Fetch    Expr
}

func (self *Combine) Type() int       { return QueryCombine }
func (self *Combine) CInfo() CodeInfo { return self.CodeInfo }

type SelectVar interface {
	Type() int
	CInfo() CodeInfo

	// If the field has an aliased, via as keyword, then it returns otherwise
	// returns an empty string
	Alias() string
}

type Col struct {
	CodeInfo CodeInfo
	As       string
	Value    Expr
}

// Star is either * or qualifier.*
type Star struct {
	CodeInfo  CodeInfo
	Qualifier string
}

func (self *Col) Type() int       { return SelectVarCol }
func (self *Col) CInfo() CodeInfo { return self.CodeInfo }
func (self *Col) Alias() string   { return self.As }

func (self *Star) Type() int       { return SelectVarStar }
func (self *Star) CInfo() CodeInfo { return self.CodeInfo }
func (self *Star) Alias() string   { return "" }

type SelectVarList []SelectVar

type Projection struct {
	CodeInfo  CodeInfo
	ValueList SelectVarList
}

func (self *SelectVarList) HasStar() bool {
	for _, y := range *self {
		if y.Type() == SelectVarStar {
			return true
		}
	}
	return false
}

func (self *Projection) HasStar() bool {
	return self.ValueList.HasStar()
}

type FromItem interface {
	Type() int
	CInfo() CodeInfo
}

// FromVar is a single table atom: a variable name, a table function call or a
// subquery
type FromVar struct {
	CodeInfo CodeInfo
	Name     string
	Call     *Call
	Query    *Query
	Alias    string
}

type Join struct {
	CodeInfo CodeInfo
	Kind     int
	L        FromItem
	R        FromItem
	On       Expr
	Using    []string
}

func (self *FromVar) Type() int       { return FromTable }
func (self *FromVar) CInfo() CodeInfo { return self.CodeInfo }

func (self *Join) Type() int       { return FromJoin }
func (self *Join) CInfo() CodeInfo { return self.CodeInfo }

// Name used to qualify the columns of the table atom
func (self *FromVar) Qualifier() string {
	if self.Alias != "" {
		return self.Alias
	}
	return self.Name
}

type From struct {
	CodeInfo CodeInfo
	VarList  []FromItem
}

type Where struct {
	CodeInfo  CodeInfo
	Condition Expr
}

type Having Where

type GroupBy struct {
	CodeInfo CodeInfo
	Name     []Expr
}

type OrderItem struct {
	Value Expr
	Desc  bool
	Nulls int
}

type OrderBy struct {
	CodeInfo CodeInfo
	Items    []*OrderItem
}

type Select struct {
	CodeInfo   CodeInfo
	Distinct   bool
	DistinctOn []Expr
	Top        Expr

	Projection *Projection
	Into       *Call
	From       *From
	Where      *Where
	GroupBy    *GroupBy
	Having     *Having
	OrderBy    *OrderBy
	Offset     Expr
	Fetch      Expr
}

func (self *Select) Type() int       { return QuerySelect }
func (self *Select) CInfo() CodeInfo { return self.CodeInfo }

/** -------------------------------------------------------------------------
 ** Expression
 ** -----------------------------------------------------------------------*/

type Expr interface {
	Type() int
	NodeId() int
	CInfo() CodeInfo
}

type Const struct {
	Node
	Ty     int
	Bool   bool
	String string
	Real   float64
	Int    int64
}

// Ref is a column or variable reference, optionally qualified
type Ref struct {
	Node
	Qualifier string
	Name      string
}

type Call struct {
	Node
	Name       string
	Parameters []Expr
	Star       bool // f(*)
	Distinct   bool // f(distinct x)
}

type Unary struct {
	Node
	Op      int
	Operand Expr
}

type Binary struct {
	Node
	Op int
	L  Expr
	R  Expr
}

type Ternary struct {
	Node
	Cond Expr
	B0   Expr
	B1   Expr
}

type Between struct {
	Node
	Not     bool
	Operand Expr
	Lower   Expr
	Upper   Expr
}

// In either carries a value list or a subquery
type In struct {
	Node
	Not     bool
	Operand Expr
	List    []Expr
	Query   *Query
}

type IsNull struct {
	Node
	Not     bool
	Operand Expr
}

type Exists struct {
	Node
	Query *Query
}

type Subquery struct {
	Node
	Query *Query
}

// Quantified is "operand <op> ANY|ALL (query)"
type Quantified struct {
	Node
	Op      int
	All     bool
	Operand Expr
	Query   *Query
}

type When struct {
	Cond  Expr
	Value Expr
}

type Case struct {
	Node
	Operand Expr // optional, simple case form
	When    []*When
	Else    Expr
}

type Cast struct {
	Node
	Operand  Expr
	TypeName string
}

func (self *Const) Type() int      { return ExprConst }
func (self *Ref) Type() int        { return ExprRef }
func (self *Call) Type() int       { return ExprCall }
func (self *Unary) Type() int      { return ExprUnary }
func (self *Binary) Type() int     { return ExprBinary }
func (self *Ternary) Type() int    { return ExprTernary }
func (self *Between) Type() int    { return ExprBetween }
func (self *In) Type() int         { return ExprIn }
func (self *IsNull) Type() int     { return ExprIsNull }
func (self *Exists) Type() int     { return ExprExists }
func (self *Subquery) Type() int   { return ExprSubquery }
func (self *Quantified) Type() int { return ExprQuantified }
func (self *Case) Type() int       { return ExprCase }
func (self *Cast) Type() int       { return ExprCast }

// FullName returns qualifier.name or just the name
func (self *Ref) FullName() string {
	if self.Qualifier == "" {
		return self.Name
	}
	return self.Qualifier + "." + self.Name
}

func IsComparisonOp(tk int) bool {
	switch tk {
	case TkEq, TkNe, TkLt, TkLe, TkGt, TkGe:
		return true
	default:
		return false
	}
}
