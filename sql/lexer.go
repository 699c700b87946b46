package sql

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// Literal
	TkTrue = iota
	TkFalse
	TkInt
	TkReal
	TkNull
	TkStr
	TkId

	// Keywords
	TkSelect
	TkFrom
	TkAs
	TkCast
	TkWhere
	TkGroupBy
	TkOrderBy
	TkLimit
	TkHaving
	TkDistinct
	TkIn
	TkBetween
	TkCase
	TkWhen
	TkElse
	TkThen
	TkEnd
	TkLike
	TkIs
	TkExists
	TkAny
	TkSome
	TkAll
	TkUnion
	TkExcept
	TkIntersect
	TkWith
	TkRecursive
	TkJoin
	TkInner
	TkLeft
	TkRight
	TkFull
	TkOuter
	TkCross
	TkOn
	TkUsing
	TkAsc
	TkDesc
	TkNulls
	TkFirst
	TkLast
	TkOffset
	TkFetch
	TkNext
	TkRow
	TkRows
	TkOnly
	TkTop
	TkInto

	// Punctuation
	TkComma
	TkSemicolon
	TkColon
	TkDColon
	TkQuestion

	TkLPar
	TkRPar

	TkAdd
	TkSub
	TkMul
	TkDiv
	TkMod
	TkConcat

	TkLt
	TkLe
	TkGt
	TkGe
	TkEq
	TkNe

	TkAnd
	TkOr
	TkNot

	TkDot

	TkError
	TkEof

	// Special hidden tokens that will never showsup during lexing, used inside
	// of parser for preprocessing/desugar purpose
	TkNotLike
)

var keywords = map[string]int{
	"true":      TkTrue,
	"false":     TkFalse,
	"null":      TkNull,
	"select":    TkSelect,
	"from":      TkFrom,
	"as":        TkAs,
	"cast":      TkCast,
	"where":     TkWhere,
	"limit":     TkLimit,
	"having":    TkHaving,
	"distinct":  TkDistinct,
	"in":        TkIn,
	"between":   TkBetween,
	"case":      TkCase,
	"when":      TkWhen,
	"else":      TkElse,
	"then":      TkThen,
	"end":       TkEnd,
	"like":      TkLike,
	"is":        TkIs,
	"exists":    TkExists,
	"any":       TkAny,
	"some":      TkSome,
	"all":       TkAll,
	"union":     TkUnion,
	"except":    TkExcept,
	"intersect": TkIntersect,
	"with":      TkWith,
	"recursive": TkRecursive,
	"join":      TkJoin,
	"inner":     TkInner,
	"left":      TkLeft,
	"right":     TkRight,
	"full":      TkFull,
	"outer":     TkOuter,
	"cross":     TkCross,
	"on":        TkOn,
	"using":     TkUsing,
	"asc":       TkAsc,
	"desc":      TkDesc,
	"nulls":     TkNulls,
	"first":     TkFirst,
	"last":      TkLast,
	"offset":    TkOffset,
	"fetch":     TkFetch,
	"next":      TkNext,
	"row":       TkRow,
	"rows":      TkRows,
	"only":      TkOnly,
	"top":       TkTop,
	"into":      TkInto,
	"and":       TkAnd,
	"or":        TkOr,
	"not":       TkNot,
}

// soft keywords can still be used as plain identifiers, ie a column named
// "first" or "rows"
func isSoftKeyword(tk int) bool {
	switch tk {
	case TkAsc, TkDesc, TkNulls, TkFirst, TkLast, TkOffset, TkFetch, TkNext,
		TkRow, TkRows, TkOnly, TkTop, TkRecursive, TkLeft, TkRight:
		return true
	default:
		return false
	}
}

type Lexeme struct {
	Text string
	Int  int64
	Real float64
}

type Lexer struct {
	Source  string
	Cursor  int
	Token   int
	Lexeme  Lexeme
	Start   int // start of the current token
	PrevEnd int // end of the previous token
}

func (self *Lexer) nextRune() (rune, int) {
	if self.Cursor >= len(self.Source) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(self.Source[self.Cursor:])
}

func (self *Lexer) nextRune2() rune {
	if self.Cursor+1 >= len(self.Source) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(self.Source[self.Cursor+1:])
	return r
}

func (self *Lexer) yield(tk int, sz int) int {
	self.Token = tk
	self.Cursor += sz
	return tk
}

func (self *Lexer) eof() int {
	self.Token = TkEof
	return TkEof
}

// generate a debug position for diagnostic information output
func (self *Lexer) pos(where int, source string) (int, int) {
	line := 1
	col := 1

	for idx, r := range source {
		if idx >= where {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return line, col
}

func (self *Lexer) dinfo() string {
	line, col := self.pos(self.Cursor, self.Source)
	return fmt.Sprintf("around position(%d: %d)", line, col)
}

func (self *Lexer) err(msg string) int {
	self.Lexeme.Text = fmt.Sprintf("%s: %s", self.dinfo(), msg)
	self.Token = TkError
	return TkError
}

func (self *Lexer) errE(err error) int {
	return self.err(err.Error())
}

func (self *Lexer) errUtf8() int {
	return self.err("invalid utf8 character")
}

func (self *Lexer) lexLineComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				return true // last line break, ie reaching end of the file
			} else {
				self.errUtf8()
				return false
			}
		}

		self.Cursor += sz

		if r == '\n' {
			break
		}
	}

	return true
}

func (self *Lexer) lexBlockComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				self.err("block comment is not closed properly")
			} else {
				self.errUtf8()
			}
			return false
		}

		if r == '*' && self.nextRune2() == '/' {
			self.Cursor += 2
			break
		}

		self.Cursor += sz
	}

	return true
}

// 1) exponential sign or dot digit indicates a real number
// 2) 0x prefix is allowed for integer
// 3) otherwise treated as 64 bits number

func (self *Lexer) lexNum(c rune) int {
	hasDot := false
	hasE := false
	hexSign := false

	buf := &bytes.Buffer{}

	buf.WriteRune(c)

	self.Cursor++ // skip first rune

	if c == '0' {
		if r, _ := self.nextRune(); r == 'x' || r == 'X' {
			hexSign = true
			buf.Reset()
			self.Cursor++
		}
	}

loop:
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				break
			} else {
				return self.errUtf8()
			}
		}

		switch {
		case r == '.' && !hexSign && !hasDot && !hasE:
			if !unicode.IsDigit(self.nextRune2()) {
				break loop
			}
			hasDot = true
			break

		case (r == 'e' || r == 'E') && !hexSign && !hasE:
			hasE = true
			if n := self.nextRune2(); n == '-' || n == '+' {
				buf.WriteRune(r)
				self.Cursor += sz
				r = n
			}
			break

		case r >= '0' && r <= '9':
			break

		case hexSign && strings.ContainsRune("abcdefABCDEF", r):
			break

		default:
			break loop
		}

		buf.WriteRune(r)
		self.Cursor += sz
	}

	if hasDot || hasE {
		f, err := strconv.ParseFloat(buf.String(), 64)
		if err != nil {
			return self.errE(err)
		}
		self.Lexeme.Real = f
		self.Token = TkReal
		return TkReal
	}

	base := 10
	if hexSign {
		base = 16
	}
	i, err := strconv.ParseInt(buf.String(), base, 64)
	if err != nil {
		return self.errE(err)
	}
	self.Lexeme.Int = i
	self.Token = TkInt
	return TkInt
}

// single quoted string literal, a doubled quote or a backslash escapes
func (self *Lexer) lexStr(quote rune) int {
	buf := &bytes.Buffer{}

	self.Cursor++
	self.Lexeme.Text = ""

	for {
		c, sz := self.nextRune()

		if c == utf8.RuneError {
			if sz == 0 {
				return self.err("string literal is not closed by quote properly")
			} else {
				return self.errUtf8()
			}
		}

		if c == quote {
			if self.nextRune2() == quote {
				buf.WriteRune(quote)
				self.Cursor += 2
				continue
			}
			self.Cursor += sz
			break
		}

		if c == '\\' {
			cc := self.nextRune2()
			switch cc {
			case 't':
				buf.WriteRune('\t')
				break
			case 'n':
				buf.WriteRune('\n')
				break
			case 'r':
				buf.WriteRune('\r')
				break
			case '\'', '"', '\\':
				buf.WriteRune(cc)
				break
			default:
				// unknown escapes are kept as is, LIKE and regex patterns need them
				buf.WriteRune('\\')
				self.Cursor++
				continue
			}
			self.Cursor += 2
			continue
		}

		buf.WriteRune(c)
		self.Cursor += sz
	}

	self.Lexeme.Text = buf.String()
	self.Token = TkStr
	return self.Token
}

// quoted identifier, ie "order" or `order`, keeps the case and never becomes a
// keyword
func (self *Lexer) lexQuotedId(quote rune) int {
	start := self.Cursor + 1
	end := strings.IndexRune(self.Source[start:], quote)
	if end < 0 {
		return self.err("quoted identifier is not closed properly")
	}
	self.Lexeme.Text = self.Source[start : start+end]
	self.Cursor = start + end + 1
	self.Token = TkId
	return TkId
}

func (self *Lexer) matchkeyword(str string, offset int) bool {
	c := self.Cursor + offset
	tar := []rune(str)

	for idx := 0; idx < len(tar); idx++ {
		if c >= len(self.Source) {
			return false
		}
		r, sz := utf8.DecodeRuneInString(self.Source[c:]) // make sure to be case insensitive

		if unicode.ToLower(r) != tar[idx] {
			return false
		}
		c += sz
	}

	if c >= len(self.Source) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(self.Source[c:])
	return !self.isIdChar(r)
}

func (self *Lexer) matchKeyword2(w1, w2 string) (bool, int) {
	if !self.matchkeyword(w1, 1) {
		return false, -1
	}

	off := 1 + len(w1)

	// skip all the whitespace that is in between
	for self.Cursor+off < len(self.Source) {
		r, _ := utf8.DecodeRuneInString(self.Source[self.Cursor+off:])
		if self.isWS(r) {
			off++
		} else {
			break
		}
	}

	if self.Cursor+off >= len(self.Source) {
		return false, -1
	}

	if self.matchkeyword(w2, off) {
		return true, off + len(w2)
	} else {
		return false, -1
	}
}

func (self *Lexer) isWS(r rune) bool {
	switch r {
	case ' ', '\r', '\t', '\n', '\b', '\v':
		return true
	default:
		return false
	}
}

func (self *Lexer) isIdChar(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func (self *Lexer) isIdLeadingChar(r rune) bool {
	return r == '_' || r == '$' || r == '@' || unicode.IsLetter(r)
}

// multi words keywords, the rest are resolved from the keyword table once the
// identifier is scanned
func (self *Lexer) tryKeyword(c rune) (bool, int) {
	switch c {
	case 'g', 'G':
		if yes, length := self.matchKeyword2("roup", "by"); yes {
			return true, self.yield(TkGroupBy, length)
		}
		break

	case 'o', 'O':
		if yes, length := self.matchKeyword2("rder", "by"); yes {
			return true, self.yield(TkOrderBy, length)
		}
		break

	default:
		break
	}

	return false, 0
}

func (self *Lexer) lexId(c rune) int {
	if !self.isIdLeadingChar(c) {
		return self.err("invalid leading character of identifier")
	}

	start := self.Cursor
	_, sz := self.nextRune()
	self.Cursor += sz

	for {
		c, sz := self.nextRune()
		if c == utf8.RuneError || !self.isIdChar(c) {
			break
		}
		self.Cursor += sz
	}

	self.Lexeme.Text = self.Source[start:self.Cursor]
	if tk, ok := keywords[strings.ToLower(self.Lexeme.Text)]; ok {
		self.Token = tk
		return tk
	}
	self.Token = TkId
	return TkId
}

func (self *Lexer) lexKeywordOrId(c rune) int {
	if yes, tk := self.tryKeyword(c); yes {
		return tk
	}
	return self.lexId(c)
}

func (self *Lexer) Next() int {
	self.PrevEnd = self.Cursor
	if self.Token == TkEof {
		return TkEof
	}

	if self.Cursor == len(self.Source) {
		self.Token = TkEof
		return TkEof
	}

	return self.next()
}

func (self *Lexer) next() int {
	for {
		self.Start = self.Cursor
		c, sz := self.nextRune()
		if c == utf8.RuneError {
			if sz == 0 {
				return self.eof()
			} else {
				return self.errUtf8()
			}
		}

		switch c {
		case ',':
			return self.yield(TkComma, 1)

		case ':':
			if self.nextRune2() == ':' {
				return self.yield(TkDColon, 2)
			} else {
				return self.yield(TkColon, 1)
			}

		case ';':
			return self.yield(TkSemicolon, 1)

		case '.':
			return self.yield(TkDot, 1)

		case '?':
			return self.yield(TkQuestion, 1)

		case '(':
			return self.yield(TkLPar, 1)
		case ')':
			return self.yield(TkRPar, 1)

		case '+':
			return self.yield(TkAdd, 1)
		case '-':
			if self.nextRune2() == '-' {
				self.Cursor += 2
				if !self.lexLineComment() {
					return self.Token
				}
				break
			}
			return self.yield(TkSub, 1)
		case '*':
			return self.yield(TkMul, 1)
		case '/':
			cc := self.nextRune2()
			if cc == '/' {
				self.Cursor += 2
				if !self.lexLineComment() {
					return self.Token
				}
				break
			} else if cc == '*' {
				self.Cursor += 2
				if !self.lexBlockComment() {
					return self.Token
				}
				break
			} else {
				return self.yield(TkDiv, 1)
			}

		case '%':
			return self.yield(TkMod, 1)

		case '&':
			if self.nextRune2() == '&' {
				return self.yield(TkAnd, 2)
			}
			return self.err("are you missing '&' for and operator?")

		case '|':
			if self.nextRune2() == '|' {
				return self.yield(TkConcat, 2)
			}
			return self.err("are you missing '|' for concat operator?")

		case '=':
			if self.nextRune2() == '=' {
				return self.yield(TkEq, 2)
			} else {
				return self.yield(TkEq, 1)
			}

		case '>':
			if self.nextRune2() == '=' {
				return self.yield(TkGe, 2)
			} else {
				return self.yield(TkGt, 1)
			}

		case '<':
			if self.nextRune2() == '=' {
				return self.yield(TkLe, 2)
			} else if self.nextRune2() == '>' {
				return self.yield(TkNe, 2)
			} else {
				return self.yield(TkLt, 1)
			}

		case '!':
			if self.nextRune2() == '=' {
				return self.yield(TkNe, 2)
			} else {
				return self.yield(TkNot, 1)
			}

		case ' ', '\r', '\t', '\n', '\b', '\v':
			self.Cursor++
			break

		case '\'':
			return self.lexStr(c)

		case '"', '`':
			return self.lexQuotedId(c)

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return self.lexNum(c)

		case '#':
			if !self.lexLineComment() {
				return self.Token
			}
			break

		default:
			return self.lexKeywordOrId(c)
		}
	}
}

func newLexer(source string) *Lexer {
	return &Lexer{
		Source: source,
		Cursor: 0,
		Token:  TkError,
	}
}
