package sql

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestComment(t *testing.T) {
	assert := assert.New(t)
	{
		l := newLexer(`
// last line
#  last line
-- last line
`)
		assert.True(l.Next() == TkEof)
	}

	{
		l := newLexer(`
# abc
    id #def
-- xyz
`)
		assert.True(l.Next() == TkId)
		assert.True(l.Lexeme.Text == "id")
		assert.True(l.Next() == TkEof)
	}

	{
		l := newLexer(`
# abc
/* abcd */    id /* def
*/
`)
		assert.True(l.Next() == TkId)
		assert.True(l.Lexeme.Text == "id")
		assert.True(l.Next() == TkEof)
	}

	{
		l := newLexer(`/* never closed`)
		assert.True(l.Next() == TkError)
	}
}

func TestOp(t *testing.T) {
	assert := assert.New(t)
	{
		l := newLexer("+-*/%.():;::?||")
		assert.Equal(TkAdd, l.Next())
		assert.Equal(TkSub, l.Next())
		assert.Equal(TkMul, l.Next())
		assert.Equal(TkDiv, l.Next())
		assert.Equal(TkMod, l.Next())
		assert.Equal(TkDot, l.Next())
		assert.Equal(TkLPar, l.Next())
		assert.Equal(TkRPar, l.Next())
		assert.Equal(TkColon, l.Next())
		assert.Equal(TkSemicolon, l.Next())
		assert.Equal(TkDColon, l.Next())
		assert.Equal(TkQuestion, l.Next())
		assert.Equal(TkConcat, l.Next())
		assert.Equal(TkEof, l.Next())
	}

	{
		l := newLexer(">>=<<=!===!<>=")
		assert.Equal(TkGt, l.Next())
		assert.Equal(TkGe, l.Next())
		assert.Equal(TkLt, l.Next())
		assert.Equal(TkLe, l.Next())
		assert.Equal(TkNe, l.Next())
		assert.Equal(TkEq, l.Next())
		assert.Equal(TkNot, l.Next())
		assert.Equal(TkNe, l.Next())
		assert.Equal(TkEq, l.Next())
		assert.Equal(TkEof, l.Next())
	}

	{
		l := newLexer("&& and OR not")
		assert.Equal(TkAnd, l.Next())
		assert.Equal(TkAnd, l.Next())
		assert.Equal(TkOr, l.Next())
		assert.Equal(TkNot, l.Next())
		assert.Equal(TkEof, l.Next())
	}
}

func TestId(t *testing.T) {
	assert := assert.New(t)
	{
		l := newLexer("a")
		assert.True(l.Next() == TkId)
		assert.Equal("a", l.Lexeme.Text)
	}
	{
		// case is kept, lookup is case insensitive later on
		l := newLexer("UserName")
		assert.True(l.Next() == TkId)
		assert.Equal("UserName", l.Lexeme.Text)
	}
	{
		l := newLexer(`"select" ` + "`from`")
		assert.True(l.Next() == TkId)
		assert.Equal("select", l.Lexeme.Text)
		assert.True(l.Next() == TkId)
		assert.Equal("from", l.Lexeme.Text)
	}
	{
		l := newLexer("@var $1")
		assert.True(l.Next() == TkId)
		assert.Equal("@var", l.Lexeme.Text)
		assert.True(l.Next() == TkId)
		assert.Equal("$1", l.Lexeme.Text)
	}
}

func TestNumber(t *testing.T) {
	assert := assert.New(t)
	{
		l := newLexer("0x1f")
		assert.True(l.Next() == TkInt)
		assert.Equal(int64(0x1f), l.Lexeme.Int)
	}
	{
		l := newLexer("123")
		assert.True(l.Next() == TkInt)
		assert.Equal(int64(123), l.Lexeme.Int)
	}
	{
		l := newLexer("1.23")
		assert.True(l.Next() == TkReal)
		assert.Equal(float64(1.23), l.Lexeme.Real)
	}
	{
		l := newLexer("1.0e2 2e-1")
		assert.True(l.Next() == TkReal)
		assert.Equal(float64(1.0e2), l.Lexeme.Real)
		assert.True(l.Next() == TkReal)
		assert.Equal(float64(0.2), l.Lexeme.Real)
	}
	{
		// a dot not followed by digit is a member access
		l := newLexer("1.a")
		assert.True(l.Next() == TkInt)
		assert.True(l.Next() == TkDot)
		assert.True(l.Next() == TkId)
	}
}

func TestKeyword(t *testing.T) {
	assert := assert.New(t)

	one := func(src string, tk int) {
		l := newLexer(src)
		for l.Next() != TkEof {
			assert.Equal(tk, l.Token, src)
		}
	}

	one("TRue true", TkTrue)
	one("faLSE false", TkFalse)
	one("NUll null", TkNull)
	one("select SELECT sELEct", TkSelect)
	one("from FROM frOM", TkFrom)
	one("AS as As", TkAs)
	one("where WHERE WHere", TkWhere)
	one("having HAVING haVING", TkHaving)
	one("limit LIMIT LImit", TkLimit)
	one("distinct DISTINCT disTINCT", TkDistinct)
	one("GROUP by group by grouP By", TkGroupBy)
	one("order by ORDER       by ordeR By", TkOrderBy)
	one("union UNION", TkUnion)
	one("with WITH", TkWith)
	one("recursive", TkRecursive)
	one("join JOIN", TkJoin)
	one("left LEFT", TkLeft)
	one("nulls", TkNulls)
	one("fetch", TkFetch)

	{
		l := newLexer("True_ null_ groupby")
		assert.True(l.Next() == TkId)
		assert.Equal("True_", l.Lexeme.Text)
		assert.True(l.Next() == TkId)
		assert.True(l.Next() == TkId)
		assert.Equal("groupby", l.Lexeme.Text)
	}

	{
		// group alone is an identifier
		l := newLexer("group")
		assert.True(l.Next() == TkId)
	}
}

func TestString(t *testing.T) {
	assert := assert.New(t)

	one := func(src string, expect string) {
		l := newLexer(src)
		assert.True(l.Next() == TkStr, src)
		assert.Equal(expect, l.Lexeme.Text, src)
	}

	one("''", "")
	one("'a'", "a")
	one("'key'", "key")
	one("'it''s'", "it's")
	one("'\\t'", "\t")
	one("'\\n'", "\n")
	one("'\\r'", "\r")
	one("'\\''", "'")
	one("'\\\"'", "\"")
	one("'\\d+'", "\\d+")

	{
		l := newLexer("'abc")
		assert.True(l.Next() == TkError)
	}
}

func TestPosition(t *testing.T) {
	assert := assert.New(t)

	l := newLexer("select  abc")
	assert.True(l.Next() == TkSelect)
	assert.Equal(0, l.Start)
	assert.True(l.Next() == TkId)
	assert.Equal(8, l.Start)
	assert.Equal(6, l.PrevEnd)
}
