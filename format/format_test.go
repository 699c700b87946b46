package format

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIterator() rows.Iterator {
	return rows.NewMemoryIterator(
		[]rows.Column{
			rows.NewColumn("a", value.TypeInteger),
			rows.NewColumn("b", value.TypeString),
		},
		[]rows.Row{
			rows.NewRow(1, "x"),
			rows.NewRow(nil, "y"),
		},
	)
}

func TestPlain(t *testing.T) {
	assert := assert.New(t)

	buf := &bytes.Buffer{}
	f := Plain()
	f.Border = "|"
	f.Padding = 4
	out := NewTextOutput(buf, f)

	require.NoError(t, Print(context.Background(), testIterator(), out))
	assert.Equal(2, out.Written())
	assert.Equal(
		strings.Join([]string{
			"-----------",
			"|a   |b   |",
			"-----------",
			"|1   |x   |",
			"|null|y   |",
			"-----------",
			"",
		}, "\n"),
		buf.String(),
	)
}

func TestIgnore(t *testing.T) {
	assert := assert.New(t)

	buf := &bytes.Buffer{}
	f := Plain()
	f.Title = ParseInstruction("ignore")
	f.Padding = 2
	f.Column = map[int]*Instruction{0: ParseInstruction("ignore")}

	require.NoError(t, Print(context.Background(), testIterator(), NewTextOutput(buf, f)))
	assert.Equal(" x  \n y  \n", buf.String())
}

func TestColored(t *testing.T) {
	assert := assert.New(t)

	buf := &bytes.Buffer{}
	require.NoError(t, Print(context.Background(), testIterator(), NewTextOutput(buf, ByName("color"))))
	assert.Contains(buf.String(), "\x1b[")
	assert.Contains(buf.String(), "x")

	buf.Reset()
	require.NoError(t, Print(context.Background(), testIterator(), NewTextOutput(buf, ByName("plain"))))
	assert.NotContains(buf.String(), "\x1b[")
}

func TestParseInstruction(t *testing.T) {
	assert := assert.New(t)

	f := ParseInstruction("bold; Red;underline;unknown")
	assert.True(f.Bold)
	assert.True(f.Underline)
	assert.False(f.Italic)
	assert.False(f.Ignore)
	assert.Equal(ColorRed, f.Color)

	assert.Equal(ColorNone, ParseInstruction("").Color)
}
