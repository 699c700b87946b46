package format

import (
	"strings"

	"github.com/fatih/color"
)

const (
	ColorBlack = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorNone
)

type Instruction struct {
	Ignore    bool // whether this field is entirely ignored
	Bold      bool
	Italic    bool
	Underline bool
	Color     int
}

// Format decides how the text output looks. Cells are styled by the first of
// Column, then the type instruction (Number, String, Rest) that is set.
type Format struct {
	Title   *Instruction
	Border  string
	Padding int
	Number  *Instruction
	String  *Instruction
	Rest    *Instruction
	Column  map[int]*Instruction
	Colored bool
}

const defPadding = 16

// Plain prints a title and the cells, without any escape code
func Plain() *Format {
	return &Format{
		Title: &Instruction{
			Color: ColorNone,
		},
		Border:  " ",
		Padding: defPadding,
	}
}

func Colored() *Format {
	return &Format{
		Title: &Instruction{
			Color: ColorBlue,
			Bold:  true,
		},
		Border:  "|",
		Padding: defPadding,
		Number: &Instruction{
			Color: ColorGreen,
			Bold:  true,
		},
		String: &Instruction{
			Color:  ColorRed,
			Italic: true,
		},
		Rest: &Instruction{
			Color: ColorNone,
		},
		Colored: true,
	}
}

// ByName returns the builtin format, "color" or anything else for plain
func ByName(name string) *Format {
	switch strings.ToLower(name) {
	case "color":
		return Colored()
	default:
		return Plain()
	}
}

// ParseInstruction reads a ';' separated list of attributes, ie "bold;red".
// Unknown attributes are ignored.
func ParseInstruction(str string) *Instruction {
	f := &Instruction{
		Color: ColorNone,
	}
	for _, rr := range strings.Split(str, ";") {
		switch strings.TrimSpace(strings.ToLower(rr)) {
		case "bold":
			f.Bold = true
			break
		case "italic":
			f.Italic = true
			break
		case "underline":
			f.Underline = true
			break
		case "black":
			f.Color = ColorBlack
			break
		case "red":
			f.Color = ColorRed
			break
		case "green":
			f.Color = ColorGreen
			break
		case "yellow":
			f.Color = ColorYellow
			break
		case "blue":
			f.Color = ColorBlue
			break
		case "magenta":
			f.Color = ColorMagenta
			break
		case "cyan":
			f.Color = ColorCyan
			break
		case "white":
			f.Color = ColorWhite
			break
		case "ignore":
			f.Ignore = true
			break
		default:
			break
		}
	}
	return f
}

func mapcolor(
	c int,
) color.Attribute {
	switch c {
	default:
		return color.Reset
	case ColorBlack:
		return color.FgBlack
	case ColorRed:
		return color.FgRed
	case ColorGreen:
		return color.FgGreen
	case ColorYellow:
		return color.FgYellow
	case ColorBlue:
		return color.FgBlue
	case ColorMagenta:
		return color.FgMagenta
	case ColorCyan:
		return color.FgCyan
	case ColorWhite:
		return color.FgWhite
	}
}

// stylish wraps the text into the escape codes of the instruction, a plain
// format never emits any
func (self *Format) stylish(
	fins *Instruction,
	text string,
) string {
	if fins == nil || !self.Colored {
		return text
	}
	cobj := color.New(mapcolor(fins.Color))
	if fins.Bold {
		cobj.Add(color.Bold)
	}
	if fins.Underline {
		cobj.Add(color.Underline)
	}
	if fins.Italic {
		cobj.Add(color.Italic)
	}
	cobj.EnableColor()
	return cobj.Sprint(text)
}

func (self *Format) padding() int {
	if self.Padding <= 0 {
		return defPadding
	}
	return self.Padding
}
