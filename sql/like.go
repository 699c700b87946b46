package sql

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ----------------------------------------------------------------------------
//
// SQL Like operator. Internally, the sql's LIKE operator will be translated
// into regex
//
// The sql like's wildcard is relatively simple, basically supports 2 placeholder
//
// 1. %, represents zero, one or more sequnces of any characters
// 2. _, represents exactly one character
// 3. the escape is by %[x] syntax, which is kind of messy, TBH
//   3.1 %[] is not a syntax error, YOU ARE ALWAYS EXPECT ONE EXACT CHAR INSIDE
//
// A LIKE with a literal pattern is compiled once by the planner, otherwise the
// pattern is translated per evaluation.
//
// ----------------------------------------------------------------------------

func LikeToRegex(
	input string,
) string {
	buf := strings.Builder{}
	buf.WriteString("(?s)^")

	l := len(input)

	for i := 0; i < l; {
		c, sz := utf8.DecodeRuneInString(input[i:])
		if c == utf8.RuneError {
			i++
			continue // skip it
		}

		switch c {
		case '%':
			// escape form, %[x]
			if i+3 < l+1 && input[i+1] == '[' {
				inner, isz := utf8.DecodeRuneInString(input[i+2:])
				if inner != utf8.RuneError && i+2+isz < l && input[i+2+isz] == ']' {
					buf.WriteString(regexp.QuoteMeta(string(inner)))
					i += 3 + isz
					continue
				}
			}
			buf.WriteString(".*")
			break

		case '_':
			buf.WriteString(".")
			break

		default:
			buf.WriteString(regexp.QuoteMeta(string(c)))
			break
		}

		i += sz
	}

	buf.WriteString("$")
	return buf.String()
}

// CompileLike compiles the LIKE pattern into a regular expression
func CompileLike(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(LikeToRegex(pattern))
}
