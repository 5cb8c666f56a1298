// Package nginxconf renders, formats and sanity-checks nginx server blocks.
//
// The checks here are intentionally shallow: brace balance and statement
// termination. Full syntax validation is delegated to `nginx -t`.
package nginxconf

import (
	"fmt"
	"strings"
)

const indentUnit = "    "

// SyntaxErrorKind classifies a structural failure found by Validate.
type SyntaxErrorKind int

const (
	UnbalancedBraces SyntaxErrorKind = iota + 1
	MissingSemicolon
)

// SyntaxError describes why a config fragment was rejected.
type SyntaxError struct {
	Kind SyntaxErrorKind

	// UnbalancedBraces
	Open  int
	Close int

	// MissingSemicolon (Line is 1-based over the formatted text)
	Line    int
	Content string
}

func (e *SyntaxError) Error() string {
	switch e.Kind {
	case UnbalancedBraces:
		return fmt.Sprintf("syntax error: unbalanced braces (open: %d, close: %d)", e.Open, e.Close)
	case MissingSemicolon:
		return fmt.Sprintf("line %d: directive must end with a semicolon (;): %s", e.Line, e.Content)
	default:
		return "syntax error"
	}
}

// Format re-indents text by brace depth, four spaces per level.
// A line starting with "}" dedents before it is written; a line ending with
// "{" indents the lines after it. Blank lines are kept as bare newlines.
func Format(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	depth := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			b.WriteByte('\n')
			continue
		}

		if strings.HasPrefix(line, "}") && depth > 0 {
			depth--
		}

		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteString(line)
		b.WriteByte('\n')

		if strings.HasSuffix(line, "{") {
			depth++
		}
	}

	return strings.TrimRight(b.String(), " \t\r\n")
}

// Validate formats text and runs the structural checks over the result.
// On success the formatted text is returned.
func Validate(text string) (string, error) {
	formatted := Format(text)

	open := strings.Count(formatted, "{")
	closed := strings.Count(formatted, "}")
	if open != closed {
		return "", &SyntaxError{Kind: UnbalancedBraces, Open: open, Close: closed}
	}

	for i, raw := range strings.Split(formatted, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isTerminated(line) || opensBlock(line) {
			continue
		}
		return "", &SyntaxError{Kind: MissingSemicolon, Line: i + 1, Content: line}
	}

	return formatted, nil
}

func isTerminated(line string) bool {
	return strings.HasSuffix(line, "{") ||
		strings.HasSuffix(line, "}") ||
		strings.HasSuffix(line, ";")
}

// opensBlock is a prefix check only; "ifdef" passes as well as "if (".
func opensBlock(line string) bool {
	for _, kw := range []string{"location", "server", "if"} {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	return false
}
