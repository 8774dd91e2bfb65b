package script

import (
	"fmt"
	"strconv"
	"strings"
)

// Arg is one argument of an operation call. Positional arguments have an
// empty Name.
type Arg struct {
	Name  string
	Value string
}

func (a Arg) String() string {
	if a.Name == "" {
		return a.Value
	}
	return a.Name + "=" + a.Value
}

// Operation is one parsed operation call, NAME(arg, key=value, ...).
type Operation struct {
	Name string
	Args []Arg
}

// ParseOperation parses and normalizes one operation call. A bare name is
// read as a call without arguments.
func ParseOperation(text string) (Operation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Operation{}, fmt.Errorf("%w: empty", ErrInvalidOperation)
	}

	open := strings.IndexByte(text, '(')
	if open < 0 {
		if !isIdent(text) {
			return Operation{}, fmt.Errorf("%w: %q", ErrInvalidOperation, text)
		}
		return Operation{Name: text}, nil
	}

	name := strings.TrimSpace(text[:open])
	if !isIdent(name) {
		return Operation{}, fmt.Errorf("%w: bad name %q", ErrInvalidOperation, name)
	}
	if !strings.HasSuffix(text, ")") {
		return Operation{}, fmt.Errorf("%w: %s: unbalanced parentheses", ErrInvalidOperation, name)
	}
	body := text[open+1 : len(text)-1]
	parts, err := splitArgs(body)
	if err != nil {
		return Operation{}, fmt.Errorf("%w: %s: %v", ErrInvalidOperation, name, err)
	}

	op := Operation{Name: name}
	for _, p := range parts {
		op.Args = append(op.Args, parseArg(p))
	}
	return op, nil
}

// MustParseOperation is ParseOperation for literals known to be valid.
func MustParseOperation(text string) Operation {
	op, err := ParseOperation(text)
	if err != nil {
		panic(err)
	}
	return op
}

// String renders the canonical form, without spaces between arguments.
func (o Operation) String() string {
	var sb strings.Builder
	sb.WriteString(o.Name)
	sb.WriteByte('(')
	for i, a := range o.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Arg returns the value of the named argument.
func (o Operation) Arg(name string) (string, bool) {
	for _, a := range o.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Float returns the named argument as a float.
func (o Operation) Float(name string) (float64, bool) {
	v, ok := o.Arg(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool returns the named argument as a bool. Both True/False and
// true/false spellings are accepted.
func (o Operation) Bool(name string) (bool, bool) {
	v, ok := o.Arg(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, false
	}
	return b, true
}

// OpName returns the operation name of text without parsing the arguments.
func OpName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// FormatFloat renders a float the way operation arguments carry them:
// always with a decimal point.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eENI") {
		s += ".0"
	}
	return s
}

// FormatBool renders a bool in script form.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseArg(p string) Arg {
	depth := 0
	var quote byte
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '=' && depth == 0:
			name := strings.TrimSpace(p[:i])
			if isIdent(name) {
				return Arg{Name: name, Value: strings.TrimSpace(p[i+1:])}
			}
			return Arg{Value: p}
		}
	}
	return Arg{Value: p}
}

// splitArgs splits an argument list at top-level commas.
func splitArgs(body string) ([]string, error) {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at %d", c, i)
			}
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	last := strings.TrimSpace(body[start:])
	if last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty argument")
		}
	}
	return parts, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		case c == '.' && i > 0:
		default:
			return false
		}
	}
	return true
}
