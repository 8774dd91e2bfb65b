package script

import (
	"bufio"
	"fmt"
	"strings"
)

// headerOps are routed to the header list wherever they appear.
var headerOps = map[string]bool{
	"skip":     true,
	"sw":       true,
	"sf":       true,
	"ref":      true,
	"label":    true,
	"acqOrder": true,
	"acqarray": true,
	"acqsize":  true,
	"tdsize":   true,
}

// envOps are the environment set-up calls emitted by the builder. They are
// recognized on import and dropped.
var envOps = map[string]bool{
	"procOpts": true,
	"FID":      true,
	"CREATE":   true,
	"WRITE":    true,
	"CLOSE":    true,
}

// IsHeaderOp reports whether name is a header-only operation.
func IsHeaderOp(name string) bool {
	return headerOps[name]
}

// ParseError describes a rejected script line.
type ParseError struct {
	// Line is 1-based.
	Line int
	Op   string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Op, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads processing script text into a new Store. In permissive mode
// lines that cannot be parsed, or operations outside any DIM context, are
// dropped and reported in the returned slice; in strict mode the first such
// line aborts the import with a *ParseError.
func Parse(text string, strict bool) (*Store, []*ParseError, error) {
	store := NewStore()
	var (
		dropped []*ParseError
		current Key
	)
	reject := func(pe *ParseError) error {
		if strict {
			return pe
		}
		dropped = append(dropped, pe)
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "from ") {
			continue
		}

		op, err := ParseOperation(line)
		if err != nil {
			if err := reject(&ParseError{Line: lineNo, Op: OpName(line), Err: err}); err != nil {
				return nil, nil, err
			}
			continue
		}

		switch {
		case op.Name == "run":
			return store, dropped, nil
		case op.Name == "DIM" || op.Name == "PDIM":
			key, err := contextKey(op)
			if err != nil {
				if err := reject(&ParseError{Line: lineNo, Op: op.Name, Err: err}); err != nil {
					return nil, nil, err
				}
				current = ""
				continue
			}
			current = key
			if err := store.SetOperations(key, store.Operations(key)); err != nil {
				return nil, nil, err
			}
		case headerOps[op.Name]:
			if err := store.SetHeaderOperation(op.String()); err != nil {
				return nil, nil, err
			}
		case envOps[op.Name]:
		case current == "":
			err := fmt.Errorf("%w: outside any DIM context", ErrInvalidOperation)
			if err := reject(&ParseError{Line: lineNo, Op: op.Name, Err: err}); err != nil {
				return nil, nil, err
			}
		default:
			list := append(store.Operations(current), op.String())
			if err := store.SetOperations(current, list); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading script: %w", err)
	}
	return store, dropped, nil
}

// contextKey maps DIM(2), DIM(2,3), DIM() and PDIM(1) lines to keys.
func contextKey(op Operation) (Key, error) {
	prefix := "D"
	if op.Name == "PDIM" {
		prefix = "P"
	}
	if len(op.Args) == 0 {
		return Key(prefix + allSuffix), nil
	}
	parts := make([]string, len(op.Args))
	for i, a := range op.Args {
		if a.Name != "" {
			return "", fmt.Errorf("%w: %s takes dimension numbers", ErrInvalidKey, op.Name)
		}
		parts[i] = strings.Trim(a.Value, `'"`)
	}
	return ParseKey(prefix + strings.Join(parts, ","))
}
