package reassemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyDocument is returned when there is nothing to parse.
var ErrEmptyDocument = errors.New("empty json document")

// ErrTooDeep is returned when arrays and objects nest beyond MaxDepth.
var ErrTooDeep = errors.New("json nesting too deep")

// MaxDepth matches the nesting limit of encoding/json.
const MaxDepth = 10000

// State is the outcome of a validation attempt.
type State int

const (
	// Passthrough means parsing failed and the sanitized text is used as is.
	Passthrough State = iota
	// Validated means the text parsed and was re-serialized.
	Validated
)

func (s State) String() string {
	switch s {
	case Validated:
		return "validated"
	case Passthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Separators selects the item and key separators of the canonical form.
type Separators string

const (
	SeparatorsSpaced  Separators = "spaced"
	SeparatorsCompact Separators = "compact"
)

// Format controls canonical serialization.
type Format struct {
	Separators  Separators
	EnsureASCII bool
}

// DefaultFormat writes `{"id": 1, "name": "a"}` style output with non-ASCII
// escaped.
func DefaultFormat() Format {
	return Format{Separators: SeparatorsSpaced, EnsureASCII: true}
}

func (f Format) separators() (item string, key string) {
	if f.Separators == SeparatorsCompact {
		return ",", ":"
	}
	return ", ", ": "
}

// Result is either a Validated canonical document or a Passthrough of the
// sanitized input together with the parse error.
type Result struct {
	State  State
	Output string
	Value  any
	Err    error
}

// Normalize parses sanitized as a single JSON value and re-serializes it. On
// parse failure the input is returned unchanged in a Passthrough result.
func Normalize(sanitized string, f Format) Result {
	value, err := Parse(sanitized)
	if err != nil {
		return Result{State: Passthrough, Output: sanitized, Err: err}
	}
	out, err := Encode(value, f)
	if err != nil {
		return Result{State: Passthrough, Output: sanitized, Err: err}
	}
	return Result{State: Validated, Output: out, Value: value}
}

// Parse decodes exactly one JSON value from s. Objects are returned as
// *Object and numbers as json.Number.
func Parse(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDocument
	}
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	value, err := parseToken(dec, tok, 0)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("parse json: extra data at offset %d", dec.InputOffset())
		}
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return value, nil
}

func nextToken(dec *json.Decoder) (json.Token, error) {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

func parseToken(dec *json.Decoder, tok json.Token, depth int) (any, error) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	if depth >= MaxDepth {
		return nil, fmt.Errorf("%w: exceeds %d at offset %d", ErrTooDeep, MaxDepth, dec.InputOffset())
	}
	switch delim {
	case '{':
		return parseObject(dec, depth+1)
	case '[':
		return parseArray(dec, depth+1)
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", rune(delim), dec.InputOffset())
	}
}

func parseObject(dec *json.Decoder, depth int) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := nextToken(dec)
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key at offset %d is %T", dec.InputOffset(), tok)
		}

		tok, err = nextToken(dec)
		if err != nil {
			return nil, err
		}
		value, err := parseToken(dec, tok, depth)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}
	if _, err := nextToken(dec); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder, depth int) ([]any, error) {
	items := make([]any, 0)
	for dec.More() {
		tok, err := nextToken(dec)
		if err != nil {
			return nil, err
		}
		value, err := parseToken(dec, tok, depth)
		if err != nil {
			return nil, err
		}
		items = append(items, value)
	}
	if _, err := nextToken(dec); err != nil {
		return nil, err
	}
	return items, nil
}

// Encode serializes a value tree produced by Parse.
func Encode(value any, f Format) (string, error) {
	var b strings.Builder
	e := encoder{b: &b, ensureASCII: f.EnsureASCII}
	e.itemSep, e.keySep = f.separators()
	if err := e.value(value); err != nil {
		return "", err
	}
	return b.String(), nil
}

type encoder struct {
	b           *strings.Builder
	itemSep     string
	keySep      string
	ensureASCII bool
}

func (e encoder) value(v any) error {
	switch x := v.(type) {
	case nil:
		e.b.WriteString("null")
	case bool:
		if x {
			e.b.WriteString("true")
		} else {
			e.b.WriteString("false")
		}
	case json.Number:
		if x == "" {
			return errors.New("encode json: empty number")
		}
		e.b.WriteString(string(x))
	case string:
		e.str(x)
	case []any:
		e.b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				e.b.WriteString(e.itemSep)
			}
			if err := e.value(item); err != nil {
				return err
			}
		}
		e.b.WriteByte(']')
	case *Object:
		e.b.WriteByte('{')
		for i, key := range x.keys {
			if i > 0 {
				e.b.WriteString(e.itemSep)
			}
			e.str(key)
			e.b.WriteString(e.keySep)
			if err := e.value(x.values[key]); err != nil {
				return err
			}
		}
		e.b.WriteByte('}')
	default:
		return fmt.Errorf("encode json: unsupported type %T", v)
	}
	return nil
}

func (e encoder) str(s string) {
	e.b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			e.b.WriteString(`\"`)
		case '\\':
			e.b.WriteString(`\\`)
		case '\n':
			e.b.WriteString(`\n`)
		case '\r':
			e.b.WriteString(`\r`)
		case '\t':
			e.b.WriteString(`\t`)
		case '\b':
			e.b.WriteString(`\b`)
		case '\f':
			e.b.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r < 0x7f:
				e.b.WriteByte(byte(r))
			case r < 0x20:
				writeUnicodeEscape(e.b, r)
			case !e.ensureASCII:
				e.b.WriteRune(r)
			default:
				writeRuneEscape(e.b, r)
			}
		}
	}
	e.b.WriteByte('"')
}
