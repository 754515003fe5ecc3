// Package validation holds the error taxonomy shared by the domain packages
// and the small JSON helpers used to tell absent fields from null ones.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Kind classifies an error for API consumers.
type Kind string

const (
	KindMissingField  Kind = "MISSING_FIELD"
	KindInvalidFormat Kind = "INVALID_FORMAT"
	KindNotFound      Kind = "NOT_FOUND"
	KindConflict      Kind = "CONFLICT"
	KindInternal      Kind = "INTERNAL"
)

// Error is a client-caused failure detected before any write.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Missing returns a MISSING_FIELD error for field.
func Missing(field, code, message string) *Error {
	return &Error{Kind: KindMissingField, Code: code, Field: field, Message: message}
}

// Invalid returns an INVALID_FORMAT error for field.
func Invalid(field, code, message string) *Error {
	return &Error{Kind: KindInvalidFormat, Code: code, Field: field, Message: message}
}

// As reports whether err is a *Error and returns it.
func As(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// OneOf reports whether value is in allowed.
func OneOf(value string, allowed []string) bool {
	return slices.Contains(allowed, value)
}

// ErrNotInteger is returned by Integer.Int when the value cannot be read as an integer.
var ErrNotInteger = errors.New("value is not an integer")

// Integer is a JSON value that accepts numbers and numeric strings and
// remembers whether it was present in the document.
type Integer struct {
	raw json.RawMessage
	set bool
}

// NewInteger builds a present Integer from n.
func NewInteger(n int) Integer {
	return Integer{raw: json.RawMessage(strconv.Itoa(n)), set: true}
}

func (i *Integer) UnmarshalJSON(b []byte) error {
	i.raw = append(i.raw[:0], b...)
	i.set = true
	return nil
}

func (i Integer) MarshalJSON() ([]byte, error) {
	if !i.Present() {
		return []byte("null"), nil
	}
	return i.raw, nil
}

// Present reports whether the field was supplied with a non-null value.
func (i Integer) Present() bool {
	return i.set && !bytes.Equal(bytes.TrimSpace(i.raw), []byte("null"))
}

// Absent reports whether the value is missing, null or an empty string. Zero is not absent.
func (i Integer) Absent() bool {
	return !i.Present() || strings.TrimSpace(string(i.raw)) == `""`
}

// Blank reports whether the value is absent, null, an empty string, zero or false.
func (i Integer) Blank() bool {
	if !i.Present() {
		return true
	}
	switch strings.TrimSpace(string(i.raw)) {
	case `""`, "0", "false":
		return true
	}
	return false
}

// Int parses the value. Numeric strings are accepted; fractional numbers are truncated.
func (i Integer) Int() (int, error) {
	if !i.Present() {
		return 0, ErrNotInteger
	}

	raw := bytes.TrimSpace(i.raw)
	var text string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ErrNotInteger
		}
		text = strings.TrimSpace(text)
	} else {
		text = string(raw)
	}

	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s", ErrNotInteger, text)
	}
	return int(f), nil
}

// Optional is a JSON string field that distinguishes absent, null and set.
type Optional struct {
	Set   bool
	Null  bool
	Value string
}

// Some returns a present, non-null Optional.
func Some(value string) Optional {
	return Optional{Set: true, Value: value}
}

func (o *Optional) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		o.Value = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a string: %w", err)
	}
	o.Null = false
	o.Value = s
	return nil
}

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Present reports whether the field was supplied with a non-null value.
func (o Optional) Present() bool {
	return o.Set && !o.Null
}

// Trimmed returns the trimmed value, or nil when absent, null or blank.
func (o Optional) Trimmed() *string {
	if !o.Present() {
		return nil
	}
	v := strings.TrimSpace(o.Value)
	if v == "" {
		return nil
	}
	return &v
}

// Nullable returns the raw value, or nil when null or empty.
func (o Optional) Nullable() *string {
	if !o.Present() || o.Value == "" {
		return nil
	}
	v := o.Value
	return &v
}
