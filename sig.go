package dbus

import (
	"fmt"
	"strings"
)

// Signature is a D-Bus type signature: a string built from the
// single-letter/bracketed type grammar described in the D-Bus
// specification (e.g. "a{sv}", "(ii)", "as").
type Signature struct {
	str string
}

// SignatureOf returns the signature for the given values, as GetSignature
// would compute for a method call body.
func SignatureOf(vs ...interface{}) (Signature, error) {
	var b strings.Builder
	for _, v := range vs {
		s, err := signatureOfValue(v)
		if err != nil {
			return Signature{}, err
		}
		b.WriteString(s.str)
	}
	return Signature{b.String()}, nil
}

// ParseSignature validates s against the D-Bus signature grammar and
// returns it wrapped as a Signature. A signature longer than 255 bytes is
// rejected (§8 boundary behavior).
func ParseSignature(s string) (Signature, error) {
	if len(s) > 255 {
		return Signature{}, InvalidSignatureError{s}
	}
	rest, err := validateSigString(s)
	if err != nil {
		return Signature{}, err
	}
	if rest != "" {
		return Signature{}, InvalidSignatureError{s}
	}
	return Signature{s}, nil
}

// String returns the raw signature text.
func (s Signature) String() string { return s.str }

// Empty reports whether the signature describes zero values (as in a
// method call with no arguments).
func (s Signature) Empty() bool { return s.str == "" }

// Values splits s into its top-level single-type substrings, e.g. "isa{sv}"
// becomes []string{"i", "s", "a{sv}"}.
func (s Signature) Values() []string {
	rest := s.str
	var out []string
	for len(rest) > 0 {
		single, r, err := nextSingle(rest)
		if err != nil {
			break
		}
		out = append(out, single)
		rest = r
	}
	return out
}

// validateSigString walks complete single types from the front of s until
// s is used up. A byte that cannot start or continue a single type makes
// it return that InvalidSignatureError, so on success the remainder it
// returns is always empty.
func validateSigString(s string) (string, error) {
	for len(s) > 0 {
		rest, err := validateSingle(s)
		if err != nil {
			return "", err
		}
		s = rest
	}
	return s, nil
}

// validateSingle consumes exactly one complete type from the front of s
// and returns what's left.
func validateSingle(s string) (string, error) {
	if len(s) == 0 {
		return "", InvalidSignatureError{""}
	}
	c := s[0]
	switch c {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'v', 'h':
		return s[1:], nil
	case 'a':
		if len(s) < 2 {
			return "", InvalidSignatureError{s}
		}
		if s[1] == '{' {
			return validateDict(s[1:])
		}
		return validateSingle(s[1:])
	case 'm':
		if len(s) < 2 {
			return "", InvalidSignatureError{s}
		}
		return validateSingle(s[1:])
	case '(':
		return validateStruct(s)
	default:
		return "", InvalidSignatureError{s}
	}
}

func validateStruct(s string) (string, error) {
	// s[0] == '('
	rest := s[1:]
	count := 0
	for {
		if rest == "" {
			return "", InvalidSignatureError{s}
		}
		if rest[0] == ')' {
			if count == 0 {
				return "", InvalidSignatureError{s}
			}
			return rest[1:], nil
		}
		var err error
		rest, err = validateSingle(rest)
		if err != nil {
			return "", err
		}
		count++
	}
}

func validateDict(s string) (string, error) {
	// s[0] == '{'
	rest := s[1:]
	if rest == "" {
		return "", InvalidSignatureError{s}
	}
	keyc := rest[0]
	if !isBasicType(keyc) {
		return "", InvalidSignatureError{s}
	}
	rest = rest[1:]
	rest, err := validateSingle(rest)
	if err != nil {
		return "", err
	}
	if rest == "" || rest[0] != '}' {
		return "", InvalidSignatureError{s}
	}
	return rest[1:], nil
}

func isBasicType(c byte) bool {
	switch c {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'h':
		return true
	}
	return false
}

// alignment returns the byte alignment of the type whose signature
// starts at s, under the given encoding format.
func alignment(s string, format EncodingFormat) int {
	if s == "" {
		return 1
	}
	switch s[0] {
	case 'y', 'g':
		return 1
	case 'n', 'q':
		return 2
	case 'b', 'i', 'u', 's', 'o', 'h':
		return 4
	case 'x', 't', 'd':
		return 8
	case 'v':
		if format == FormatGVariant {
			return 8
		}
		return 1
	case 'a':
		if len(s) >= 2 && s[1] == '{' {
			return 8
		}
		return alignment(s[1:], format)
	case 'm':
		return alignment(s[1:], format)
	case '(':
		return 8
	}
	return 1
}

// InvalidSignatureError is returned when a signature string fails
// §4.C/§4.A's grammar.
type InvalidSignatureError struct {
	Text string
}

func (e InvalidSignatureError) Error() string {
	return fmt.Sprintf("dbus: invalid signature %q", e.Text)
}

// UnsupportedTypeError is returned when the codec is asked to materialize
// a signature the runtime declines to represent.
type UnsupportedTypeError struct {
	Sig string
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("dbus: unsupported type for signature %q", e.Sig)
}
