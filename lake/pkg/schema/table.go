package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrUnsupported       = errors.New("not supported by dialect")
)

// TableRef names a table by catalog, database and table.
type TableRef struct {
	Catalog  string `json:"catalog"`
	Database string `json:"database"`
	Table    string `json:"table"`
}

func (t TableRef) String() string {
	return t.Catalog + "." + t.Database + "." + t.Table
}

// Validate checks every part is a plain or backquoted identifier.
func (t TableRef) Validate() error {
	for _, p := range []string{t.Catalog, t.Database, t.Table} {
		if err := validateIdent(p); err != nil {
			return err
		}
	}
	return nil
}

// ParseTableRef parses catalog.database.table.
func ParseTableRef(s string) (TableRef, error) {
	parts := splitName(s)
	if len(parts) != 3 {
		return TableRef{}, fmt.Errorf("%w: %q is not catalog.database.table", ErrInvalidIdentifier, s)
	}
	ref := TableRef{Catalog: parts[0], Database: parts[1], Table: parts[2]}
	if err := ref.Validate(); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

// Column is one (col_name, data_type) pair as reported by the engine.
type Column struct {
	Name     string `json:"col_name"`
	DataType string `json:"data_type"`
}

var identRegexp = regexp.MustCompile("^(?:[A-Za-z_][A-Za-z0-9_]*|`[^`]+`|\"[^\"]+\")$")

func validateIdent(s string) error {
	if !identRegexp.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return nil
}

// ValidateName checks a dotted name of one to three identifiers.
func ValidateName(s string) error {
	parts := splitName(s)
	if len(parts) == 0 || len(parts) > 3 {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	for _, p := range parts {
		if err := validateIdent(p); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
		}
	}
	return nil
}

// splitName splits on dots outside of quotes.
func splitName(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		parts []string
		cur   strings.Builder
		quote rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '`' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(parts, cur.String())
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '`' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
