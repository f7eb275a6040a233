// Package compiler lowers a validated query plan to the downstream
// table service's wire syntax.
package compiler

import (
	"regexp"
	"strings"
)

// bareIdentifier matches column names that never need quoting.
var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedWords mirrors the identifiers the downstream dialect treats
// specially even when they'd otherwise parse as bare words.
var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "order": true,
	"group": true, "limit": true, "offset": true, "and": true, "or": true,
	"not": true, "in": true, "is": true, "as": true, "on": true,
	"table": true, "user": true, "column": true, "count": true,
}

// Dialect is the escaping primitive every column name must be routed
// through before it reaches the downstream service. It exists so a
// profile column with a name outside `[A-Za-z0-9_]` (or one that
// collides with a downstream keyword) is carried as an identifier and
// never mistaken for part of the query grammar.
type Dialect interface {
	QuoteIdent(name string) string
}

// PostgrestDialect quotes identifiers the way the downstream table
// service's PostgREST-shaped wire protocol requires: double quotes,
// doubled internally, applied whenever the bare form would be
// ambiguous or collide with a reserved word.
type PostgrestDialect struct{}

// QuoteIdent returns name, quoted if it is not safe to use bare.
func (PostgrestDialect) QuoteIdent(name string) string {
	if bareIdentifier.MatchString(name) && !reservedWords[strings.ToLower(name)] {
		return name
	}
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}
