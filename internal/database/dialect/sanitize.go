package dialect

import (
	"regexp"
	"strings"

	"github.com/koustreak/tablegate/internal/errs"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// forbiddenPrefixes name system catalogs no client may address.
var forbiddenPrefixes = []string{"pg_", "information_schema"}

// Sanitize validates ident and returns it quoted for d. It is the only way
// a table or column name enters generated SQL text.
func Sanitize(d Dialect, ident string) (string, error) {
	if !identifierRe.MatchString(ident) {
		return "", errs.Newf(errs.ErrKindInvalidIdentifier, "invalid identifier %q", ident)
	}
	lower := strings.ToLower(ident)
	for _, p := range forbiddenPrefixes {
		if strings.HasPrefix(lower, p) {
			return "", errs.Newf(errs.ErrKindForbiddenIdentifier, "identifier %q addresses a system catalog", ident)
		}
	}
	return d.Quote(ident), nil
}
