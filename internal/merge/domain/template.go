package domain

import (
	"regexp"
	"strings"

	"github.com/lettermill/lettermill/internal/spreadsheet"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// ExpandTemplate substitutes {{header}} tokens with the row's values.
// Substitution is a single left-to-right pass, so a value that itself
// contains token-shaped text is never expanded again. Tokens naming a
// header the row does not have are left untouched. Header names are
// compared literally.
func ExpandTemplate(template string, row spreadsheet.RowData) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}

	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		if value, ok := row[name]; ok {
			return value
		}
		return token
	})
}
