package http

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finconsole/internal/core"
	"finconsole/internal/dashboard"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// rowActions is the data of the edit and delete buttons of a list row.
type rowActions struct {
	Kind   *entityKind
	Record record
}

// templateFuncs are available to every console template.
func templateFuncs(f *dashboard.Formatter) template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return f.Currency(d) },
		"count": func(c core.Count) string { return f.Count(c) },
		"day": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006")
		},
		"indent": func(depth int) template.CSS {
			return template.CSS(fmt.Sprintf("padding-left: %.1frem", 0.5+1.5*float64(depth)))
		},
		"add":   func(a, b int) int { return a + b },
		"query": url.QueryEscape,
		"row": func(k *entityKind, rec record) rowActions {
			return rowActions{Kind: k, Record: rec}
		},
		"selected": func(cur string, id int64) bool {
			return cur == fmt.Sprint(id)
		},
	}
}
