package interpreter

import (
	"strings"

	"github.com/sakopay/ussd/internal/stores/menu"
)

// render produces the plain-text screen for a menu: the content, one blank
// line, then one "<input>. <label>" line per option in declared order. No
// wrapping or truncation
func render(m *menu.Menu) string {
	if len(m.Options) == 0 {
		return m.Content
	}

	var b strings.Builder
	b.WriteString(m.Content)
	b.WriteString("\n")

	for _, opt := range m.Options {
		b.WriteString("\n")
		b.WriteString(opt.Input)
		b.WriteString(". ")
		b.WriteString(opt.Label)
	}

	return b.String()
}
