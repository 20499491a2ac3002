// Package template renders message bodies by substituting {{name}}
// placeholders. Rendering is total: unmatched placeholders pass through
// verbatim and no input can make it fail.
package template

import (
	"io"
	"strings"

	"github.com/valyala/fasttemplate"

	"msggw/internal/model"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Render substitutes each {{name}} in body with vars[name]. Placeholders
// without a matching variable are emitted unchanged, including their braces.
func Render(body string, vars model.Variables) string {
	if !strings.Contains(body, startTag) {
		return body
	}

	return fasttemplate.ExecuteFuncString(body, startTag, endTag,
		func(w io.Writer, tag string) (int, error) {
			if v, ok := vars[strings.TrimSpace(tag)]; ok {
				return io.WriteString(w, v)
			}
			return io.WriteString(w, startTag+tag+endTag)
		})
}
