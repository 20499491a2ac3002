package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"msggw/internal/model"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		body string
		vars model.Variables
		want string
	}{
		{
			name: "all variables present",
			body: "Hi {{name}}, your code is {{code}}",
			vars: model.Variables{"name": "John", "code": "1234"},
			want: "Hi John, your code is 1234",
		},
		{
			name: "unmatched placeholder passes through",
			body: "Hi {{name}}, code {{code}}",
			vars: model.Variables{"name": "John"},
			want: "Hi John, code {{code}}",
		},
		{
			name: "nil variables",
			body: "Hi {{name}}",
			vars: nil,
			want: "Hi {{name}}",
		},
		{
			name: "no placeholders",
			body: "plain text",
			vars: model.Variables{"name": "John"},
			want: "plain text",
		},
		{
			name: "whitespace inside braces",
			body: "Hi {{ name }}",
			vars: model.Variables{"name": "John"},
			want: "Hi John",
		},
		{
			name: "unclosed placeholder stays literal",
			body: "Hi {{name",
			vars: model.Variables{"name": "John"},
			want: "Hi {{name",
		},
		{
			name: "empty body",
			body: "",
			vars: model.Variables{"name": "John"},
			want: "",
		},
		{
			name: "repeated placeholder",
			body: "{{x}}-{{x}}",
			vars: model.Variables{"x": "a"},
			want: "a-a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.body, tt.vars))
		})
	}
}
