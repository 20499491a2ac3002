package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := map[string]string{
		"+1 (234) 567-890": "+1234567890",
		"0049 170 1234567": "+491701234567",
		"  +49170-1234567": "+491701234567",
		"+1234567890":      "+1234567890",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeRecipient(in), "input %q", in)
	}
}

func TestValidE164(t *testing.T) {
	assert.True(t, ValidE164("+1234567890"))
	assert.True(t, ValidE164("+491701234567"))
	assert.False(t, ValidE164("1234567890"))
	assert.False(t, ValidE164("+0123456"))
	assert.False(t, ValidE164("+12"))
	assert.False(t, ValidE164(""))
}
