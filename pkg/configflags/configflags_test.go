package configflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		flags    string
		expected map[string]string
	}{
		{
			name:     "simple pairs",
			flags:    "key1=val1, key2=val2",
			expected: map[string]string{"key1": "val1", "key2": "val2"},
		},
		{
			name:     "comma delimited value list",
			flags:    "key1=val1, key2=val2,val3,val4",
			expected: map[string]string{"key1": "val1", "key2": "val2,val3,val4"},
		},
		{
			name:     "quoted value with special characters",
			flags:    `key1="subkey1=val1,val2 subkey2=val3"`,
			expected: map[string]string{"key1": `"subkey1=val1,val2 subkey2=val3"`},
		},
		{
			name:     "quoted value with comma followed by pair",
			flags:    `TEST_KEY="TEST VALUE, WITH COMMA", GRUB_TIMEOUT=0`,
			expected: map[string]string{"TEST_KEY": `"TEST VALUE, WITH COMMA"`, "GRUB_TIMEOUT": "0"},
		},
		{
			name:     "empty string",
			flags:    "",
			expected: map[string]string{},
		},
		{
			name:     "whitespace around keys and values",
			flags:    "  key1 = val1 ,  key2=val2",
			expected: map[string]string{"key1": "val1", "key2": "val2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.flags))
		})
	}
}
