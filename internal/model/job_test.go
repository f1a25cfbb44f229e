package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJobInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		selector string
		wantErr  bool
	}{
		{"valid", "https://example.com", ".item", false},
		{"empty url", "", ".item", true},
		{"whitespace url", "   ", ".item", true},
		{"empty selector", "https://example.com", "", true},
		{"whitespace selector", "https://example.com", "\t\n", true},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateJobInput(tt.url, tt.selector)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateJobInputReportsField(t *testing.T) {
	t.Parallel()

	err := ValidateJobInput("", ".item")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")

	err = ValidateJobInput("https://example.com", " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector")
}
