package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate string
		wantValid bool
		wantOut   string
	}{
		{
			name:      "valid answer passes trimmed",
			candidate: "  A matrícula de veteranos é de 13/01 a 17/01/2026.  ",
			wantValid: true,
			wantOut:   "A matrícula de veteranos é de 13/01 a 17/01/2026.",
		},
		{
			name:      "empty output rejected",
			candidate: "   ",
			wantOut:   MsgNotFound,
		},
		{
			name:      "framework stop string rejected",
			candidate: "Agent stopped due to max iterations.",
			wantOut:   MsgNotFound,
		},
		{
			name:      "stop string embedded in longer text rejected",
			candidate: "Resultado: Agent stopped due to iteration limit or time limit. Tente de novo.",
			wantOut:   MsgNotFound,
		},
		{
			name:      "parsing error rejected",
			candidate: "Parsing error near token 3",
			wantOut:   MsgNotFound,
		},
		{
			name:      "too short rejected",
			candidate: "Sim.",
			wantOut:   MsgNotFound,
		},
		{
			name:      "accented runes counted as characters",
			candidate: "Olá, tudo bém?", // 14 runes, above the threshold
			wantValid: true,
			wantOut:   "Olá, tudo bém?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Validate(tt.candidate, DefaultMinAnswerLen)
			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantOut, res.Output)
			if !tt.wantValid {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestValidate_CustomThreshold(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("palavra ", 5)
	assert.False(t, Validate(long, 100).Valid)
	assert.True(t, Validate(long, 10).Valid)
}
