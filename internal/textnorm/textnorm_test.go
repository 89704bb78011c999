package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestASCII(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Matrícula", "matricula"},
		{"  CALENDÁRIO Acadêmico  ", "calendario academico"},
		{"pró-reitoria", "pro-reitoria"},
		{"ção ção ção", "cao cao cao"},
		{"no accents", "no accents"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ASCII(tt.in), "input=%q", tt.in)
	}
}
