package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAIText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "inline parenthesized disclaimer",
			in:   "आरबीआई ने दर स्थिर रखी\n(Note: This is a machine translation and may contain errors.) बाजार में तेजी रही।",
			want: "आरबीआई ने दर स्थिर रखी\nबाजार में तेजी रही।",
		},
		{
			name: "full line note",
			in:   "Note: Machine translated.\nमानसून केरल पहुंचा।",
			want: "मानसून केरल पहुंचा।",
		},
		{
			name: "bracketed disclaimer",
			in:   "[Note: Machine translation] La RBI mantiene la tasa.",
			want: "La RBI mantiene la tasa.",
		},
		{
			name: "blank lines collapse",
			in:   "first\n\n  \nsecond",
			want: "first\nsecond",
		},
		{
			name: "plain text untouched",
			in:   "Notebook sales rose 12%.",
			want: "Notebook sales rose 12%.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAIText(tt.in))
		})
	}
}
