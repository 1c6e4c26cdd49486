package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases",
			input: "SWIGGY",
			want:  "swiggy",
		},
		{
			name:  "collapses internal whitespace",
			input: "UPI  PAYMENT\tTO\n\nSWIGGY",
			want:  "upi payment to swiggy",
		},
		{
			name:  "trims leading and trailing whitespace",
			input: "  NEFT SALARY CREDIT  ",
			want:  "neft salary credit",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only input",
			input: " \t\n ",
			want:  "",
		},
		{
			name:  "punctuation preserved",
			input: "AMZN Mktp IN*2K4T",
			want:  "amzn mktp in*2k4t",
		},
		{
			name:  "already normalized",
			input: "swiggy",
			want:  "swiggy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.input))
		})
	}
}

func TestStringIsIdempotent(t *testing.T) {
	inputs := []string{"  UPI/SWIGGY  ORDER ", "plain", "A  B   C"}
	for _, in := range inputs {
		once := String(in)
		assert.Equal(t, once, String(once))
	}
}
