package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumberAccepted(t *testing.T) {
	cases := map[string]string{
		"0712345678":         "254712345678",
		"254712345678":       "254712345678",
		"+254712345678":      "254712345678",
		"712345678":          "254712345678",
		"0112345678":         "254112345678",
		"112345678":          "254112345678",
		"+254 712 345 678":   "254712345678",
		"0712-345-678":       "254712345678",
		"(0712) 345678":      "254712345678",
		"254 (0) 712345678":  "",
		"254012345678":       "254012345678",
		" 07 12 34 56 78 ":   "254712345678",
	}
	for in, want := range cases {
		got, err := NormalizePhoneNumber(in)
		if want == "" {
			assert.ErrorIs(t, err, ErrInvalidPhoneFormat, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalizePhoneNumberRejected(t *testing.T) {
	for _, in := range []string{
		"",
		"12345",
		"0812345678",
		"812345678",
		"25471234567",
		"2547123456789",
		"255712345678",
		"07123456789",
		"abcdefghij",
		"+1 415 555 0100",
	} {
		_, err := NormalizePhoneNumber(in)
		assert.ErrorIs(t, err, ErrInvalidPhoneFormat, in)
	}
}

func TestNormalizePhoneNumberCanonical(t *testing.T) {
	forms := []string{"0712345678", "254712345678", "+254712345678", "712345678"}
	var first string
	for i, f := range forms {
		got, err := NormalizePhoneNumber(f)
		require.NoError(t, err)
		if i == 0 {
			first = got
		}
		assert.Equal(t, first, got)
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "254******678", MaskPhone("254712345678"))
	assert.Equal(t, "***", MaskPhone("12"))
}
