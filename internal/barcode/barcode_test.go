package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDigit_KnownCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		digits string
		want   byte
	}{
		{"03600029145", '2'},
		{"01234567890", '5'},
		{"00000000000", '0'},
	}
	for _, tt := range tests {
		got, err := CheckDigit(tt.digits)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.digits)
	}
}

func TestCheckDigit_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := CheckDigit("123")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = CheckDigit("0360002914a")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestGenerate_ProducesValidCodes(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := Generate(nil)
		require.NoError(t, err)
		require.Len(t, code, Length)
		assert.True(t, Valid(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Valid("036000291452"))
	assert.False(t, Valid("036000291453"))
	assert.False(t, Valid("03600029145"))
	assert.False(t, Valid("03600029145x"))
	assert.False(t, Valid(""))
}
