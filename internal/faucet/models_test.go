package faucet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "faucetd/pkg/domain-errors"
)

func TestParseAddress(t *testing.T) {
	t.Run("accepts well-formed addresses", func(t *testing.T) {
		for _, raw := range []string{
			"rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH",
			"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			"r" + strings.Repeat("a", 24),
			"r" + strings.Repeat("a", 34),
		} {
			addr, err := ParseAddress(raw)
			assert.NoError(t, err, raw)
			assert.Equal(t, raw, addr.String())
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		for name, raw := range map[string]string{
			"empty":              "",
			"wrong prefix":       "xN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH",
			"too short":          "r" + strings.Repeat("a", 23),
			"too long":           "r" + strings.Repeat("a", 35),
			"excluded char zero": "r0000000000000000000000000",
			"excluded char O":    "rOOOOOOOOOOOOOOOOOOOOOOOOO",
			"whitespace":         " rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH",
		} {
			_, err := ParseAddress(raw)
			assert.Error(t, err, name)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidBeneficiary), name)
		}
	})
}
