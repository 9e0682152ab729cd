package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	verifier := NewBcryptVerifier()

	t.Run("hash and compare round trip", func(t *testing.T) {
		t.Parallel()

		hashed, err := verifier.Hash("correct horse battery staple")
		require.NoError(t, err)
		require.NotEmpty(t, hashed)
		assert.NotEqual(t, "correct horse battery staple", hashed)

		assert.NoError(t, verifier.Compare(hashed, "correct horse battery staple"))
	})

	t.Run("wrong password fails comparison", func(t *testing.T) {
		t.Parallel()

		hashed, err := verifier.Hash("the right password")
		require.NoError(t, err)

		assert.Error(t, verifier.Compare(hashed, "the wrong password"))
	})

	t.Run("hashes are salted", func(t *testing.T) {
		t.Parallel()

		first, err := verifier.Hash("same input")
		require.NoError(t, err)
		second, err := verifier.Hash("same input")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}
