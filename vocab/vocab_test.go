package vocab_test

import (
	"testing"

	"github.com/theme-lifecycle/themewave/vocab"
	"github.com/stretchr/testify/require"
)

func TestNewStatic_HappyPath(t *testing.T) {
	t.Parallel()

	v, err := vocab.NewStatic([]string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Equal(t, 3, v.Size())

	id, ok := v.IndexOf("beta")
	require.True(t, ok)
	require.Equal(t, 1, id)

	tok, ok := v.Token(2)
	require.True(t, ok)
	require.Equal(t, "gamma", tok)
}

func TestNewStatic_UnknownToken(t *testing.T) {
	t.Parallel()

	v, err := vocab.NewStatic([]string{"alpha"})
	require.NoError(t, err)

	_, ok := v.IndexOf("missing")
	require.False(t, ok)

	_, ok = v.Token(5)
	require.False(t, ok)

	_, ok = v.Token(-1)
	require.False(t, ok)
}

func TestNewStatic_EmptyToken(t *testing.T) {
	t.Parallel()

	_, err := vocab.NewStatic([]string{"alpha", ""})
	require.ErrorIs(t, err, vocab.ErrEmptyToken)
}

func TestNewStatic_DuplicateToken(t *testing.T) {
	t.Parallel()

	_, err := vocab.NewStatic([]string{"alpha", "alpha"})
	require.ErrorIs(t, err, vocab.ErrDuplicateToken)
}
