package globset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_KeyIsOrderIndependent(t *testing.T) {
	a := New("src/**/*.go", "README.md")
	b := New("README.md", "src/**/*.go")

	assert.Equal(t, a.Key(), b.Key())
}

func TestNew_Deduplicates(t *testing.T) {
	s := New("*.go", "*.go", "*.go")
	assert.Equal(t, []string{"*.go"}, s.Patterns())
}

func TestSet_Match(t *testing.T) {
	s := New("src/**/*.go", "*.md")

	ok, err := s.Match("src/pkg/file.go")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Match("README.md")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Match("src/pkg/file.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_NilMatchesNothing(t *testing.T) {
	var s *Set

	ok, err := s.Match("anything")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", s.Key())
	assert.Nil(t, s.Patterns())
}
