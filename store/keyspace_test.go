package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagemma/ga/errors"
)

func TestKeyspace(t *testing.T) {
	k := keyspace{bucket: "jobs"}

	full, err := k.full("a")
	require.NoError(t, err)
	assert.Equal(t, "jobs:a", full)

	key, ok := k.strip("jobs:a:b")
	assert.True(t, ok)
	assert.Equal(t, "a:b", key)

	_, ok = k.strip("other:a")
	assert.False(t, ok)

	_, err = k.full("")
	assert.ErrorIs(t, err, errors.ErrInvalidKey)
	assert.True(t, errors.IsInvalid(err))

	unscoped := keyspace{}
	full, err = unscoped.full("a")
	require.NoError(t, err)
	assert.Equal(t, "a", full)
}

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		match   []string
		reject  []string
	}{
		{"*", []string{"", "a", "a:b/c"}, nil},
		{"user:*", []string{"user:1", "user:", "user:a:b"}, []string{"users:1", "xuser:1"}},
		{"k?", []string{"k1", "kx"}, []string{"k", "k12"}},
		{"k[0-2]", []string{"k0", "k2"}, []string{"k3", "k"}},
		{"k[!0-2]", []string{"k3", "ka"}, []string{"k0"}},
		{"a.b", []string{"a.b"}, []string{"axb"}},
		{`a\*`, []string{"a*"}, []string{"ab"}},
		{"[", []string{"["}, []string{"a"}},
		{"[]]", []string{"]"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			re, err := compileGlob(tt.pattern)
			require.NoError(t, err)
			for _, s := range tt.match {
				assert.True(t, re.MatchString(s), "expected %q to match", s)
			}
			for _, s := range tt.reject {
				assert.False(t, re.MatchString(s), "expected %q not to match", s)
			}
		})
	}
}
