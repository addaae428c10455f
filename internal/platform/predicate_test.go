package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	linux = Platform{OS: "linux", Family: "unix", Arch: "amd64"}
	mac   = Platform{OS: "darwin", Family: "unix", Arch: "arm64"}
	win   = Platform{OS: "windows", Family: "windows", Arch: "amd64"}
)

func TestParsePredicate(t *testing.T) {
	t.Run("empty is always", func(t *testing.T) {
		p, err := ParsePredicate("")
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
		assert.True(t, p.Matches(win))
		assert.Equal(t, "always", p.String())
	})

	t.Run("bare family identifier", func(t *testing.T) {
		p, err := ParsePredicate("cfg(unix)")
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
		assert.True(t, p.Matches(mac))
		assert.False(t, p.Matches(win))
	})

	t.Run("equality", func(t *testing.T) {
		p, err := ParsePredicate(`cfg(target_os = "linux")`)
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
		assert.False(t, p.Matches(mac))
	})

	t.Run("arch equality", func(t *testing.T) {
		p, err := ParsePredicate(`cfg(target_arch = "amd64")`)
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
		assert.False(t, p.Matches(mac))
	})

	t.Run("not", func(t *testing.T) {
		p, err := ParsePredicate(`cfg(not(target_os = "windows"))`)
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
		assert.False(t, p.Matches(win))
	})

	t.Run("any", func(t *testing.T) {
		p, err := ParsePredicate(`cfg(any(target_os = "darwin", target_os = "windows"))`)
		require.NoError(t, err)
		assert.False(t, p.Matches(linux))
		assert.True(t, p.Matches(mac))
		assert.True(t, p.Matches(win))
	})

	t.Run("all with nesting", func(t *testing.T) {
		p, err := ParsePredicate(`cfg(all(target_family = "unix", not(target_os = "darwin")))`)
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
		assert.False(t, p.Matches(mac))
		assert.False(t, p.Matches(win))
	})

	t.Run("empty any never matches", func(t *testing.T) {
		p, err := ParsePredicate("cfg(any())")
		require.NoError(t, err)
		assert.False(t, p.Matches(linux))
	})

	t.Run("empty all always matches", func(t *testing.T) {
		p, err := ParsePredicate("cfg(all())")
		require.NoError(t, err)
		assert.True(t, p.Matches(linux))
	})

	t.Run("unknown identifier never matches", func(t *testing.T) {
		p, err := ParsePredicate("cfg(some_custom_flag)")
		require.NoError(t, err)
		assert.False(t, p.Matches(linux))
	})

	t.Run("malformed inputs", func(t *testing.T) {
		for _, raw := range []string{
			"unix",
			"cfg(",
			"cfg(unix",
			`cfg(target_os = )`,
			`cfg(target_os = "linux)`,
			"cfg(any(unix,))",
			"cfg(unix) trailing",
		} {
			_, err := ParsePredicate(raw)
			assert.Error(t, err, "input %q", raw)
		}
	})
}

func TestNormalize(t *testing.T) {
	p := Platform{OS: "windows"}.Normalize()
	assert.Equal(t, "windows", p.Family)
	assert.NotEmpty(t, p.Arch)

	p = Platform{}.Normalize()
	assert.Equal(t, Host(), p)

	p = Platform{OS: "linux"}.Normalize()
	assert.Equal(t, "unix", p.Family)
}
