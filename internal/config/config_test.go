package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "jobwatch"}
	pf := root.PersistentFlags()
	pf.String("base-url", DefaultBaseURL, "")
	pf.String("session-cookie", "", "")
	pf.String("cookie-name", DefaultCookieName, "")
	pf.Bool("debug", false, "")
	pf.String("log-level", "warn", "")
	pf.String("log-format", "text", "")
	pf.String("log-file", "", "")
	pf.String("metrics-addr", "", "")
	return root
}

func setup(t *testing.T) *cobra.Command {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("config dir lookup via XDG is linux only")
	}
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return newRoot()
}

func TestLoadDefaults(t *testing.T) {
	root := setup(t)
	require.NoError(t, Init(root))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, s.BaseURL)
	assert.Equal(t, "sessionid", s.CookieName)
	assert.Equal(t, "warn", s.LogLevel)
	assert.Empty(t, File())
}

func TestLoadPrecedence(t *testing.T) {
	root := setup(t)
	cfgDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "jobwatch")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"),
		[]byte("base_url: http://file:8000\nsession_cookie: from-file\nlog_format: json\n"), 0o644))
	t.Setenv("JOBWATCH_SESSION_COOKIE", "from-env")

	require.NoError(t, root.PersistentFlags().Set("base-url", "http://flag:9000"))
	require.NoError(t, Init(root))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://flag:9000", s.BaseURL)
	assert.Equal(t, "from-env", s.SessionCookie)
	assert.Equal(t, "json", s.LogFormat)
	assert.NotEmpty(t, File())
}

func TestLoadDebugForcesLevel(t *testing.T) {
	root := setup(t)
	require.NoError(t, root.PersistentFlags().Set("debug", "true"))
	require.NoError(t, Init(root))

	s, err := Load()
	require.NoError(t, err)
	assert.True(t, s.Debug)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestInitRejectsBrokenFile(t *testing.T) {
	root := setup(t)
	cfgDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "jobwatch")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("base_url: [unterminated\n"), 0o644))

	assert.Error(t, Init(root))
}
