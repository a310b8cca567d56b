package dtunconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, 6, c.K)
	require.Equal(t, 3, c.Alpha)
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	c := Default()
	c.K = 0
	require.Error(t, c.Validate())

	c = Default()
	c.Alpha = -1
	require.Error(t, c.Validate())

	c = Default()
	c.QueryTimeout = 0
	require.Error(t, c.Validate())

	c = Default()
	c.RegisterTTL = 0
	require.Error(t, c.Validate())
}

func TestBindFlagsOverridesDefault(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--listen", "0.0.0.0:9000", "--k", "8", "--bootstrap", "a:1,b:2"}))

	require.Equal(t, "0.0.0.0:9000", c.ListenAddr)
	require.Equal(t, 8, c.K)
	require.Equal(t, []string{"a:1", "b:2"}, c.Bootstrap)
}

func TestLoadYAMLOverlaysFields(t *testing.T) {
	c := Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "dtund.yaml")
	contents := "listen_addr: 127.0.0.1:4000\nk: 10\nalpha: 5\nquery_timeout: 3s\nregister_timeout: 20s\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	require.NoError(t, c.LoadYAML(path))
	require.Equal(t, "127.0.0.1:4000", c.ListenAddr)
	require.Equal(t, 10, c.K)
	require.Equal(t, 5, c.Alpha)
	require.Equal(t, 3*time.Second, c.QueryTimeout)
	require.Equal(t, 20*time.Second, c.RegisterTTL)
}

func TestLoadYAMLEmptyPathIsNoop(t *testing.T) {
	c := Default()
	require.NoError(t, c.LoadYAML(""))
	require.Equal(t, Default(), c)
}

func TestLoadYAMLMissingFileErrors(t *testing.T) {
	c := Default()
	require.Error(t, c.LoadYAML(filepath.Join(t.TempDir(), "missing.yaml")))
}
