package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns its output.
// Flags are reset first since cobra keeps parsed values between runs.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return output.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := executeCommand(t, "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "brainmemory version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := executeCommand(t, "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "BrainMemory")
		assert.Contains(t, output, "long-term")
		for _, name := range []string{"serve", "status", "stop", "store", "retrieve", "search"} {
			assert.Contains(t, output, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "info", logLevelFlag.DefValue)

		addrFlag := cmd.PersistentFlags().Lookup("addr")
		require.NotNil(t, addrFlag)
		assert.Equal(t, "", addrFlag.DefValue)
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestResolveBaseURL(t *testing.T) {
	t.Run("addr without scheme", func(t *testing.T) {
		addr = "localhost:7000"
		defer func() { addr = "" }()

		base, err := resolveBaseURL()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:7000", base)
	})

	t.Run("addr with scheme", func(t *testing.T) {
		addr = "https://memory.internal/"
		defer func() { addr = "" }()

		base, err := resolveBaseURL()
		require.NoError(t, err)
		assert.Equal(t, "https://memory.internal", base)
	})

	t.Run("wildcard host from config", func(t *testing.T) {
		path := writeConfig(t, `{"server": {"host": "0.0.0.0", "port": 6123}}`)
		cfgFile = path
		defer func() { cfgFile = "" }()

		base, err := resolveBaseURL()
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:6123", base)
	})
}
