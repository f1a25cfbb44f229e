package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"add", "jobs", "run", "results", "import", "status", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "pagesift", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAddCommand_RequiredFlags(t *testing.T) {
	urlFlag := addCmd.Flags().Lookup("url")
	require.NotNil(t, urlFlag, "add command should have --url flag")

	selFlag := addCmd.Flags().Lookup("selector")
	require.NotNil(t, selFlag, "add command should have --selector flag")
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag, "run command should have --concurrency flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_Flags(t *testing.T) {
	flag := importCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "import command should have --file flag")
}

func TestResultsCommand_Metadata(t *testing.T) {
	assert.Equal(t, "results <job-id>", resultsCmd.Use)
	assert.NotNil(t, resultsCmd.Args)
}
