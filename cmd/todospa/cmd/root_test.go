package cmd_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoCodeAlone/todospa/cmd/todospa/cmd"
)

func TestRootCommand(t *testing.T) {
	rootCmd := cmd.NewRootCommand()
	assert.Equal(t, "todospa", rootCmd.Use)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--help"})
	assert.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "serve")
	assert.Contains(t, buf.String(), "browse")
}

func TestVersionFlag(t *testing.T) {
	rootCmd := cmd.NewRootCommand()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--version"})
	assert.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "todospa vdev")
}

func TestServeRejectsBadPort(t *testing.T) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"serve", "--port", "70000"})
	assert.Error(t, rootCmd.Execute())
}

func TestBrowseRequiresBaseURL(t *testing.T) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"browse"})
	assert.Error(t, rootCmd.Execute())
}
