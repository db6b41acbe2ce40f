package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullFlags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"--api-id", "12345",
		"--api-hash", "deadbeef",
		"--data-dir", "/tmp/oolong",
		"--hot-reload",
		"--test-mode",
		"--log-format", "json",
		"--log-level", "debug",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, int32(12345), cfg.APIID)
	assert.Equal(t, "deadbeef", cfg.APIHash)
	assert.True(t, cfg.HotReload)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, filepath.Join("/tmp/oolong", "oolong.log"), cfg.LogFile)
	assert.Equal(t, filepath.Join("/tmp/oolong", "modules"), cfg.ModulesDir)
}

func TestParse_EnvFallback(t *testing.T) {
	t.Setenv("OOLONG_API_ID", "777")
	t.Setenv("OOLONG_API_HASH", "cafe")
	t.Setenv("OOLONG_BOT_TOKEN", "123:abc")

	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, int32(777), cfg.APIID)
	assert.Equal(t, "cafe", cfg.APIHash)
	assert.Equal(t, "123:abc", cfg.BotToken)
}

func TestParse_MissingCredentials(t *testing.T) {
	t.Setenv("OOLONG_API_ID", "")
	t.Setenv("OOLONG_API_HASH", "")

	var out bytes.Buffer
	_, _, err := Parse(nil, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParse_InvalidLogFormat(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"--api-id", "1", "--api-hash", "x", "--log-format", "xml"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "log-format")
}

func TestParse_LogFileNoneDisables(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{"--api-id", "1", "--api-hash", "x", "--log-file", "none"}, &out)
	require.NoError(t, err)
	assert.Empty(t, cfg.LogFile)
}

func TestParse_DebugShorthand(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{"--api-id", "1", "--api-hash", "x", "--debug"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_Help(t *testing.T) {
	var out bytes.Buffer
	_, exit, err := Parse([]string{"--help"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "oolong")
}
