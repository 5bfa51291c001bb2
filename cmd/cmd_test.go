package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	decodeGrammar, decodeHex, decodeFormat = "", "", ""
	decodeOffset, decodeStore = 0, false
	listGrammars, listVarbinds = false, false
	outputFile, force = "", false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDecodeHexCommand(t *testing.T) {
	out, err := execute(t, "decode", "--hex", "00000022 00000001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "hex attribute-value ok consumed=8/8\n"), out)
	assert.Contains(t, out, "value: true")

	out, err = execute(t, "decode", "--grammar", "oid", "--hex", "00000000", "--format", "json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "ok", res["outcome"])
	assert.Equal(t, float64(4), res["consumed"])
}

func TestDecodeCommandErrors(t *testing.T) {
	_, err := execute(t, "decode")
	assert.Error(t, err)

	_, err = execute(t, "decode", "--hex", "zz")
	assert.Error(t, err)

	out, err := execute(t, "decode", "--grammar", "string", "--hex", "00000009 61")
	assert.Error(t, err)
	assert.Contains(t, out, "truncated")

	_, err = execute(t, "decode", "--hex", "00", "--format", "yaml")
	assert.Error(t, err)
}

func TestDecodeFileCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.hex")
	require.NoError(t, os.WriteFile(path, []byte("# integer\n0000000b 0000002a\n"), 0o644))

	out, err := execute(t, "decode", path)
	require.NoError(t, err)
	assert.Contains(t, out, "value.hex attribute-value ok consumed=8/8")
	assert.Contains(t, out, "value: 42")
}

func TestSyntaxesCommand(t *testing.T) {
	out, err := execute(t, "syntaxes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "TAG"), out)
	assert.Contains(t, out, "Boolean")

	out, err = execute(t, "syntaxes", "--grammars", "--format", "json")
	require.NoError(t, err)
	var grammars []string
	require.NoError(t, json.Unmarshal([]byte(out), &grammars))
	assert.Contains(t, grammars, "attribute-value")
	assert.Contains(t, grammars, "agentx")

	out, err = execute(t, "syntaxes", "--varbinds")
	require.NoError(t, err)
	assert.Contains(t, out, "Counter64")
}

func TestGenerateCommand(t *testing.T) {
	out, err := execute(t, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "decoder:")
	assert.Contains(t, out, "max_depth: 16")

	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	_, err = execute(t, "generate", "--output", path)
	require.NoError(t, err)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, string(written))

	_, err = execute(t, "generate", "--output", path)
	assert.Error(t, err)

	_, err = execute(t, "generate", "--output", path, "--force")
	assert.NoError(t, err)
}
