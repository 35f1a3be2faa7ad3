package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
	"github.com/Sumatoshi-tech/wasmprov/pkg/config"
	"github.com/Sumatoshi-tech/wasmprov/pkg/report"
	"github.com/Sumatoshi-tech/wasmprov/pkg/wasm/wasmtest"
)

func writeCorpus(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	files := map[string][]byte{
		"a.wasm":   wasmtest.New().Import("wbg", "__wbg_log").Bytes(),
		"b.wasm":   wasmtest.New().Import("env", "memcpy").Bytes(),
		"bad.wasm": []byte("\x00asm\x02\x00\x00\x00"),
	}

	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}

	return dir
}

func emptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wasmprov.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewClassifyCommand()

	var stdout, stderr bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func TestClassify_TextReport(t *testing.T) {
	t.Parallel()

	dir := writeCorpus(t)

	stdout, stderr, err := execute(t, dir, "--config", emptyConfig(t), "--workers", "1", "--no-color")
	require.NoError(t, err)

	lines := strings.Split(stdout, "\n")
	assert.Equal(t, "Rust, "+filepath.Join(dir, "a.wasm"), lines[0])
	assert.Equal(t, "Unknown, "+filepath.Join(dir, "b.wasm"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "error, "+filepath.Join(dir, "bad.wasm")+": "), lines[2])

	assert.Contains(t, stdout, "1 modules failed to parse")
	assert.Contains(t, stdout, "50% unclassified")
	assert.Contains(t, stderr, "classify finished")
}

func TestClassify_JSONReportIsValid(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, writeCorpus(t), "--config", emptyConfig(t), "--format", "json", "--workers", "3")
	require.NoError(t, err)
	require.NoError(t, report.ValidateJSON([]byte(stdout)))
	assert.Contains(t, stdout, `"unclassified_percent": 50`)
}

func TestClassify_NoPerModule(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, writeCorpus(t), "--config", emptyConfig(t), "--no-per-module", "--no-color")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Rust, ")
	assert.Contains(t, stdout, "50% unclassified")
}

func TestClassify_EmptyDirOmitsPercent(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, t.TempDir(), "--config", emptyConfig(t), "--no-color")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "unclassified")
}

func TestClassify_ServesMetricsDuringRun(t *testing.T) {
	t.Parallel()

	_, stderr, err := execute(t, writeCorpus(t), "--config", emptyConfig(t), "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, stderr, "serving metrics")
}

func TestClassify_InvalidFlags(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, t.TempDir(), "--config", emptyConfig(t), "--format", "xml")
	require.ErrorIs(t, err, config.ErrInvalidFormat)

	_, _, err = execute(t, t.TempDir(), "--config", emptyConfig(t), "--workers", "-2")
	require.ErrorIs(t, err, config.ErrInvalidWorkers)

	_, _, err = execute(t, filepath.Join(t.TempDir(), "missing"), "--config", emptyConfig(t))
	require.Error(t, err)
}

func TestClassify_ConfigFileOverriddenByFlags(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "wasmprov.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  format: yaml\nsource:\n  exclude: [\"bad.wasm\"]\n"), 0o600))

	stdout, _, err := execute(t, writeCorpus(t), "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "failed: 0")

	stdout, _, err = execute(t, writeCorpus(t), "--config", cfgPath, "--format", "json")
	require.NoError(t, err)
	require.NoError(t, report.ValidateJSON([]byte(stdout)))
}

func TestClassify_LoadConfigError(t *testing.T) {
	t.Parallel()

	cmd := newClassifyCommandWithDeps(func(string) (*config.Config, error) { return nil, config.ErrInvalidMaxSize })
	cmd.SetArgs([]string{t.TempDir()})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	require.ErrorIs(t, cmd.Execute(), config.ErrInvalidMaxSize)
}

func TestInspect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := wasmtest.New().Import("env", "abort").Export("memory").Bytes()

	raw := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(raw, data, 0o600))

	var packed bytes.Buffer

	zw := lz4.NewWriter(&packed)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	compressed := filepath.Join(dir, "mod.wasm.lz4")
	require.NoError(t, os.WriteFile(compressed, packed.Bytes(), 0o600))

	for _, path := range []string{raw, compressed} {
		var out bytes.Buffer

		require.NoError(t, runInspect(&out, path))
		assert.Contains(t, out.String(), "abort")
		assert.Contains(t, out.String(), "Category: AssemblyScript")
		assert.Contains(t, out.String(), "Rule: "+classify.RuleAssemblyScript)
	}
}

func TestInspect_Fallback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.wasm")
	require.NoError(t, os.WriteFile(path, wasmtest.Header(), 0o600))

	var out bytes.Buffer

	require.NoError(t, runInspect(&out, path))
	assert.Contains(t, out.String(), "Category: Unknown")
	assert.Contains(t, out.String(), "Rule: "+fallbackRuleLabel)

	require.Error(t, runInspect(&out, filepath.Join(t.TempDir(), "absent.wasm")))
}

func TestRules_ListsPriorityOrder(t *testing.T) {
	t.Parallel()

	cmd := NewRulesCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	text := out.String()
	last := -1

	for _, name := range append(classify.DefaultRules().Names(), fallbackRuleLabel) {
		idx := strings.Index(text, name)
		require.GreaterOrEqual(t, idx, 0, name)
		assert.Greater(t, idx, last, name)

		last = idx
	}
}

func TestClassify_DefaultRunKeepsInputOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	want := make([]string, 0, 20)

	for idx := range 20 {
		path := filepath.Join(dir, fmt.Sprintf("m%02d.wasm", idx))
		require.NoError(t, os.WriteFile(path, wasmtest.New().Import("go", fmt.Sprintf("f%d", idx)).Bytes(), 0o600))

		want = append(want, "Go, "+path)
	}

	stdout, _, err := execute(t, dir, "--config", emptyConfig(t), "--no-color")
	require.NoError(t, err)

	lines := strings.Split(stdout, "\n")
	require.GreaterOrEqual(t, len(lines), len(want))
	assert.Equal(t, want, lines[:len(want)])
}
