package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sme/object"
)

const cardSource = `<script>
prop title = "none"
</script>
<template><h1>{title}</h1><slot /></template>
`

const appSource = `<script>
let name = "a"
let clicks = 0
function click() {
  clicks += 1
}
</script>
<template><Card title={name}><b>{name} {clicks}</b></Card></template>
`

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"2", 2, false},
		{"debug", 0, false},
		{"Release", 2, false},
		{"", 2, false},
		{"3", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Level)
	require.Equal(t, "dist", cfg.OutputDir)
	require.Equal(t, "warn", cfg.LogLevel)

	v.Set("build.output_dir", " ")
	_, err = loadConfig(v)
	require.Error(t, err)

	v.Set("build.output_dir", "out")
	v.Set("build.workers", -1)
	_, err = loadConfig(v)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SME_BUILD_OPTIMIZATION_LEVEL", "debug")
	t.Setenv("SME_BUILD_SOURCE_MAP", "true")
	a := newApp(&bytes.Buffer{}, &bytes.Buffer{})
	cfg, err := loadConfig(a.v)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Level)
	require.True(t, cfg.SourceMap)
}

func TestBuild(t *testing.T) {
	dir := writeSources(t, map[string]string{"Card.sme": cardSource, "App.sme": appSource})
	out := filepath.Join(t.TempDir(), "dist")

	stdout, _, err := run(t, "build", dir, "-o", out, "-O", "1")
	require.NoError(t, err)
	require.Contains(t, stdout, "compiled 2 component(s)")
	require.FileExists(t, filepath.Join(out, "App.smem"))
	require.FileExists(t, filepath.Join(out, "Card.smem"))

	stdout, _, err = run(t, "dis", filepath.Join(out, "App.smem"), "--func", "click")
	require.NoError(t, err)
	require.Contains(t, stdout, "App.click")
	require.Contains(t, stdout, "STORE_VAR")
}

func TestBuildWithConfigFile(t *testing.T) {
	dir := writeSources(t, map[string]string{"Card.sme": cardSource})
	out := filepath.Join(t.TempDir(), "modules")
	cache := filepath.Join(t.TempDir(), "cache")
	config := filepath.Join(t.TempDir(), "sme.yaml")
	yaml := "build:\n  entry: " + dir + "\n  output_dir: " + out + "\n  cache_dir: " + cache + "\n"
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0o644))

	_, _, err := run(t, "--config", config, "build")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(out, "Card.smem"))
	require.FileExists(t, filepath.Join(cache, "modules.db"))
}

func TestCheckReportsEveryFile(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"Card.sme":   cardSource,
		"Broken.sme": "<script>\nlet = 1\n</script>\n<template></template>",
		"Bad.sme":    "<template><p>{missing}</p></template>",
	})
	_, stderr, err := run(t, "check", dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "error(s)")
	require.Contains(t, stderr, "syntax error[")
	require.Contains(t, stderr, "binding error[E2001]")
	require.Contains(t, stderr, "Broken.sme")

	stdout, _, err := run(t, "check", filepath.Join(dir, "Card.sme"))
	require.NoError(t, err)
	require.Contains(t, stdout, "1 component(s) ok")
}

func TestRender(t *testing.T) {
	dir := writeSources(t, map[string]string{"Card.sme": cardSource, "App.sme": appSource})

	stdout, _, err := run(t, "render", dir, "--component", "App")
	require.NoError(t, err)
	require.Equal(t, "<h1>a</h1><b>a 0</b>\n", stdout)

	stdout, _, err = run(t, "render", dir, "-c", "App", "--set", "name=b", "--dispatch", "click", "--dispatch", "click")
	require.NoError(t, err)
	require.Equal(t, "<h1>b</h1><b>b 2</b>\n", stdout)

	stdout, _, err = run(t, "render", filepath.Join(dir, "Card.sme"), "--prop", "title=42")
	require.NoError(t, err)
	require.Equal(t, "<h1>42</h1>\n", stdout)

	_, _, err = run(t, "render", dir, "-c", "Missing")
	require.Error(t, err)
	_, _, err = run(t, "render", dir, "-c", "App", "--set", "name")
	require.Error(t, err)
}

func TestRenderTrace(t *testing.T) {
	dir := writeSources(t, map[string]string{"Card.sme": cardSource})
	_, stderr, err := run(t, "render", dir, "--trace", "--log-level", "info", "--log-json")
	require.NoError(t, err)
	require.Contains(t, stderr, `"message":"call"`)
	require.Contains(t, stderr, `"func":"title.init"`)
	require.Contains(t, stderr, `"component":"Card"`)
}

func TestGraphJSON(t *testing.T) {
	dir := writeSources(t, map[string]string{"Card.sme": cardSource, "App.sme": appSource})
	stdout, _, err := run(t, "graph", filepath.Join(dir, "App.sme"), filepath.Join(dir, "Card.sme"), "--json")
	require.NoError(t, err)

	var reports []graphReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 2)
	require.Equal(t, "App", reports[0].Component)
	require.Equal(t, "name", reports[0].Vars[0].Name)
	require.NotEmpty(t, reports[0].Vars[0].Updates)

	stdout, _, err = run(t, "graph", filepath.Join(dir, "Card.sme"))
	require.NoError(t, err)
	require.Contains(t, stdout, "component Card")
	require.Contains(t, stdout, "mutable title")
}

func TestDisJSON(t *testing.T) {
	dir := writeSources(t, map[string]string{"Card.sme": cardSource})
	stdout, _, err := run(t, "dis", filepath.Join(dir, "Card.sme"), "--json")
	require.NoError(t, err)
	var listing map[string]map[string][]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(stdout), &listing))
	require.Contains(t, listing["Card"], "title.init")

	_, _, err = run(t, "dis", filepath.Join(dir, "Card.sme"), "--func", "nope")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, stdout, "smec dev")

	stdout, _, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	require.Equal(t, "dev", info["version"])
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want object.Object
	}{
		{"3", object.NewInt(3)},
		{"1.5", object.NewFloat(1.5)},
		{"true", object.True},
		{"nil", object.Nil},
		{"hello", object.NewString("hello")},
		{`[1, "a"]`, object.NewList([]object.Object{object.NewInt(1), object.NewString("a")})},
	}
	for _, tt := range tests {
		got, err := parseValue(tt.in)
		require.NoError(t, err)
		require.True(t, object.Equals(tt.want, got), "%s: got %s", tt.in, got)
	}
	_, err := parseValue("[1,")
	require.Error(t, err)
}
