package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig 写一份指向 testdata 音库的配置，trees 为 false 时树和时长表都从数据库读。
func writeConfig(t *testing.T, dir string, trees bool) string {
	t.Helper()
	abs := func(name string) string {
		p, err := filepath.Abs(filepath.Join("testdata", name))
		require.NoError(t, err)
		return p
	}

	var b strings.Builder
	fmt.Fprintf(&b, "voice:\n  db_path: %q\n", filepath.Join(dir, "voice.db"))
	if trees {
		b.WriteString("  trees:\n")
		for _, name := range treeNames {
			fmt.Fprintf(&b, "    %s: %q\n", name, abs(name+".txt"))
		}
		fmt.Fprintf(&b, "  duration_stats: %q\n", abs("durations.txt"))
	}
	b.WriteString("pipeline:\n  workers: 2\n")
	b.WriteString("log:\n  level: \"error\"\n")
	fmt.Fprintf(&b, "metrics:\n  textfile: %q\n", filepath.Join(dir, "prosody.prom"))

	path := filepath.Join(dir, "prosody.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRequiredTrees(t *testing.T) {
	names, stats := requiredTrees([]string{"phraser", "intonator", "durator"})
	assert.Equal(t, []string{"phrase", "accent", "tone", "duration"}, names)
	assert.True(t, stats)

	names, stats = requiredTrees([]string{"intonator"})
	assert.Equal(t, []string{"accent", "tone"}, names)
	assert.False(t, stats)
}

func TestDumpShow_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, true)
	bin := filepath.Join(dir, "duration.bin")

	out, err := run(t, "--config", cfg, "dump", "testdata/duration.txt", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "5 nodes")

	src, err := loadTreeFile("testdata/duration.txt")
	require.NoError(t, err)
	var want bytes.Buffer
	require.NoError(t, src.DumpText(&want))

	out, err = run(t, "--config", cfg, "show", bin)
	require.NoError(t, err)
	assert.Equal(t, want.String(), out)
}

func TestAnnotate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, true)

	out, err := run(t, "--config", cfg, "annotate", "你好，世界")
	require.NoError(t, err)

	assert.Contains(t, out, "phrases: [你 好] [世 界]")
	assert.Contains(t, out, "hao3(endtone=L-L%)")
	assert.Contains(t, out, "shi4(accent=H*)")
	// n: 0.06-0.5*0.02, i3: 0.12+0.6*0.04, h: 0.07-0.5*0.02, ao3: 0.15+0.6*0.05
	assert.Contains(t, out, "n@0.050 i3@0.194 h@0.254 ao3@0.434")

	prom, err := os.ReadFile(filepath.Join(dir, "prosody.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "prosody_utterances_total 1")
}

func TestAnnotate_Stdin(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, true)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("你好\n\n世界\n"))
	root.SetArgs([]string{"--config", cfg, "annotate", "--workers", "1"})
	require.NoError(t, root.Execute())

	assert.Equal(t, 2, strings.Count(out.String(), "utt "))
}

func TestImport_ThenLoadFromDB(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, true)

	out, err := run(t, "--config", cfg, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "durations 8 phones")
	for _, name := range treeNames {
		assert.Contains(t, out, "tree "+name)
	}

	out, err = run(t, "--config", cfg, "show", "--db", "accent")
	require.NoError(t, err)
	assert.Contains(t, out, "NODE name MATCHES String([a-z]+4) 2")

	// 不配置文件路径时，annotate 从数据库加载全部音库
	dbOnly := writeConfig(t, dir, false)
	out, err = run(t, "--config", dbOnly, "annotate", "你好，世界")
	require.NoError(t, err)
	assert.Contains(t, out, "ao3@0.434")
}

func TestExplain(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, true)

	out, err := run(t, "--config", cfg, "explain", "accent", "你好，世界", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `Syllable[2] "shi4"`)
	assert.Contains(t, out, "=> String(H*)")

	_, err = run(t, "--config", cfg, "explain", "accent", "你好", "9")
	assert.Error(t, err)

	_, err = run(t, "--config", cfg, "explain", "pitch", "你好")
	assert.Error(t, err)
}

func TestConfigMissing(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "show", "testdata/accent.txt")
	assert.Error(t, err)
}
