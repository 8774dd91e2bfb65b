package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmrfid/pkg/config"
	"nmrfid/pkg/fid"
)

// execute runs the CLI with a config file from a temp dir and returns
// its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "nmrfid.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeOps(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ops.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestGroupsCommand(t *testing.T) {
	out, err := execute(t, "groups", "--sizes", "512,128", "--acq-order", "d2,p1", "--index", "0,1")
	require.NoError(t, err)
	assert.Contains(t, out, "acquisition order: d2,p1\n")
	assert.Contains(t, out, "group size:        2\n")
	assert.Contains(t, out, "total groups:      64\n")
	assert.Contains(t, out, "dimension 2:       64 increments, mode hyper, array 0\n")
	assert.Contains(t, out, "group 0: offsets [0 1] (d2=0)\n")
	assert.Contains(t, out, "group 1: offsets [2 3] (d2=1)\n")
}

func TestGroupsCommandRejectsBadOrder(t *testing.T) {
	_, err := execute(t, "groups", "--sizes", "512,128", "--acq-order", "d2,d3")
	assert.Error(t, err)

	_, err = execute(t, "groups")
	assert.Error(t, err, "--sizes is required")
}

func TestLoadCommand(t *testing.T) {
	vecs := make([][]float64, 8)
	for i := range vecs {
		vecs[i] = []float64{float64(i), 0, 1, 0}
	}
	path := filepath.Join(t.TempDir(), "fid")
	var buf bytes.Buffer
	require.NoError(t, fid.WriteRaw(&buf, vecs, fid.RawOptions{}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	out, err := execute(t, "load", path, "--sizes", "2,8", "--index", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "total groups:      4\n")
	assert.Contains(t, out, "group 3.0: 2 complex points, first 6-7i")

	out, err = execute(t, "load", path, "--sizes", "2,8", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "group 0.0:")
	assert.Contains(t, out, "group 3.0:")

	_, err = execute(t, "load", path, "--sizes", "2,8", "--format", "int16")
	assert.Error(t, err)
}

func TestScriptInteractive(t *testing.T) {
	ops := writeOps(t, "DIM(1)\nSB()\nFT()\nDIM(2)\nFT()\nDIM(3)\nZF()\n")
	out, err := execute(t, "script", ops, "--sizes", "512,128", "--acq-order", "21")
	require.NoError(t, err)
	assert.Contains(t, out, "acqOrder('p1','d2')\n")
	assert.Contains(t, out, "DIM(1)\nSB()\nFT()\nDIM(2)\nFT()\nrun()\n")
	assert.NotContains(t, out, "DIM(3)", "keys beyond the acquisition are dropped")
	assert.NotContains(t, out, "CREATE(")

	out, err = execute(t, "script", ops, "--dim", "D2")
	require.NoError(t, err)
	assert.NotContains(t, out, "DIM(1)")
	assert.Contains(t, out, "DIM(2)\nFT()\nrun()\n")
}

func TestScriptStrict(t *testing.T) {
	ops := writeOps(t, "DIM(1)\nSB(\nFT()\n")
	_, err := execute(t, "script", ops, "--strict")
	assert.Error(t, err)

	out, err := execute(t, "script", ops)
	require.NoError(t, err)
	assert.Contains(t, out, "DIM(1)\nFT()\nrun()\n")
}

func TestScriptBatch(t *testing.T) {
	ops := writeOps(t, "DIM(1)\nFT()\n")
	out, err := execute(t, "script", ops, "--batch", "--files", "/runs/a/fid,/runs/b/fid", "--combine", "--out", "/out/all.nv")
	require.NoError(t, err)
	assert.Contains(t, out, "outPath = '/out/all.nv'\n")
	assert.Contains(t, out, "CREATE(outPath, extra=2)")
	assert.Contains(t, out, "CLOSE()\n")
}

func TestScriptEmitDir(t *testing.T) {
	ops := writeOps(t, "DIM(1)\nFT()\n")
	dir := filepath.Join(t.TempDir(), "scripts")
	out, err := execute(t, "script", ops, "--batch", "--files", "/runs/a/fid,/runs/b/fid", "--out", "/out", "--emit-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "/out/a.nv\n/out/b.nv\n")
	assert.Contains(t, out, "finished in")

	second, err := os.ReadFile(filepath.Join(dir, "process_002.py"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "FID('/runs/b/fid')\nCREATE('/out/b.nv')\n")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "nmrfid.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestConfigHeaderInScript(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nmrfid.yaml")
	cfg := config.DefaultConfig()
	cfg.Processing.NProcess = 3
	cfg.Script.Header = []string{"sw(5000.0)"}
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "script", writeOps(t, "DIM(1)\nFT()\n")})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "procOpts(nprocess=3)\n")
	assert.Contains(t, out.String(), "sw(5000.0)\nDIM(1)\nFT()\n")
}

func TestScriptPhase(t *testing.T) {
	ops := writeOps(t, "DIM(1)\nSB()\nPHASE(ph0=10.0,ph1=0.0,dimag=False)\nFT()\n")
	out, err := execute(t, "script", ops, "--phase", "1:5.5:-20", "--phase", "2:90:0:dimag")
	require.NoError(t, err)
	assert.Contains(t, out, "DIM(1)\nSB()\nPHASE(ph0=15.5,ph1=-20.0,dimag=False)\nFT()\n")
	assert.Contains(t, out, "DIM(2)\nPHASE(ph0=90.0,ph1=0.0,dimag=True)\n")

	_, err = execute(t, "script", ops, "--phase", "0:1:1")
	assert.Error(t, err)
	_, err = execute(t, "script", ops, "--phase", "1:x:1")
	assert.Error(t, err)
}
