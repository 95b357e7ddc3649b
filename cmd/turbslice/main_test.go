package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/turbslice/hdf5"
	"github.com/robert-malhotra/turbslice/tensorio"
)

// writeStore writes velocity/{0,1,2} and pressure/{10,2,0}, each a 4x4x4
// grid where element (i,j,k) of key n holds n*100 + i*16 + j*4 + k.
func writeStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.h5")
	f, err := hdf5.Create(path)
	require.NoError(t, err)

	for variable, keys := range map[string][]int{"velocity": {0, 1, 2}, "pressure": {10, 2, 0}} {
		g, err := f.Root().CreateGroup(variable)
		require.NoError(t, err)
		for _, key := range keys {
			data := make([]float64, 64)
			for i := range data {
				data[i] = float64(key*100 + i)
			}
			_, err := g.CreateDataset(fmt.Sprint(key), data, hdf5.WithShape(4, 4, 4))
			require.NoError(t, err)
		}
	}
	require.NoError(t, f.Close())
	return path
}

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "turbslice dev")
	require.Contains(t, out, "commit: none")
}

func TestInfo(t *testing.T) {
	path := writeStore(t)

	out, err := execute(t, "info", path)
	require.NoError(t, err)
	require.Contains(t, out, "No of keys = 2")
	require.Contains(t, out, "dtype: float64")
	require.Contains(t, out, "shape: (4, 4, 4)")

	out, err = execute(t, "info", "--tree", path)
	require.NoError(t, err)
	require.Contains(t, out, "/pressure/10  float64 (4, 4, 4) contiguous")

	_, err = execute(t, "info", filepath.Join(t.TempDir(), "missing.h5"))
	require.ErrorContains(t, err, "missing.h5")
}

func TestVarsAndTimes(t *testing.T) {
	path := writeStore(t)

	out, err := execute(t, "vars", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	out, err = execute(t, "times", path, "pressure")
	require.NoError(t, err)
	require.Equal(t, "10\n2\n0\n", out)

	out, err = execute(t, "times", "--sorted", path, "pressure")
	require.NoError(t, err)
	require.Equal(t, "0\n2\n10\n", out)

	_, err = execute(t, "times", path, "density")
	require.Error(t, err)
}

func TestExtractCommand(t *testing.T) {
	path := writeStore(t)
	output := filepath.Join(t.TempDir(), "v.tns")

	out, err := execute(t, "extract", path, "--var", "velocity", "--times", "2,0",
		"--x1", "1,1,1", "--x2", "2,2,2", "-o", output, "--codec", "lz4")
	require.NoError(t, err)
	require.Contains(t, out, "Dataspace (4, 4, 4)")
	require.Contains(t, out, "Reading file 0 velocity/2")
	require.Contains(t, out, "Reading file 1 velocity/0")
	require.Contains(t, out, "(2, 2, 2, 2)")

	tn, err := tensorio.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, []string{"2", "0"}, tn.TimeKeys)
	require.Equal(t, float64(200+16+4+1), tn.At(0, 0, 0, 0))
	require.Equal(t, float64(2*16+2*4+2), tn.At(1, 1, 1, 1))
}

func TestExtractAllTimesParquet(t *testing.T) {
	path := writeStore(t)
	output := filepath.Join(t.TempDir(), "p.parquet")

	out, err := execute(t, "extract", path, "--var", "pressure", "--x1", "3,3,3", "--x2", "3,3,3", "-o", output, "-q")
	require.NoError(t, err)
	require.NotContains(t, out, "Reading file")

	rows, err := tensorio.ReadParquet(output)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"0", "2", "10"}, []string{rows[0].TimeKey, rows[1].TimeKey, rows[2].TimeKey})
	require.Equal(t, int64(3), rows[2].X)
	require.Equal(t, float64(1000+63), rows[2].Value)
}

func TestExtractCommandErrors(t *testing.T) {
	path := writeStore(t)
	output := filepath.Join(t.TempDir(), "v.tns")

	_, err := execute(t, "extract", path, "--var", "velocity", "--x1", "0,0,0", "--x2", "4,0,0", "-o", output)
	require.ErrorContains(t, err, "does not fit")

	_, err = execute(t, "extract", path, "--var", "velocity", "--x1", "0,0", "--x2", "1,1,1", "-o", output)
	require.ErrorContains(t, err, "--x1")

	_, err = execute(t, "extract", path, "--var", "velocity", "--x1", "0,0,0", "--x2", "1,1,1")
	require.ErrorContains(t, err, "output")

	_, err = execute(t, "extract", path, "--var", "velocity", "--times", "0,9", "--x1", "0,0,0", "--x2", "1,1,1", "-o", output)
	require.Error(t, err)
	_, statErr := os.Stat(output)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunCommand(t *testing.T) {
	path := writeStore(t)
	dir := t.TempDir()
	jobs := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(jobs, []byte(fmt.Sprintf(`
input: %s
workers: 2
jobs:
  - variable: velocity
    times: ["1"]
    x1: [0, 0, 0]
    x2: [1, 1, 1]
    output: %s/v.h5
  - variable: pressure
    x1: "0,0,0"
    x2: "0,0,0"
    output: %s/p.tns
    codec: none
`, path, dir, dir)), 0o644))

	out, err := execute(t, "run", "-c", jobs, "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, "job 0: velocity, 1 time keys")
	require.Contains(t, out, "job 1: pressure, 3 time keys")

	out, err = execute(t, "run", "-c", jobs)
	require.NoError(t, err)
	require.Contains(t, out, "wrote "+filepath.Join(dir, "v.h5"))

	v, err := tensorio.ReadHDF5(filepath.Join(dir, "v.h5"), "velocity")
	require.NoError(t, err)
	require.Equal(t, [4]int{1, 2, 2, 2}, v.Shape())
	require.Equal(t, float64(100), v.At(0, 0, 0, 0))

	p, err := tensorio.ReadFile(filepath.Join(dir, "p.tns"))
	require.NoError(t, err)
	require.Equal(t, []string{"0", "2", "10"}, p.TimeKeys)
	require.Equal(t, []float64{0, 200, 1000}, p.Data)
}

func TestRunCommandInvalidConfig(t *testing.T) {
	jobs := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(jobs, []byte("jobs: []\n"), 0o644))

	_, err := execute(t, "run", "-c", jobs)
	require.ErrorContains(t, err, "invalid config")

	_, err = execute(t, "run")
	require.ErrorContains(t, err, "config")
}
