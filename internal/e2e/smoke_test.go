package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	for _, username := range []string{"trainer1", "trainer2"} {
		_, stderr, err := runPA(t, binaryPath, home, "account", "add", "--username", username)
		require.NoError(t, err, "stderr: %s", stderr)
	}

	_, stderr, err := runPA(t, binaryPath, home, "set", "save", "--name", "north", "--member", "trainer1", "--member", "trainer2")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runPA(t, binaryPath, home, "pool", "next", "--set", "north")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "Next account: trainer1\n", stdout)

	stdout, stderr, err = runPA(t, binaryPath, home, "pool", "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "north (2/2 available, max 35 km/h)")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "pa-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/pa")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build pa binary: %s", string(output))
	return binaryPath
}

func runPA(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "PA_LOGGER_LEVEL=error")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
