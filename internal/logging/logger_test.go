package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryWritesPerOperationFiles(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	reg := NewRegistry(Config{Level: logrus.InfoLevel, Dir: dir, Console: &console})

	reg.For("RefactoringRunner").Info("cloning")
	reg.For("DeveloperEffort").WithField("commit", "abc").Info("measuring")
	require.NoError(t, reg.Close())

	runnerLog, err := os.ReadFile(reg.FilePath("RefactoringRunner"))
	require.NoError(t, err)
	assert.Contains(t, string(runnerLog), "cloning")
	assert.NotContains(t, string(runnerLog), "measuring")

	effortLog, err := os.ReadFile(reg.FilePath("DeveloperEffort"))
	require.NoError(t, err)
	assert.Contains(t, string(effortLog), "commit=abc")

	assert.True(t, strings.HasPrefix(reg.FilePath("DeveloperEffort"), filepath.Join(dir, "DeveloperEffortLogs")))
	assert.Contains(t, console.String(), "operation=RefactoringRunner")
}

func TestRegistryReusesLogger(t *testing.T) {
	var console bytes.Buffer
	reg := NewRegistry(Config{Level: logrus.DebugLevel, Console: &console})

	a := reg.For("op")
	b := reg.For("op")
	assert.Same(t, a.Logger, b.Logger)
	assert.Equal(t, "", reg.FilePath("op"))
}

func TestRegistryRotatesOperationFileAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	config := Config{Level: logrus.InfoLevel, Dir: dir, Console: &bytes.Buffer{}, MaxSize: 64, MaxBackups: 2}

	first := NewRegistry(config)
	first.For("DeveloperEffort").Info(strings.Repeat("x", 100))
	require.NoError(t, first.Close())

	second := NewRegistry(config)
	second.For("DeveloperEffort").Info("next run")
	require.NoError(t, second.Close())

	path := second.FilePath("DeveloperEffort")
	assert.Equal(t, first.FilePath("DeveloperEffort"), path)
	assert.Equal(t, filepath.Join(dir, "DeveloperEffortLogs", "DeveloperEffort.log"), path)

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Contains(t, string(rotated), strings.Repeat("x", 100))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(current), "next run")
	assert.NotContains(t, string(current), strings.Repeat("x", 100))
}

func TestRotateIfNeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 64), 0644))

	require.NoError(t, rotateIfNeeded(path, 32, 3))

	_, err := os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("warn", true))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warn", false))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("bogus", false))
}
