package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestWriterCreatesDirectoriesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "effort.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("stale,content\nfrom,before\n"), 0644))

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(Columns(nil)))
	require.NoError(t, w.WriteRow(Record{Developer: "Alice", CommitHash: "abc", ParentHash: "def", TouchedLines: 12}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Developer,Refactoring Hash,Previous Hash,TLOC\nAlice,abc,def,12\n", string(data))
	assert.Equal(t, 1, w.Rows())
}

func TestWriterTotalColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effort.csv")

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteHeader(Columns([]string{"Current LOC", "Previous LOC"})))
	require.NoError(t, w.WriteRow(Record{
		Developer:    "Bob, Jr.",
		CommitHash:   "c1",
		TouchedLines: 40,
		CurrentLOC:   intPtr(140),
		PreviousLOC:  intPtr(100),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Developer,Refactoring Hash,Previous Hash,TLOC,Current LOC,Previous LOC\n\"Bob, Jr.\",c1,,40,140,100\n",
		string(data))
}

func TestWriterRejectsRowShapeMismatch(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "effort.csv"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteHeader(Columns([]string{"Current LOC", "Previous LOC"})))
	err = w.WriteRow(Record{Developer: "Alice", CommitHash: "abc", TouchedLines: 1})
	require.Error(t, err)
	assert.Equal(t, errors.KindOutputWrite, errors.KindOf(err))
	assert.Error(t, w.WriteHeader(BaseColumns))
}

func TestOpenFailureIsOutputWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := Open(filepath.Join(blocker, "effort.csv"))
	require.Error(t, err)
	assert.Equal(t, errors.KindOutputWrite, errors.KindOf(err))
	assert.True(t, errors.IsFatal(err))
}
