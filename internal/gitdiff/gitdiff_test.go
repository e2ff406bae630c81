package gitdiff

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git/gittest"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnified(t *testing.T) {
	unified := `diff --git a/src/Main.java b/src/Main.java
index 3b18e51..a4c0d3e 100644
--- a/src/Main.java
+++ b/src/Main.java
@@ -2 +2,2 @@ class Main {
-  int a;
+  int b;
+  int c;
@@ -10,0 +12 @@ class Main {
+  // tail
diff --git a/old.txt b/old.txt
deleted file mode 100644
index 257cc56..0000000
--- a/old.txt
+++ /dev/null
@@ -1,2 +0,0 @@
-one
-two
`

	files, err := ParseUnified(unified)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "Main.java", files[0].Filename)
	assert.Equal(t, []Line{{2, "  int b;"}, {3, "  int c;"}, {12, "  // tail"}}, files[0].AddedLines)
	assert.Equal(t, []Line{{2, "  int a;"}}, files[0].DeletedLines)

	assert.Equal(t, "old.txt", files[1].Filename)
	assert.Empty(t, files[1].AddedLines)
	assert.Equal(t, []Line{{1, "one"}, {2, "two"}}, files[1].DeletedLines)
}

func TestParseUnifiedEmpty(t *testing.T) {
	files, err := ParseUnified("")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestExportSkipsRootAndUsesFirstParent(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.py", "x = 1\n")
	root := scratch.Commit("root", "Alice")
	scratch.Write("a.py", "x = 2\ny = 3\n")
	scratch.WriteBytes("img.bin", []byte{0, 1, 2, 3, 0})
	second := scratch.Commit("edit", "Bob")

	repo, err := git.Open(scratch.Dir, git.WithLogger(logging.Discard()))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "diffs", "repo.json")
	n, err := NewExporter(logging.Discard()).Export(context.Background(), repo, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var diffs []CommitDiff
	require.NoError(t, json.Unmarshal(data, &diffs))
	require.Len(t, diffs, 1)

	d := diffs[0]
	assert.Equal(t, second, d.CommitHash)
	assert.Equal(t, root, d.PreviousCommitHash)
	assert.Equal(t, Stats{Insertions: 2, Deletions: 1, FilesModified: 2}, d.DiffStats)
	require.Len(t, d.DiffContent, 1)
	assert.Equal(t, "a.py", d.DiffContent[0].Filename)
	assert.Equal(t, []Line{{1, "x = 2"}, {2, "y = 3"}}, d.DiffContent[0].AddedLines)
	assert.Equal(t, []Line{{1, "x = 1"}}, d.DiffContent[0].DeletedLines)
}
