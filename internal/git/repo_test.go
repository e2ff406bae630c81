package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git/gittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCommit(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "one\n")
	first := scratch.Commit("first", "Alice")
	scratch.Write("a.txt", "one\ntwo\n")
	second := scratch.Commit("second", "Jr., Bob")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	commit, err := repo.ResolveCommit(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, second, commit.Hash)
	assert.Equal(t, "Jr., Bob", commit.Author)
	assert.Equal(t, first, commit.FirstParent())
	assert.False(t, commit.IsMerge())

	root, err := repo.ResolveCommit(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "", root.FirstParent())
}

func TestResolveCommitMergeUsesFirstParent(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "base\n")
	scratch.Commit("base", "Alice")

	scratch.Git("checkout", "--quiet", "-b", "feature")
	scratch.Write("b.txt", "feature\n")
	featureTip := scratch.Commit("feature", "Bob")

	scratch.Git("checkout", "--quiet", "main")
	scratch.Write("c.txt", "main\n")
	mainTip := scratch.Commit("main work", "Alice")
	merge := scratch.Merge("feature", "Carol")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	commit, err := repo.ResolveCommit(context.Background(), merge)
	require.NoError(t, err)
	assert.True(t, commit.IsMerge())
	assert.Equal(t, []string{mainTip, featureTip}, commit.Parents)
	assert.Equal(t, mainTip, commit.FirstParent())
	assert.Equal(t, "Carol", commit.Author)
}

func TestResolveCommitMissing(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "one\n")
	scratch.Commit("first", "Alice")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	_, err = repo.ResolveCommit(context.Background(), "0123456789abcdef0123456789abcdef01234567")
	assert.Error(t, err)
}

func TestMeasureAtChecksOutRevision(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "v1\n")
	first := scratch.Commit("first", "Alice")
	scratch.Write("a.txt", "v2\n")
	scratch.Commit("second", "Alice")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	// Local edits are discarded by the forced checkout
	require.NoError(t, os.WriteFile(filepath.Join(scratch.Dir, "a.txt"), []byte("dirty\n"), 0644))

	var seen string
	_, err = repo.MeasureAt(context.Background(), first, func(ctx context.Context) (int, error) {
		data, err := os.ReadFile(filepath.Join(repo.Path(), "a.txt"))
		seen = string(data)
		return len(data), err
	})
	require.NoError(t, err)
	assert.Equal(t, "v1\n", seen)
}

func TestMeasureAtUnknownRevisionIsCheckoutError(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "v1\n")
	scratch.Commit("first", "Alice")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	called := false
	_, err = repo.MeasureAt(context.Background(), "0000000000000000000000000000000000000000", func(ctx context.Context) (int, error) {
		called = true
		return 0, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckout))
	assert.False(t, called)
}

func TestMeasureAtCleansClone(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write(".gitignore", "build/\n")
	scratch.Write("a.txt", "v1\n")
	head := scratch.Commit("first", "Alice")

	repo, err := Clone(context.Background(), scratch.Dir)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Remove() })

	untracked := filepath.Join(repo.Path(), "stray.txt")
	ignored := filepath.Join(repo.Path(), "build", "out.txt")
	require.NoError(t, os.WriteFile(untracked, []byte("x\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(ignored), 0755))
	require.NoError(t, os.WriteFile(ignored, []byte("x\n"), 0644))

	_, err = repo.MeasureAt(context.Background(), head, func(ctx context.Context) (int, error) {
		_, statErr := os.Stat(untracked)
		assert.True(t, os.IsNotExist(statErr))
		_, statErr = os.Stat(ignored)
		assert.True(t, os.IsNotExist(statErr))
		return 0, nil
	})
	require.NoError(t, err)
}

func TestMeasureAtKeepsUntrackedFilesOfOpenedRepository(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "v1\n")
	head := scratch.Commit("first", "Alice")
	scratch.Write("notes.txt", "mine\n")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)
	_, err = repo.MeasureAt(context.Background(), head, func(ctx context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(scratch.Dir, "notes.txt"))

	repo, err = Open(scratch.Dir, WithCleanMeasure())
	require.NoError(t, err)
	_, err = repo.MeasureAt(context.Background(), head, func(ctx context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(scratch.Dir, "notes.txt"))
}

func TestOpenRejectsNonRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestRemoveRefusesBorrowedRepository(t *testing.T) {
	scratch := gittest.New(t)
	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	assert.Error(t, repo.Remove())
	_, err = os.Stat(scratch.Dir)
	assert.NoError(t, err)
}

func TestCloneAndRemove(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "one\n")
	head := scratch.Commit("first", "Alice")

	repo, err := Clone(context.Background(), scratch.Dir)
	require.NoError(t, err)

	commit, err := repo.ResolveCommit(context.Background(), "HEAD")
	require.NoError(t, err)
	assert.Equal(t, head, commit.Hash)

	require.NoError(t, repo.Remove())
	_, err = os.Stat(repo.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestListCommitsOldestFirst(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.txt", "1\n")
	first := scratch.Commit("first", "Alice")
	scratch.Write("a.txt", "2\n")
	second := scratch.Commit("second", "Bob")

	repo, err := Open(scratch.Dir)
	require.NoError(t, err)

	commits, err := repo.ListCommits(context.Background())
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, first, commits[0].Hash)
	assert.Equal(t, second, commits[1].Hash)
	assert.Equal(t, []string{first}, commits[1].Parents)
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"HTTPS with .git", "https://github.com/apache/commons-lang.git", "apache", "commons-lang", false},
		{"HTTPS without .git", "https://github.com/apache/commons-lang", "apache", "commons-lang", false},
		{"HTTPS trailing slash", "https://github.com/apache/ant/", "apache", "ant", false},
		{"SSH format", "git@github.com:apache/poi.git", "apache", "poi", false},
		{"Git protocol", "git://github.com/apache/knox.git", "apache", "knox", false},
		{"Invalid URL", "not-a-git-url", "", "", true},
		{"Only one segment", "https://github.com/onlyonepart", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "incubator-nemo", RepoName("https://github.com/apache/incubator-nemo"))
	assert.Equal(t, "poi", RepoName("git@github.com:apache/poi.git"))
	assert.Equal(t, "local", RepoName("local"))
}
