package probe

import (
	"context"
	"strings"
	"testing"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git/gittest"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/logging"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/probe/probetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openWith(t *testing.T, dir string, runner git.Runner) *git.Repository {
	t.Helper()
	opts := []git.Option{git.WithLogger(logging.Discard())}
	if runner != nil {
		opts = append(opts, git.WithRunner(runner))
	}
	repo, err := git.Open(dir, opts...)
	require.NoError(t, err)
	return repo
}

func resolve(t *testing.T, repo *git.Repository, rev string) git.Commit {
	t.Helper()
	commit, err := repo.ResolveCommit(context.Background(), rev)
	require.NoError(t, err)
	return commit
}

func TestDiffSizeProbeAddedFile(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("README.md", "hello\n")
	scratch.Commit("root", "Alice")
	scratch.Write("src/Three.java", "class Three {\n  int x;\n}\n")
	added := scratch.Commit("add three-line file", "Alice")

	repo := openWith(t, scratch.Dir, nil)
	p := NewDiffSizeProbe(logging.Discard())

	assert.Equal(t, 3, p.Measure(context.Background(), repo, resolve(t, repo, added)))
}

func TestDiffSizeProbeSkipsBinaryRows(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("README.md", "hello\n")
	scratch.Commit("root", "Alice")
	scratch.WriteBytes("logo.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02, 0x00, 0xff})
	scratch.Write("notes.txt", "one\ntwo\n")
	mixed := scratch.Commit("binary and text", "Alice")

	repo := openWith(t, scratch.Dir, nil)
	p := NewDiffSizeProbe(logging.Discard())

	assert.Equal(t, 2, p.Measure(context.Background(), repo, resolve(t, repo, mixed)))
}

func TestDiffSizeProbeCountsDeletions(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.py", "a\nb\nc\nd\n")
	scratch.Commit("root", "Alice")
	scratch.Write("a.py", "a\nB\nc\n")
	edit := scratch.Commit("edit", "Alice")

	repo := openWith(t, scratch.Dir, nil)
	p := NewDiffSizeProbe(logging.Discard())

	// b -> B is one deletion and one addition, d is one deletion
	assert.Equal(t, 3, p.Measure(context.Background(), repo, resolve(t, repo, edit)))
}

func TestDiffSizeProbeFailureIsZero(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.go", "package a\n")
	head := scratch.Commit("root", "Alice")

	fake := &probetest.Runner{FailIf: func(dir, name string, args []string) bool {
		return name == "git" && len(args) > 0 && (args[0] == "diff" || args[0] == "show")
	}}
	repo := openWith(t, scratch.Dir, fake)
	p := NewDiffSizeProbe(logging.Discard())

	assert.Equal(t, 0, p.Measure(context.Background(), repo, resolve(t, repo, head)))
}

func TestDiffSizeProbeKeepsCheckout(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.go", "package a\n")
	first := scratch.Commit("root", "Alice")
	scratch.Write("b.go", "package a\n")
	tip := scratch.Commit("tip", "Alice")

	repo := openWith(t, scratch.Dir, nil)
	NewDiffSizeProbe(logging.Discard()).Measure(context.Background(), repo, resolve(t, repo, first))

	assert.Equal(t, tip, scratch.Git("rev-parse", "HEAD"))
}

func TestSourceSizeProbeModes(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("Main.java", "a\nb\nc\n")
	scratch.Write("util.py", "x\ny\n")
	scratch.Write("README.md", "ignored\nby\nextension\n")
	head := scratch.Commit("root", "Alice")

	for _, mode := range []CountMode{CountTotalRow, CountSumFiles} {
		t.Run(string(mode), func(t *testing.T) {
			repo := openWith(t, scratch.Dir, &probetest.Runner{})
			p := NewSourceSizeProbe(SourceConfig{Mode: mode}, logging.Discard())
			assert.Equal(t, 5, p.Measure(context.Background(), repo, head))
		})
	}
}

func TestSourceSizeProbeIdempotent(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("main.go", "package main\n\nfunc main() {}\n")
	head := scratch.Commit("root", "Alice")

	repo := openWith(t, scratch.Dir, &probetest.Runner{})
	p := NewSourceSizeProbe(SourceConfig{}, logging.Discard())

	first := p.Measure(context.Background(), repo, head)
	second := p.Measure(context.Background(), repo, head)
	assert.Equal(t, 3, first)
	assert.Equal(t, first, second)
}

func TestSourceSizeProbeToolFailureIsZero(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("main.go", "package main\n")
	head := scratch.Commit("root", "Alice")

	fake := &probetest.Runner{FailIf: func(dir, name string, args []string) bool { return name == "scc" }}
	repo := openWith(t, scratch.Dir, fake)
	p := NewSourceSizeProbe(SourceConfig{}, logging.Discard())

	assert.Equal(t, 0, p.Measure(context.Background(), repo, head))
}

func TestSourceSizeProbePassesExtensions(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("main.go", "package main\n")
	head := scratch.Commit("root", "Alice")

	fake := &probetest.Runner{}
	repo := openWith(t, scratch.Dir, fake)
	NewSourceSizeProbe(SourceConfig{}, logging.Discard()).Measure(context.Background(), repo, head)

	var sccCall string
	for _, call := range fake.Calls() {
		if strings.HasPrefix(call, "scc ") {
			sccCall = call
		}
	}
	assert.Equal(t, "scc --no-complexity --by-file --include-ext "+strings.Join(DefaultExtensions, ","), sccCall)
}

func TestParseTotalRow(t *testing.T) {
	output := `───────────────────────────────────────────────────────────────────────────────
Language                 Files     Lines   Blanks  Comments     Code Complexity
───────────────────────────────────────────────────────────────────────────────
Java                        12      1834      210       300     1324        0
───────────────────────────────────────────────────────────────────────────────
Total                       12      1834      210       300     1324        0
───────────────────────────────────────────────────────────────────────────────`

	n, err := parseTotalRow([]byte(output))
	require.NoError(t, err)
	assert.Equal(t, 1834, n)

	_, err = parseTotalRow([]byte("no table here"))
	assert.Error(t, err)
}

func TestSumFileLines(t *testing.T) {
	output := "Language,Provider,Filename,Lines,Code,Comments,Blanks,Complexity,Bytes\n" +
		"Java,src/A.java,A.java,10,8,1,1,0,200\n" +
		"Go,main.go,main.go,5,4,0,1,0,50\n" +
		"Go,bad.go,bad.go,n/a,0,0,0,0,0\n"

	n, err := sumFileLines([]byte(output))
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	_, err = sumFileLines([]byte("Language,Files\nGo,1\n"))
	assert.Error(t, err)

	n, err = sumFileLines(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTotalAtRevision(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.go", "1\n2\n")
	root := scratch.Commit("root", "Alice")
	scratch.Write("b.go", "1\n2\n3\n4\n5\n")
	second := scratch.Commit("grow", "Alice")

	repo := openWith(t, scratch.Dir, &probetest.Runner{})
	strategy := TotalAtRevision{Probe: NewSourceSizeProbe(SourceConfig{}, logging.Discard())}

	m := strategy.Measure(context.Background(), repo, resolve(t, repo, second))
	require.NotNil(t, m.CurrentLOC)
	require.NotNil(t, m.PreviousLOC)
	assert.Equal(t, 7, *m.CurrentLOC)
	assert.Equal(t, 2, *m.PreviousLOC)
	assert.Equal(t, 5, m.Touched)

	m = strategy.Measure(context.Background(), repo, resolve(t, repo, root))
	assert.Equal(t, 2, *m.CurrentLOC)
	assert.Equal(t, 0, *m.PreviousLOC)
	assert.Equal(t, 2, m.Touched)
}

func TestTotalAtRevisionCheckoutFailureIsZero(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("a.go", "1\n2\n")
	root := scratch.Commit("root", "Alice")
	scratch.Write("b.go", "1\n2\n3\n")
	second := scratch.Commit("grow", "Alice")

	failCheckoutOf := func(rev string) *probetest.Runner {
		return &probetest.Runner{FailIf: func(dir, name string, args []string) bool {
			return name == "git" && len(args) > 0 && args[0] == "checkout" && args[len(args)-1] == rev
		}}
	}

	for name, rev := range map[string]string{"parent": root, "commit": second} {
		t.Run(name, func(t *testing.T) {
			repo := openWith(t, scratch.Dir, failCheckoutOf(rev))
			commit := resolve(t, repo, second)
			strategy := TotalAtRevision{Probe: NewSourceSizeProbe(SourceConfig{}, logging.Discard())}

			m := strategy.Measure(context.Background(), repo, commit)
			require.NotNil(t, m.CurrentLOC)
			require.NotNil(t, m.PreviousLOC)
			assert.Equal(t, 0, m.Touched)
			assert.Equal(t, 0, *m.CurrentLOC)
			assert.Equal(t, 0, *m.PreviousLOC)
		})
	}
}

func TestSourceSizeProbeSnapshotReportsCheckoutFailure(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("main.go", "package main\n")
	head := scratch.Commit("root", "Alice")

	p := NewSourceSizeProbe(SourceConfig{}, logging.Discard())

	repo := openWith(t, scratch.Dir, &probetest.Runner{FailIf: func(dir, name string, args []string) bool {
		return name == "git" && len(args) > 0 && args[0] == "checkout"
	}})
	_, err := p.Snapshot(context.Background(), repo, head)
	assert.ErrorIs(t, err, git.ErrCheckout)

	repo = openWith(t, scratch.Dir, &probetest.Runner{FailIf: func(dir, name string, args []string) bool { return name == "scc" }})
	total, err := p.Snapshot(context.Background(), repo, head)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSourceSizeProbeSkipsUntrackedFilesWhenCleaning(t *testing.T) {
	scratch := gittest.New(t)
	scratch.Write("main.go", "package main\n\nfunc main() {}\n")
	head := scratch.Commit("root", "Alice")
	scratch.Write("generated.py", "a\nb\nc\nd\n")

	p := NewSourceSizeProbe(SourceConfig{}, logging.Discard())

	repo, err := git.Open(scratch.Dir, git.WithLogger(logging.Discard()),
		git.WithRunner(&probetest.Runner{}), git.WithCleanMeasure())
	require.NoError(t, err)
	assert.Equal(t, 3, p.Measure(context.Background(), repo, head))
}

func TestNewStrategy(t *testing.T) {
	diff := NewDiffSizeProbe(logging.Discard())
	source := NewSourceSizeProbe(SourceConfig{}, logging.Discard())

	s, err := NewStrategy("", diff, source)
	require.NoError(t, err)
	assert.Equal(t, StrategyDelta, s.Name())
	assert.Empty(t, s.ExtraColumns())

	s, err = NewStrategy("total", diff, source)
	require.NoError(t, err)
	assert.Equal(t, []string{"Current LOC", "Previous LOC"}, s.ExtraColumns())

	_, err = NewStrategy("both", diff, source)
	assert.Error(t, err)
}
