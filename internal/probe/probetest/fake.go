// Package probetest provides a stand-in for the scc line counter so probe
// behaviour can be tested without the tool installed.
package probetest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
)

// Runner answers "scc" invocations by counting lines in the working copy and
// passes everything else to a real ExecRunner.
type Runner struct {
	// FailIf makes a matching invocation exit non-zero
	FailIf func(dir, name string, args []string) bool

	mu    sync.Mutex
	calls []string
	real  git.ExecRunner
}

// Calls returns every invocation seen, as "name arg arg ..."
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Run implements git.Runner
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	r.mu.Unlock()

	if r.FailIf != nil && r.FailIf(dir, name, args) {
		return nil, fmt.Errorf("%s: exit status 1", name)
	}
	if name != "scc" {
		return r.real.Run(ctx, dir, name, args...)
	}
	return scc(dir, args)
}

func scc(dir string, args []string) ([]byte, error) {
	var exts map[string]bool
	csvFormat := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--include-ext":
			exts = make(map[string]bool)
			for _, e := range strings.Split(args[i+1], ",") {
				exts[e] = true
			}
			i++
		case "--format":
			csvFormat = args[i+1] == "csv"
			i++
		}
	}

	counts := make(map[string]int)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if exts != nil && !exts[ext] {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		counts[rel] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(counts))
	total := 0
	for f, n := range counts {
		files = append(files, f)
		total += n
	}
	sort.Strings(files)

	var sb strings.Builder
	if csvFormat {
		sb.WriteString("Language,Provider,Filename,Lines,Code,Comments,Blanks,Complexity,Bytes\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "Text,%s,%s,%d,%d,0,0,0,0\n", f, filepath.Base(f), counts[f], counts[f])
		}
		return []byte(sb.String()), nil
	}

	sb.WriteString("───────────────────────────────────────────────────\n")
	sb.WriteString("Language     Files     Lines   Blanks  Comments     Code\n")
	sb.WriteString("───────────────────────────────────────────────────\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "%s     %d     0     0     %d\n", f, counts[f], counts[f])
	}
	sb.WriteString("───────────────────────────────────────────────────\n")
	fmt.Fprintf(&sb, "Total     %d     %d     0     0     %d\n", len(files), total, total)
	sb.WriteString("───────────────────────────────────────────────────\n")
	return []byte(sb.String()), nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}
