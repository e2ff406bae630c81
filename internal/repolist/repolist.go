// Package repolist builds, loads and shards the list of repositories the
// pipeline processes.
package repolist

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
)

// ApacheBaseURL prefixes every project derived from sonar measures
const ApacheBaseURL = "https://github.com/apache/"

// ExtraRepositories are Apache repositories missing from the sonar measures
// export that belong in the list anyway
var ExtraRepositories = []string{
	"https://github.com/apache/jspwiki",
	"https://github.com/apache/poi",
	"https://github.com/apache/pdfbox-jbig2",
	"https://github.com/apache/dolphinscheduler",
	"https://github.com/apache/ratis",
	"https://github.com/apache/daffodil",
	"https://github.com/apache/incubator-nemo",
	"https://github.com/apache/roller",
	"https://github.com/apache/knox",
	"https://github.com/apache/ant",
	"https://github.com/apache/logging-log4cxx",
}

// Load reads one repository URL per line, dropping blank lines
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.ConfigErrorf("open repository list %s: %v", path, err)
	}
	defer f.Close()

	var repos []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			repos = append(repos, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.ConfigErrorf("read repository list %s: %v", path, err)
	}
	return repos, nil
}

// Save writes repos one per line, creating parent directories
func Save(path string, repos []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.OutputWriteFailuref(err, "create directory for %s", path)
	}
	var sb strings.Builder
	for _, repo := range repos {
		sb.WriteString(repo)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.OutputWriteFailuref(err, "write repository list %s", path)
	}
	return nil
}

// Divide splits repos into n contiguous shards. When the list does not divide
// evenly the first len(repos)%n shards get one extra repository.
func Divide(repos []string, n int) ([][]string, error) {
	if n <= 0 {
		return nil, errors.ValidationErrorf("number of shards must be positive, got %d", n)
	}

	size := len(repos) / n
	remainder := len(repos) % n
	shards := make([][]string, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < remainder {
			end++
		}
		shards[i] = repos[start:end]
		start = end
	}
	return shards, nil
}

// WriteShards divides the list at inputPath and writes
// team_member_<i>_repos.txt files next to it. It returns the written paths.
func WriteShards(inputPath string, n int) ([]string, error) {
	repos, err := Load(inputPath)
	if err != nil {
		return nil, err
	}
	shards, err := Divide(repos, n)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(inputPath)
	paths := make([]string, 0, n)
	for i, shard := range shards {
		path := filepath.Join(dir, fmt.Sprintf("team_member_%d_repos.txt", i+1))
		if err := Save(path, shard); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FromSonarMeasures builds the repository list from a sonar measures export,
// either a CSV file or a zip containing one. Projects keep first-seen order;
// ExtraRepositories are appended.
func FromSonarMeasures(path string) ([]string, error) {
	projects, err := readProjects(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(projects))
	var repos []string
	for _, project := range projects {
		if seen[project] {
			continue
		}
		seen[project] = true
		repos = append(repos, ProjectURL(project))
	}
	return append(repos, ExtraRepositories...), nil
}

// ProjectURL maps a sonar project key such as "apache_commons_io" to its
// GitHub URL
func ProjectURL(project string) string {
	name := strings.TrimPrefix(project, "apache_")
	return ApacheBaseURL + strings.ReplaceAll(name, "_", "-")
}

func readProjects(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		archive, err := zip.OpenReader(path)
		if err != nil {
			return nil, errors.ConfigErrorf("open sonar measures archive %s: %v", path, err)
		}
		defer archive.Close()

		for _, file := range archive.File {
			if !strings.EqualFold(filepath.Ext(file.Name), ".csv") {
				continue
			}
			rc, err := file.Open()
			if err != nil {
				return nil, errors.ConfigErrorf("open %s in %s: %v", file.Name, path, err)
			}
			defer rc.Close()
			return projectColumn(rc, file.Name)
		}
		return nil, errors.ConfigErrorf("sonar measures archive %s contains no CSV file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.ConfigErrorf("open sonar measures %s: %v", path, err)
	}
	defer f.Close()
	return projectColumn(f, path)
}

func projectColumn(r io.Reader, name string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.ConfigErrorf("read header of %s: %v", name, err)
	}
	column := -1
	for i, h := range header {
		if strings.TrimSpace(h) == "project" {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, errors.ConfigErrorf("%s has no project column", name)
	}

	var projects []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ConfigErrorf("read %s: %v", name, err)
		}
		if column < len(record) && record[column] != "" {
			projects = append(projects, record[column])
		}
	}
	return projects, nil
}
