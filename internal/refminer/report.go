// Package refminer reads RefactoringMiner reports and runs the miner.
package refminer

import (
	"encoding/json"
	"os"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
)

// Report is the JSON document RefactoringMiner writes with -json
type Report struct {
	Commits []CommitEntry `json:"commits"`
}

// CommitEntry is one analysed commit in a report
type CommitEntry struct {
	Repository   string        `json:"repository,omitempty"`
	SHA1         string        `json:"sha1"`
	URL          string        `json:"url,omitempty"`
	Refactorings []Refactoring `json:"refactorings"`
}

// Refactoring is one detected refactoring. Code locations are not decoded.
type Refactoring struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Qualifies reports whether the commit contains at least one refactoring
func (c CommitEntry) Qualifies() bool {
	return len(c.Refactorings) > 0
}

// Load reads and validates a report. The document must be a JSON object with
// a commits field; anything else is a MalformedReport.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.MalformedReportf(err, "read refactoring report %s", path)
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, errors.MalformedReportf(err, "parse refactoring report %s", path)
	}
	raw, ok := shape["commits"]
	if !ok {
		return nil, errors.MalformedReportf(nil, "refactoring report %s has no commits field", path)
	}

	var report Report
	if err := json.Unmarshal(raw, &report.Commits); err != nil {
		return nil, errors.MalformedReportf(err, "parse commits of refactoring report %s", path)
	}
	return &report, nil
}

// QualifyingCommits returns the hashes of commits with refactorings, in
// document order
func (r *Report) QualifyingCommits() []string {
	hashes := make([]string, 0, len(r.Commits))
	for _, c := range r.Commits {
		if c.Qualifies() {
			hashes = append(hashes, c.SHA1)
		}
	}
	return hashes
}

// Select returns the ordered qualifying commit hashes of the report at path
func Select(path string) ([]string, error) {
	report, err := Load(path)
	if err != nil {
		return nil, err
	}
	return report.QualifyingCommits(), nil
}
