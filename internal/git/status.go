package git

import (
	"fmt"
	"strconv"
	"strings"
)

// Status describes how the current branch has diverged from its tracking branch.
type Status struct {
	Branch   string
	Upstream string
	Ahead    int
	Behind   int
}

// Diverged reports whether local and remote both hold commits the other lacks.
func (s Status) Diverged() bool {
	return s.Ahead != 0 && s.Behind != 0
}

// DiffSummary lists the files left with unresolved differences.
type DiffSummary struct {
	Changed int
	Files   []string
}

// ParseStatus parses the header lines of `git status --porcelain=v2 --branch`.
//
// The relevant lines look like:
//
//	# branch.head feature
//	# branch.upstream origin/feature
//	# branch.ab +3 -2
func ParseStatus(output string) (Status, error) {
	var st Status

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "# branch.") {
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(line, "# "))
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "branch.head":
			st.Branch = fields[1]
		case "branch.upstream":
			st.Upstream = fields[1]
		case "branch.ab":
			if len(fields) != 3 {
				return Status{}, fmt.Errorf("malformed branch.ab line: %q", line)
			}
			ahead, err := strconv.Atoi(strings.TrimPrefix(fields[1], "+"))
			if err != nil {
				return Status{}, fmt.Errorf("malformed ahead count %q: %w", fields[1], err)
			}
			behind, err := strconv.Atoi(strings.TrimPrefix(fields[2], "-"))
			if err != nil {
				return Status{}, fmt.Errorf("malformed behind count %q: %w", fields[2], err)
			}
			st.Ahead = ahead
			st.Behind = behind
		}
	}

	return st, nil
}

// ParseDiffSummary parses `git diff --name-only` output, keeping git's order
// and dropping duplicate paths.
func ParseDiffSummary(output string) DiffSummary {
	var files []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		files = append(files, line)
	}

	return DiffSummary{Changed: len(files), Files: files}
}

// parseLeftRight parses `git rev-list --left-right --count a...b` output.
func parseLeftRight(output string) (int, int, error) {
	fields := strings.Fields(output)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", output)
	}
	left, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid left count %q: %w", fields[0], err)
	}
	right, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid right count %q: %w", fields[1], err)
	}
	return left, right, nil
}
