package aggregator

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	maxHostfileBytes = 10 << 20
	maxHostfileLines = 1000
)

func isHostfileByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '-' || c == ':' || c == '_':
		return true
	default:
		return false
	}
}

// LoadHostfile reads a sanitized list of scrape targets, one per line.
// The file must be a regular file no larger than 10MB with no more than
// 1000 non-comment lines; each line is validated against the allowed
// charset before being accepted as an endpoint.
func LoadHostfile(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("aggregator: stat hostfile: %w", err)
	}

	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("aggregator: hostfile %q is not a regular file", path)
	}

	if fi.Size() > maxHostfileBytes {
		return nil, fmt.Errorf("aggregator: hostfile %q exceeds %d bytes", path, maxHostfileBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aggregator: open hostfile: %w", err)
	}
	defer f.Close()

	var hosts []string

	lines := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines++
		if lines > maxHostfileLines {
			return nil, fmt.Errorf("aggregator: hostfile %q exceeds %d lines", path, maxHostfileLines)
		}

		if !validHostfileLine(line) {
			return nil, fmt.Errorf("aggregator: hostfile %q line %d contains disallowed characters: %q", path, lines, line)
		}

		hosts = append(hosts, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("aggregator: read hostfile: %w", err)
	}

	return hosts, nil
}

func validHostfileLine(line string) bool {
	for i := 0; i < len(line); i++ {
		if !isHostfileByte(line[i]) {
			return false
		}
	}

	return true
}
