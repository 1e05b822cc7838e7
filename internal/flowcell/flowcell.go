// Package flowcell extracts naming metadata from Illumina run directories.
package flowcell

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Suffixes identifying the flowcell ID token in a run directory name.
var idSuffixes = []string{"XX", "xx", "XY", "X2", "X3"}

// ParseDirname parses the flowcell name and date from a run directory like
// 110221_empty_A1BC2ACXX. The name is the token carrying a flowcell suffix
// and the date is a six-digit token.
func ParseDirname(fcDir string) (name, date string, err error) {
	base := filepath.Base(filepath.Clean(fcDir))
	for _, part := range strings.Split(base, "_") {
		if hasIDSuffix(part) {
			name = part
		} else if len(part) == 6 && isDigits(part) {
			date = part
		}
	}
	if name == "" || date == "" {
		return "", "", fmt.Errorf("did not find flowcell name and date in %s", base)
	}
	return name, date, nil
}

// FastqDir returns the conventional location of demultiplexed fastq files
// within a flowcell directory.
func FastqDir(fcDir string) string {
	if fcDir == "" {
		return ""
	}
	return filepath.Join(fcDir, "Data", "Intensities", "BaseCalls")
}

func hasIDSuffix(s string) bool {
	for _, suf := range idSuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
