// Package pathres resolves possibly-relative file references against ordered
// candidate base directories, leaving absolute and remote-object references
// untouched.
package pathres

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/me/runsheet/internal/objectstore"
	"github.com/me/runsheet/pkg/model"
)

// DownloadFunc fetches a remote-object reference to a local path.
type DownloadFunc func(path string) (string, error)

// IsNone reports whether a value is the literal "none" spelling used in run
// sheets to mean an absent file.
func IsNone(s string) bool {
	return strings.EqualFold(s, "none")
}

// FileToAbs makes a file reference absolute using the supplied base
// directory choices, tried in order. Absolute paths and remote-object
// references pass through unchanged; the literal "none" maps to "".
// When makeDir is set and no candidate exists, the join against the first
// non-empty directory is created and returned.
func FileToAbs(path string, dirs []string, makeDir bool) (string, error) {
	if path == "" {
		return "", nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	if objectstore.IsRemote(path) {
		return path, nil
	}
	if IsNone(path) {
		return "", nil
	}
	var tried []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		tried = append(tried, dir)
		norm := filepath.Clean(filepath.Join(dir, path))
		if exists(norm) {
			return norm, nil
		}
	}
	if makeDir {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			norm := filepath.Clean(filepath.Join(dir, path))
			if err := os.MkdirAll(norm, 0o755); err != nil {
				return "", err
			}
			return norm, nil
		}
	}
	return "", &model.UnresolvedPathError{Target: path, Tried: tried}
}

// AbsFilePaths walks an algorithm-style mapping and makes file-valued
// entries absolute against baseDir. Keys in ignore are never paths
// (caller/tool selectors). Keys in fileOnly are converted only when they
// name an existing local file and never trigger a download. Remote values
// on other keys are fetched through download when one is supplied. String
// values spelled "none" become nil. One level of nested mapping and
// sequences of strings are handled.
func AbsFilePaths(xs any, baseDir string, ignore, fileOnly map[string]bool, download DownloadFunc) (any, error) {
	switch v := xs.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if ignore[k] {
				out[k] = val
				continue
			}
			conv, err := absValue(val, baseDir, fileOnly[k], download)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case string:
		return absValue(v, baseDir, false, download)
	default:
		return xs, nil
	}
}

func absValue(val any, baseDir string, fileOnly bool, download DownloadFunc) (any, error) {
	switch v := val.(type) {
	case string:
		if IsNone(v) {
			return nil, nil
		}
		return absString(v, baseDir, fileOnly, download)
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			if s, ok := x.(string); ok {
				conv, err := absString(s, baseDir, fileOnly, download)
				if err != nil {
					return nil, err
				}
				out[i] = conv
			} else {
				out[i] = x
			}
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			if s, ok := x.(string); ok {
				conv, err := absString(s, baseDir, fileOnly, download)
				if err != nil {
					return nil, err
				}
				out[k] = conv
			} else {
				out[k] = x
			}
		}
		return out, nil
	default:
		return val, nil
	}
}

func absString(s, baseDir string, fileOnly bool, download DownloadFunc) (any, error) {
	if objectstore.IsRemote(s) {
		if fileOnly || download == nil {
			return s, nil
		}
		local, err := download(s)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	cand := s
	if !filepath.IsAbs(cand) {
		cand = filepath.Clean(filepath.Join(baseDir, s))
	}
	if exists(cand) {
		return cand, nil
	}
	// Leave non-file strings (tool names, shorthand targets) untouched for
	// later installed-resource resolution.
	return s, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
