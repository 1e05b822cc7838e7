// Package fastq inspects FASTQ inputs, currently limited to quality-encoding
// detection used by run-sheet validation.
package fastq

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// maxRecords caps how many reads are sampled during encoding detection.
const maxRecords = 1000

// minQualityLen skips short reads whose quality range is uninformative.
const minQualityLen = 20

type byteRange struct {
	min, max byte
}

// encodingRanges maps each candidate encoding to its legal quality byte
// range.
var encodingRanges = map[string]byteRange{
	"sanger":        {33, 126},
	"solexa":        {59, 126},
	"illumina_1.3+": {64, 126},
	"illumina_1.5+": {66, 126},
}

// DeclaredFormat maps detected encodings onto the quality_format values a
// run sheet declares.
var DeclaredFormat = map[string]string{
	"illumina_1.3+": "illumina",
	"illumina_1.5+": "illumina",
	"illumina_1.8+": "standard",
	"solexa":        "solexa",
	"sanger":        "standard",
}

// Extensions marking a file as FASTQ input.
var Extensions = []string{"fq.gz", "fastq.gz", ".fastq", ".fq"}

// IsFastq reports whether a path looks like a FASTQ file.
func IsFastq(path string) bool {
	for _, ext := range Extensions {
		if strings.Contains(path, ext) {
			return true
		}
	}
	return false
}

// DetectEncodings samples quality lines from a FASTQ file and returns the
// encodings whose byte ranges remain consistent with every observed
// character. Candidates are eliminated as soon as a character falls outside
// their range; sampling stops early once one candidate remains.
func DetectEncodings(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	possible := make(map[string]byteRange, len(encodingRanges))
	for k, v := range encodingRanges {
		possible[k] = v
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	records := 0
	for scanner.Scan() {
		line++
		if line%4 != 0 {
			continue
		}
		if len(possible) == 1 {
			break
		}
		records++
		if records > maxRecords {
			break
		}
		quals := strings.TrimRight(scanner.Text(), "\r\n")
		if len(quals) < minQualityLen {
			continue
		}
		lmin, lmax := byteExtent(quals)
		for enc, rng := range possible {
			if lmin < rng.min || lmax > rng.max {
				delete(possible, enc)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	out := make([]string, 0, len(possible))
	for enc := range possible {
		out = append(out, enc)
	}
	sort.Strings(out)
	return out, nil
}

// Open opens a FASTQ file, transparently decompressing gzip input.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return &gzipFile{gz: gz, f: f}, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

func byteExtent(s string) (byte, byte) {
	lmin, lmax := byte(255), byte(0)
	for i := 0; i < len(s); i++ {
		if s[i] < lmin {
			lmin = s[i]
		}
		if s[i] > lmax {
			lmax = s[i]
		}
	}
	return lmin, lmax
}
