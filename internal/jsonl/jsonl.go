package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/queelius/arkiv/pkg/types"
)

// maxLineSize bounds a single JSONL line. Inline content may be base64
// encoded binary, so lines can be far longer than bufio's default.
const maxLineSize = 64 << 20

// newScanner returns a line scanner sized for archive lines.
func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// Records returns a lazy sequence of the records in r. Skipped lines produce
// nothing. A read error is yielded once, as the final element.
func Records(r io.Reader) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		scanner := newScanner(r)
		for scanner.Scan() {
			rec, ok := ParseLine(scanner.Bytes())
			if !ok {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(types.Record{}, fmt.Errorf("scanning records: %w", err))
		}
	}
}

// Slice returns a sequence over an in-memory slice of records.
func Slice(records []types.Record) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ReadFile reads every record of the JSONL file at path.
func ReadFile(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []types.Record
	for rec, err := range Records(f) {
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteFile atomically writes records to a JSONL file.
func WriteFile(path string, records []types.Record) error {
	lines := make([][]byte, 0, len(records))
	for i, rec := range records {
		line, err := MarshalRecord(rec)
		if err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
		lines = append(lines, line)
	}
	return writeLines(path, lines)
}

// writeLines atomically writes lines to path using the temp-file, fsync,
// rename pattern. Each line gets a trailing newline.
func writeLines(path string, lines [][]byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// CollectionName derives a collection name from a JSONL path: the file name
// without its extension.
func CollectionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
