// Package loader handles loading reference images and creating output files.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Loader handles image files on a file system.
type Loader struct {
	fs afero.Fs
}

// New creates a new image loader.
func New(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// LoadImage loads a reference image. Files with a .hex or .txt extension are
// parsed as hex dump as written by the writer package, all other files are
// read as raw binary.
func (l *Loader) LoadImage(path string) ([]byte, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading image file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".txt":
		image, err := ParseHexDump(data)
		if err != nil {
			return nil, fmt.Errorf("parsing hex dump %s: %w", path, err)
		}
		return image, nil
	default:
		return data, nil
	}
}

// SaveImage writes a captured image as raw binary file.
func (l *Loader) SaveImage(path string, image []byte) error {
	if err := afero.WriteFile(l.fs, path, image, 0o644); err != nil {
		return fmt.Errorf("writing image file %s: %w", path, err)
	}
	return nil
}

// CreateOutput returns the writer for the given output file name, stdout is
// used if no name is given.
func (l *Loader) CreateOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return &nopCloser{os.Stdout}, nil
	}

	file, err := l.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", path, err)
	}
	return file, nil
}

// ParseHexDump parses lines of the format "AAAA: XX XX ..". Empty lines and
// lines starting with ';' are skipped, the address of every line has to
// continue where the previous line ended.
func ParseHexDump(data []byte) ([]byte, error) {
	var image []byte
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == ';' {
			continue
		}

		address, values, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing address separator", lineNumber)
		}
		offset, err := strconv.ParseUint(address, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid address '%s': %w", lineNumber, address, err)
		}
		if int(offset) != len(image) {
			return nil, fmt.Errorf("line %d: address %04X does not follow %04X", lineNumber, offset, len(image))
		}

		for _, field := range strings.Fields(values) {
			b, err := strconv.ParseUint(field, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid byte '%s': %w", lineNumber, field, err)
			}
			image = append(image, byte(b))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning hex dump: %w", err)
	}
	return image, nil
}

// nopCloser wraps an io.Writer to add a no-op Close method.
type nopCloser struct {
	io.Writer
}

func (nc *nopCloser) Close() error {
	return nil
}
