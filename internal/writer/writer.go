// Package writer implements the hex text output of captured chip images.
package writer

import (
	"fmt"
	"hash/crc32"
	"io"
	"strings"
)

const dataBytesPerLine = 16

// Options of the writer.
type Options struct {
	Header bool // write a comment header with size and checksum
}

// Writer writes images as hex text, one line per 16 bytes prefixed by the
// address of the first byte.
type Writer struct {
	options Options
	writer  io.Writer
}

// New creates a new writer.
func New(writer io.Writer, options Options) *Writer {
	return &Writer{
		options: options,
		writer:  writer,
	}
}

// Write writes the comment header if enabled and the hex dump of data.
func (w Writer) Write(name string, data []byte) error {
	if w.options.Header {
		if err := w.WriteCommentHeader(name, data); err != nil {
			return err
		}
	}
	return w.BundleDataWrites(data)
}

// WriteCommentHeader writes the image name, size and CRC32 checksum as comments.
func (w Writer) WriteCommentHeader(name string, data []byte) error {
	if _, err := fmt.Fprintf(w.writer, "; %s\n", name); err != nil {
		return fmt.Errorf("writing name: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "; Size: %d bytes\n", len(data)); err != nil {
		return fmt.Errorf("writing size: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "; CRC32 checksum: %08x\n\n", crc32.ChecksumIEEE(data)); err != nil {
		return fmt.Errorf("writing checksum: %w", err)
	}
	return nil
}

// BundleDataWrites bundles writes of data bytes to print dataBytesPerLine bytes per line.
func (w Writer) BundleDataWrites(data []byte) error {
	addressFormat := "%04X: "
	if len(data) > 0x10000 {
		addressFormat = "%06X: "
	}

	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataBytesPerLine)

		buf := &strings.Builder{}
		if _, err := fmt.Fprintf(buf, addressFormat, i); err != nil {
			return fmt.Errorf("writing address prefix: %w", err)
		}

		for j := range toWrite {
			if _, err := fmt.Fprintf(buf, "%02X ", data[i+j]); err != nil {
				return fmt.Errorf("writing data byte: %w", err)
			}
		}

		line := strings.TrimRight(buf.String(), " ")
		if _, err := fmt.Fprintf(w.writer, "%s\n", line); err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}

		i += toWrite
		remaining -= toWrite
	}

	return nil
}
