// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// maxLineSize bounds a single image line when scanning.
const maxLineSize = 1 << 20

// Image is a firmware image as an ordered list of non-empty, trimmed text
// lines. Records are not validated; the target reports malformed lines
// through StatusFailedBadLine and StatusFailedBadChecksum.
type Image struct {
	lines []string
	bytes int
}

// NewImage builds an Image from raw lines, trimming whitespace and dropping
// lines that are empty after trimming.
func NewImage(lines []string) *Image {
	img := &Image{lines: make([]string, 0, len(lines))}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		img.lines = append(img.lines, line)
		img.bytes += len(line) + 1
	}
	return img
}

// ReadImage reads an image from r. Read failures are returned as
// *SourceReadError.
func ReadImage(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &SourceReadError{Err: err}
	}
	return NewImage(lines), nil
}

// LoadImage reads an image from the file at path.
func LoadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := ReadImage(f)
	if err != nil {
		err.(*SourceReadError).Path = path
		return nil, err
	}
	return img, nil
}

// Lines returns a copy of the image lines.
func (img *Image) Lines() []string {
	out := make([]string, len(img.lines))
	copy(out, img.lines)
	return out
}

// Len returns the number of non-empty lines.
func (img *Image) Len() int {
	return len(img.lines)
}

// WireBytes returns the number of bytes streamed for the image body,
// including one terminator per line.
func (img *Image) WireBytes() int {
	return img.bytes
}
