// internal/document/document.go
package document

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/bethropolis/treesync/internal/logger"
)

// Source is the read-only view of addressable text shared by the live
// Document and frozen Snapshots. The parse engine only ever reads through
// this interface, so a parse can be bound to either interchangeably.
type Source interface {
	// Len returns the total byte length of the text.
	Len() uint32
	// PositionAt converts a byte offset to a zero-based row/column point.
	// Offsets past the end clamp to the final position.
	PositionAt(offset uint32) sitter.Point
	// ValueInRange returns the bytes in [start, end), clamped to the text.
	ValueInRange(start, end uint32) []byte
}

// Document is a mutable line-based text buffer addressed by byte offsets.
// Mutation is single-owner: callers must not mutate concurrently with reads.
type Document struct {
	lines    [][]byte
	filePath string
	modified bool
}

// NewDocument creates an empty document containing a single empty line.
func NewDocument() *Document {
	return &Document{
		lines: [][]byte{[]byte("")},
	}
}

// NewDocumentFromBytes creates a document holding the given content.
func NewDocumentFromBytes(content []byte) *Document {
	d := NewDocument()
	d.setBytes(content)
	d.modified = false
	return d
}

// Load reads a file into the document. Replaces existing content.
func (d *Document) Load(filePath string) error {
	d.modified = false

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			d.lines = [][]byte{[]byte("")}
			d.filePath = filePath
			return nil
		}
		return fmt.Errorf("failed to open file '%s': %w", filePath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	newLines := [][]byte{}
	for scanner.Scan() {
		line := scanner.Bytes()
		lineCopy := make([]byte, len(line))
		copy(lineCopy, line)
		newLines = append(newLines, lineCopy)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file '%s': %w", filePath, err)
	}
	if len(newLines) == 0 {
		newLines = append(newLines, []byte(""))
	}
	d.lines = newLines
	d.filePath = filePath
	logger.DebugTagf("document", "Loaded '%s': %d lines, %d bytes", filePath, len(d.lines), d.Len())
	return nil
}

// Save writes the document content to the stored filePath.
func (d *Document) Save(filePath string) error {
	path := d.filePath
	if filePath != "" { // Allow overriding path during save
		path = filePath
	}
	if path == "" {
		return errors.New("no file path specified for saving")
	}

	if err := os.WriteFile(path, d.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write file '%s': %w", path, err)
	}

	d.filePath = path
	d.modified = false
	logger.DebugTagf("document", "Saved '%s': %d bytes", path, d.Len())
	return nil
}

// Lines returns the underlying line slices.
func (d *Document) Lines() [][]byte {
	return d.lines
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// Line returns the content of one line.
func (d *Document) Line(index int) ([]byte, error) {
	if index < 0 || index >= len(d.lines) {
		return nil, fmt.Errorf("line index %d out of bounds (0-%d)", index, len(d.lines)-1)
	}
	return d.lines[index], nil
}

// Bytes returns the full document content, lines joined by '\n'.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	for i, line := range d.lines {
		buf.Write(line)
		if i < len(d.lines)-1 {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Len returns the total byte length of the document.
func (d *Document) Len() uint32 {
	total := 0
	for _, line := range d.lines {
		total += len(line)
	}
	total += len(d.lines) - 1 // newlines between lines
	return uint32(total)
}

// PositionAt converts a byte offset into a zero-based row/column point.
// Offsets past the end clamp to the final position.
func (d *Document) PositionAt(offset uint32) sitter.Point {
	remaining := int(offset)
	for row, line := range d.lines {
		if remaining <= len(line) {
			return sitter.Point{Row: uint32(row), Column: uint32(remaining)}
		}
		remaining -= len(line) + 1 // account for the newline
	}
	lastRow := len(d.lines) - 1
	return sitter.Point{Row: uint32(lastRow), Column: uint32(len(d.lines[lastRow]))}
}

// OffsetAt converts a zero-based row/column point into a byte offset,
// clamping rows and columns that fall outside the document.
func (d *Document) OffsetAt(point sitter.Point) uint32 {
	row := int(point.Row)
	if row >= len(d.lines) {
		return d.Len()
	}
	offset := 0
	for i := 0; i < row; i++ {
		offset += len(d.lines[i]) + 1
	}
	col := int(point.Column)
	if col > len(d.lines[row]) {
		col = len(d.lines[row])
	}
	return uint32(offset + col)
}

// ValueInRange returns the bytes in [start, end), clamped to the document.
func (d *Document) ValueInRange(start, end uint32) []byte {
	length := d.Len()
	if start > length {
		start = length
	}
	if end > length {
		end = length
	}
	if start >= end {
		return nil
	}

	out := make([]byte, 0, end-start)
	pos := uint32(0)
	for i, line := range d.lines {
		segment := line
		if i < len(d.lines)-1 {
			segment = append(segment[:len(segment):len(segment)], '\n')
		}
		segEnd := pos + uint32(len(segment))
		if segEnd > start && pos < end {
			from := uint32(0)
			if start > pos {
				from = start - pos
			}
			to := uint32(len(segment))
			if end < segEnd {
				to = end - pos
			}
			out = append(out, segment[from:to]...)
		}
		pos = segEnd
		if pos >= end {
			break
		}
	}
	return out
}

// Replace substitutes the bytes in [offset, offset+length) with text and
// returns the Change record describing the mutation. The Change's Range is
// computed against the pre-change document, offsets are clamped to bounds.
func (d *Document) Replace(offset, length uint32, text []byte) (Change, error) {
	docLen := d.Len()
	if offset > docLen {
		return Change{}, fmt.Errorf("replace offset %d out of bounds (len %d)", offset, docLen)
	}
	if offset+length > docLen {
		length = docLen - offset
	}

	change := Change{
		RangeOffset: offset,
		RangeLength: length,
		Range: Range{
			Start: d.PositionAt(offset),
			End:   d.PositionAt(offset + length),
		},
		Text: append([]byte(nil), text...),
	}

	content := d.Bytes()
	updated := make([]byte, 0, len(content)-int(length)+len(text))
	updated = append(updated, content[:offset]...)
	updated = append(updated, text...)
	updated = append(updated, content[offset+length:]...)
	d.setBytes(updated)
	d.modified = true

	return change, nil
}

// Insert adds text at a byte offset.
func (d *Document) Insert(offset uint32, text []byte) (Change, error) {
	return d.Replace(offset, 0, text)
}

// Delete removes the bytes in [offset, offset+length).
func (d *Document) Delete(offset, length uint32) (Change, error) {
	return d.Replace(offset, length, nil)
}

// Snapshot returns an immutable point-in-time copy of the content,
// independent of further mutation of the live document.
func (d *Document) Snapshot() *Snapshot {
	content := d.Bytes()
	return &Snapshot{content: content}
}

// IsModified returns true if the document has unsaved changes.
func (d *Document) IsModified() bool {
	return d.modified
}

// FilePath returns the backing file path, if any.
func (d *Document) FilePath() string {
	return d.filePath
}

// setBytes replaces the line storage from flat content.
func (d *Document) setBytes(content []byte) {
	parts := bytes.Split(content, []byte("\n"))
	lines := make([][]byte, len(parts))
	for i, part := range parts {
		lineCopy := make([]byte, len(part))
		copy(lineCopy, part)
		lines[i] = lineCopy
	}
	d.lines = lines
}

// Ensure both text sources satisfy the read interface.
var (
	_ Source = (*Document)(nil)
	_ Source = (*Snapshot)(nil)
)
