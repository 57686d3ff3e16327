// Package dump drives a dump run: it orchestrates collection, structure
// rendering, and document writing, including size-based output splitting.
package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// writerState enumerates the SplitWriter lifecycle.
type writerState int

const (
	// writerStateSingle writes to the original output path; no rotation has
	// happened yet.
	writerStateSingle writerState = iota
	// writerStateSplitting writes to numbered continuation parts.
	writerStateSplitting
	// writerStateClosed accepts no further writes.
	writerStateClosed
)

const (
	// continuationMarker opens every continuation part.
	continuationMarker = "（続き）\n\n"
	// partIndexFormat renders the zero-padded part index in part file names.
	partIndexFormat = "%s_%03d%s"
	// partIndexPattern matches the zero-padded part index in part file names.
	partIndexPattern = `_\d{3}`

	// errorWriterClosed reports a write after Close.
	errorWriterClosed = "split writer is closed"
	// errorCreatePartFormat reports a failure to open a part file.
	errorCreatePartFormat = "creating %s: %w"
	// errorRenamePartFormat reports a failure to rename the original output
	// into its part name.
	errorRenamePartFormat = "renaming %s to %s: %w"
)

// SplitWriter writes text to an output file and transparently rotates into
// zero-padded numbered part files once a byte budget is exceeded. A budget of
// zero disables rotation. A single write larger than the budget is never
// split; it overflows its part once.
type SplitWriter struct {
	outputPath   string
	budgetBytes  int64
	state        writerState
	activeFile   *os.File
	currentBytes int64
	partIndex    int
	partPaths    []string
}

// NewSplitWriter opens outputPath for writing, truncating any previous
// content, and returns a writer in the single-file state.
func NewSplitWriter(outputPath string, budgetBytes int64) (*SplitWriter, error) {
	fileHandle, createError := os.Create(outputPath)
	if createError != nil {
		return nil, fmt.Errorf(errorCreatePartFormat, outputPath, createError)
	}
	return &SplitWriter{
		outputPath:  outputPath,
		budgetBytes: budgetBytes,
		activeFile:  fileHandle,
		partPaths:   []string{outputPath},
	}, nil
}

// WriteString appends text to the active part, rotating first when the budget
// would be exceeded.
func (writer *SplitWriter) WriteString(text string) error {
	if writer.state == writerStateClosed {
		return fmt.Errorf(errorWriterClosed)
	}

	textBytes := []byte(text)
	if wouldOverflow(writer.currentBytes, int64(len(textBytes)), writer.budgetBytes) {
		if rotateError := writer.rotate(); rotateError != nil {
			return rotateError
		}
	}

	bytesWritten, writeError := writer.activeFile.Write(textBytes)
	writer.currentBytes += int64(bytesWritten)
	return writeError
}

// Close flushes and closes the active part. It is safe to call repeatedly.
func (writer *SplitWriter) Close() error {
	if writer.state == writerStateClosed {
		return nil
	}
	writer.state = writerStateClosed
	if writer.activeFile == nil {
		return nil
	}
	closeError := writer.activeFile.Close()
	writer.activeFile = nil
	return closeError
}

// PartPaths returns every part written so far, in emission order. Before any
// rotation it holds only the original output path.
func (writer *SplitWriter) PartPaths() []string {
	return append([]string{}, writer.partPaths...)
}

// rotate closes the active part and opens the next numbered one. The first
// rotation renames the original output to part one before opening part two;
// every continuation part starts with the continuation marker.
func (writer *SplitWriter) rotate() error {
	if closeError := writer.activeFile.Close(); closeError != nil {
		return closeError
	}
	writer.activeFile = nil

	if writer.state == writerStateSingle {
		firstPartPath := partPath(writer.outputPath, 1)
		if renameError := os.Rename(writer.outputPath, firstPartPath); renameError != nil {
			return fmt.Errorf(errorRenamePartFormat, writer.outputPath, firstPartPath, renameError)
		}
		writer.partPaths = []string{firstPartPath}
		writer.partIndex = 1
		writer.state = writerStateSplitting
	}

	writer.partIndex++
	nextPartPath := partPath(writer.outputPath, writer.partIndex)
	fileHandle, createError := os.Create(nextPartPath)
	if createError != nil {
		return fmt.Errorf(errorCreatePartFormat, nextPartPath, createError)
	}
	writer.activeFile = fileHandle
	writer.partPaths = append(writer.partPaths, nextPartPath)
	writer.currentBytes = 0

	markerBytes, markerWriteError := writer.activeFile.WriteString(continuationMarker)
	writer.currentBytes += int64(markerBytes)
	return markerWriteError
}

// wouldOverflow reports whether adding nextBytes to a non-empty part would
// exceed the budget. An empty part never rotates, so one oversized write is
// allowed through.
func wouldOverflow(currentBytes int64, nextBytes int64, budgetBytes int64) bool {
	if budgetBytes <= 0 || currentBytes == 0 {
		return false
	}
	return currentBytes+nextBytes > budgetBytes
}

// partPath builds the numbered part path for outputPath, keeping its
// directory and extension.
func partPath(outputPath string, index int) string {
	extension := filepath.Ext(outputPath)
	stem := strings.TrimSuffix(outputPath, extension)
	return fmt.Sprintf(partIndexFormat, stem, index, extension)
}

// PartFilePattern returns a regular expression matching the base names of
// part files generated for outputPath. The driver uses it to keep previously
// generated parts out of a later dump of the same directory.
func PartFilePattern(outputPath string) *regexp.Regexp {
	baseName := filepath.Base(outputPath)
	extension := filepath.Ext(baseName)
	stem := strings.TrimSuffix(baseName, extension)
	return regexp.MustCompile("^" + regexp.QuoteMeta(stem) + partIndexPattern + regexp.QuoteMeta(extension) + "$")
}
