package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pigokitchen/dirdump/internal/rules"
	"github.com/pigokitchen/dirdump/internal/scan"
)

// writeFixtureFile creates a file with the given content, creating parent
// directories as needed and failing the test on error.
func writeFixtureFile(testingHandle *testing.T, filePath string, content []byte) {
	testingHandle.Helper()
	if makeDirectoryError := os.MkdirAll(filepath.Dir(filePath), 0o755); makeDirectoryError != nil {
		testingHandle.Fatalf("failed to create directory for %s: %v", filePath, makeDirectoryError)
	}
	if writeError := os.WriteFile(filePath, content, 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// defaultOptions returns run options for a fixture tree with all-text
// collection and no structure block.
func defaultOptions(targetRoot string, outputPath string) Options {
	return Options{
		ProjectRoot: targetRoot,
		TargetRoot:  targetRoot,
		OutputPath:  outputPath,
		Format:      FormatMarkdown,
		Rules:       rules.NewRuleSet(nil),
		Policy:      scan.ExtensionPolicy{AllText: true},
		Classifier:  scan.NewClassifier(),
	}
}

// TestRunAllTextCountsAndSkips verifies the round-trip property: every plain
// text file is written, binary files are counted as skipped, and excluded
// directories never contribute content.
func TestRunAllTextCountsAndSkips(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "main.php"), []byte("<?php echo 1;\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "readme.md"), []byte("# readme\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "app", "config.yml"), []byte("key: value\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "blob"), []byte{0x00, 0x01, 0x02})
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "vendor", "lib.php"), []byte("<?php // dep\n"))

	outputPath := filepath.Join(testingHandle.TempDir(), "dump.md")
	options := defaultOptions(targetRoot, outputPath)

	result, runError := Run(options)
	if runError != nil {
		testingHandle.Fatalf("Run failed: %v", runError)
	}

	if result.FilesWritten != 3 {
		testingHandle.Fatalf("FilesWritten = %d, want 3", result.FilesWritten)
	}
	if result.SkippedBinary != 1 {
		testingHandle.Fatalf("SkippedBinary = %d, want 1", result.SkippedBinary)
	}
	if result.Strategy != scan.StrategyFilesystemWalk {
		testingHandle.Fatalf("Strategy = %q, want filesystem walk", result.Strategy)
	}
	if result.Mode != ModeAllText {
		testingHandle.Fatalf("Mode = %q, want all-text", result.Mode)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	if !strings.Contains(documentContent, footerWrittenLabel+"3\n") {
		testingHandle.Fatalf("footer missing written count:\n%s", documentContent)
	}
	if !strings.Contains(documentContent, footerSkippedBinaryLabel+"1\n") {
		testingHandle.Fatalf("footer missing binary skip count:\n%s", documentContent)
	}
	if strings.Contains(documentContent, footerSkippedLargeLabel) {
		testingHandle.Fatalf("size cap line present without a cap:\n%s", documentContent)
	}
	if strings.Contains(documentContent, "lib.php") {
		testingHandle.Fatalf("excluded vendor file leaked into document")
	}
	if strings.Contains(documentContent, fileNameLabel+"blob") {
		testingHandle.Fatalf("binary file leaked into content section")
	}
	if !strings.Contains(documentContent, fileNameLabel+"config.yml\n"+filePathLabel+"app/\n") {
		testingHandle.Fatalf("nested file section malformed:\n%s", documentContent)
	}
	if !strings.Contains(documentContent, fileNameLabel+"main.php\n"+filePathLabel+"/\n") {
		testingHandle.Fatalf("root file section malformed:\n%s", documentContent)
	}
	if !strings.Contains(documentContent, codeFence+"php\n<?php echo 1;\n"+codeFence+"\n") {
		testingHandle.Fatalf("markdown fence missing language tag:\n%s", documentContent)
	}
}

// TestRunExtensionFilterCompoundSuffix verifies that a compound suffix must be
// requested explicitly and does not match through its final suffix.
func TestRunExtensionFilterCompoundSuffix(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "page.php"), []byte("<?php\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "view.blade.php"), []byte("@extends\n"))

	outputPath := filepath.Join(testingHandle.TempDir(), "dump.md")
	options := defaultOptions(targetRoot, outputPath)
	options.Policy = scan.ExtensionPolicy{Extensions: scan.ParseExtensionList(".php")}

	result, runError := Run(options)
	if runError != nil {
		testingHandle.Fatalf("Run failed: %v", runError)
	}
	if result.FilesWritten != 1 {
		testingHandle.Fatalf("FilesWritten = %d, want only page.php", result.FilesWritten)
	}
	if result.Mode != ModeExtensionFilter {
		testingHandle.Fatalf("Mode = %q, want ext-filter", result.Mode)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	if strings.Contains(documentContent, "view.blade.php") {
		testingHandle.Fatalf("compound suffix matched without being requested")
	}

	options.Policy = scan.ExtensionPolicy{Extensions: scan.ParseExtensionList(".php,.blade.php")}
	result, runError = Run(options)
	if runError != nil {
		testingHandle.Fatalf("second Run failed: %v", runError)
	}
	if result.FilesWritten != 2 {
		testingHandle.Fatalf("FilesWritten = %d, want both files", result.FilesWritten)
	}
}

// TestRunMaxBytesCap verifies that files above the size cap are counted
// separately and reported in the footer.
func TestRunMaxBytesCap(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "small.txt"), []byte("tiny\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "large.txt"), []byte(strings.Repeat("x", 2048)))

	outputPath := filepath.Join(testingHandle.TempDir(), "dump.md")
	options := defaultOptions(targetRoot, outputPath)
	options.MaxFileBytes = 100

	result, runError := Run(options)
	if runError != nil {
		testingHandle.Fatalf("Run failed: %v", runError)
	}
	if result.FilesWritten != 1 || result.SkippedLarge != 1 {
		testingHandle.Fatalf("written=%d large=%d, want 1 and 1", result.FilesWritten, result.SkippedLarge)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	if !strings.Contains(documentContent, footerSkippedLargeLabel+"1\n") {
		testingHandle.Fatalf("footer missing size cap count:\n%s", documentContent)
	}
}

// TestRunSelfExclusionAcrossRuns verifies that part files from a previous
// split dump are never re-dumped by a later run into the same output path.
func TestRunSelfExclusionAcrossRuns(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "one.txt"), []byte(strings.Repeat("1", 300)+"\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "two.txt"), []byte(strings.Repeat("2", 300)+"\n"))

	outputPath := filepath.Join(targetRoot, "dump.md")
	options := defaultOptions(targetRoot, outputPath)
	options.SplitBudgetBytes = 400

	firstResult, firstRunError := Run(options)
	if firstRunError != nil {
		testingHandle.Fatalf("first Run failed: %v", firstRunError)
	}
	if len(firstResult.PartPaths) < 2 {
		testingHandle.Fatalf("expected split output, got parts %v", firstResult.PartPaths)
	}

	options.SplitBudgetBytes = 0
	secondResult, secondRunError := Run(options)
	if secondRunError != nil {
		testingHandle.Fatalf("second Run failed: %v", secondRunError)
	}
	if secondResult.FilesWritten != firstResult.FilesWritten {
		testingHandle.Fatalf("second run wrote %d files, want %d", secondResult.FilesWritten, firstResult.FilesWritten)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	if strings.Contains(documentContent, fileNameLabel+"dump_001.md") {
		testingHandle.Fatalf("previously generated part re-dumped:\n%s", documentContent)
	}
	if strings.Contains(documentContent, continuationMarker) {
		testingHandle.Fatalf("part content leaked into second dump")
	}
}

// TestRunStructureTruncation verifies that the entry cap yields exactly the
// capped number of entries plus one truncation marker.
func TestRunStructureTruncation(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	for fileIndex := 0; fileIndex < 20; fileIndex++ {
		fileName := string(rune('a'+fileIndex)) + ".txt"
		writeFixtureFile(testingHandle, filepath.Join(targetRoot, fileName), []byte("line\n"))
	}

	outputPath := filepath.Join(testingHandle.TempDir(), "dump.md")
	options := defaultOptions(targetRoot, outputPath)
	options.StructureEnabled = true
	options.StructureMaxEntries = 5

	if _, runError := Run(options); runError != nil {
		testingHandle.Fatalf("Run failed: %v", runError)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	structureStart := strings.Index(documentContent, structureHeading)
	structureEnd := strings.Index(documentContent, sectionSeparator)
	if structureStart < 0 || structureEnd < structureStart {
		testingHandle.Fatalf("structure block missing:\n%s", documentContent)
	}
	structureBlock := strings.TrimSpace(documentContent[structureStart:structureEnd])
	structureLines := strings.Split(structureBlock, "\n")

	// heading + root line + five entries + truncation marker
	if len(structureLines) != 8 {
		testingHandle.Fatalf("structure block has %d lines, want 8:\n%s", len(structureLines), structureBlock)
	}
	if structureLines[len(structureLines)-1] != "  ...(structure truncated)..." {
		testingHandle.Fatalf("missing truncation marker, got %q", structureLines[len(structureLines)-1])
	}
}

// TestRunStructureCollapsedExcludedDirectories verifies that excluded
// directories appear as single non-expanded entries when requested.
func TestRunStructureCollapsedExcludedDirectories(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "src", "main.go"), []byte("package main\n"))
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "node_modules", "pkg", "index.js"), []byte("console.log(1)\n"))

	outputPath := filepath.Join(testingHandle.TempDir(), "dump.md")
	options := defaultOptions(targetRoot, outputPath)
	options.StructureEnabled = true
	options.StructureIncludeExcluded = true

	if _, runError := Run(options); runError != nil {
		testingHandle.Fatalf("Run failed: %v", runError)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	if !strings.Contains(documentContent, "\nnode_modules/\n") {
		testingHandle.Fatalf("collapsed excluded directory entry missing:\n%s", documentContent)
	}
	if strings.Contains(documentContent, "index.js") {
		testingHandle.Fatalf("excluded directory was expanded")
	}
}

// TestRunTextFormatOmitsFences verifies the txt output variant.
func TestRunTextFormatOmitsFences(testingHandle *testing.T) {
	targetRoot := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(targetRoot, "notes.txt"), []byte("no fence"))

	outputPath := filepath.Join(testingHandle.TempDir(), "dump.txt")
	options := defaultOptions(targetRoot, outputPath)
	options.Format = FormatText

	if _, runError := Run(options); runError != nil {
		testingHandle.Fatalf("Run failed: %v", runError)
	}

	documentContent := readFileOrFail(testingHandle, outputPath)
	if strings.Contains(documentContent, codeFence) {
		testingHandle.Fatalf("txt format must not contain fences:\n%s", documentContent)
	}
	if !strings.Contains(documentContent, fileContentLabel+"\nno fence\n\n"+sectionSeparator) {
		testingHandle.Fatalf("txt section malformed:\n%s", documentContent)
	}
}
