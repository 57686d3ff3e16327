package scan

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// writeSampleFile creates a file with the provided bytes, failing the test on
// error.
func writeSampleFile(testingHandle *testing.T, filePath string, content []byte) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, content, 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// TestClassifierBlacklistedExtensions verifies the fast extension check,
// including the policy entries for SQL dumps and log files.
func TestClassifierBlacklistedExtensions(testingHandle *testing.T) {
	classifier := NewClassifier()

	blacklistedNames := []string{"photo.PNG", "archive.zip", "dump.sql", "app.log", "font.woff2"}
	for _, fileName := range blacklistedNames {
		if !classifier.HasBlacklistedExtension(fileName) {
			testingHandle.Fatalf("expected %s to be blacklisted", fileName)
		}
	}

	allowedNames := []string{"main.go", "page.html", "notes.txt", "script"}
	for _, fileName := range allowedNames {
		if classifier.HasBlacklistedExtension(fileName) {
			testingHandle.Fatalf("expected %s not to be blacklisted", fileName)
		}
	}
}

// TestIsBinaryFileNulByte verifies that a NUL byte in the sniffed sample
// classifies the file as binary regardless of extension.
func TestIsBinaryFileNulByte(testingHandle *testing.T) {
	filePath := filepath.Join(testingHandle.TempDir(), "payload")
	writeSampleFile(testingHandle, filePath, []byte("text before\x00after"))

	if !NewClassifier().IsBinaryFile(filePath) {
		testingHandle.Fatalf("expected NUL byte to classify file as binary")
	}
}

// TestIsBinaryFileHighByteRatio verifies the high-byte density heuristic and
// its minimum sample size.
func TestIsBinaryFileHighByteRatio(testingHandle *testing.T) {
	classifier := NewClassifier()
	temporaryDirectory := testingHandle.TempDir()

	denseSample := bytes.Repeat([]byte{0x81, 'a'}, 400)
	densePath := filepath.Join(temporaryDirectory, "dense")
	writeSampleFile(testingHandle, densePath, denseSample)
	if !classifier.IsBinaryFile(densePath) {
		testingHandle.Fatalf("expected 50%% high-byte sample to classify as binary")
	}

	// Below the minimum sample size the ratio heuristic is skipped.
	tinySample := bytes.Repeat([]byte{0x81, 'a'}, 100)
	tinyPath := filepath.Join(temporaryDirectory, "tiny")
	writeSampleFile(testingHandle, tinyPath, tinySample)
	if classifier.IsBinaryFile(tinyPath) {
		testingHandle.Fatalf("expected tiny sample to skip the ratio heuristic")
	}

	asciiSample := bytes.Repeat([]byte("plain ascii text\n"), 100)
	asciiPath := filepath.Join(temporaryDirectory, "ascii")
	writeSampleFile(testingHandle, asciiPath, asciiSample)
	if classifier.IsBinaryFile(asciiPath) {
		testingHandle.Fatalf("expected ascii content to classify as text")
	}
}

// TestIsBinaryFileUnreadable verifies the fail-safe classification of an
// unreadable file.
func TestIsBinaryFileUnreadable(testingHandle *testing.T) {
	missingPath := filepath.Join(testingHandle.TempDir(), "missing")
	if !NewClassifier().IsBinaryFile(missingPath) {
		testingHandle.Fatalf("expected unreadable file to classify as binary")
	}
}

// TestReadTextUTF8 verifies the primary decode leg, including multi-byte
// runes below the ratio threshold.
func TestReadTextUTF8(testingHandle *testing.T) {
	const japaneseText = "設定ファイル\n"
	filePath := filepath.Join(testingHandle.TempDir(), "config.txt")
	writeSampleFile(testingHandle, filePath, []byte(japaneseText))

	content, isText := NewClassifier().ReadText(filePath)
	if !isText {
		testingHandle.Fatalf("expected UTF-8 file to decode as text")
	}
	if content != japaneseText {
		testingHandle.Fatalf("unexpected content: %q", content)
	}
}

// TestDecodeTextShiftJIS verifies that legacy Windows Japanese bytes decode
// through the Shift-JIS leg of the chain.
func TestDecodeTextShiftJIS(testingHandle *testing.T) {
	const japaneseText = "日本語のテキスト"
	shiftJISBytes, encodeError := japanese.ShiftJIS.NewEncoder().Bytes([]byte(japaneseText))
	if encodeError != nil {
		testingHandle.Fatalf("failed to build Shift-JIS sample: %v", encodeError)
	}
	if utf8.Valid(shiftJISBytes) {
		testingHandle.Fatalf("sample unexpectedly valid UTF-8; test fixture broken")
	}

	decoded := DecodeText(shiftJISBytes)
	if decoded != japaneseText {
		testingHandle.Fatalf("DecodeText = %q, want %q", decoded, japaneseText)
	}
}

// TestDecodeTextLossyFallback verifies that undecodable bytes never fail and
// are replaced instead.
func TestDecodeTextLossyFallback(testingHandle *testing.T) {
	invalidBytes := []byte{'o', 'k', 0xFF, 0xFE, 'e', 'n', 'd'}
	decoded := DecodeText(invalidBytes)
	if !strings.HasPrefix(decoded, "ok") || !strings.HasSuffix(decoded, "end") {
		testingHandle.Fatalf("unexpected lossy decode: %q", decoded)
	}
	if !strings.ContainsRune(decoded, utf8.RuneError) {
		testingHandle.Fatalf("expected replacement rune in lossy decode: %q", decoded)
	}
}
