// Package scan implements candidate file collection, binary detection, and
// structure rendering for a dump target.
package scan

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

const (
	// defaultSniffLength is the number of bytes read when estimating whether
	// a file is binary.
	defaultSniffLength = 8192
	// defaultMinimumSampleSize is the smallest sniffed sample the high-byte
	// ratio heuristic is applied to; tiny samples produce false positives.
	defaultMinimumSampleSize = 512
	// defaultHighByteRatioLimit is the fraction of bytes >= 0x80 above which
	// a sample is treated as binary. UTF-8 text has bounded high-byte density.
	defaultHighByteRatioLimit = 0.30
)

// binaryMimePrefixes lists MIME type prefixes always treated as binary.
var binaryMimePrefixes = []string{"image/", "audio/", "video/"}

// binaryMimeExact lists exact MIME types always treated as binary.
var binaryMimeExact = map[string]struct{}{
	"application/pdf": {},
	"application/zip": {},
}

// DefaultBinaryExtensions lists file extensions classified as binary without
// reading the file. SQL dumps and log files are listed by policy: they are
// generated data artifacts, not source worth dumping.
var DefaultBinaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".ico", ".tif", ".tiff", ".svgz",
	".pdf",
	".zip", ".7z", ".rar", ".tar", ".gz", ".bz2", ".xz",
	".mp3", ".wav", ".flac", ".ogg",
	".mp4", ".mov", ".avi", ".mkv", ".webm",
	".exe", ".dll", ".so", ".dylib", ".bin", ".dat", ".class", ".jar",
	".ttf", ".otf", ".woff", ".woff2",
	".psd", ".ai", ".sketch",
	".sql", ".log",
}

// utf8ByteOrderMark is the UTF-8 BOM stripped before decoding.
var utf8ByteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Classifier decides whether files are binary and decodes text files. The
// heuristic thresholds are empirical; they are fields rather than constants so
// callers can tune them.
type Classifier struct {
	SniffLength        int
	MinimumSampleSize  int
	HighByteRatioLimit float64
	BinaryExtensions   map[string]struct{}
}

// NewClassifier returns a Classifier with the default thresholds and the
// default binary extension blacklist.
func NewClassifier() Classifier {
	binaryExtensions := make(map[string]struct{}, len(DefaultBinaryExtensions))
	for _, extension := range DefaultBinaryExtensions {
		binaryExtensions[extension] = struct{}{}
	}
	return Classifier{
		SniffLength:        defaultSniffLength,
		MinimumSampleSize:  defaultMinimumSampleSize,
		HighByteRatioLimit: defaultHighByteRatioLimit,
		BinaryExtensions:   binaryExtensions,
	}
}

// HasBlacklistedExtension reports whether the file name carries an extension
// from the binary blacklist.
func (classifier Classifier) HasBlacklistedExtension(filePath string) bool {
	extension := strings.ToLower(filepath.Ext(filePath))
	_, isBlacklisted := classifier.BinaryExtensions[extension]
	return isBlacklisted
}

// IsBinaryFile reports whether the file at filePath appears to contain binary
// data. Checks run in order: extension blacklist, MIME type guess, NUL byte in
// a sniffed sample, and the high-byte ratio heuristic. An unreadable file is
// reported as binary so the caller skips it.
func (classifier Classifier) IsBinaryFile(filePath string) bool {
	if classifier.HasBlacklistedExtension(filePath) {
		return true
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath)))
	if mimeType != "" {
		mediaType := mimeType
		if separatorIndex := strings.IndexByte(mediaType, ';'); separatorIndex >= 0 {
			mediaType = strings.TrimSpace(mediaType[:separatorIndex])
		}
		for _, binaryPrefix := range binaryMimePrefixes {
			if strings.HasPrefix(mediaType, binaryPrefix) {
				return true
			}
		}
		if _, isBinaryType := binaryMimeExact[mediaType]; isBinaryType {
			return true
		}
	}

	sample, sniffError := classifier.sniff(filePath)
	if sniffError != nil {
		return true
	}

	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}

	if len(sample) >= classifier.MinimumSampleSize {
		highByteCount := 0
		for _, sampleByte := range sample {
			if sampleByte >= 0x80 {
				highByteCount++
			}
		}
		if float64(highByteCount)/float64(len(sample)) > classifier.HighByteRatioLimit {
			return true
		}
	}

	return false
}

// ReadText reads and decodes the file at filePath. The second return value is
// false when the file is binary, unreadable, and must be skipped. Decoding
// tries strict UTF-8, UTF-8 with a byte order mark, then Shift-JIS, and falls
// back to lossy UTF-8 replacement, which never fails.
func (classifier Classifier) ReadText(filePath string) (string, bool) {
	if classifier.IsBinaryFile(filePath) {
		return "", false
	}

	rawBytes, readError := os.ReadFile(filePath)
	if readError != nil {
		return "", false
	}

	return DecodeText(rawBytes), true
}

// DecodeText converts raw file bytes to a string using the encoding chain
// described on ReadText.
func DecodeText(rawBytes []byte) string {
	if utf8.Valid(rawBytes) {
		return string(rawBytes)
	}

	if bytes.HasPrefix(rawBytes, utf8ByteOrderMark) {
		withoutMark := rawBytes[len(utf8ByteOrderMark):]
		if utf8.Valid(withoutMark) {
			return string(withoutMark)
		}
	}

	decodedBytes, decodeError := japanese.ShiftJIS.NewDecoder().Bytes(rawBytes)
	if decodeError == nil && utf8.Valid(decodedBytes) && !bytes.ContainsRune(decodedBytes, utf8.RuneError) {
		return string(decodedBytes)
	}

	return strings.ToValidUTF8(string(rawBytes), string(utf8.RuneError))
}

// sniff reads up to SniffLength bytes from the start of the file.
func (classifier Classifier) sniff(filePath string) ([]byte, error) {
	fileHandle, openError := os.Open(filePath)
	if openError != nil {
		return nil, openError
	}
	defer fileHandle.Close()

	buffer := make([]byte, classifier.SniffLength)
	bytesRead, readError := fileHandle.Read(buffer)
	if readError != nil && readError != io.EOF {
		return nil, readError
	}
	return buffer[:bytesRead], nil
}
