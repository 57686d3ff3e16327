package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pigokitchen/dirdump/internal/rules"
)

const (
	// structureIndentUnit is the indentation added per path depth level.
	structureIndentUnit = "  "
	// structureTruncationMarker terminates a structure listing cut short by
	// the entry cap.
	structureTruncationMarker = "  ...(structure truncated)..."
	// directoryEntrySuffix marks directory entries in the listing.
	directoryEntrySuffix = "/"
)

// StructureEntry is one row of the structure listing before rendering.
type StructureEntry struct {
	RelativePath string
	IsDirectory  bool
	Excluded     bool
}

// StructureRenderer produces the indented directory listing emitted at the
// top of a dump.
type StructureRenderer struct {
	Rules rules.RuleSet
	// MaxEntries caps the number of listed entries; zero means unlimited.
	MaxEntries int
	// IncludeExcluded renders excluded directories as single collapsed
	// entries instead of omitting them. Excluded files are always omitted.
	IncludeExcluded bool
}

// Render walks targetRoot the same way the collector does and returns the
// listing lines. The first line is always the target directory's own name; a
// truncation marker is appended when the entry cap stops the walk early.
func (renderer StructureRenderer) Render(targetRoot string) []string {
	lines := []string{filepath.Base(targetRoot) + directoryEntrySuffix}

	var entries []StructureEntry
	truncated := renderer.walkStructure(targetRoot, nil, &entries)

	sort.Slice(entries, func(firstIndex, secondIndex int) bool {
		return entries[firstIndex].RelativePath < entries[secondIndex].RelativePath
	})

	for _, entry := range entries {
		segments := strings.Split(entry.RelativePath, "/")
		indent := strings.Repeat(structureIndentUnit, len(segments)-1)
		entryName := segments[len(segments)-1]
		if entry.IsDirectory {
			entryName += directoryEntrySuffix
		}
		lines = append(lines, indent+entryName)
	}

	if truncated {
		lines = append(lines, structureTruncationMarker)
	}

	return lines
}

// walkStructure accumulates entries for directoryPath and its descendants.
// It returns true when the entry cap stopped the walk.
func (renderer StructureRenderer) walkStructure(directoryPath string, relativeParts []string, entries *[]StructureEntry) bool {
	directoryEntries, readError := os.ReadDir(directoryPath)
	if readError != nil {
		fmt.Fprintf(os.Stderr, warningReadDirectoryFormat, directoryPath, readError)
		return false
	}

	var keptDirectories []string
	for _, directoryEntry := range directoryEntries {
		entryName := directoryEntry.Name()
		entryRelativeParts := append(append([]string{}, relativeParts...), entryName)
		entryRelativePath := strings.Join(entryRelativeParts, "/")

		if directoryEntry.IsDir() {
			isExcludedDirectory := renderer.Rules.IsExcludedDirectoryName(entryName) ||
				renderer.Rules.IsExcluded(entryRelativeParts)
			if isExcludedDirectory {
				if renderer.IncludeExcluded {
					*entries = append(*entries, StructureEntry{
						RelativePath: entryRelativePath,
						IsDirectory:  true,
						Excluded:     true,
					})
					if renderer.capReached(len(*entries)) {
						return true
					}
				}
				continue
			}
			keptDirectories = append(keptDirectories, entryName)
			*entries = append(*entries, StructureEntry{
				RelativePath: entryRelativePath,
				IsDirectory:  true,
			})
			if renderer.capReached(len(*entries)) {
				return true
			}
			continue
		}

		if renderer.Rules.IsExcluded(entryRelativeParts) {
			continue
		}
		*entries = append(*entries, StructureEntry{RelativePath: entryRelativePath})
		if renderer.capReached(len(*entries)) {
			return true
		}
	}

	for _, directoryName := range keptDirectories {
		childRelativeParts := append(append([]string{}, relativeParts...), directoryName)
		if renderer.walkStructure(filepath.Join(directoryPath, directoryName), childRelativeParts, entries) {
			return true
		}
	}

	return false
}

// capReached reports whether the configured entry cap has been hit.
func (renderer StructureRenderer) capReached(entryCount int) bool {
	return renderer.MaxEntries > 0 && entryCount >= renderer.MaxEntries
}
