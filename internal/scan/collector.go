package scan

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pigokitchen/dirdump/internal/rules"
)

const (
	// StrategyTrackedListing identifies collection through the version
	// control tracked-file listing.
	StrategyTrackedListing = "git ls-files"
	// StrategyFilesystemWalk identifies collection through a recursive
	// filesystem walk.
	StrategyFilesystemWalk = "filesystem walk"

	// gitExecutableName is the version control tool invoked for the
	// tracked-listing strategy.
	gitExecutableName = "git"
	// gitDirectoryName marks a directory as version controlled.
	gitDirectoryName = ".git"

	// warningReadDirectoryFormat is used when a directory cannot be read
	// during a walk.
	warningReadDirectoryFormat = "Warning: skipping directory %s: %v\n"

	// errorTargetOutsideProjectFormat reports a target that the tracked
	// listing cannot cover.
	errorTargetOutsideProjectFormat = "target %s is outside project root %s"
	// errorTrackedListingFormat reports a failed tracked-file listing call.
	errorTrackedListingFormat = "listing tracked files under %s: %w"
)

// DefaultTextExtensions is the comma-separated extension list applied when the
// caller requests neither an explicit list nor all-text collection.
const DefaultTextExtensions = ".php,.twig,.html,.htm,.blade.php,.js,.ts,.tsx,.jsx,.css,.scss,.sass," +
	".json,.yml,.yaml,.xml,.csv,.tsv,.sql,.md,.txt,.env,.ini,.conf,.toml," +
	".gitignore,.gitattributes,.editorconfig,.sh,.bash,.zsh,.ps1,.bat,.cmd"

// builtinCompoundSuffixes lists multi-part suffixes that must be requested
// explicitly; a file ending in one never matches through its final suffix
// alone.
var builtinCompoundSuffixes = []string{".blade.php"}

// CandidateFile is one file selected for dumping, identified by its absolute
// path and its forward-slash path relative to the dump target.
type CandidateFile struct {
	AbsolutePath string
	RelativePath string
}

// ExtensionPolicy decides whether a file name qualifies for collection. With
// AllText set the suffix list is ignored and binary detection at write time is
// authoritative.
type ExtensionPolicy struct {
	AllText    bool
	Extensions []string
}

// ParseExtensionList converts a comma-separated extension list into an
// ordered, de-duplicated, lower-cased slice. A missing leading dot is added.
func ParseExtensionList(commaSeparated string) []string {
	seenExtensions := make(map[string]struct{})
	var extensions []string
	for _, rawItem := range strings.Split(commaSeparated, ",") {
		item := strings.ToLower(strings.TrimSpace(rawItem))
		if item == "" {
			continue
		}
		if !strings.HasPrefix(item, ".") {
			item = "." + item
		}
		if _, exists := seenExtensions[item]; exists {
			continue
		}
		seenExtensions[item] = struct{}{}
		extensions = append(extensions, item)
	}
	return extensions
}

// Matches reports whether the file name satisfies the policy's suffix list.
// Compound suffixes are compared against the full lower-cased name; a file
// carrying a known compound suffix is only matched when that exact suffix was
// requested.
func (policy ExtensionPolicy) Matches(fileName string) bool {
	nameLower := strings.ToLower(fileName)

	for _, extension := range policy.Extensions {
		if strings.Count(extension, ".") > 1 && strings.HasSuffix(nameLower, extension) {
			return true
		}
	}
	for _, compoundSuffix := range builtinCompoundSuffixes {
		if strings.HasSuffix(nameLower, compoundSuffix) {
			return false
		}
	}

	finalSuffix := strings.ToLower(filepath.Ext(nameLower))
	for _, extension := range policy.Extensions {
		if extension == finalSuffix {
			return true
		}
	}
	return false
}

// Collector produces the ordered candidate file list for one dump run.
type Collector struct {
	Rules      rules.RuleSet
	Policy     ExtensionPolicy
	Classifier Classifier
}

// IsGitRepository reports whether the project root carries a .git entry.
func IsGitRepository(projectRoot string) bool {
	_, statError := os.Stat(filepath.Join(projectRoot, gitDirectoryName))
	return statError == nil
}

// GitAvailable reports whether the git executable is on the PATH.
func GitAvailable() bool {
	_, lookupError := exec.LookPath(gitExecutableName)
	return lookupError == nil
}

// CollectTracked lists version-control tracked files under targetRoot and
// filters them through the exclusion rules and extension policy. The caller
// falls back to CollectWalk when an error is returned or the result is empty.
func (collector Collector) CollectTracked(projectRoot string, targetRoot string) ([]CandidateFile, error) {
	targetRelative, relativeError := filepath.Rel(projectRoot, targetRoot)
	if relativeError != nil || strings.HasPrefix(targetRelative, "..") {
		return nil, fmt.Errorf(errorTargetOutsideProjectFormat, targetRoot, projectRoot)
	}
	targetRelativePosix := filepath.ToSlash(targetRelative)

	listCommand := exec.Command(gitExecutableName, "-C", projectRoot, "ls-files", targetRelativePosix)
	outputBytes, commandError := listCommand.Output()
	if commandError != nil {
		return nil, fmt.Errorf(errorTrackedListingFormat, targetRelativePosix, commandError)
	}

	var candidates []CandidateFile
	for _, line := range strings.Split(string(outputBytes), "\n") {
		trackedPath := strings.TrimSpace(line)
		if trackedPath == "" {
			continue
		}

		absolutePath := filepath.Join(projectRoot, filepath.FromSlash(trackedPath))
		fileInformation, statError := os.Stat(absolutePath)
		if statError != nil || !fileInformation.Mode().IsRegular() {
			continue
		}

		relativePath, candidateRelativeError := filepath.Rel(targetRoot, absolutePath)
		if candidateRelativeError != nil || strings.HasPrefix(relativePath, "..") {
			continue
		}
		relativePosix := filepath.ToSlash(relativePath)

		relativeParts := rules.SplitRelativePath(relativePosix)
		if collector.Rules.IsExcluded(relativeParts) {
			continue
		}
		if !collector.admits(filepath.Base(absolutePath)) {
			continue
		}

		candidates = append(candidates, CandidateFile{
			AbsolutePath: absolutePath,
			RelativePath: relativePosix,
		})
	}

	sortCandidates(candidates)
	return candidates, nil
}

// CollectWalk recursively traverses targetRoot, pruning excluded directories
// before descending into them.
func (collector Collector) CollectWalk(targetRoot string) ([]CandidateFile, error) {
	var candidates []CandidateFile
	collector.walkDirectory(targetRoot, nil, &candidates)
	sortCandidates(candidates)
	return candidates, nil
}

// walkDirectory appends qualifying files beneath directoryPath to candidates.
// Unreadable directories are reported to stderr and skipped.
func (collector Collector) walkDirectory(directoryPath string, relativeParts []string, candidates *[]CandidateFile) {
	directoryEntries, readError := os.ReadDir(directoryPath)
	if readError != nil {
		fmt.Fprintf(os.Stderr, warningReadDirectoryFormat, directoryPath, readError)
		return
	}

	for _, directoryEntry := range directoryEntries {
		entryName := directoryEntry.Name()
		entryRelativeParts := append(append([]string{}, relativeParts...), entryName)

		if directoryEntry.IsDir() {
			if collector.Rules.IsExcludedDirectoryName(entryName) {
				continue
			}
			if collector.Rules.IsExcluded(entryRelativeParts) {
				continue
			}
			collector.walkDirectory(filepath.Join(directoryPath, entryName), entryRelativeParts, candidates)
			continue
		}

		entryPath := filepath.Join(directoryPath, entryName)
		fileInformation, statError := os.Stat(entryPath)
		if statError != nil || !fileInformation.Mode().IsRegular() {
			continue
		}
		if collector.Rules.IsExcluded(entryRelativeParts) {
			continue
		}
		if !collector.walkAdmits(entryName) {
			continue
		}

		*candidates = append(*candidates, CandidateFile{
			AbsolutePath: entryPath,
			RelativePath: strings.Join(entryRelativeParts, "/"),
		})
	}
}

// admits applies the extension policy for the tracked-listing strategy. In
// all-text mode only the cheap blacklist pre-filter runs here; the classifier
// makes the authoritative call at write time.
func (collector Collector) admits(fileName string) bool {
	if collector.Policy.AllText {
		return !collector.Classifier.HasBlacklistedExtension(fileName)
	}
	return collector.Policy.Matches(fileName)
}

// walkAdmits applies the extension policy for the walk strategy. All-text
// walks admit everything and defer entirely to the classifier.
func (collector Collector) walkAdmits(fileName string) bool {
	if collector.Policy.AllText {
		return true
	}
	return collector.Policy.Matches(fileName)
}

// sortCandidates orders candidates by relative path for deterministic output
// independent of the collection strategy.
func sortCandidates(candidates []CandidateFile) {
	sort.Slice(candidates, func(firstIndex, secondIndex int) bool {
		return candidates[firstIndex].RelativePath < candidates[secondIndex].RelativePath
	})
}
