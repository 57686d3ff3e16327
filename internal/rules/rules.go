// Package rules implements directory-name and path-prefix exclusion rules
// applied to paths relative to a dump target.
package rules

import "strings"

// pathSegmentSeparator joins relative path segments for prefix comparison.
const pathSegmentSeparator = "/"

// DefaultExcludedDirectoryNames lists directory names excluded anywhere in a
// relative path unless the caller overrides them.
var DefaultExcludedDirectoryNames = []string{
	".git",
	"vendor",
	"node_modules",
	"storage",
	"var",
	".idea",
	".vscode",
	"__pycache__",
	".pytest_cache",
	".sass-cache",
	"coverage",
	".cache",
	".DS_Store",
}

// DefaultExcludedPathPrefixes lists path prefixes, relative to the dump
// target, excluded unless the caller overrides them.
var DefaultExcludedPathPrefixes = []string{
	"bootstrap/cache",
	"public/build",
	"dist",
	"build",
}

// RuleSet holds the merged exclusion rules for one dump run. It is immutable
// after construction and performs no I/O.
type RuleSet struct {
	directoryNames map[string]struct{}
	prefixRules    [][]string
}

// NewRuleSet merges the default exclusion rules with user-supplied tokens.
// A token containing a path separator becomes a prefix rule; any other token
// becomes a directory-name rule. Prefix rules keep first-seen order with
// duplicates removed.
func NewRuleSet(userTokens []string) RuleSet {
	directoryNames := make(map[string]struct{}, len(DefaultExcludedDirectoryNames))
	for _, directoryName := range DefaultExcludedDirectoryNames {
		directoryNames[directoryName] = struct{}{}
	}

	var prefixRules [][]string
	for _, defaultPrefix := range DefaultExcludedPathPrefixes {
		prefixRules = append(prefixRules, strings.Split(defaultPrefix, pathSegmentSeparator))
	}

	for _, rawToken := range userTokens {
		token := strings.TrimSpace(rawToken)
		if token == "" {
			continue
		}
		token = strings.ReplaceAll(token, "\\", pathSegmentSeparator)
		if strings.Contains(token, pathSegmentSeparator) {
			var segments []string
			for _, segment := range strings.Split(token, pathSegmentSeparator) {
				if segment != "" {
					segments = append(segments, segment)
				}
			}
			if len(segments) > 0 {
				prefixRules = append(prefixRules, segments)
			}
			continue
		}
		directoryNames[token] = struct{}{}
	}

	return RuleSet{
		directoryNames: directoryNames,
		prefixRules:    deduplicatePrefixRules(prefixRules),
	}
}

// ParseExclusionTokens splits a comma-separated exclusion list into tokens,
// dropping empty entries.
func ParseExclusionTokens(commaSeparated string) []string {
	var tokens []string
	for _, rawToken := range strings.Split(commaSeparated, ",") {
		token := strings.TrimSpace(rawToken)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// IsExcluded reports whether the path described by relativeParts is excluded.
// Directory-name rules apply to every segment except the final one, so a file
// named like an excluded directory is still kept. Prefix rules match the whole
// relative path on clean segment boundaries only.
func (ruleSet RuleSet) IsExcluded(relativeParts []string) bool {
	if len(relativeParts) == 0 {
		return false
	}

	for _, directorySegment := range relativeParts[:len(relativeParts)-1] {
		if _, isExcluded := ruleSet.directoryNames[directorySegment]; isExcluded {
			return true
		}
	}

	for _, prefixSegments := range ruleSet.prefixRules {
		if len(relativeParts) < len(prefixSegments) {
			continue
		}
		if segmentsEqual(relativeParts[:len(prefixSegments)], prefixSegments) {
			return true
		}
	}

	return false
}

// IsExcludedDirectoryName reports whether the bare directory name matches a
// name rule. Used by traversal code to prune before recursing.
func (ruleSet RuleSet) IsExcludedDirectoryName(directoryName string) bool {
	_, isExcluded := ruleSet.directoryNames[directoryName]
	return isExcluded
}

// SplitRelativePath converts a forward-slash relative path into its segments.
func SplitRelativePath(relativePath string) []string {
	normalizedPath := strings.ReplaceAll(relativePath, "\\", pathSegmentSeparator)
	var segments []string
	for _, segment := range strings.Split(normalizedPath, pathSegmentSeparator) {
		if segment != "" && segment != "." {
			segments = append(segments, segment)
		}
	}
	return segments
}

// segmentsEqual reports whether two segment slices are identical.
func segmentsEqual(pathSegments, prefixSegments []string) bool {
	for segmentIndex, prefixSegment := range prefixSegments {
		if pathSegments[segmentIndex] != prefixSegment {
			return false
		}
	}
	return true
}

// deduplicatePrefixRules removes duplicate prefix rules while preserving the
// first occurrence of each rule.
func deduplicatePrefixRules(prefixRules [][]string) [][]string {
	seenRules := make(map[string]struct{}, len(prefixRules))
	result := make([][]string, 0, len(prefixRules))
	for _, prefixSegments := range prefixRules {
		joinedRule := strings.Join(prefixSegments, pathSegmentSeparator)
		if _, exists := seenRules[joinedRule]; exists {
			continue
		}
		seenRules[joinedRule] = struct{}{}
		result = append(result, prefixSegments)
	}
	return result
}
