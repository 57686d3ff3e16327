package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const unknownVersion = "unknown"

// gitDirectoryName marks the repository root when falling back to git
// describe for version information.
const gitDirectoryName = ".git"

// GetApplicationVersion determines the application version from Go build
// info, falling back to git describe when running from a source checkout.
func GetApplicationVersion() string {
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if buildInfoAvailable && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}

	repositoryRoot, repositoryRootError := findGitDirectory(".")
	if repositoryRootError == nil && repositoryRoot != "" {
		// #nosec G204
		describeExactCommand := exec.Command("git", "describe", "--tags", "--exact-match")
		describeExactCommand.Dir = repositoryRoot
		describeExactOutput, describeExactError := describeExactCommand.Output()
		if describeExactError == nil && len(describeExactOutput) > 0 {
			return strings.TrimSpace(string(describeExactOutput))
		}

		// #nosec G204
		describeLongCommand := exec.Command("git", "describe", "--tags", "--long", "--dirty")
		describeLongCommand.Dir = repositoryRoot
		describeLongOutput, describeLongError := describeLongCommand.Output()
		if describeLongError == nil && len(describeLongOutput) > 0 {
			return strings.TrimSpace(string(describeLongOutput))
		}
	}

	return unknownVersion
}

// findGitDirectory searches upward from the starting directory for a
// directory containing a .git folder.
func findGitDirectory(startDirectory string) (string, error) {
	absoluteStartDirectory, absoluteError := filepath.Abs(startDirectory)
	if absoluteError != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", startDirectory, absoluteError)
	}

	currentDirectory := absoluteStartDirectory
	for {
		gitPath := filepath.Join(currentDirectory, gitDirectoryName)
		fileInformation, statError := os.Stat(gitPath)
		if statError == nil && fileInformation.IsDir() {
			return currentDirectory, nil
		}

		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			break
		}
		currentDirectory = parentDirectory
	}

	return "", fmt.Errorf("%s directory not found in or above %s", gitDirectoryName, absoluteStartDirectory)
}
