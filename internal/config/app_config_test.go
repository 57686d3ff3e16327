package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfigFile writes configuration content, failing the test on error.
func writeConfigFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// TestLoadApplicationConfigurationLocalFile verifies decoding of a local
// configuration file.
func TestLoadApplicationConfigurationLocalFile(testingHandle *testing.T) {
	testingHandle.Setenv("HOME", testingHandle.TempDir())
	workingDirectory := testingHandle.TempDir()
	writeConfigFile(testingHandle, filepath.Join(workingDirectory, LocalConfigFileName), `
dump:
  format: txt
  all_text: true
  exclude:
    - tmp
    - public/uploads
  structure:
    enabled: false
  split:
    megabytes: 2
`)

	configuration, loadError := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory})
	if loadError != nil {
		testingHandle.Fatalf("LoadApplicationConfiguration failed: %v", loadError)
	}

	if configuration.Dump.Format != "txt" {
		testingHandle.Fatalf("Format = %q, want txt", configuration.Dump.Format)
	}
	if configuration.Dump.AllText == nil || !*configuration.Dump.AllText {
		testingHandle.Fatalf("AllText not decoded: %+v", configuration.Dump)
	}
	if len(configuration.Dump.Exclude) != 2 {
		testingHandle.Fatalf("Exclude = %v, want two entries", configuration.Dump.Exclude)
	}
	if configuration.Dump.Structure.Enabled == nil || *configuration.Dump.Structure.Enabled {
		testingHandle.Fatalf("Structure.Enabled not decoded: %+v", configuration.Dump.Structure)
	}
	if budget := configuration.Dump.Split.SplitBudgetBytes(); budget != 2*1024*1024 {
		testingHandle.Fatalf("SplitBudgetBytes = %d, want 2 MiB", budget)
	}
}

// TestLoadApplicationConfigurationMissingFile verifies that absent files
// yield an empty configuration without error.
func TestLoadApplicationConfigurationMissingFile(testingHandle *testing.T) {
	testingHandle.Setenv("HOME", testingHandle.TempDir())
	configuration, loadError := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: testingHandle.TempDir()})
	if loadError != nil {
		testingHandle.Fatalf("LoadApplicationConfiguration failed: %v", loadError)
	}
	if configuration.Dump.Format != "" || configuration.Dump.AllText != nil {
		testingHandle.Fatalf("expected empty configuration, got %+v", configuration.Dump)
	}
}

// TestLoadApplicationConfigurationMissingExplicitFile verifies that a
// nonexistent explicitly named configuration file is an error rather than a
// silently empty configuration.
func TestLoadApplicationConfigurationMissingExplicitFile(testingHandle *testing.T) {
	testingHandle.Setenv("HOME", testingHandle.TempDir())
	workingDirectory := testingHandle.TempDir()

	_, loadError := LoadApplicationConfiguration(LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: "no-such-config.yaml",
	})
	if loadError == nil {
		testingHandle.Fatal("expected error for missing explicit configuration file")
	}
	if !strings.Contains(loadError.Error(), "no-such-config.yaml") {
		testingHandle.Fatalf("error does not name the missing file: %v", loadError)
	}
}

// TestMergePrefersOverride verifies that the local overlay wins for values it
// sets while preserving the rest.
func TestMergePrefersOverride(testingHandle *testing.T) {
	baseAllText := true
	baseConfiguration := ApplicationConfiguration{Dump: DumpConfiguration{
		Format:  "md",
		AllText: &baseAllText,
		Exclude: []string{"tmp"},
	}}
	overrideConfiguration := ApplicationConfiguration{Dump: DumpConfiguration{
		Format: "txt",
	}}

	merged := baseConfiguration.Merge(overrideConfiguration)
	if merged.Dump.Format != "txt" {
		testingHandle.Fatalf("Format = %q, want override txt", merged.Dump.Format)
	}
	if merged.Dump.AllText == nil || !*merged.Dump.AllText {
		testingHandle.Fatalf("AllText lost in merge: %+v", merged.Dump)
	}
	if len(merged.Dump.Exclude) != 1 || merged.Dump.Exclude[0] != "tmp" {
		testingHandle.Fatalf("Exclude lost in merge: %v", merged.Dump.Exclude)
	}
}

// TestSplitBudgetBytesPrecedence verifies that explicit bytes win over
// megabytes.
func TestSplitBudgetBytesPrecedence(testingHandle *testing.T) {
	explicitBytes := int64(12345)
	megabytes := int64(3)
	splitConfiguration := SplitConfiguration{Bytes: &explicitBytes, Megabytes: &megabytes}
	if budget := splitConfiguration.SplitBudgetBytes(); budget != explicitBytes {
		testingHandle.Fatalf("SplitBudgetBytes = %d, want %d", budget, explicitBytes)
	}
}
