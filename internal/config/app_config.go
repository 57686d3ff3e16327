// Package config loads dump defaults from global and local configuration
// files discovered through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// LocalConfigFileName is the per-project configuration file.
	LocalConfigFileName = ".dirdump.yaml"
	// GlobalConfigDirectoryName is the directory under the user home holding
	// the global configuration.
	GlobalConfigDirectoryName = ".dirdump"
	// GlobalConfigFileName is the global configuration file name.
	GlobalConfigFileName = "config.yaml"
)

// LoadOptions controls how configuration files are discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds dump defaults loaded from configuration
// files. Pointer fields distinguish unset values from explicit false/zero.
type ApplicationConfiguration struct {
	Dump DumpConfiguration `mapstructure:"dump"`
}

// DumpConfiguration mirrors the command line surface of a dump run.
type DumpConfiguration struct {
	Format       string                 `mapstructure:"format"`
	Extensions   string                 `mapstructure:"extensions"`
	AllText      *bool                  `mapstructure:"all_text"`
	Exclude      []string               `mapstructure:"exclude"`
	AllFiles     *bool                  `mapstructure:"all_files"`
	MaxFileBytes *int64                 `mapstructure:"max_bytes"`
	Structure    StructureConfiguration `mapstructure:"structure"`
	Split        SplitConfiguration     `mapstructure:"split"`
	Tokens       TokenConfiguration     `mapstructure:"tokens"`
	Clipboard    *bool                  `mapstructure:"clipboard"`
}

// StructureConfiguration controls the structure listing defaults.
type StructureConfiguration struct {
	Enabled      *bool `mapstructure:"enabled"`
	MaxEntries   *int  `mapstructure:"max_entries"`
	ShowExcluded *bool `mapstructure:"show_excluded"`
}

// SplitConfiguration controls output splitting defaults. Bytes wins over
// Megabytes when both are set.
type SplitConfiguration struct {
	Bytes     *int64 `mapstructure:"bytes"`
	Megabytes *int64 `mapstructure:"megabytes"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// LoadApplicationConfiguration merges the global configuration under the user
// home with the local configuration in the working directory. The local file
// wins for every value it sets.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, GlobalConfigDirectoryName, GlobalConfigFileName)
		globalConfiguration, loadError := loadConfigurationFromPath(globalPath, false)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfiguration)
	}

	localPath, resolveError := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveError != nil {
		return ApplicationConfiguration{}, resolveError
	}
	if localPath != "" {
		localConfiguration, loadError := loadConfigurationFromPath(localPath, options.ExplicitFilePath != "")
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(localConfiguration)
	}

	return merged, nil
}

// resolveLocalConfigPath returns the local configuration path, honoring an
// explicit override.
func resolveLocalConfigPath(workingDirectory string, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolutePath, absoluteError := filepath.Abs(explicitPath)
			if absoluteError != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, absoluteError)
			}
			return absolutePath, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, LocalConfigFileName), nil
}

// loadConfigurationFromPath reads one configuration file. A missing file
// yields an empty configuration unless the path is required, as it is when
// the user named it explicitly.
func loadConfigurationFromPath(configurationPath string, required bool) (ApplicationConfiguration, error) {
	if configurationPath == "" {
		return ApplicationConfiguration{}, nil
	}
	fileInformation, statError := os.Stat(configurationPath)
	if statError != nil {
		if os.IsNotExist(statError) {
			if required {
				return ApplicationConfiguration{}, fmt.Errorf("configuration file %s does not exist", configurationPath)
			}
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", configurationPath, statError)
	}
	if fileInformation.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", configurationPath)
	}

	reader := viper.New()
	reader.SetConfigFile(configurationPath)
	if readError := reader.ReadInConfig(); readError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", configurationPath, readError)
	}
	var configuration ApplicationConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", configurationPath, decodeError)
	}
	return configuration, nil
}

// Merge overlays override onto the receiver and returns the combined
// configuration.
func (configuration ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := configuration
	result.Dump = result.Dump.merge(override.Dump)
	return result
}

func (configuration DumpConfiguration) merge(override DumpConfiguration) DumpConfiguration {
	result := configuration
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Extensions != "" {
		result.Extensions = override.Extensions
	}
	if override.AllText != nil {
		result.AllText = cloneBool(override.AllText)
	}
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, override.Exclude...)
	}
	if override.AllFiles != nil {
		result.AllFiles = cloneBool(override.AllFiles)
	}
	if override.MaxFileBytes != nil {
		result.MaxFileBytes = cloneInt64(override.MaxFileBytes)
	}
	result.Structure = result.Structure.merge(override.Structure)
	result.Split = result.Split.merge(override.Split)
	result.Tokens = result.Tokens.merge(override.Tokens)
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func (configuration StructureConfiguration) merge(override StructureConfiguration) StructureConfiguration {
	result := configuration
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.MaxEntries != nil {
		result.MaxEntries = cloneInt(override.MaxEntries)
	}
	if override.ShowExcluded != nil {
		result.ShowExcluded = cloneBool(override.ShowExcluded)
	}
	return result
}

func (configuration SplitConfiguration) merge(override SplitConfiguration) SplitConfiguration {
	result := configuration
	if override.Bytes != nil {
		result.Bytes = cloneInt64(override.Bytes)
	}
	if override.Megabytes != nil {
		result.Megabytes = cloneInt64(override.Megabytes)
	}
	return result
}

func (configuration TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := configuration
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

// SplitBudgetBytes resolves the effective split budget; explicit bytes win
// over megabytes.
func (configuration SplitConfiguration) SplitBudgetBytes() int64 {
	if configuration.Bytes != nil && *configuration.Bytes > 0 {
		return *configuration.Bytes
	}
	if configuration.Megabytes != nil && *configuration.Megabytes > 0 {
		return *configuration.Megabytes * 1024 * 1024
	}
	return 0
}
