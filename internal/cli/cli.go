// Package cli provides the command line interface for the dirdump tool.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pigokitchen/dirdump/internal/config"
	"github.com/pigokitchen/dirdump/internal/dump"
	"github.com/pigokitchen/dirdump/internal/rules"
	"github.com/pigokitchen/dirdump/internal/scan"
	"github.com/pigokitchen/dirdump/internal/services/clipboard"
	"github.com/pigokitchen/dirdump/internal/tokenizer"
	"github.com/pigokitchen/dirdump/internal/utils"
)

const (
	formatFlagName         = "format"
	extensionsFlagName     = "ext"
	allTextFlagName        = "all-text"
	excludeFlagName        = "exclude"
	allFilesFlagName       = "all-files"
	maxBytesFlagName       = "max-bytes"
	noStructureFlagName    = "no-structure"
	structureMaxFlagName   = "structure-max"
	showExcludedFlagName   = "show-excluded"
	splitBytesFlagName     = "split-bytes"
	splitMegabytesFlagName = "split-mb"
	copyFlagName           = "copy"
	tokensFlagName         = "tokens"
	modelFlagName          = "model"
	configFileFlagName     = "config"
	dryRunFlagName         = "dry-run"
	versionFlagName        = "version"
	versionTemplate        = "dirdump version: %s\n"
	rootUse                = "dirdump [project] [target] [output]"
	rootShortDescription   = "dump directory structure and file contents into a flat document"
	rootLongDescription    = `dirdump collects a filtered set of files under a project directory and
serializes their structure and contents into one flat md or txt document,
ready for language-model consumption. Inside a git repository the tracked
file listing is used; otherwise the filesystem is walked. Binary files are
detected and skipped, and the output can be split into numbered parts with
--split-bytes or --split-mb.`
	rootUsageExample = `  # Dump the whole project next to it as project_dump.md
  dirdump .

  # Dump the app directory of a project, every text-like file
  dirdump ~/projects/shop app --all-text

  # Split a large dump into 2 MB parts without the structure block
  dirdump . . /tmp/shop_dump.md --split-mb 2 --no-structure

  # Exclude extra directories on top of the defaults
  dirdump . . --exclude tmp,public/uploads`

	formatFlagDescription         = "output format (md or txt)"
	extensionsFlagDescription     = "comma-separated extension list; ignored with --all-text"
	allTextFlagDescription        = "include every non-binary text-like file"
	excludeFlagDescription        = "comma-separated exclusions: directory names or path prefixes"
	allFilesFlagDescription       = "walk the filesystem even inside a git repository"
	maxBytesFlagDescription       = "skip files larger than this many bytes (0 = unlimited)"
	noStructureFlagDescription    = "omit the structure listing"
	structureMaxFlagDescription   = "limit structure entries (0 = unlimited)"
	showExcludedFlagDescription   = "render excluded directories as collapsed entries"
	splitBytesFlagDescription     = "split output into parts of at most this many bytes"
	splitMegabytesFlagDescription = "split output into parts of at most this many megabytes"
	copyFlagDescription           = "copy the finished dump to the clipboard"
	tokensFlagDescription         = "report the document token count"
	modelFlagDescription          = "tokenizer model for --tokens"
	configFileFlagDescription     = "path to a configuration file"
	dryRunFlagDescription         = "resolve and report settings without writing anything"
	versionFlagDescription        = "display application version"

	defaultProjectArgument  = "."
	defaultTargetArgument   = "."
	wholeProjectTarget      = "."
	wholeProjectTargetSlash = "./"
	defaultOutputBaseName   = "project_dump"

	invalidFormatMessage         = "invalid format value '%s': must be md or txt"
	errorProjectDirectoryFormat  = "project directory not found: %s"
	errorTargetDirectoryFormat   = "target directory not found: %s"
	errorOutputDirectoryFormat   = "creating output directory %s: %w"
	errorWorkingDirectoryFormat  = "unable to determine working directory: %w"
	errorResolvePathFormat       = "resolving path %s: %w"
	errorLoadConfigurationFormat = "loading configuration: %w"
	warningClipboardCopyFormat   = "Warning: failed to copy dump to clipboard: %v\n"
	warningTokenCountFormat      = "Warning: failed to count document tokens: %v\n"
	warningReadPartFormat        = "Warning: failed to read part %s: %v\n"
	dryRunMessage                = "dry run; nothing written"
	completionMessage            = "dump complete"
	tokensMessage                = "document tokens"
)

// dumpFlags stores raw flag values before configuration resolution.
type dumpFlags struct {
	format         string
	extensions     string
	allText        bool
	exclusions     string
	allFiles       bool
	maxBytes       int64
	noStructure    bool
	structureMax   int
	showExcluded   bool
	splitBytes     int64
	splitMegabytes int64
	copyEnabled    bool
	tokensEnabled  bool
	tokenModel     string
	configFilePath string
	dryRun         bool
}

// Execute runs the dirdump application.
func Execute(logger *zap.Logger) error {
	rootCommand := createRootCommand(logger)
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command; dumping is the root
// action, so no subcommands exist.
func createRootCommand(logger *zap.Logger) *cobra.Command {
	var showVersion bool
	var flagValues dumpFlags

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Example:      rootUsageExample,
		Args:         cobra.MaximumNArgs(3),
		SilenceUsage: true,
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return runDump(command, arguments, flagValues, logger)
		},
	}

	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.Flags().StringVar(&flagValues.format, formatFlagName, dump.FormatMarkdown, formatFlagDescription)
	rootCommand.Flags().StringVar(&flagValues.extensions, extensionsFlagName, scan.DefaultTextExtensions, extensionsFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.allText, allTextFlagName, false, allTextFlagDescription)
	rootCommand.Flags().StringVar(&flagValues.exclusions, excludeFlagName, "", excludeFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.allFiles, allFilesFlagName, false, allFilesFlagDescription)
	rootCommand.Flags().Int64Var(&flagValues.maxBytes, maxBytesFlagName, 0, maxBytesFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.noStructure, noStructureFlagName, false, noStructureFlagDescription)
	rootCommand.Flags().IntVar(&flagValues.structureMax, structureMaxFlagName, 0, structureMaxFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.showExcluded, showExcludedFlagName, false, showExcludedFlagDescription)
	rootCommand.Flags().Int64Var(&flagValues.splitBytes, splitBytesFlagName, 0, splitBytesFlagDescription)
	rootCommand.Flags().Int64Var(&flagValues.splitMegabytes, splitMegabytesFlagName, 0, splitMegabytesFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.copyEnabled, copyFlagName, false, copyFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	rootCommand.Flags().StringVar(&flagValues.tokenModel, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	rootCommand.Flags().StringVar(&flagValues.configFilePath, configFileFlagName, "", configFileFlagDescription)
	rootCommand.Flags().BoolVar(&flagValues.dryRun, dryRunFlagName, false, dryRunFlagDescription)
	return rootCommand
}

// runDump resolves arguments, flags, and configuration into dump options and
// executes the run.
func runDump(command *cobra.Command, arguments []string, flagValues dumpFlags, logger *zap.Logger) error {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(errorWorkingDirectoryFormat, workingDirectoryError)
	}

	applicationConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: flagValues.configFilePath,
	})
	if configurationError != nil {
		return fmt.Errorf(errorLoadConfigurationFormat, configurationError)
	}
	settings := resolveSettings(command, flagValues, applicationConfiguration.Dump)

	if !isSupportedFormat(settings.format) {
		return fmt.Errorf(invalidFormatMessage, settings.format)
	}

	projectArgument := defaultProjectArgument
	targetArgument := defaultTargetArgument
	outputArgument := ""
	if len(arguments) > 0 {
		projectArgument = arguments[0]
	}
	if len(arguments) > 1 {
		targetArgument = arguments[1]
	}
	if len(arguments) > 2 {
		outputArgument = arguments[2]
	}

	projectRoot, projectError := filepath.Abs(projectArgument)
	if projectError != nil {
		return fmt.Errorf(errorResolvePathFormat, projectArgument, projectError)
	}
	if !isDirectory(projectRoot) {
		return fmt.Errorf(errorProjectDirectoryFormat, projectRoot)
	}

	targetRoot, targetError := resolveTarget(projectRoot, targetArgument)
	if targetError != nil {
		return targetError
	}
	if !isDirectory(targetRoot) {
		return fmt.Errorf(errorTargetDirectoryFormat, targetRoot)
	}

	outputPath, outputError := resolveOutputPath(workingDirectory, projectRoot, targetRoot, outputArgument, settings.format)
	if outputError != nil {
		return outputError
	}

	exclusionTokens := normalizeExcludeTokens(rules.ParseExclusionTokens(settings.exclusions), projectRoot, targetRoot)
	ruleSet := rules.NewRuleSet(exclusionTokens)

	extensionPolicy := scan.ExtensionPolicy{AllText: settings.allText}
	if !settings.allText {
		extensionPolicy.Extensions = scan.ParseExtensionList(settings.extensions)
	}

	options := dump.Options{
		ProjectRoot:              projectRoot,
		TargetRoot:               targetRoot,
		OutputPath:               outputPath,
		Format:                   settings.format,
		Rules:                    ruleSet,
		Policy:                   extensionPolicy,
		Classifier:               scan.NewClassifier(),
		ForceWalk:                settings.allFiles,
		MaxFileBytes:             settings.maxBytes,
		StructureEnabled:         !settings.noStructure,
		StructureMaxEntries:      settings.structureMax,
		StructureIncludeExcluded: settings.showExcluded,
		SplitBudgetBytes:         settings.splitBudgetBytes,
	}

	if flagValues.dryRun {
		logger.Info(dryRunMessage,
			zap.String("project", projectRoot),
			zap.String("target", targetRoot),
			zap.String("output", outputPath),
			zap.String("format", settings.format),
			zap.Bool("all_text", settings.allText),
			zap.Strings("exclude", exclusionTokens),
			zap.Int64("split_bytes", settings.splitBudgetBytes),
		)
		return nil
	}

	if makeDirectoryError := os.MkdirAll(filepath.Dir(outputPath), 0o755); makeDirectoryError != nil {
		return fmt.Errorf(errorOutputDirectoryFormat, filepath.Dir(outputPath), makeDirectoryError)
	}

	result, runError := dump.Run(options)
	if runError != nil {
		return runError
	}

	reportCompletion(logger, result)

	if documentTextNeeded(settings) {
		documentText := readParts(result.PartPaths)
		if settings.tokensEnabled {
			reportTokens(logger, documentText, settings.tokenModel)
		}
		if settings.copyEnabled {
			if copyError := clipboard.NewService().Copy(documentText); copyError != nil {
				fmt.Fprintf(os.Stderr, warningClipboardCopyFormat, copyError)
			}
		}
	}
	return nil
}

// documentTextNeeded reports whether any enabled feature consumes the
// assembled document text; without one the parts are never read back.
func documentTextNeeded(settings resolvedSettings) bool {
	return settings.tokensEnabled || settings.copyEnabled
}

// resolvedSettings holds the effective run settings after flag and
// configuration precedence is applied.
type resolvedSettings struct {
	format           string
	extensions       string
	allText          bool
	exclusions       string
	allFiles         bool
	maxBytes         int64
	noStructure      bool
	structureMax     int
	showExcluded     bool
	splitBudgetBytes int64
	copyEnabled      bool
	tokensEnabled    bool
	tokenModel       string
}

// resolveSettings applies precedence: explicitly set flags win, then
// configuration file values, then built-in defaults.
func resolveSettings(command *cobra.Command, flagValues dumpFlags, configuration config.DumpConfiguration) resolvedSettings {
	settings := resolvedSettings{
		format:        flagValues.format,
		extensions:    flagValues.extensions,
		allText:       flagValues.allText,
		exclusions:    flagValues.exclusions,
		allFiles:      flagValues.allFiles,
		maxBytes:      flagValues.maxBytes,
		noStructure:   flagValues.noStructure,
		structureMax:  flagValues.structureMax,
		showExcluded:  flagValues.showExcluded,
		copyEnabled:   flagValues.copyEnabled,
		tokensEnabled: flagValues.tokensEnabled,
		tokenModel:    flagValues.tokenModel,
	}

	flagSet := command.Flags()
	if !flagSet.Changed(formatFlagName) && configuration.Format != "" {
		settings.format = configuration.Format
	}
	if !flagSet.Changed(extensionsFlagName) && configuration.Extensions != "" {
		settings.extensions = configuration.Extensions
	}
	if !flagSet.Changed(allTextFlagName) && configuration.AllText != nil {
		settings.allText = *configuration.AllText
	}
	if !flagSet.Changed(excludeFlagName) && len(configuration.Exclude) > 0 {
		settings.exclusions = strings.Join(configuration.Exclude, ",")
	}
	if !flagSet.Changed(allFilesFlagName) && configuration.AllFiles != nil {
		settings.allFiles = *configuration.AllFiles
	}
	if !flagSet.Changed(maxBytesFlagName) && configuration.MaxFileBytes != nil {
		settings.maxBytes = *configuration.MaxFileBytes
	}
	if !flagSet.Changed(noStructureFlagName) && configuration.Structure.Enabled != nil {
		settings.noStructure = !*configuration.Structure.Enabled
	}
	if !flagSet.Changed(structureMaxFlagName) && configuration.Structure.MaxEntries != nil {
		settings.structureMax = *configuration.Structure.MaxEntries
	}
	if !flagSet.Changed(showExcludedFlagName) && configuration.Structure.ShowExcluded != nil {
		settings.showExcluded = *configuration.Structure.ShowExcluded
	}
	if !flagSet.Changed(copyFlagName) && configuration.Clipboard != nil {
		settings.copyEnabled = *configuration.Clipboard
	}
	if !flagSet.Changed(tokensFlagName) && configuration.Tokens.Enabled != nil {
		settings.tokensEnabled = *configuration.Tokens.Enabled
	}
	if !flagSet.Changed(modelFlagName) && configuration.Tokens.Model != "" {
		settings.tokenModel = configuration.Tokens.Model
	}

	settings.splitBudgetBytes = resolveSplitBudget(flagSet.Changed(splitBytesFlagName), flagValues.splitBytes,
		flagSet.Changed(splitMegabytesFlagName), flagValues.splitMegabytes, configuration.Split)
	settings.format = strings.ToLower(settings.format)
	return settings
}

// resolveSplitBudget picks the effective split budget; explicit bytes win
// over megabytes, flags win over configuration.
func resolveSplitBudget(bytesChanged bool, splitBytes int64, megabytesChanged bool, splitMegabytes int64, configuration config.SplitConfiguration) int64 {
	if bytesChanged && splitBytes > 0 {
		return splitBytes
	}
	if megabytesChanged && splitMegabytes > 0 {
		return splitMegabytes * 1024 * 1024
	}
	if bytesChanged || megabytesChanged {
		return 0
	}
	return configuration.SplitBudgetBytes()
}

// isSupportedFormat reports whether the output format is recognized.
func isSupportedFormat(format string) bool {
	switch strings.ToLower(format) {
	case dump.FormatMarkdown, dump.FormatText:
		return true
	default:
		return false
	}
}

// isDirectory reports whether the path exists and is a directory.
func isDirectory(path string) bool {
	fileInformation, statError := os.Stat(path)
	return statError == nil && fileInformation.IsDir()
}

// resolveTarget resolves the target argument against the project root. The
// arguments "." and "./" select the whole project; absolute targets are used
// as given.
func resolveTarget(projectRoot string, targetArgument string) (string, error) {
	trimmedTarget := strings.TrimSpace(targetArgument)
	if trimmedTarget == wholeProjectTarget || trimmedTarget == wholeProjectTargetSlash || trimmedTarget == "" {
		return projectRoot, nil
	}
	if filepath.IsAbs(trimmedTarget) {
		return filepath.Clean(trimmedTarget), nil
	}
	return filepath.Clean(filepath.Join(projectRoot, trimmedTarget)), nil
}

// resolveOutputPath resolves the output argument, falling back to a default
// name beside the project root. Relative outputs resolve against the working
// directory.
func resolveOutputPath(workingDirectory string, projectRoot string, targetRoot string, outputArgument string, format string) (string, error) {
	if outputArgument != "" {
		if filepath.IsAbs(outputArgument) {
			return filepath.Clean(outputArgument), nil
		}
		return filepath.Clean(filepath.Join(workingDirectory, outputArgument)), nil
	}

	outputBaseName := defaultOutputBaseName
	if targetRoot != projectRoot {
		outputBaseName = filepath.Base(targetRoot) + "_dump"
	}
	return filepath.Join(projectRoot, outputBaseName+"."+format), nil
}

// normalizeExcludeTokens rewrites path-like exclusion tokens as
// target-relative prefixes when they resolve inside the target subtree.
// Directory-name tokens pass through unchanged.
func normalizeExcludeTokens(tokens []string, projectRoot string, targetRoot string) []string {
	var normalized []string
	for _, token := range tokens {
		candidate := strings.ReplaceAll(token, "\\", "/")
		if !strings.Contains(candidate, "/") {
			normalized = append(normalized, candidate)
			continue
		}

		var resolvedPaths []string
		if filepath.IsAbs(candidate) {
			resolvedPaths = []string{filepath.Clean(candidate)}
		} else {
			resolvedPaths = []string{
				filepath.Clean(filepath.Join(projectRoot, candidate)),
				filepath.Clean(filepath.Join(targetRoot, candidate)),
			}
		}

		rewritten := ""
		for _, resolvedPath := range resolvedPaths {
			relativePath, relativeError := filepath.Rel(targetRoot, resolvedPath)
			if relativeError != nil || strings.HasPrefix(relativePath, "..") || relativePath == "." {
				continue
			}
			rewritten = filepath.ToSlash(relativePath)
			break
		}

		if rewritten != "" {
			normalized = append(normalized, rewritten)
			continue
		}
		trimmed := strings.Trim(candidate, "/")
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// reportCompletion logs the run outcome including every emitted part and its
// size.
func reportCompletion(logger *zap.Logger, result dump.Result) {
	var totalBytes int64
	for _, partPath := range result.PartPaths {
		if fileInformation, statError := os.Stat(partPath); statError == nil {
			totalBytes += fileInformation.Size()
		}
	}
	logger.Info(completionMessage,
		zap.Strings("output", result.PartPaths),
		zap.Int("files_written", result.FilesWritten),
		zap.Int("skipped_binary", result.SkippedBinary),
		zap.Int("skipped_large", result.SkippedLarge),
		zap.String("strategy", result.Strategy),
		zap.String("mode", result.Mode),
		zap.String("total_size", utils.FormatFileSize(totalBytes)),
	)
}

// readParts concatenates the content of every part in emission order.
func readParts(partPaths []string) string {
	var documentBuilder strings.Builder
	for _, partPath := range partPaths {
		partBytes, readError := os.ReadFile(partPath)
		if readError != nil {
			fmt.Fprintf(os.Stderr, warningReadPartFormat, partPath, readError)
			continue
		}
		documentBuilder.Write(partBytes)
	}
	return documentBuilder.String()
}

// reportTokens counts and logs the document token count.
func reportTokens(logger *zap.Logger, documentText string, modelName string) {
	counter, counterError := tokenizer.NewCounter(modelName)
	if counterError != nil {
		fmt.Fprintf(os.Stderr, warningTokenCountFormat, counterError)
		return
	}
	tokenCount, countError := counter.CountString(documentText)
	if countError != nil {
		fmt.Fprintf(os.Stderr, warningTokenCountFormat, countError)
		return
	}
	logger.Info(tokensMessage,
		zap.Int("tokens", tokenCount),
		zap.String("model", counter.Name()),
	)
}
