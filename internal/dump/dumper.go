package dump

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pigokitchen/dirdump/internal/rules"
	"github.com/pigokitchen/dirdump/internal/scan"
)

const (
	// FormatMarkdown fences file content with a language tag.
	FormatMarkdown = "md"
	// FormatText emits file content without fencing.
	FormatText = "txt"

	// ModeAllText reports that collection relied solely on binary detection.
	ModeAllText = "all-text"
	// ModeExtensionFilter reports that collection used the suffix list.
	ModeExtensionFilter = "ext-filter"

	// headerDirectoryLabel opens the header with the target directory name.
	headerDirectoryLabel = "ディレクトリ:"
	// headerTargetLabel names the full target path in the header.
	headerTargetLabel = "対象:"
	// headerOutputLabel names the output path in the header.
	headerOutputLabel = "出力:"
	// structureHeading opens the structure block.
	structureHeading = "構造:"
	// fileNameLabel opens each file section.
	fileNameLabel = "ファイル名:"
	// filePathLabel names the file's relative directory.
	filePathLabel = "パス:"
	// fileContentLabel precedes the file content.
	fileContentLabel = "内容"
	// footerWrittenLabel counts emitted files.
	footerWrittenLabel = "出力ファイル数: "
	// footerSkippedBinaryLabel counts files skipped as binary.
	footerSkippedBinaryLabel = "スキップ（バイナリ判定）: "
	// footerSkippedLargeLabel counts files skipped for exceeding the size cap.
	footerSkippedLargeLabel = "スキップ（max-bytes超過）: "
	// footerStrategyLabel names the collection strategy used.
	footerStrategyLabel = "収集方式: "
	// footerModeLabel names the content-scope mode used.
	footerModeLabel = "モード: "

	// sectionSeparator closes the structure block and every file section.
	sectionSeparator = "---\n\n"
	// codeFence delimits file content in markdown format.
	codeFence = "```"

	// warningStatFileFormat is used when a candidate cannot be sized.
	warningStatFileFormat = "Warning: unable to stat %s: %v\n"
)

// Options configures one dump run. Paths are absolute and already validated.
type Options struct {
	ProjectRoot string
	TargetRoot  string
	OutputPath  string
	Format      string

	Rules      rules.RuleSet
	Policy     scan.ExtensionPolicy
	Classifier scan.Classifier

	// ForceWalk disables the tracked-listing strategy even inside a
	// version-controlled project.
	ForceWalk bool
	// MaxFileBytes skips files larger than this size; zero means unlimited.
	MaxFileBytes int64

	StructureEnabled         bool
	StructureMaxEntries      int
	StructureIncludeExcluded bool

	// SplitBudgetBytes rotates the output into numbered parts once a part
	// exceeds this size; zero disables splitting.
	SplitBudgetBytes int64
}

// Result reports what one dump run produced.
type Result struct {
	FilesWritten  int
	SkippedBinary int
	SkippedLarge  int
	Strategy      string
	Mode          string
	PartPaths     []string
}

// Run collects candidate files, renders the structure listing, and writes the
// dump document. Write failures abort the run; unreadable source files are
// skipped and counted.
func Run(options Options) (Result, error) {
	result := Result{
		Strategy: scan.StrategyFilesystemWalk,
		Mode:     ModeExtensionFilter,
	}
	if options.Policy.AllText {
		result.Mode = ModeAllText
	}

	collector := scan.Collector{
		Rules:      options.Rules,
		Policy:     options.Policy,
		Classifier: options.Classifier,
	}

	var candidates []scan.CandidateFile
	if !options.ForceWalk && scan.IsGitRepository(options.ProjectRoot) && scan.GitAvailable() {
		trackedCandidates, trackedError := collector.CollectTracked(options.ProjectRoot, options.TargetRoot)
		if trackedError == nil && len(trackedCandidates) > 0 {
			candidates = trackedCandidates
			result.Strategy = scan.StrategyTrackedListing
		}
	}
	if result.Strategy == scan.StrategyFilesystemWalk {
		walkedCandidates, walkError := collector.CollectWalk(options.TargetRoot)
		if walkError != nil {
			return result, walkError
		}
		candidates = walkedCandidates
	}

	writer, writerError := NewSplitWriter(options.OutputPath, options.SplitBudgetBytes)
	if writerError != nil {
		return result, writerError
	}
	defer writer.Close()

	headerBlock := headerDirectoryLabel + filepath.Base(options.TargetRoot) + "\n" +
		headerTargetLabel + filepath.ToSlash(options.TargetRoot) + "\n" +
		headerOutputLabel + filepath.ToSlash(options.OutputPath) + "\n" +
		"\n"
	if writeError := writer.WriteString(headerBlock); writeError != nil {
		return result, writeError
	}

	if options.StructureEnabled {
		renderer := scan.StructureRenderer{
			Rules:           options.Rules,
			MaxEntries:      options.StructureMaxEntries,
			IncludeExcluded: options.StructureIncludeExcluded,
		}
		structureBlock := structureHeading + "\n" +
			strings.Join(renderer.Render(options.TargetRoot), "\n") + "\n" +
			"\n" + sectionSeparator
		if writeError := writer.WriteString(structureBlock); writeError != nil {
			return result, writeError
		}
	}

	partPattern := PartFilePattern(options.OutputPath)
	cleanOutputPath := filepath.Clean(options.OutputPath)

	for _, candidate := range candidates {
		candidatePath := filepath.Clean(candidate.AbsolutePath)
		if candidatePath == cleanOutputPath || partPattern.MatchString(filepath.Base(candidatePath)) {
			continue
		}

		if options.MaxFileBytes > 0 {
			fileInformation, statError := os.Stat(candidatePath)
			if statError != nil {
				fmt.Fprintf(os.Stderr, warningStatFileFormat, candidatePath, statError)
				result.SkippedBinary++
				continue
			}
			if fileInformation.Size() > options.MaxFileBytes {
				result.SkippedLarge++
				continue
			}
		}

		fileContent, isText := options.Classifier.ReadText(candidatePath)
		if !isText {
			result.SkippedBinary++
			continue
		}

		if writeError := writer.WriteString(renderFileSection(candidate, fileContent, options.Format)); writeError != nil {
			return result, writeError
		}
		result.FilesWritten++
	}

	footerBlock := footerWrittenLabel + fmt.Sprintf("%d\n", result.FilesWritten) +
		footerSkippedBinaryLabel + fmt.Sprintf("%d\n", result.SkippedBinary)
	if options.MaxFileBytes > 0 {
		footerBlock += footerSkippedLargeLabel + fmt.Sprintf("%d\n", result.SkippedLarge)
	}
	footerBlock += footerStrategyLabel + result.Strategy + "\n" +
		footerModeLabel + result.Mode + "\n"
	if writeError := writer.WriteString(footerBlock); writeError != nil {
		return result, writeError
	}

	if closeError := writer.Close(); closeError != nil {
		return result, closeError
	}
	result.PartPaths = writer.PartPaths()
	return result, nil
}

// renderFileSection builds the complete document section for one file so that
// output splitting only happens between sections.
func renderFileSection(candidate scan.CandidateFile, fileContent string, outputFormat string) string {
	relativeDirectory := path.Dir(candidate.RelativePath)
	directoryLine := "/"
	if relativeDirectory != "." {
		directoryLine = relativeDirectory + "/"
	}

	var sectionBuilder strings.Builder
	sectionBuilder.WriteString(fileNameLabel + path.Base(candidate.RelativePath) + "\n")
	sectionBuilder.WriteString(filePathLabel + directoryLine + "\n")
	sectionBuilder.WriteString(fileContentLabel + "\n")

	if outputFormat == FormatMarkdown {
		sectionBuilder.WriteString(codeFence + languageForFile(candidate.RelativePath) + "\n")
		sectionBuilder.WriteString(fileContent)
		if !strings.HasSuffix(fileContent, "\n") {
			sectionBuilder.WriteString("\n")
		}
		sectionBuilder.WriteString(codeFence + "\n\n")
	} else {
		sectionBuilder.WriteString(fileContent)
		if !strings.HasSuffix(fileContent, "\n") {
			sectionBuilder.WriteString("\n")
		}
		sectionBuilder.WriteString("\n")
	}

	sectionBuilder.WriteString(sectionSeparator)
	return sectionBuilder.String()
}

// languageForFile maps a file name to the fence language tag used in markdown
// output. Unknown extensions produce an untagged fence.
func languageForFile(relativePath string) string {
	nameLower := strings.ToLower(path.Base(relativePath))
	if strings.HasSuffix(nameLower, ".blade.php") {
		return "php"
	}

	switch path.Ext(nameLower) {
	case ".php":
		return "php"
	case ".twig":
		return "twig"
	case ".html", ".htm":
		return "html"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".css":
		return "css"
	case ".scss", ".sass":
		return "scss"
	case ".yml", ".yaml":
		return "yaml"
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".sql":
		return "sql"
	case ".xml":
		return "xml"
	case ".ps1":
		return "powershell"
	case ".sh", ".bash", ".zsh":
		return "bash"
	}
	return ""
}
