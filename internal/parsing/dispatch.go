package parsing

import "strings"

// IncludeExtensions lists the file extensions the indexer walks and parses.
var IncludeExtensions = map[string]bool{
	"php": true, "xml": true, "phtml": true, "js": true, "graphqls": true,
}

// ExcludeDirs lists directory basenames skipped during discovery — build
// artifacts, vendored code and test fixtures that would otherwise dilute
// the index with generated or throwaway content.
var ExcludeDirs = map[string]bool{
	"node_modules": true, "vendor": true, ".git": true, ".svn": true, ".hg": true,
	"var": true, "pub": true, "generated": true, "dev": true,
	"Test": true, "Tests": true, "test": true, "tests": true,
	"_files": true, "fixtures": true, "performance-toolkit": true,
}

// Dispatcher owns one tree-sitter parser per language and one compiled XML
// analyzer. It is not safe for concurrent use — the indexer creates one
// Dispatcher per parsing worker.
type Dispatcher struct {
	php *PHPAnalyzer
	js  *JSAnalyzer
	xml *XMLAnalyzer
}

// NewDispatcher creates a Dispatcher with its own analyzers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		php: NewPHPAnalyzer(),
		js:  NewJSAnalyzer(),
		xml: NewXMLAnalyzer(),
	}
}

// Close releases the tree-sitter parsers held by this dispatcher.
func (d *Dispatcher) Close() {
	d.php.Close()
	d.js.Close()
}

// FileKind maps an extension to the generic content kind stored in
// metadata, independent of the more specific Target Framework convention
// classification from DetectFileType.
func FileKind(ext string) string {
	switch ext {
	case "php":
		return "php"
	case "xml":
		return "xml"
	case "phtml":
		return "template"
	case "js":
		return "javascript"
	case "graphqls":
		return "graphql"
	default:
		return "other"
	}
}

// Parse analyzes one file's content and returns the text to embed plus its
// structural metadata. relativePath must already be relative to the
// indexing root. Returns false if the file has no indexable content.
func (d *Dispatcher) Parse(relativePath, content string) (ParsedFile, bool) {
	if content == "" {
		return ParsedFile{}, false
	}

	ext := extensionOf(relativePath)
	fileType := FileKind(ext)
	magentoType := DetectFileType(relativePath)
	moduleInfo := ExtractModuleInfo(relativePath)
	area := DetectArea(relativePath)

	var phpMeta *PHPMetadata
	var jsMeta *JSMetadata
	var xmlMeta *XMLMetadata

	switch ext {
	case "php", "phtml":
		m := d.php.Analyze(content)
		phpMeta = &m
	case "js":
		m := d.js.Analyze(content)
		jsMeta = &m
	case "xml":
		m := d.xml.Analyze(content)
		xmlMeta = &m
	}

	searchText := GenerateSearchText(relativePath, phpMeta, jsMeta, xmlMeta)
	embedText := CreateEmbedText(content, relativePath, phpMeta, jsMeta, searchText)

	pm := ParsedMetadata{
		Path:        relativePath,
		FileType:    fileType,
		MagentoType: magentoType,
		Area:        area,
		SearchText:  searchText,
	}
	if moduleInfo != nil {
		pm.Module = moduleInfo.Full
	}

	if phpMeta != nil {
		pm.ClassName = phpMeta.ClassName
		pm.ClassType = phpMeta.ClassType
		pm.Namespace = phpMeta.Namespace
		pm.Extends = phpMeta.Extends
		pm.Implements = phpMeta.Implements
		for _, m := range phpMeta.Methods {
			pm.Methods = append(pm.Methods, m.Name)
		}
		if len(pm.Methods) > 0 {
			pm.MethodName = pm.Methods[0]
		}
		pm.IsController = phpMeta.IsController
		pm.IsRepository = phpMeta.IsRepository
		pm.IsPlugin = phpMeta.IsPlugin
		pm.IsObserver = phpMeta.IsObserver
		pm.IsModel = phpMeta.IsModel
		pm.IsBlock = phpMeta.IsBlock
		pm.IsResolver = phpMeta.IsResolver
		pm.IsAPIInterface = phpMeta.IsAPIInterface
	}

	if jsMeta != nil {
		pm.IsUIComponent = jsMeta.IsUIComponent
		pm.IsWidget = jsMeta.IsWidget
		pm.IsMixin = jsMeta.IsMixin
		pm.JSDependencies = jsMeta.Dependencies
	}

	return ParsedFile{EmbedText: embedText, Metadata: pm}, true
}

func extensionOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return path[idx+1:]
}

// ShouldSkipDir reports whether a directory basename should be excluded
// from discovery.
func ShouldSkipDir(name string) bool {
	return ExcludeDirs[name]
}
