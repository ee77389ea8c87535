// Package parsing extracts structural metadata from PHP, JavaScript and XML
// source files and synthesizes the text fed to the embedder and the ranker's
// keyword boosts. It understands a Target Framework convention (Magento-style
// module layout, DI XML, plugin/interceptor methods, RequireJS modules) on
// top of generic language structure.
package parsing

// PHPMethod is a single method extracted from a class, interface or trait.
type PHPMethod struct {
	Name       string
	Visibility string
	IsStatic   bool
	IsAbstract bool
	Parameters []PHPParameter
	ReturnType string
}

// PHPParameter is a single formal parameter of a PHPMethod.
type PHPParameter struct {
	Name     string
	TypeHint string
}

// PHPProperty is a declared class property.
type PHPProperty struct {
	Name       string
	Visibility string
	TypeHint   string
	IsStatic   bool
}

// UseStatement is a `use` import inside a PHP namespace.
type UseStatement struct {
	FullPath string
	Alias    string
}

// PluginMethod records a before/after/around interceptor method and the
// target method it intercepts.
type PluginMethod struct {
	MethodType   string // before, after, around
	TargetMethod string
}

// PHPMetadata is everything extracted from a single PHP/.phtml file.
type PHPMetadata struct {
	Namespace  string
	ClassName  string
	ClassType  string // class, abstract class, final class, interface, trait
	Extends    string
	Implements []string
	Methods    []PHPMethod
	Properties []PHPProperty
	Uses       []UseStatement

	IsController   bool
	IsRepository   bool
	IsPlugin       bool
	IsObserver     bool
	IsModel        bool
	IsBlock        bool
	IsResolver     bool
	IsAPIInterface bool
	PluginMethods  []PluginMethod
	DIInjections   []string
}

// JSImport is a single ESM/AMD import or dependency reference.
type JSImport struct {
	Source      string
	Specifiers  []string
	IsDefault   bool
}

// JSClass is a single `class` declaration.
type JSClass struct {
	Name    string
	Extends string
	Methods []string
}

// JSFunction is a single function declaration.
type JSFunction struct {
	Name        string
	IsAsync     bool
	IsGenerator bool
}

// JSMetadata is everything extracted from a single JavaScript file.
type JSMetadata struct {
	ModuleType   string // amd, esm, commonjs, iife
	Exports      []string
	Imports      []JSImport
	Classes      []JSClass
	Functions    []JSFunction
	Dependencies []string
	DefineDeps   []string

	IsUIComponent       bool
	IsWidget            bool
	IsMixin             bool
	IsKnockoutComponent bool
	ComponentName       string
	MixinTarget         string
}

// XMLMetadata is everything extracted from a single Magento-style DI/config
// XML file by regex (no XML schema is assumed; the original config grammar
// allows attributes in any order and across many root element types).
type XMLMetadata struct {
	Preferences [][2]string // for -> type
	Types       []string
	Plugins     [][2]string // name -> type
	Events      []string
	Routes      [][2]string // url -> method
	Tables      []string
	CronJobs    [][2]string // name -> instance
}

// ModuleInfo is the vendor/module pair derived from a file's path.
type ModuleInfo struct {
	Vendor string
	Name   string
	Full   string
}

// ParsedFile is the result of analyzing a single source file: the text to
// feed the embedder, and the structural metadata to store alongside the
// resulting vector.
type ParsedFile struct {
	EmbedText string
	Metadata  ParsedMetadata
}

// ParsedMetadata is the superset of fields a ParsedFile can populate before
// it's converted into types.Metadata by the indexer. Kept separate from
// types.Metadata so this package doesn't need to import it.
type ParsedMetadata struct {
	Path        string
	FileType    string
	MagentoType string
	ClassName   string
	ClassType   string
	MethodName  string
	Methods     []string
	Namespace   string
	Module      string
	Area        string
	Extends     string
	Implements  []string

	IsController   bool
	IsRepository   bool
	IsPlugin       bool
	IsObserver     bool
	IsModel        bool
	IsBlock        bool
	IsResolver     bool
	IsAPIInterface bool
	IsUIComponent  bool
	IsWidget       bool
	IsMixin        bool

	JSDependencies []string
	SearchText     string
}
