package parsing

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"semsearch/internal/logging"
)

// JSAnalyzer walks a tree-sitter JavaScript AST and layers RequireJS/AMD and
// UI-component convention detection on top (module type, mixins, widgets,
// knockout components) — conventions a generic JS parser has no notion of.
type JSAnalyzer struct {
	parser *sitter.Parser
}

// NewJSAnalyzer creates a JS analyzer with its own tree-sitter parser.
func NewJSAnalyzer() *JSAnalyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	return &JSAnalyzer{parser: parser}
}

// Close releases the underlying tree-sitter parser.
func (a *JSAnalyzer) Close() { a.parser.Close() }

// Analyze extracts JavaScript structural metadata from source text.
func (a *JSAnalyzer) Analyze(source string) JSMetadata {
	var meta JSMetadata

	content := []byte(source)
	tree, err := a.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.ParseWarn("js analyzer: parse failed: %v", err)
		return meta
	}
	defer tree.Close()

	detectJSModuleType(source, &meta)
	walkJS(tree.RootNode(), content, &meta)
	detectJSPatterns(source, &meta)
	return meta
}

func detectJSModuleType(source string, meta *JSMetadata) {
	switch {
	case strings.Contains(source, "define(") || strings.Contains(source, "define(["):
		meta.ModuleType = "amd"
		extractAMDDeps(source, meta)
	case strings.Contains(source, "import ") || strings.Contains(source, "export "):
		meta.ModuleType = "esm"
	case strings.Contains(source, "module.exports") || strings.Contains(source, "require("):
		meta.ModuleType = "commonjs"
	case (strings.Contains(source, "(function(") || strings.Contains(source, "(function (")) && strings.Contains(source, "})("):
		meta.ModuleType = "iife"
	}
}

func extractAMDDeps(source string, meta *JSMetadata) {
	definePos := strings.Index(source, "define(")
	if definePos < 0 {
		return
	}
	rest := source[definePos:]
	bracketStart := strings.Index(rest, "[")
	if bracketStart < 0 {
		return
	}
	bracketEnd := strings.Index(rest[bracketStart:], "]")
	if bracketEnd < 0 {
		return
	}
	depsStr := rest[bracketStart+1 : bracketStart+bracketEnd]
	for _, dep := range strings.Split(depsStr, ",") {
		dep = strings.Trim(strings.TrimSpace(dep), `'"`)
		if dep == "" {
			continue
		}
		meta.DefineDeps = append(meta.DefineDeps, dep)
		meta.Dependencies = append(meta.Dependencies, dep)
	}
}

func walkJS(node *sitter.Node, source []byte, meta *JSMetadata) {
	switch node.Type() {
	case "import_statement":
		extractJSImport(node, source, meta)
	case "class_declaration", "class":
		extractJSClass(node, source, meta)
	case "function_declaration":
		extractJSFunction(node, source, meta)
	case "export_statement":
		extractJSExport(node, source, meta)
	case "call_expression":
		extractJSCall(node, source, meta)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkJS(node.Child(i), source, meta)
	}
}

func extractJSImport(node *sitter.Node, source []byte, meta *JSMetadata) {
	var imp JSImport
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string":
			imp.Source = strings.Trim(child.Content(source), `'"`)
		case "import_clause":
			if !strings.Contains(child.Content(source), "{") {
				imp.IsDefault = true
			}
		}
	}
	if imp.Source == "" {
		return
	}
	meta.Dependencies = append(meta.Dependencies, imp.Source)
	meta.Imports = append(meta.Imports, imp)
}

func extractJSClass(node *sitter.Node, source []byte, meta *JSMetadata) {
	var class JSClass
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if class.Name == "" {
				class.Name = child.Content(source)
			}
		case "class_heritage":
			for j := 0; j < int(child.ChildCount()); j++ {
				hc := child.Child(j)
				if hc.Type() == "identifier" {
					class.Extends = hc.Content(source)
				}
			}
		case "class_body":
			for j := 0; j < int(child.ChildCount()); j++ {
				bc := child.Child(j)
				if bc.Type() != "method_definition" {
					continue
				}
				for k := 0; k < int(bc.ChildCount()); k++ {
					mc := bc.Child(k)
					if mc.Type() == "property_identifier" {
						class.Methods = append(class.Methods, mc.Content(source))
					}
				}
			}
		}
	}
	if class.Name != "" {
		meta.Classes = append(meta.Classes, class)
	}
}

func extractJSFunction(node *sitter.Node, source []byte, meta *JSMetadata) {
	var fn JSFunction
	text := node.Content(source)
	fn.IsAsync = strings.HasPrefix(text, "async")
	fn.IsGenerator = strings.Contains(text, "function*")

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			fn.Name = child.Content(source)
		}
	}
	if fn.Name != "" {
		meta.Functions = append(meta.Functions, fn)
	}
}

func extractJSExport(node *sitter.Node, source []byte, meta *JSMetadata) {
	text := node.Content(source)
	switch {
	case strings.Contains(text, "export default"):
		meta.Exports = append(meta.Exports, "default")
	case strings.Contains(text, "export {"):
		start := strings.Index(text, "{")
		end := strings.Index(text, "}")
		if start < 0 || end < 0 || end <= start {
			return
		}
		for _, exp := range strings.Split(text[start+1:end], ",") {
			name := strings.TrimSpace(strings.Split(strings.TrimSpace(exp), " as ")[0])
			if name != "" {
				meta.Exports = append(meta.Exports, name)
			}
		}
	}
}

func extractJSCall(node *sitter.Node, source []byte, meta *JSMetadata) {
	text := node.Content(source)
	if !strings.HasPrefix(text, "require(") {
		return
	}
	start := strings.IndexAny(text, `'"`)
	if start < 0 {
		return
	}
	rest := text[start+1:]
	end := strings.IndexAny(rest, `'"`)
	if end < 0 {
		return
	}
	path := rest[:end]
	for _, dep := range meta.Dependencies {
		if dep == path {
			return
		}
	}
	meta.Dependencies = append(meta.Dependencies, path)
}

func detectJSPatterns(source string, meta *JSMetadata) {
	meta.IsUIComponent = strings.Contains(source, "uiComponent") ||
		strings.Contains(source, "Magento_Ui/js/") ||
		dependsOn(meta.Dependencies, "uiComponent")

	meta.IsWidget = strings.Contains(source, "$.widget(") ||
		strings.Contains(source, "jQuery.widget(") ||
		strings.Contains(source, "$.mage.") ||
		dependsOn(meta.Dependencies, "jquery/ui")

	meta.IsMixin = strings.Contains(source, "'mixins':") ||
		strings.Contains(source, "return function (target)") ||
		strings.Contains(source, "return function(target)")

	if meta.IsMixin {
		if idx := strings.Index(source, "'mixins':"); idx >= 0 {
			rest := source[idx:]
			start := strings.IndexAny(rest, `'"`)
			if start >= 0 {
				tail := rest[start+1:]
				end := strings.IndexAny(tail, `'"`)
				if end >= 0 {
					meta.MixinTarget = tail[:end]
				}
			}
		}
	}

	meta.IsKnockoutComponent = strings.Contains(source, "ko.component") ||
		strings.Contains(source, "ko.bindingHandlers") ||
		dependsOnExact(meta.Dependencies, "ko") || dependsOnExact(meta.Dependencies, "knockout")

	if strings.Contains(source, "Component.extend(") && len(meta.Classes) > 0 {
		meta.ComponentName = meta.Classes[0].Name
	}
}

func dependsOn(deps []string, substr string) bool {
	for _, d := range deps {
		if strings.Contains(d, substr) {
			return true
		}
	}
	return false
}

func dependsOnExact(deps []string, name string) bool {
	for _, d := range deps {
		if d == name {
			return true
		}
	}
	return false
}
