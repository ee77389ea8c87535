package parsing

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"semsearch/internal/logging"
)

// PHPAnalyzer walks a tree-sitter PHP AST to extract namespace, class,
// method, property and use-statement structure, then derives Target
// Framework role flags (controller, repository, plugin, ...) from it.
type PHPAnalyzer struct {
	parser *sitter.Parser
}

// NewPHPAnalyzer creates a PHP analyzer with its own tree-sitter parser.
// A *sitter.Parser is not safe for concurrent use, so callers that parse in
// parallel must create one analyzer per worker.
func NewPHPAnalyzer() *PHPAnalyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(php.GetLanguage())
	return &PHPAnalyzer{parser: parser}
}

// Close releases the underlying tree-sitter parser.
func (a *PHPAnalyzer) Close() { a.parser.Close() }

// Analyze extracts PHP structural metadata from source text.
func (a *PHPAnalyzer) Analyze(source string) PHPMetadata {
	var meta PHPMetadata

	// tree-sitter-php requires an opening tag.
	if !strings.HasPrefix(strings.TrimSpace(source), "<?") {
		source = "<?php\n" + source
	}
	content := []byte(source)

	tree, err := a.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.ParseWarn("php analyzer: parse failed: %v", err)
		return meta
	}
	defer tree.Close()

	walkPHP(tree.RootNode(), content, &meta)
	detectPHPPatterns(&meta)
	return meta
}

func walkPHP(node *sitter.Node, source []byte, meta *PHPMetadata) {
	switch node.Type() {
	case "namespace_definition":
		extractPHPNamespace(node, source, meta)
	case "class_declaration":
		extractPHPClass(node, source, meta)
	case "interface_declaration":
		extractPHPInterface(node, source, meta)
	case "trait_declaration":
		extractPHPTrait(node, source, meta)
	case "method_declaration":
		extractPHPMethod(node, source, meta)
	case "property_declaration":
		extractPHPProperty(node, source, meta)
	case "namespace_use_declaration":
		extractPHPUse(node, source, meta)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkPHP(node.Child(i), source, meta)
	}
}

func extractPHPNamespace(node *sitter.Node, source []byte, meta *PHPMetadata) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "namespace_name" {
			meta.Namespace = child.Content(source)
		}
	}
}

func extractPHPClass(node *sitter.Node, source []byte, meta *PHPMetadata) {
	isAbstract, isFinal := false, false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "abstract_modifier":
			isAbstract = true
		case "final_modifier":
			isFinal = true
		case "name":
			meta.ClassName = child.Content(source)
		case "base_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				bc := child.Child(j)
				if bc.Type() == "name" || bc.Type() == "qualified_name" {
					meta.Extends = bc.Content(source)
				}
			}
		case "class_interface_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				ic := child.Child(j)
				if ic.Type() == "name" || ic.Type() == "qualified_name" {
					meta.Implements = append(meta.Implements, ic.Content(source))
				}
			}
		}
	}

	switch {
	case isAbstract:
		meta.ClassType = "abstract class"
	case isFinal:
		meta.ClassType = "final class"
	default:
		meta.ClassType = "class"
	}
}

func extractPHPInterface(node *sitter.Node, source []byte, meta *PHPMetadata) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "name" {
			meta.ClassName = child.Content(source)
			meta.ClassType = "interface"
		}
	}
}

func extractPHPTrait(node *sitter.Node, source []byte, meta *PHPMetadata) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "name" {
			meta.ClassName = child.Content(source)
			meta.ClassType = "trait"
		}
	}
}

func extractPHPMethod(node *sitter.Node, source []byte, meta *PHPMetadata) {
	method := PHPMethod{Visibility: "public"}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "visibility_modifier":
			method.Visibility = child.Content(source)
		case "static_modifier":
			method.IsStatic = true
		case "abstract_modifier":
			method.IsAbstract = true
		case "name":
			method.Name = child.Content(source)
		case "formal_parameters":
			method.Parameters = extractPHPParameters(child, source)
		default:
			if strings.Contains(child.Type(), "type") {
				method.ReturnType = child.Content(source)
			}
		}
	}

	if method.Name == "" {
		return
	}

	switch {
	case strings.HasPrefix(method.Name, "before") && len(method.Name) > 6:
		meta.PluginMethods = append(meta.PluginMethods, PluginMethod{MethodType: "before", TargetMethod: method.Name[6:]})
	case strings.HasPrefix(method.Name, "after") && len(method.Name) > 5:
		meta.PluginMethods = append(meta.PluginMethods, PluginMethod{MethodType: "after", TargetMethod: method.Name[5:]})
	case strings.HasPrefix(method.Name, "around") && len(method.Name) > 6:
		meta.PluginMethods = append(meta.PluginMethods, PluginMethod{MethodType: "around", TargetMethod: method.Name[6:]})
	}

	meta.Methods = append(meta.Methods, method)
}

func extractPHPParameters(node *sitter.Node, source []byte) []PHPParameter {
	var params []PHPParameter
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "simple_parameter" && child.Type() != "property_promotion_parameter" {
			continue
		}
		var param PHPParameter
		for j := 0; j < int(child.ChildCount()); j++ {
			pc := child.Child(j)
			switch {
			case pc.Type() == "variable_name":
				param.Name = strings.TrimPrefix(pc.Content(source), "$")
			case strings.Contains(pc.Type(), "type"):
				param.TypeHint = pc.Content(source)
			}
		}
		if param.Name != "" {
			params = append(params, param)
		}
	}
	return params
}

func extractPHPProperty(node *sitter.Node, source []byte, meta *PHPMetadata) {
	prop := PHPProperty{Visibility: "public"}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "visibility_modifier":
			prop.Visibility = child.Content(source)
		case "static_modifier":
			prop.IsStatic = true
		case "property_element":
			for j := 0; j < int(child.ChildCount()); j++ {
				pc := child.Child(j)
				if pc.Type() == "variable_name" {
					prop.Name = strings.TrimPrefix(pc.Content(source), "$")
				}
			}
		default:
			if strings.Contains(child.Type(), "type") {
				prop.TypeHint = child.Content(source)
			}
		}
	}

	if prop.Name != "" {
		meta.Properties = append(meta.Properties, prop)
	}
}

func extractPHPUse(node *sitter.Node, source []byte, meta *PHPMetadata) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "namespace_use_clause" {
			continue
		}
		var use UseStatement
		for j := 0; j < int(child.ChildCount()); j++ {
			cc := child.Child(j)
			switch cc.Type() {
			case "qualified_name", "name":
				use.FullPath = cc.Content(source)
			case "namespace_aliasing_clause":
				for k := 0; k < int(cc.ChildCount()); k++ {
					ac := cc.Child(k)
					if ac.Type() == "name" {
						use.Alias = ac.Content(source)
					}
				}
			}
		}
		if use.FullPath == "" {
			continue
		}
		if strings.Contains(use.FullPath, "Interface") || strings.Contains(use.FullPath, "Factory") {
			meta.DIInjections = append(meta.DIInjections, use.FullPath)
		}
		meta.Uses = append(meta.Uses, use)
	}
}

func detectPHPPatterns(meta *PHPMetadata) {
	hasExecute := false
	for _, m := range meta.Methods {
		if m.Name == "execute" {
			hasExecute = true
			break
		}
	}

	meta.IsController = containsSubstr(meta.Implements, "ActionInterface") ||
		strings.Contains(meta.Extends, "Action") || hasExecute

	meta.IsRepository = containsSubstr(meta.Implements, "RepositoryInterface") ||
		strings.Contains(meta.ClassName, "Repository")

	meta.IsPlugin = len(meta.PluginMethods) > 0

	meta.IsObserver = containsSubstr(meta.Implements, "ObserverInterface")

	meta.IsModel = strings.Contains(meta.Extends, "AbstractModel") || strings.Contains(meta.Extends, "AbstractDb")

	meta.IsBlock = strings.Contains(meta.Extends, "Template") || strings.Contains(meta.Extends, "AbstractBlock")

	meta.IsResolver = containsSubstr(meta.Implements, "ResolverInterface") || containsSubstr(meta.Implements, "BatchResolverInterface")

	meta.IsAPIInterface = meta.ClassType == "interface" && strings.Contains(meta.Namespace, "Api")
}

func containsSubstr(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}
