package parsing

import (
	"fmt"
	"strings"
)

// SplitCamelCase inserts a space before each uppercase letter (except the
// first character) and lowercases the result, so "getById" search-matches
// a query of "get by id" and "ProductRepository" matches "product repository".
func SplitCamelCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(toLowerRune(r))
	}
	return b.String()
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// GenerateSearchText synthesizes the keyword-boost text for a file: class
// and method names (plus their CamelCase-split forms), role phrases for
// each detected Target Framework convention, XML structure terms, and path
// segments. CreateEmbedText appends it to the embedded text, and
// vectorstore.Store.HybridSearch matches query terms against it for the
// keyword bonus.
func GenerateSearchText(path string, php *PHPMetadata, js *JSMetadata, xml *XMLMetadata) string {
	var terms []string
	pathLower := strings.ToLower(path)

	if php != nil {
		if php.ClassName != "" {
			terms = append(terms, php.ClassName, SplitCamelCase(php.ClassName))
		}
		if php.Namespace != "" {
			terms = append(terms, strings.ReplaceAll(php.Namespace, `\`, " "))
		}
		for _, m := range php.Methods {
			terms = append(terms, m.Name, SplitCamelCase(m.Name))
		}
		if php.IsController {
			terms = append(terms, "controller action execute http request response")
			terms = append(terms, "controller controller controller")
		}
		if php.IsRepository {
			terms = append(terms, "repository data persistence save load get")
		}
		if php.IsPlugin {
			terms = append(terms, "plugin interceptor before after around")
			for _, pm := range php.PluginMethods {
				terms = append(terms, pm.MethodType+" "+pm.TargetMethod)
			}
		}
		if php.IsObserver {
			terms = append(terms, "observer event listener dispatch")
		}
		if php.IsModel {
			terms = append(terms, "model entity data resource collection")
		}
		if php.IsBlock {
			terms = append(terms, "block template view render toHtml")
		}
		if php.IsResolver {
			terms = append(terms, "graphql resolver query mutation field")
		}
	}

	if strings.Contains(pathLower, "/controller/") {
		terms = append(terms, "controller action execute http request")
		terms = append(terms, "controller controller controller")
	}
	if strings.Contains(pathLower, "inventory") || strings.Contains(pathLower, "cataloginventory") {
		terms = append(terms, "inventory stock qty source reservation")
	}

	if js != nil {
		for _, c := range js.Classes {
			terms = append(terms, c.Name, SplitCamelCase(c.Name))
		}
		for _, f := range js.Functions {
			terms = append(terms, f.Name)
		}
		if js.IsUIComponent {
			terms = append(terms, "ui component knockout observable")
		}
		if js.IsWidget {
			terms = append(terms, "jquery widget $.widget")
		}
		if js.IsMixin {
			terms = append(terms, "mixin extend override requirejs")
			if js.MixinTarget != "" {
				terms = append(terms, js.MixinTarget)
			}
		}
		terms = append(terms, js.Dependencies...)
	}

	if xml != nil {
		for _, p := range xml.Preferences {
			terms = append(terms, p[0], p[1])
		}
		for _, p := range xml.Plugins {
			terms = append(terms, p[0], p[1])
		}
		terms = append(terms, xml.Events...)
	}

	if strings.HasSuffix(path, ".xml") {
		parts := strings.Split(path, "/")
		filename := parts[len(parts)-1]
		terms = append(terms, filename, filename)

		switch {
		case filename == "di.xml":
			terms = append(terms, "di.xml dependency injection preference plugin type virtualType")
			terms = append(terms, "di.xml di.xml di.xml configuration")
		case filename == "events.xml":
			terms = append(terms, "events.xml observer event listener dispatch")
		case filename == "routes.xml":
			terms = append(terms, "routes.xml routing frontend adminhtml")
		case filename == "webapi.xml":
			terms = append(terms, "webapi.xml rest api endpoint method")
		case filename == "db_schema.xml":
			terms = append(terms, "db_schema.xml declarative schema table column constraint")
			terms = append(terms, "db_schema db_schema db_schema")
		case filename == "acl.xml":
			terms = append(terms, "acl.xml access control permission resource")
		case filename == "menu.xml":
			terms = append(terms, "menu.xml admin navigation")
		case filename == "system.xml":
			terms = append(terms, "system.xml configuration admin settings")
		case filename == "config.xml":
			terms = append(terms, "config.xml default configuration values")
		case strings.Contains(filename, "layout") || strings.Contains(pathLower, "/layout/"):
			terms = append(terms, "layout xml block handle container reference")
			terms = append(terms, "layout layout layout")
		case filename == "widget.xml":
			terms = append(terms, "widget.xml cms widget parameter")
		case filename == "crontab.xml":
			terms = append(terms, "crontab.xml cron job schedule")
		case filename == "email_templates.xml":
			terms = append(terms, "email_templates.xml email template transactional")
		}
	}

	for _, part := range strings.Split(path, "/") {
		if len(part) > 2 {
			terms = append(terms, part)
			if strings.Contains(part, "_") || hasUpper(part) {
				terms = append(terms, SplitCamelCase(part))
			}
		}
	}

	return strings.Join(terms, " ")
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

const (
	embedContentLimit = 6000
	embedTotalLimit   = 8000
)

// CreateEmbedText builds the text actually fed to the embedder: a
// size-capped prefix of the raw source, enriched with class/namespace/
// dependency terms and the search text, truncated to a byte budget chosen
// to stay well under the embedder's fixed token window.
func CreateEmbedText(content, path string, php *PHPMetadata, js *JSMetadata, searchText string) string {
	var b strings.Builder
	b.Grow(len(content) + 2000)

	if len(content) > embedContentLimit {
		b.WriteString(content[:embedContentLimit])
	} else {
		b.WriteString(content)
	}

	if php != nil {
		if php.ClassName != "" {
			fmt.Fprintf(&b, " class %s %s %s", php.ClassName, php.ClassName, php.ClassName)
		}
		if php.Namespace != "" {
			fmt.Fprintf(&b, " namespace %s", strings.ReplaceAll(php.Namespace, `\`, " "))
		}
		if php.Extends != "" {
			fmt.Fprintf(&b, " extends %s", php.Extends)
		}
		for _, impl := range php.Implements {
			fmt.Fprintf(&b, " implements %s", impl)
		}
		for _, m := range php.Methods {
			fmt.Fprintf(&b, " method %s", m.Name)
		}
	}

	if js != nil {
		for _, c := range js.Classes {
			fmt.Fprintf(&b, " class %s %s", c.Name, c.Name)
		}
		for _, dep := range js.Dependencies {
			fmt.Fprintf(&b, " requires %s", dep)
		}
		if js.ComponentName != "" {
			fmt.Fprintf(&b, " component %s", js.ComponentName)
		}
	}

	for _, part := range strings.Split(path, "/") {
		if len(part) > 2 {
			b.WriteByte(' ')
			b.WriteString(part)
		}
	}

	b.WriteByte(' ')
	b.WriteString(searchText)

	out := b.String()
	if len(out) > embedTotalLimit {
		out = out[:embedTotalLimit]
	}
	return out
}
