package parsing

import (
	"regexp"
	"strings"
)

// DetectFileType classifies a file by its path alone, following the ordered
// checks a Target Framework convention implies: specific config filenames
// first, then path-segment roles, then generic extensions. Order matters —
// db_schema.xml must be caught before the generic layout/.xml check, and
// /model/ must be checked before the repository-vs-model split.
func DetectFileType(path string) string {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, "di.xml"):
		return "di_config"
	case strings.HasSuffix(lower, "events.xml"):
		return "events_config"
	case strings.HasSuffix(lower, "webapi.xml"):
		return "webapi_config"
	case strings.HasSuffix(lower, "system.xml"):
		return "system_config"
	case strings.HasSuffix(lower, "acl.xml"):
		return "acl_config"
	case strings.HasSuffix(lower, "crontab.xml"):
		return "crontab_config"
	case strings.HasSuffix(lower, "db_schema.xml"):
		return "db_schema"
	case strings.Contains(lower, "/layout/") && strings.HasSuffix(lower, ".xml"):
		return "layout_config"
	case strings.Contains(lower, "/controller/"):
		return "controller"
	case strings.Contains(lower, "/plugin/"):
		return "plugin"
	case strings.Contains(lower, "/observer/"):
		return "observer"
	case strings.Contains(lower, "/block/"):
		return "block"
	case strings.Contains(lower, "/helper/"):
		return "helper"
	case strings.Contains(lower, "/api/"):
		return "api"
	case strings.Contains(lower, "/setup/"):
		return "setup"
	case strings.Contains(lower, "/console/"):
		return "console"
	case strings.Contains(lower, "/cron/"):
		return "cron"
	case strings.Contains(lower, "/model/"):
		if strings.Contains(lower, "repository") {
			return "repository"
		}
		return "model"
	case strings.Contains(lower, "graphql") && strings.Contains(lower, "resolver"):
		return "graphql_resolver"
	case strings.HasSuffix(lower, ".phtml"):
		return "template"
	case strings.HasSuffix(lower, ".js"):
		return "javascript"
	case strings.HasSuffix(lower, ".graphqls"):
		return "graphql_schema"
	default:
		return "other"
	}
}

var (
	moduleAppCodeRe = regexp.MustCompile(`app/code/(\w+)/(\w+)`)
	moduleVendorRe  = regexp.MustCompile(`vendor/([\w-]+)/([\w-]+)`)
	moduleLibRe     = regexp.MustCompile(`lib/internal/Magento/(\w+)`)
)

// ExtractModuleInfo derives the owning vendor/module pair from a path,
// trying the app/code, vendor/, then lib/internal/Magento conventions in
// that order; returns nil if none match.
func ExtractModuleInfo(path string) *ModuleInfo {
	if m := moduleAppCodeRe.FindStringSubmatch(path); m != nil {
		return &ModuleInfo{Vendor: m[1], Name: m[2], Full: m[1] + "_" + m[2]}
	}
	if m := moduleVendorRe.FindStringSubmatch(path); m != nil {
		return &ModuleInfo{Vendor: m[1], Name: m[2], Full: m[1] + "_" + m[2]}
	}
	if m := moduleLibRe.FindStringSubmatch(path); m != nil {
		return &ModuleInfo{Vendor: "Magento", Name: m[1], Full: "Magento_" + m[1]}
	}
	return nil
}

// DetectArea derives the Magento area (frontend/adminhtml/etc) a file
// belongs to from its path, empty string if none match.
func DetectArea(path string) string {
	switch {
	case strings.Contains(path, "/frontend/"):
		return "frontend"
	case strings.Contains(path, "/adminhtml/"):
		return "adminhtml"
	case strings.Contains(path, "/base/"):
		return "base"
	case strings.Contains(path, "/webapi_rest/"), strings.Contains(path, "/webapi_soap/"):
		return "webapi"
	case strings.Contains(path, "/graphql/"):
		return "graphql"
	case strings.Contains(path, "/crontab/"):
		return "crontab"
	default:
		return ""
	}
}
