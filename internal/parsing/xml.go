package parsing

import "regexp"

// XMLAnalyzer extracts DI/config structure from Magento-style XML with
// regular expressions rather than a full XML parser: the config grammar
// spans dozens of loosely related root elements (di.xml, events.xml,
// webapi.xml, ...) and attribute order is not guaranteed, so a handful of
// targeted patterns are cheaper and more robust than a schema-aware walk.
type XMLAnalyzer struct {
	preferenceRe *regexp.Regexp
	typeRe       *regexp.Regexp
	pluginRe     *regexp.Regexp
	eventRe      *regexp.Regexp
	routeRe      *regexp.Regexp
	tableRe      *regexp.Regexp
	jobRe        *regexp.Regexp
}

// NewXMLAnalyzer compiles the analyzer's regex set once for reuse across files.
func NewXMLAnalyzer() *XMLAnalyzer {
	return &XMLAnalyzer{
		preferenceRe: regexp.MustCompile(`<preference\s+for="([^"]+)"\s+type="([^"]+)"`),
		typeRe:       regexp.MustCompile(`<type\s+name="([^"]+)"`),
		pluginRe:     regexp.MustCompile(`<plugin\s+name="([^"]+)"\s+type="([^"]+)"`),
		eventRe:      regexp.MustCompile(`<event\s+name="([^"]+)"`),
		routeRe:      regexp.MustCompile(`<route\s+url="([^"]+)"\s+method="([^"]+)"`),
		tableRe:      regexp.MustCompile(`<table\s+name="([^"]+)"`),
		jobRe:        regexp.MustCompile(`<job\s+name="([^"]+)"\s+instance="([^"]+)"`),
	}
}

// Analyze extracts the DI/config structure from a chunk of XML.
func (a *XMLAnalyzer) Analyze(content string) XMLMetadata {
	var meta XMLMetadata

	for _, m := range a.preferenceRe.FindAllStringSubmatch(content, -1) {
		meta.Preferences = append(meta.Preferences, [2]string{m[1], m[2]})
	}
	for _, m := range a.typeRe.FindAllStringSubmatch(content, -1) {
		meta.Types = append(meta.Types, m[1])
	}
	for _, m := range a.pluginRe.FindAllStringSubmatch(content, -1) {
		meta.Plugins = append(meta.Plugins, [2]string{m[1], m[2]})
	}
	for _, m := range a.eventRe.FindAllStringSubmatch(content, -1) {
		meta.Events = append(meta.Events, m[1])
	}
	for _, m := range a.routeRe.FindAllStringSubmatch(content, -1) {
		meta.Routes = append(meta.Routes, [2]string{m[1], m[2]})
	}
	for _, m := range a.tableRe.FindAllStringSubmatch(content, -1) {
		meta.Tables = append(meta.Tables, m[1])
	}
	for _, m := range a.jobRe.FindAllStringSubmatch(content, -1) {
		meta.CronJobs = append(meta.CronJobs, [2]string{m[1], m[2]})
	}

	return meta
}
