package sona

import (
	"sort"
	"strings"

	"semsearch/internal/types"
)

const (
	maxAdjustment     = 0.15
	baseLR            = 0.05
	negativeLRFactor  = 0.1
)

var negativeFeatures = []string{
	"is_plugin", "is_observer", "is_controller", "is_block",
	"class_match", "config_match",
}

// LearnedWeights holds the three tiers of feature-weight adjustments SONA
// accumulates from feedback: per-query-hash (strongest, narrowest), per-term
// (medium, generalizes across queries sharing a word), and global (weakest,
// applies to every query once anything has been learned).
type LearnedWeights struct {
	Adjustments     map[uint64]map[string]float64 `json:"adjustments"`
	Counts          map[uint64]uint32             `json:"counts"`
	GlobalBias      map[string]float64            `json:"global_bias"`
	GlobalCount     uint32                         `json:"global_count"`
	TermAdjustments map[string]map[string]float64  `json:"term_adjustments"`
	TermCounts      map[string]uint32              `json:"term_counts"`
}

func newLearnedWeights() LearnedWeights {
	return LearnedWeights{
		Adjustments:     make(map[uint64]map[string]float64),
		Counts:          make(map[uint64]uint32),
		GlobalBias:      make(map[string]float64),
		TermAdjustments: make(map[string]map[string]float64),
		TermCounts:      make(map[string]uint32),
	}
}

// PatternHash computes an FNV-1a hash over the query's normalized term set,
// so queries that share the same words in any order hash identically.
func PatternHash(query string) uint64 {
	terms := NormalizeTerms(query)
	var h uint64 = 0xcbf29ce484222325
	for _, t := range terms {
		for i := 0; i < len(t); i++ {
			h ^= uint64(t[i])
			h *= 0x100000001b3
		}
		h ^= 0xff
	}
	return h
}

// NormalizeTerms lowercases, splits on whitespace, drops terms under 3
// characters, sorts, and dedups — the canonical term set both PatternHash
// and per-term learning operate on.
func NormalizeTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, t := range fields {
		if len(t) >= 3 {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)
	return dedupSorted(terms)
}

func dedupSorted(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// applyFeatures sums the adjustment entries whose feature a result's
// metadata actually exhibits.
func applyFeatures(adj map[string]float64, meta types.Metadata) float64 {
	var delta float64
	if meta.IsPlugin {
		delta += adj["is_plugin"]
	}
	if meta.IsObserver {
		delta += adj["is_observer"]
	}
	if meta.IsController {
		delta += adj["is_controller"]
	}
	if meta.IsBlock {
		delta += adj["is_block"]
	}
	if meta.ClassName != "" {
		delta += adj["class_match"]
	}
	if meta.MagentoType == "di_config" || meta.FileType == "xml" {
		delta += adj["config_match"]
	}
	pathLower := strings.ToLower(meta.Path)
	if strings.Contains(pathLower, "/etc/") && strings.HasSuffix(pathLower, ".xml") {
		delta += adj["config_xml_dir"]
	}
	return delta
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// featureForSignal maps a feedback signal type to the metadata feature it
// reinforces. An unrecognized type yields ("", false) — learn() no-ops.
func featureForSignal(signalType string) (string, bool) {
	switch signalType {
	case "refinement_to_plugin":
		return "is_plugin", true
	case "refinement_to_class":
		return "class_match", true
	case "refinement_to_config":
		return "config_match", true
	case "refinement_to_observer":
		return "is_observer", true
	case "refinement_to_controller":
		return "is_controller", true
	case "refinement_to_block":
		return "is_block", true
	case "trace_after_search":
		return "is_controller", true
	default:
		return "", false
	}
}

func (w *LearnedWeights) learn(signalType, query string) {
	feature, ok := featureForSignal(signalType)
	if !ok {
		return
	}

	pattern := PatternHash(query)
	w.Counts[pattern]++
	count := w.Counts[pattern]
	lr := baseLR / (1.0 + float64(count)*0.1)

	entry := w.Adjustments[pattern]
	if entry == nil {
		entry = make(map[string]float64)
		w.Adjustments[pattern] = entry
	}
	entry[feature] = clamp(entry[feature]+lr, -maxAdjustment, maxAdjustment)

	if signalType == "refinement_to_config" {
		entry["config_xml_dir"] = clamp(entry["config_xml_dir"]+lr*0.5, -maxAdjustment, maxAdjustment)
	}

	globalLR := lr * 0.3
	w.GlobalCount++
	w.GlobalBias[feature] = clamp(w.GlobalBias[feature]+globalLR, -maxAdjustment, maxAdjustment)

	terms := NormalizeTerms(query)
	termLR := lr * 0.5
	for _, term := range terms {
		w.TermCounts[term]++
		te := w.TermAdjustments[term]
		if te == nil {
			te = make(map[string]float64)
			w.TermAdjustments[term] = te
		}
		te[feature] = clamp(te[feature]+termLR, -maxAdjustment, maxAdjustment)
	}

	for _, neg := range negativeFeatures {
		if neg == feature {
			continue
		}
		entry[neg] = clamp(entry[neg]-lr*negativeLRFactor, -maxAdjustment, maxAdjustment)
		w.GlobalBias[neg] = clamp(w.GlobalBias[neg]-globalLR*negativeLRFactor, -maxAdjustment, maxAdjustment)
		for _, term := range terms {
			te := w.TermAdjustments[term]
			te[neg] = clamp(te[neg]-termLR*negativeLRFactor, -maxAdjustment, maxAdjustment)
		}
	}
}

func (w *LearnedWeights) scoreAdjustment(query string, meta types.Metadata) float64 {
	var delta float64

	pattern := PatternHash(query)
	if adj, ok := w.Adjustments[pattern]; ok {
		delta += applyFeatures(adj, meta)
	}

	terms := NormalizeTerms(query)
	var termSum float64
	var termCount int
	for _, term := range terms {
		if adj, ok := w.TermAdjustments[term]; ok {
			termSum += applyFeatures(adj, meta)
			termCount++
		}
	}
	if termCount > 0 {
		delta += (termSum / float64(termCount)) * 0.7
	}

	if w.GlobalCount > 0 {
		delta += applyFeatures(w.GlobalBias, meta) * 0.3
	}

	return clamp(delta, -maxAdjustment, maxAdjustment)
}
