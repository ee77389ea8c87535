// Package types holds the data shapes shared across parsing, vectorstore,
// ranker and sona so those packages don't need to import one another.
package types

// Metadata is everything the ranker and SONA need to know about an indexed
// code unit, independent of its embedding vector.
type Metadata struct {
	Path        string `json:"path"`
	FileType    string `json:"file_type"`
	MagentoType string `json:"magento_type"`

	ClassName  string   `json:"class_name,omitempty"`
	ClassType  string   `json:"class_type,omitempty"`
	MethodName string   `json:"method_name,omitempty"`
	Methods    []string `json:"methods,omitempty"`
	Namespace  string   `json:"namespace,omitempty"`
	Module     string   `json:"module,omitempty"`
	Area       string   `json:"area,omitempty"`
	Extends    string   `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`

	IsController   bool `json:"is_controller"`
	IsRepository   bool `json:"is_repository"`
	IsPlugin       bool `json:"is_plugin"`
	IsObserver     bool `json:"is_observer"`
	IsModel        bool `json:"is_model"`
	IsBlock        bool `json:"is_block"`
	IsResolver     bool `json:"is_resolver"`
	IsAPIInterface bool `json:"is_api_interface"`
	IsUIComponent  bool `json:"is_ui_component"`
	IsWidget       bool `json:"is_widget"`
	IsMixin        bool `json:"is_mixin"`

	JSDependencies []string `json:"js_dependencies,omitempty"`
	SearchText     string   `json:"search_text,omitempty"`
}

// SearchResult pairs a ranked metadata record with its score.
type SearchResult struct {
	ID       uint64   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}
