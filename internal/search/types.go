package search

// Query is one search request. Package and Type are exact-match filters
// applied after ranking; empty means unset.
type Query struct {
	Text    string
	Package string
	Type    string
	TopK    int

	// MinScore overrides the engine's minimum similarity when non-nil.
	MinScore *float64
}

// Result represents one matched asset.
type Result struct {
	ID        int64   `json:"id"`
	Package   string  `json:"package"`
	AssetType string  `json:"type"`
	AssetName string  `json:"name"`
	Score     float64 `json:"score"`
}

// Status describes the resident index.
type Status struct {
	Ready      bool   `json:"ready"`
	Generation string `json:"generation,omitempty"`
	ModelID    string `json:"model_id,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	Entries    int    `json:"entries"`
	Dim        int    `json:"dim,omitempty"`
}
