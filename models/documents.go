package models

// SourceDocument represents a retrieved chunk and its origin.
type SourceDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IndexedDocument is one PDF known to the index.
type IndexedDocument struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// GetDocumentsResponse is the structure for the response of the GET /documents endpoint.
type GetDocumentsResponse struct {
	Count     int               `json:"count"`
	Documents []IndexedDocument `json:"documents"`
}
