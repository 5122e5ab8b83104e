package domain

// KnowledgeChunk is one indexable piece of a knowledge-base source.
type KnowledgeChunk struct {
	ID        string         `json:"id"`
	SourceKey string         `json:"source_key"`
	Index     int            `json:"chunk_index"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IngestReport summarizes one ingested source.
type IngestReport struct {
	SourceKey string `json:"source_key"`
	Chunks    int    `json:"chunks"`
}
