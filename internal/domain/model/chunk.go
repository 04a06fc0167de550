package model

import "fmt"

// MetaSourceURL is the metadata key holding a chunk's origin.
const MetaSourceURL = "source_url"

type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ChunkID is deterministic so re-ingesting a URL overwrites its chunks.
func ChunkID(url string, ordinal int) string {
	return fmt.Sprintf("%s_%d", url, ordinal)
}

// NewChunks numbers texts from 0 in order and tags each with url.
func NewChunks(url string, texts []string) []Chunk {
	out := make([]Chunk, 0, len(texts))
	for i, t := range texts {
		out = append(out, Chunk{
			ID:       ChunkID(url, i),
			Text:     t,
			Metadata: map[string]string{MetaSourceURL: url},
		})
	}
	return out
}
