package models

// Transfer identifies one file exchange.
type Transfer struct {
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	ChunkSize   int    `json:"chunk_size"`
}
