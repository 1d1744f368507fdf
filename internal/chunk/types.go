// Package chunk splits source documents into overlapping, sentence-aligned
// chunks suitable for indexing and retrieval.
package chunk

// Chunk is a retrievable unit of document text. Chunks are immutable once
// created; Index ordering is significant and preserved end to end.
type Chunk struct {
	// Content is the chunk text, trimmed of surrounding whitespace.
	Content string

	// Index is the 0-based position of this chunk within its document.
	Index int

	// Start is the byte offset of Content in the original document text.
	Start int

	// End is the byte offset one past the last byte of Content.
	End int

	// Metadata carries caller-supplied document metadata plus chunk
	// provenance keys (chunk_index, total_chunks, original_doc_id).
	Metadata map[string]string
}
