package indexer

// Chunk splits text into consecutive, non-overlapping pieces of size runes.
// The last piece may be shorter. A non-positive size yields the whole text
// as one chunk; empty text yields none.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
