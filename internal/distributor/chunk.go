package distributor

// Chunk is one worker's share of [0, n): Start inclusive, End exclusive.
type Chunk struct {
	Start, End int
}

// Len returns the number of indices in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Split partitions [0, n) into at most workers contiguous chunks of
// near-equal size. The last chunk absorbs the remainder. No chunk is empty,
// so when n < workers only n single-index chunks are produced.
func Split(n, workers int) []Chunk {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	size := n / workers
	chunks := make([]Chunk, workers)
	for i := range chunks {
		chunks[i] = Chunk{Start: i * size, End: (i + 1) * size}
	}
	chunks[workers-1].End = n
	return chunks
}
