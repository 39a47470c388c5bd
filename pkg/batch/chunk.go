// Package batch drives a full generation run: it initializes the worker
// pool, probes output size to derive a chunking plan, iterates chunks
// through generate → convert → package → export → release, and reports an
// attributable summary at the end.
//
// Chunking exists to uphold one invariant: peak resident payload data stays
// near a fixed budget regardless of total task count. Chunk N's barrier
// fully resolves, and its packaging and export finish, strictly before
// chunk N+1's generation begins.
package batch

// ChunkPolicy holds the empirically-tuned knobs that turn a probed
// per-document size into a chunk size. The defaults reproduce the
// product's established behavior; deployments with unusual templates can
// override them rather than re-tune constants in code.
type ChunkPolicy struct {
	// BudgetBytes is the target peak size of one chunk's in-memory payload
	// collection, and therefore of one archive.
	BudgetBytes int64

	// Increment rounds chunk sizes down to a stable step so output counts
	// stay predictable across slightly different probe measurements.
	Increment int

	// PDFOverhead scales the probed raster size when a PDF conversion is
	// requested, accounting for the wrapping overhead per document.
	PDFOverhead float64

	// Fallback is the conservative chunk size used when probing fails.
	Fallback int
}

// DefaultChunkPolicy is the production policy: 1 GiB archives, chunk sizes
// in steps of 500, 1.2x margin for PDF wrapping, and a 1000-document
// fallback when the probe cannot measure anything.
var DefaultChunkPolicy = ChunkPolicy{
	BudgetBytes: 1 << 30,
	Increment:   500,
	PDFOverhead: 1.2,
	Fallback:    1000,
}

// ChunkSize derives the chunk size for a probed per-document payload size.
// The result is BudgetBytes/perDocBytes floored to Increment, never below
// Increment itself. Non-positive measurements fall back.
func (p ChunkPolicy) ChunkSize(perDocBytes int64) int {
	if perDocBytes <= 0 {
		return p.Fallback
	}
	n := int(p.BudgetBytes / perDocBytes)
	n -= n % p.Increment
	if n < p.Increment {
		n = p.Increment
	}
	return n
}

// PerDocEstimate applies the conversion overhead to a probed payload size.
func (p ChunkPolicy) PerDocEstimate(probedBytes int, needsConversion bool) int64 {
	if needsConversion {
		return int64(float64(probedBytes) * p.PDFOverhead)
	}
	return int64(probedBytes)
}

// NumChunks returns ceil(totalTasks / chunkSize).
func NumChunks(totalTasks, chunkSize int) int {
	if totalTasks == 0 {
		return 0
	}
	return (totalTasks + chunkSize - 1) / chunkSize
}
