package batch

import "testing"

func TestChunkSize(t *testing.T) {
	p := DefaultChunkPolicy
	tests := []struct {
		name   string
		perDoc int64
		want   int
	}{
		// 1 GiB / 2 MiB = 512, floored to the 500 increment.
		{"two MiB docs", 2 << 20, 500},
		// Tiny docs: large chunk, still a multiple of 500.
		{"small docs", 100 << 10, 10_000},
		// Huge docs: floor clamps to the increment itself.
		{"huge docs", 1 << 29, 500},
		// Bad measurement falls back.
		{"zero", 0, p.Fallback},
		{"negative", -5, p.Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ChunkSize(tt.perDoc); got != tt.want {
				t.Errorf("ChunkSize(%d) = %d, want %d", tt.perDoc, got, tt.want)
			}
		})
	}
}

func TestChunkSizeAlwaysIncrementMultiple(t *testing.T) {
	p := DefaultChunkPolicy
	for _, perDoc := range []int64{1, 999, 4096, 1 << 20, 3 << 20, 1 << 28} {
		got := p.ChunkSize(perDoc)
		if got%p.Increment != 0 {
			t.Errorf("ChunkSize(%d) = %d, not a multiple of %d", perDoc, got, p.Increment)
		}
		if got < p.Increment {
			t.Errorf("ChunkSize(%d) = %d, below increment floor", perDoc, got)
		}
	}
}

func TestPerDocEstimate(t *testing.T) {
	p := DefaultChunkPolicy
	if got := p.PerDocEstimate(1000, false); got != 1000 {
		t.Errorf("raster estimate = %d, want 1000", got)
	}
	if got := p.PerDocEstimate(1000, true); got != 1200 {
		t.Errorf("pdf estimate = %d, want 1200", got)
	}
}

func TestNumChunks(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 500, 0},
		{1, 500, 1},
		{500, 500, 1},
		{501, 500, 2},
		{1499, 500, 3},
		{1500, 500, 3},
	}
	for _, tt := range tests {
		if got := NumChunks(tt.total, tt.size); got != tt.want {
			t.Errorf("NumChunks(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

// Chunk partitioning must cover every task exactly once for any chunk size
// and task count.
func TestChunkPartitionCoversTasks(t *testing.T) {
	for _, total := range []int{1, 7, 500, 1234} {
		for _, size := range []int{1, 3, 500, 2000} {
			chunks := NumChunks(total, size)
			covered := 0
			for ci := 0; ci < chunks; ci++ {
				lo := ci * size
				hi := lo + size
				if hi > total {
					hi = total
				}
				covered += hi - lo
			}
			if covered != total {
				t.Errorf("total=%d size=%d: covered %d tasks", total, size, covered)
			}
		}
	}
}
