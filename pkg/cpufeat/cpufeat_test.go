package cpufeat

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectIsStable(t *testing.T) {
	first := Detect()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Detect())
	}
	assert.Equal(t, runtime.GOARCH, first.Arch)
}

func TestDetectConcurrentFirstCall(t *testing.T) {
	snapshot.Store(nil)

	const callers = 16
	results := make([]Snapshot, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Detect()
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	require.NotNil(t, snapshot.Load())
	assert.Equal(t, results[0], *snapshot.Load())
}

func TestFeatures(t *testing.T) {
	s := Snapshot{HasHardwareCRC32: true, HasAVX2: true}
	assert.Equal(t, []string{"crc32", "avx2"}, s.Features())
	assert.Empty(t, Snapshot{}.Features())
}

func TestHardwareCRC32Consistency(t *testing.T) {
	s := Detect()
	if runtime.GOARCH == "amd64" {
		assert.Equal(t, s.HasSSE42 && s.HasPCLMULQDQ, s.HasHardwareCRC32)
	}
}
