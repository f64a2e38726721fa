package submanager

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queueNamePattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestGenerateQueue_Format(t *testing.T) {
	q := GenerateQueue()
	assert.Regexp(t, queueNamePattern, q)
}

func TestGenerateQueue_UniqueAcrossGoroutines(t *testing.T) {
	const workers, perWorker = 8, 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, GenerateQueue())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, q := range local {
				seen[q] = struct{}{}
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
