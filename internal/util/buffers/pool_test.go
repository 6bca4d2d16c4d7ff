package buffers

import (
	"sync"
	"testing"

	"github.com/odoobiznes/kms-fsnav/internal/constants"
)

// TestCopyBufferPool verifies that buffers can be retrieved and returned
func TestCopyBufferPool(t *testing.T) {
	buf := GetCopyBuffer()
	if buf == nil {
		t.Fatal("GetCopyBuffer returned nil")
	}
	if len(*buf) != constants.CopyBufferSize {
		t.Errorf("Buffer size = %d, want %d", len(*buf), constants.CopyBufferSize)
	}
	PutCopyBuffer(buf)

	buf2 := GetCopyBuffer()
	if buf2 == nil {
		t.Fatal("GetCopyBuffer returned nil on second call")
	}
	PutCopyBuffer(buf2)
}

// TestPutCopyBufferClearsContents verifies pooled buffers do not leak data
func TestPutCopyBufferClearsContents(t *testing.T) {
	buf := GetCopyBuffer()
	(*buf)[0] = 0xff
	(*buf)[len(*buf)-1] = 0xff
	PutCopyBuffer(buf)

	if (*buf)[0] != 0 || (*buf)[len(*buf)-1] != 0 {
		t.Error("PutCopyBuffer should clear the buffer")
	}
}

// TestPutCopyBufferWithWrongSize verifies wrong-sized buffers are not pooled
func TestPutCopyBufferWithWrongSize(t *testing.T) {
	wrongSizeBuf := make([]byte, 1024)
	PutCopyBuffer(&wrongSizeBuf) // Should not panic, just not pool it
	PutCopyBuffer(nil)
}

// TestConcurrentAccess tests concurrent buffer get/put operations
func TestConcurrentAccess(t *testing.T) {
	const goroutines = 10
	const iterations = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				buf := GetCopyBuffer()
				(*buf)[0] = byte(j)
				PutCopyBuffer(buf)
			}
		}()
	}
	wg.Wait()
}

// TestGetStats verifies stats are returned correctly
func TestGetStats(t *testing.T) {
	before := GetStats()
	PutCopyBuffer(GetCopyBuffer())
	after := GetStats()

	if after.BufferSize != constants.CopyBufferSize {
		t.Errorf("BufferSize = %d, want %d", after.BufferSize, constants.CopyBufferSize)
	}
	if after.Gets != before.Gets+1 {
		t.Errorf("Gets = %d, want %d", after.Gets, before.Gets+1)
	}
	if after.Allocations < 1 {
		t.Errorf("Allocations = %d, want at least 1", after.Allocations)
	}
}

// BenchmarkCopyBufferWithPool benchmarks buffer allocation with pooling
func BenchmarkCopyBufferWithPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetCopyBuffer()
		_ = (*buf)[0]
		PutCopyBuffer(buf)
	}
}

// BenchmarkCopyBufferWithoutPool benchmarks buffer allocation without pooling
func BenchmarkCopyBufferWithoutPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := make([]byte, constants.CopyBufferSize)
		_ = buf[0]
	}
}
