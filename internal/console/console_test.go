package console

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Write(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)

	n, err := s.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "hello\n", buf.String())
}

func TestSink_Printf(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)

	s.Printf("check %s: %d ms\n", "status", 42)
	assert.Equal(t, "check status: 42 ms\n", buf.String())
}

func TestSink_NilWriter(t *testing.T) {
	s := NewSink(nil)
	_, err := s.Write([]byte("dropped"))
	assert.NoError(t, err)
}

func TestSink_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)

	const writers = 16
	const repeats = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// Each writer flushes a multi-line block in one Write, the way
			// checks flush their buffered output.
			block := fmt.Sprintf("begin %02d\nline %02d\nend %02d\n", id, id, id)
			for j := 0; j < repeats; j++ {
				_, err := s.Write([]byte(block))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, writers*repeats*3)

	// Blocks must come out whole: every begin is followed by its own line
	// and end markers.
	for i := 0; i < len(lines); i += 3 {
		var id int
		_, err := fmt.Sscanf(lines[i], "begin %02d", &id)
		require.NoError(t, err, "unexpected line %q at %d", lines[i], i)
		assert.Equal(t, fmt.Sprintf("line %02d", id), lines[i+1])
		assert.Equal(t, fmt.Sprintf("end %02d", id), lines[i+2])
	}
}
