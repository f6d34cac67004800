package ulogger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	mu    sync.Mutex
	lines []string
	fatal bool
}

func (r *recordingT) Logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.Logf(format, args...)
	r.fatal = true
}

func TestVerboseTestLogger_Levels(t *testing.T) {
	rt := &recordingT{}
	logger := NewVerboseTestLogger(rt)

	logger.Debugf("d %d", 1)
	logger.Infof("i %d", 2)
	logger.Warnf("w %d", 3)
	logger.Errorf("e %d", 4)
	logger.Fatalf("f %d", 5)

	require.Len(t, rt.lines, 5)
	assert.Equal(t, "[DEBUG] d 1", rt.lines[0])
	assert.Equal(t, "[INFO] i 2", rt.lines[1])
	assert.Equal(t, "[WARN] w 3", rt.lines[2])
	assert.Equal(t, "[ERROR] e 4", rt.lines[3])
	assert.Equal(t, "[FATAL] f 5", rt.lines[4])
	assert.True(t, rt.fatal)
}

func TestVerboseTestLogger_NewAddsServicePrefix(t *testing.T) {
	rt := &recordingT{}
	logger := NewVerboseTestLogger(rt).New("netsync")

	logger.Infof("hello")

	require.Len(t, rt.lines, 1)
	assert.Equal(t, "[INFO] [netsync] hello", rt.lines[0])

	logger.Duplicate().Warnf("again")
	assert.Equal(t, "[WARN] [netsync] again", rt.lines[1])
}

func TestVerboseTestLogger_Concurrent(t *testing.T) {
	rt := &recordingT{}
	logger := NewVerboseTestLogger(rt)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			logger.Infof("line %d", i)
		}(i)
	}

	wg.Wait()

	assert.Len(t, rt.lines, 50)
}
