package teams

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber answers true only for the ports in alive, counting calls.
type fakeProber struct {
	alive  map[int]bool
	probed []int
}

func (f *fakeProber) Probe(_ context.Context, port int) bool {
	f.probed = append(f.probed, port)
	return f.alive[port]
}

func writeTeamsConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desktop-config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLocateConfigFastPath(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{8123: true}}
	l := NewLocator(fp, nil)
	l.ConfigPath = writeTeamsConfig(t, `{"webSocketPort": 8123}`)

	port, ok := l.Locate(context.Background())
	require.True(t, ok)
	assert.Equal(t, 8123, port)
	assert.Equal(t, []int{8123}, fp.probed, "fast path should skip the scan")
}

func TestLocateFallsBackToScan(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{8003: true}}
	l := NewLocator(fp, nil)
	l.ConfigPath = writeTeamsConfig(t, `{"webSocketPort": 8500}`)
	l.PortStart = 8001
	l.PortEnd = 8010

	port, ok := l.Locate(context.Background())
	require.True(t, ok)
	assert.Equal(t, 8003, port)
	// Recorded port first, then the scan from the bottom of the window.
	assert.Equal(t, []int{8500, 8001, 8002, 8003}, fp.probed)
}

func TestLocateScanWithoutConfig(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{8002: true}}
	l := NewLocator(fp, nil)
	l.ConfigPath = filepath.Join(t.TempDir(), "missing.json")
	l.PortStart = 8001
	l.PortEnd = 8010

	port, ok := l.Locate(context.Background())
	require.True(t, ok)
	assert.Equal(t, 8002, port)
}

func TestLocateCorruptConfigIsNonFatal(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{8001: true}}
	l := NewLocator(fp, nil)
	l.ConfigPath = writeTeamsConfig(t, `{not json`)
	l.PortStart = 8001
	l.PortEnd = 8005

	port, ok := l.Locate(context.Background())
	require.True(t, ok)
	assert.Equal(t, 8001, port)
}

func TestLocateNothingAlive(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{}}
	l := NewLocator(fp, nil)
	l.ConfigPath = ""
	l.PortStart = 8001
	l.PortEnd = 8005

	_, ok := l.Locate(context.Background())
	assert.False(t, ok)
	assert.Len(t, fp.probed, 5)
}

func TestLocateHonorsCancellation(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{8999: true}}
	l := NewLocator(fp, nil)
	l.ConfigPath = ""

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := l.Locate(ctx)
	assert.False(t, ok)
	assert.Empty(t, fp.probed)
}

func TestLocateIgnoresNonPositiveConfigPort(t *testing.T) {
	fp := &fakeProber{alive: map[int]bool{8001: true}}
	l := NewLocator(fp, nil)
	l.ConfigPath = writeTeamsConfig(t, `{"webSocketPort": 0}`)
	l.PortStart = 8001
	l.PortEnd = 8002

	port, ok := l.Locate(context.Background())
	require.True(t, ok)
	assert.Equal(t, 8001, port)
	assert.Equal(t, []int{8001}, fp.probed)
}
