package pprof

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileTypes(), types)

	types, err = ParseProfileTypes(" CPU, heap,cpu ,mutex")
	require.NoError(t, err)
	assert.Equal(t, []ProfileType{ProfileCPU, ProfileHeap, ProfileMutex}, types)

	_, err = ParseProfileTypes("cpu,threads")
	assert.ErrorContains(t, err, "threads")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{Profiles: DefaultProfileTypes()}).Validate())
	assert.Error(t, (&Config{OutputDir: "x"}).Validate())
	assert.Error(t, (&Config{OutputDir: "x", Profiles: DefaultProfileTypes(), CPURate: -1}).Validate())
}

func TestSession_WritesProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	s, err := Start(&Config{
		OutputDir: dir,
		Profiles:  []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine, ProfileBlock},
	})
	require.NoError(t, err)
	assert.Equal(t, dir, s.OutputDir())

	sum := 0
	for i := 0; i < 100000; i++ {
		sum += i % 7
	}
	assert.Positive(t, sum)

	files, err := s.Stop()
	require.NoError(t, err)
	require.Len(t, files, 4)
	for _, f := range files {
		assert.FileExists(t, f)
		assert.Equal(t, dir, filepath.Dir(f))
	}

	files, err = s.Stop()
	assert.NoError(t, err)
	assert.Empty(t, files)
}

func TestStart_InvalidConfig(t *testing.T) {
	_, err := Start(&Config{OutputDir: t.TempDir()})
	assert.Error(t, err)
}
