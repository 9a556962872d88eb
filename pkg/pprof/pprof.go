// Package pprof records runtime profiles of the process for the duration of
// a session. The CLI uses it to profile long mining runs.
package pprof

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"
	"time"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap}
}

// ParseProfileTypes parses a comma-separated string into profile types.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	parts := strings.Split(s, ",")
	types := make([]ProfileType, 0, len(parts))
	seen := make(map[ProfileType]bool, len(parts))
	for _, p := range parts {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		if !seen[pt] {
			seen[pt] = true
			types = append(types, pt)
		}
	}
	return types, nil
}

// Config holds the profiling configuration.
type Config struct {
	// OutputDir receives one file per profile type.
	OutputDir string

	// Profiles specifies which profile types to collect.
	Profiles []ProfileType

	// CPURate is the CPU profiling rate in Hz. Zero keeps the runtime default.
	CPURate int
}

// DefaultConfig returns a config writing CPU and heap profiles to ./pprof.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "./pprof",
		Profiles:  DefaultProfileTypes(),
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile type is required")
	}
	if c.CPURate < 0 {
		return fmt.Errorf("cpu rate must not be negative")
	}
	return nil
}

// HasProfile reports whether pt is requested.
func (c *Config) HasProfile(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

// Session profiles the process from Start until Stop. The CPU profile
// streams to disk while the session runs; the others are snapshots taken
// at Stop.
type Session struct {
	config *Config
	stamp  string

	mu      sync.Mutex
	cpuFile *os.File
	stopped bool
}

// Start validates cfg, creates the output directory and starts the CPU
// profile if requested.
func Start(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := &Session{config: cfg, stamp: time.Now().Format("20060102_150405")}

	if cfg.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	if cfg.HasProfile(ProfileCPU) {
		if cfg.CPURate > 0 {
			runtime.SetCPUProfileRate(cfg.CPURate)
		}
		f, err := os.Create(s.path(ProfileCPU))
		if err != nil {
			return nil, fmt.Errorf("failed to create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		s.cpuFile = f
	}

	return s, nil
}

// Stop ends the CPU profile, writes the snapshot profiles and returns the
// paths of all files written. Calling Stop twice is a no-op.
func (s *Session) Stop() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, nil
	}
	s.stopped = true

	var files []string
	var firstErr error
	keep := func(path string, err error) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		files = append(files, path)
	}

	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		keep(s.cpuFile.Name(), s.cpuFile.Close())
	}

	for _, pt := range s.config.Profiles {
		if pt == ProfileCPU {
			continue
		}
		keep(s.path(pt), s.snapshot(pt))
	}

	if s.config.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(0)
	}
	if s.config.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(0)
	}

	return files, firstErr
}

// OutputDir returns the directory profiles are written to.
func (s *Session) OutputDir() string {
	return s.config.OutputDir
}

func (s *Session) snapshot(pt ProfileType) error {
	if pt == ProfileHeap {
		runtime.GC()
	}
	profile := pprof.Lookup(string(pt))
	if profile == nil {
		return fmt.Errorf("profile %s not available", pt)
	}

	f, err := os.Create(s.path(pt))
	if err != nil {
		return fmt.Errorf("failed to create %s profile: %w", pt, err)
	}
	if err := profile.WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	return f.Close()
}

func (s *Session) path(pt ProfileType) string {
	return filepath.Join(s.config.OutputDir, fmt.Sprintf("%s_%s.pprof", pt, s.stamp))
}
