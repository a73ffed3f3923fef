package lenstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/pkg/types"
)

// profileEntry is one entry of a profiles file:
//
//	0x1234...abcd:
//	  id: "0x01"
//	  handle: alice.test
type profileEntry struct {
	ID     string `yaml:"id"`
	Handle string `yaml:"handle"`
}

// ReadProfiles parses a profiles file keyed by wallet address.
func ReadProfiles(path string) (map[common.Address]types.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var entries map[string]profileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	profiles := make(map[common.Address]types.Profile, len(entries))
	for addr, e := range entries {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid address %q in profiles file", addr)
		}
		if e.ID == "" || e.Handle == "" {
			return nil, fmt.Errorf("profile of %s needs id and handle", addr)
		}
		profiles[common.HexToAddress(addr)] = types.Profile{ID: e.ID, Handle: e.Handle}
	}
	return profiles, nil
}

// LoadProfiles replaces the profiles previously loaded from a file with the
// contents of path. Profiles added with AddProfile are kept.
func (s *Server) LoadProfiles(path string) (int, error) {
	profiles, err := ReadProfiles(path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.fileProfiles {
		delete(s.profiles, key)
	}
	s.fileProfiles = make(map[string]struct{}, len(profiles))
	for addr, p := range profiles {
		key := strings.ToLower(addr.Hex())
		s.profiles[key] = p
		s.fileProfiles[key] = struct{}{}
	}
	return len(profiles), nil
}

// WatchProfiles reloads path whenever it changes until ctx is done. A file
// that fails to parse leaves the previous profiles in place.
func (s *Server) WatchProfiles(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; editors often replace the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			n, err := s.LoadProfiles(path)
			if err != nil {
				logging.Warn("profiles file not reloaded",
					logging.Component("lenstest"),
					logging.Err(err))
				continue
			}
			logging.Info("profiles reloaded",
				logging.Component("lenstest"),
				"count", n)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("profiles watcher error", logging.Component("lenstest"), logging.Err(err))
		}
	}
}
