package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"personachat/internal/models"
)

// CreatorRegistry holds the known creator personas. It is read-mostly
// configuration and is replaced wholesale on reload.
type CreatorRegistry struct {
	mu       sync.RWMutex
	creators map[string]models.Creator
	path     string
}

// NewCreatorRegistry creates a registry from an in-memory list
func NewCreatorRegistry(creators []models.Creator) *CreatorRegistry {
	r := &CreatorRegistry{}
	r.replace(creators)
	return r
}

// LoadCreatorRegistry reads creators from a YAML file
func LoadCreatorRegistry(path string) (*CreatorRegistry, error) {
	creators, err := readCreatorsFile(path)
	if err != nil {
		return nil, err
	}
	r := &CreatorRegistry{path: path}
	r.replace(creators)
	log.Printf("✅ [CREATORS] Loaded %d creators from %s", len(creators), path)
	return r, nil
}

func readCreatorsFile(path string) ([]models.Creator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read creators file: %w", err)
	}

	var file models.CreatorsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse creators YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Creators))
	for i, c := range file.Creators {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("creator at index %d has no id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate creator id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return file.Creators, nil
}

func (r *CreatorRegistry) replace(creators []models.Creator) {
	next := make(map[string]models.Creator, len(creators))
	for _, c := range creators {
		next[c.ID] = c
	}
	r.mu.Lock()
	r.creators = next
	r.mu.Unlock()
}

// Get returns the active creator for ref, or an invalid_creator error
func (r *CreatorRegistry) Get(ref models.CreatorCorpusRef) (models.Creator, error) {
	r.mu.RLock()
	c, ok := r.creators[string(ref)]
	r.mu.RUnlock()

	if !ok {
		return models.Creator{}, newChatError(KindInvalidCreator, nil, "unknown creator %q", ref)
	}
	if !c.IsActive {
		return models.Creator{}, newChatError(KindInvalidCreator, nil, "creator %q is not active", ref)
	}
	return c, nil
}

// List returns the active creators
func (r *CreatorRegistry) List() []models.Creator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Creator, 0, len(r.creators))
	for _, c := range r.creators {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

// Reload re-reads the backing file. On error the current set is kept.
func (r *CreatorRegistry) Reload() error {
	if r.path == "" {
		return fmt.Errorf("creator registry has no backing file")
	}
	creators, err := readCreatorsFile(r.path)
	if err != nil {
		return err
	}
	r.replace(creators)
	return nil
}

// Watch reloads the registry when its file changes, until ctx is done
func (r *CreatorRegistry) Watch(ctx context.Context) error {
	if r.path == "" {
		return fmt.Errorf("creator registry has no backing file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(r.path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to get absolute path for %s: %w", r.path, err)
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	log.Printf("👁️  [CREATORS] Watching %s for changes", r.path)

	go func() {
		defer watcher.Close()

		var debounceTimer *time.Timer
		debounceDuration := 500 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filename {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := r.Reload(); err != nil {
						log.Printf("❌ [CREATORS] Reload failed, keeping previous creators: %v", err)
						return
					}
					log.Printf("🔄 [CREATORS] Reloaded creators from %s", r.path)
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  [CREATORS] File watcher error: %v", err)
			}
		}
	}()

	return nil
}
