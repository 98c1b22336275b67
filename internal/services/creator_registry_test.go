package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"personachat/internal/models"
)

const creatorsYAML = `creators:
  - id: hawa_singh
    name: Hawa Singh
    specialty: YouTube Growth Expert
    tone: friendly_expert
    language_style: hinglish
    expertise_areas: [YouTube growth, Content strategy]
    is_active: true
  - id: retired
    name: Retired Creator
    is_active: false
`

func writeCreators(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "creators.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write creators file: %v", err)
	}
	return path
}

func TestLoadCreatorRegistry(t *testing.T) {
	path := writeCreators(t, t.TempDir(), creatorsYAML)

	reg, err := LoadCreatorRegistry(path)
	if err != nil {
		t.Fatalf("LoadCreatorRegistry() error = %v", err)
	}

	c, err := reg.Get("hawa_singh")
	if err != nil {
		t.Fatalf("Get(hawa_singh) error = %v", err)
	}
	if c.Name != "Hawa Singh" || len(c.Expertise) != 2 {
		t.Errorf("creator = %+v", c)
	}

	for _, ref := range []models.CreatorCorpusRef{"retired", "nobody"} {
		if _, err := reg.Get(ref); !errors.Is(err, ErrInvalidCreator) {
			t.Errorf("Get(%s) error = %v, want invalid_creator", ref, err)
		}
	}
	if got := len(reg.List()); got != 1 {
		t.Errorf("List() returned %d creators, want 1", got)
	}
}

func TestLoadCreatorRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "creators: [\n"},
		{"missing id", "creators:\n  - name: Nameless\n"},
		{"duplicate", "creators:\n  - id: a\n  - id: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCreators(t, t.TempDir(), tt.content)
			if _, err := LoadCreatorRegistry(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCreatorRegistry_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeCreators(t, dir, creatorsYAML)

	reg, err := LoadCreatorRegistry(path)
	if err != nil {
		t.Fatalf("LoadCreatorRegistry() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reg.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeCreators(t, dir, creatorsYAML+"  - id: priya_cooks\n    name: Priya\n    is_active: true\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := reg.Get("priya_cooks"); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("registry did not pick up the new creator")
}
