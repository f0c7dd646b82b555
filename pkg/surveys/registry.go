package surveys

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package surveys loads the list of surveys the harvester exports.

// Survey is one harvest target declared in the surveys file.
type Survey struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled *bool  `json:"enabled" yaml:"enabled"`
}

// EnabledValue returns the enabled flag defaulting to true.
func (s Survey) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

type registryFile struct {
	Surveys []Survey `json:"surveys" yaml:"surveys"`
}

// Registry holds the loaded survey entries.
type Registry struct {
	mu      sync.RWMutex
	surveys []Survey
	idx     map[string]int
}

// LoadRegistry loads surveys from a YAML or JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("surveys file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open surveys file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read surveys file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Surveys) == 0 {
		return nil, errors.New("surveys file contains no surveys entries")
	}

	reg := &Registry{
		surveys: make([]Survey, len(parsed.Surveys)),
		idx:     make(map[string]int, len(parsed.Surveys)),
	}
	for i := range parsed.Surveys {
		s := sanitizeSurvey(parsed.Surveys[i])
		if s.ID == "" {
			return nil, fmt.Errorf("surveys[%d]: id is required", i)
		}
		if _, exists := reg.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate survey id %q", s.ID)
		}
		reg.surveys[i] = s
		reg.idx[s.ID] = i
	}
	return reg, nil
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("surveys file format not recognized (expected YAML or JSON)")
}

func sanitizeSurvey(s Survey) Survey {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	if s.Enabled == nil {
		def := true
		s.Enabled = &def
	}
	return s
}

// All returns a copy of every survey entry.
func (r *Registry) All() []Survey {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Survey, len(r.surveys))
	copy(out, r.surveys)
	return out
}

// Enabled returns surveys that are enabled.
func (r *Registry) Enabled() []Survey {
	all := r.All()
	out := make([]Survey, 0, len(all))
	for _, s := range all {
		if s.EnabledValue() {
			out = append(out, s)
		}
	}
	return out
}

// ByID returns the survey entry for id.
func (r *Registry) ByID(id string) (Survey, bool) {
	if r == nil {
		return Survey{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return Survey{}, false
	}
	return r.surveys[i], true
}

// SetName fills in a display name resolved from the survey listing.
func (r *Registry) SetName(id, name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.idx[id]; ok && r.surveys[i].Name == "" {
		r.surveys[i].Name = strings.TrimSpace(name)
	}
}
