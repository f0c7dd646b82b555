package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage tracks which survey responses have already been published.

// Store tracks published response IDs per survey.
type Store interface {
	Close() error
	SeenResponse(surveyID, responseID string) (bool, error)
	MarkResponse(surveyID, responseID string) error
}

// Options controls retention characteristics for concrete store implementations.
// A zero ResponseTTL keeps marks forever.
type Options struct {
	ResponseTTL     time.Duration
	CleanupInterval time.Duration
}

const defaultCleanupInterval = 12 * time.Hour

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ResponseTTL < 0 {
		opts.ResponseTTL = 0
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// responseKey namespaces response ids by survey; ids are only unique per survey.
func responseKey(surveyID, responseID string) []byte {
	return []byte(surveyID + "/" + responseID)
}

type noopStore struct{}

func (noopStore) Close() error                              { return nil }
func (noopStore) SeenResponse(string, string) (bool, error) { return false, nil }
func (noopStore) MarkResponse(string, string) error         { return nil }
