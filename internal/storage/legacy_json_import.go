package storage

import (
	"context"
	"fmt"
	"strings"
)

type LegacyImportStats struct {
	Relays int `json:"relays"`
}

// ImportLegacyJSON merges a relay file written by the JSON backend (or an
// older deployment) into the relays table. A missing file imports nothing.
func (s *SQLiteStore) ImportLegacyJSON(ctx context.Context, path string) (LegacyImportStats, error) {
	stats := LegacyImportStats{}
	if strings.TrimSpace(path) == "" {
		return stats, nil
	}

	mapping, err := readMappingFile(path)
	if err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}
	for ownerID, destID := range mapping {
		if ownerID == 0 || destID == 0 {
			continue
		}
		if err := s.UpsertRelay(ctx, ownerID, destID); err != nil {
			return stats, err
		}
		stats.Relays++
	}
	return stats, nil
}

// ExportJSON writes the current relays table as a JSON relay file.
func (s *SQLiteStore) ExportJSON(ctx context.Context, path string) (int, error) {
	mapping, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := NewJSONFileStore(path).Save(ctx, mapping); err != nil {
		return 0, err
	}
	return len(mapping), nil
}
