package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hanamilabs/pretender-bot/internal/domain"
)

// JSONFileStore keeps the relay mapping in a flat JSON object
// {"<owner id>": <destination id>}. Every Save rewrites the whole file.
type JSONFileStore struct {
	path string
}

func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

func (s *JSONFileStore) Location() string {
	return s.path
}

func (s *JSONFileStore) Close() error {
	return nil
}

func (s *JSONFileStore) Load(_ context.Context) (domain.Mapping, error) {
	mapping, err := readMappingFile(s.path)
	if err != nil {
		return nil, &domain.StorageError{Op: "load", Path: s.path, Err: err}
	}
	return mapping, nil
}

func (s *JSONFileStore) Save(_ context.Context, mapping domain.Mapping) error {
	raw, err := encodeMapping(mapping)
	if err != nil {
		return &domain.StorageError{Op: "save", Path: s.path, Err: err}
	}
	if err := writeFileAtomic(s.path, raw, 0o644); err != nil {
		return &domain.StorageError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func readMappingFile(path string) (domain.Mapping, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Mapping{}, nil
		}
		return nil, err
	}
	return decodeMapping(content)
}

func decodeMapping(content []byte) (domain.Mapping, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return domain.Mapping{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var raw map[string]json.Number
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse relay mapping: %w", err)
	}

	out := make(domain.Mapping, len(raw))
	for key, value := range raw {
		ownerID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner id %q: %w", key, err)
		}
		destID, err := value.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid destination id %q for owner %d: %w", value, ownerID, err)
		}
		out[ownerID] = destID
	}
	return out, nil
}

func encodeMapping(mapping domain.Mapping) ([]byte, error) {
	raw := make(map[string]int64, len(mapping))
	for ownerID, destID := range mapping {
		raw[strconv.FormatInt(ownerID, 10)] = destID
	}
	return json.Marshal(raw)
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
