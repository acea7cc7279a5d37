package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore persists a single JSON document on disk. Writes go through a temp file and
// a rename so a crash never leaves a half-written document behind.
type JSONStore struct {
	mu       sync.Mutex
	filePath string
}

// NewJSONStore creates a store for dataDir/filename, creating dataDir if needed.
func NewJSONStore(dataDir, filename string) (*JSONStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &JSONStore{filePath: filepath.Join(dataDir, filename)}, nil
}

// Load decodes the document into data. A missing file leaves data untouched.
func (s *JSONStore) Load(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(data)
}

// Update loads the document into data, applies fn and saves the result, all under one
// lock. Nothing is written when fn returns an error.
func (s *JSONStore) Update(data interface{}, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(data); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.save(data)
}

func (s *JSONStore) load(data interface{}) error {
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(data)
}

func (s *JSONStore) save(data interface{}) error {
	tempFile := s.filePath + ".tmp"
	file, err := os.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, s.filePath)
}
