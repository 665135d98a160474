package lesson

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	storage "github.com/supabase-community/supabase-go"
)

// FileStore persists generated lesson audio and returns a URL the player can
// fetch it from.
type FileStore interface {
	Save(name, contentType string, data []byte) (string, error)
}

// LocalStore writes files into the public directory served by the HTTP server.
type LocalStore struct {
	Dir string
	// URLPrefix is the route the directory is mounted at, default "/public".
	URLPrefix string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir, URLPrefix: "/public"}
}

func (s *LocalStore) Save(name, contentType string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("create public dir: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return s.URLPrefix + "/" + name, nil
}

// SupabaseStore uploads lesson audio to a Supabase storage bucket.
type SupabaseStore struct {
	client *storage.Client
	url    string
	bucket string
}

func NewSupabaseStore(url, serviceRoleKey, bucket string) (*SupabaseStore, error) {
	client, err := storage.NewClient(url, serviceRoleKey, &storage.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, url: url, bucket: bucket}, nil
}

func (s *SupabaseStore) Save(name, contentType string, data []byte) (string, error) {
	if _, err := s.client.Storage.UploadFile(s.bucket, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("upload to supabase: %w", err)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.bucket, name), nil
}
