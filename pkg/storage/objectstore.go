package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StoredObject describes an uploaded file.
type StoredObject struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// ObjectStore persists uploaded media on disk under a base directory and
// exposes the upload/delete/signed-URL contract the media service relies on.
type ObjectStore struct {
	baseDir       string
	publicBaseURL string
	signer        *SignedURLSigner
}

// NewObjectStore ensures the base directory exists and returns a handle.
func NewObjectStore(baseDir, publicBaseURL string, signer *SignedURLSigner) (*ObjectStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &ObjectStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		signer:        signer,
	}, nil
}

// Upload streams the reader into a new object under the given folder and
// returns its key and public URL. The key embeds a random UUID so uploads
// never collide.
func (s *ObjectStore) Upload(r io.Reader, folder, filename string) (*StoredObject, error) {
	ext := filepath.Ext(filename)
	key := path.Join(folder, uuid.NewString()+ext)

	target := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	size, err := io.Copy(file, r)
	if err != nil {
		_ = os.Remove(target)
		return nil, fmt.Errorf("write object: %w", err)
	}

	return &StoredObject{
		Key:  key,
		URL:  s.publicBaseURL + "/" + key,
		Size: size,
	}, nil
}

// Open returns a read-only handle for the stored object.
func (s *ObjectStore) Open(key string) (*os.File, error) {
	file, err := os.Open(s.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Delete removes an object if present. Missing objects are not an error so
// that row deletion stays idempotent.
func (s *ObjectStore) Delete(key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// SignedURL returns a time-limited download URL for a stored object.
func (s *ObjectStore) SignedURL(key string) (string, error) {
	if s.signer == nil {
		return "", fmt.Errorf("signer not configured")
	}
	token, _, err := s.signer.Generate(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/download?token=%s", s.publicBaseURL, token), nil
}

// HealthCheck verifies the base directory is writable.
func (s *ObjectStore) HealthCheck() error {
	probe := filepath.Join(s.baseDir, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	return os.Remove(probe)
}

func (s *ObjectStore) resolve(key string) string {
	clean := filepath.Clean("/" + key)
	return filepath.Join(s.baseDir, clean)
}
