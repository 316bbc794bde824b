package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps uploads in process memory. It backs local runs without
// Cloudinary credentials and the tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte

	// FailUploads makes every upload fail.
	FailUploads bool
}

// NewMemoryStore returns an empty store serving URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "https://blobs.local"
	}
	return &MemoryStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := CheckFormat(filename); err != nil {
		return "", err
	}
	if m.FailUploads {
		return "", fmt.Errorf("upload %s: store unavailable", filename)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	name := uuid.NewString()
	url := fmt.Sprintf("%s/%s/%s%s", m.baseURL, folder, name, filepath.Ext(filename))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[folder+"/"+name] = payload
	return url, nil
}

func (m *MemoryStore) UploadFile(ctx context.Context, folder, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return m.Upload(ctx, folder, filepath.Base(filePath), f)
}

func (m *MemoryStore) Exists(ctx context.Context, publicID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[publicID]
	return ok, nil
}

func (m *MemoryStore) Delete(ctx context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, publicID)
	return nil
}

// Has reports whether the object behind url is still stored.
func (m *MemoryStore) Has(url string) bool {
	ok, _ := m.Exists(context.Background(), PublicID(url))
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
