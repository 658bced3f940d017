package objectstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
)

// LocalStore keeps uploaded file bytes on the local filesystem under a single
// directory. Keys are bare file names within that directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the backing directory if it does not exist.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Store writes the bytes under the given name and returns the storage key and
// the number of bytes written. An existing file with the same name is
// overwritten, so two concurrent uploads sharing a name clobber each other;
// callers that need collision safety must use StoreUnique.
func (s *LocalStore) Store(name string, r io.Reader) (string, int64, error) {
	return s.write(name, r)
}

// StoreUnique prefixes the name with the intake timestamp in nanoseconds so
// concurrent uploads with the same suggested name never collide.
func (s *LocalStore) StoreUnique(name string, r io.Reader) (string, int64, error) {
	return s.write(fmt.Sprintf("%d_%s", time.Now().UnixNano(), name), r)
}

func (s *LocalStore) write(key string, r io.Reader) (string, int64, error) {
	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", 0, fmt.Errorf("store %s: %w", key, err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return "", 0, fmt.Errorf("store %s: %w", key, err)
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("store %s: %w", key, err)
	}
	return key, n, nil
}

// Open returns a reader over a previously stored file. Stored bytes are the
// only way to reconsume a batch; parses are single-pass.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Path returns the absolute-ish location recorded on incoming file rows.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Delete removes a stored file. A missing file reports domain.ErrFileNotFound
// so callers can treat "already gone" as success.
func (s *LocalStore) Delete(key string) error {
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrFileNotFound
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
