package session

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// FileStore persists the session as a JSON snapshot on disk so it survives
// process restarts. Writes go through a temp file and rename; the snapshot
// and the optional seal key are created with mode 0600.
type FileStore struct {
	path    string
	keyPath string // when set, the snapshot is sealed with NaCl secretbox
	log     zerolog.Logger

	lock    sync.RWMutex
	current Session
}

var _ Store = (*FileStore)(nil)

type FileStoreOption func(*FileStore)

// WithSealKeyFile seals the snapshot at rest with a secretbox key stored at
// keyPath. The key is generated on first use.
func WithSealKeyFile(keyPath string) FileStoreOption {
	return func(fs *FileStore) {
		fs.keyPath = keyPath
	}
}

func WithLogger(log zerolog.Logger) FileStoreOption {
	return func(fs *FileStore) {
		fs.log = log
	}
}

// NewFileStore opens the store at path, loading any previously persisted
// session. A missing file is not an error; the store starts empty.
func NewFileStore(path string, options ...FileStoreOption) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		log:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(fs)
	}
	if err := fs.load(); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] load")
	}
	return fs, nil
}

func (fs *FileStore) Save(tokens Tokens, identity *Identity) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.current.apply(tokens, identity)
	if err := fs.persist(); err != nil {
		return errors.Wrap(err, "[FileStore.Save] persist")
	}
	return nil
}

// Clear removes all session fields as a unit. Clearing an already empty
// store is a no-op.
func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.current = Session{}
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove snapshot")
	}
	return nil
}

func (fs *FileStore) AccessToken() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.AccessToken
}

func (fs *FileStore) RefreshToken() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.RefreshToken
}

func (fs *FileStore) UserID() (int64, bool) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.current.UserID == nil {
		return 0, false
	}
	return *fs.current.UserID, true
}

func (fs *FileStore) Username() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.Username
}

func (fs *FileStore) Role() Role {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.Role
}

// IsAuthenticated is a token presence check only; expiry is discovered via
// 401 responses from the API.
func (fs *FileStore) IsAuthenticated() bool {
	return fs.AccessToken() != ""
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read snapshot")
	}

	if fs.keyPath != "" {
		data, err = fs.unseal(data)
		if err != nil {
			// An unreadable snapshot is treated as no session rather than
			// locking the user out of the client.
			fs.log.Warn().Err(err).Str("path", fs.path).Msg("discarding unreadable session snapshot")
			fs.current = Session{}
			return nil
		}
	}

	if err := json.Unmarshal(data, &fs.current); err != nil {
		fs.log.Warn().Err(err).Str("path", fs.path).Msg("discarding corrupt session snapshot")
		fs.current = Session{}
	}
	return nil
}

func (fs *FileStore) persist() error {
	data, err := json.Marshal(fs.current)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	if fs.keyPath != "" {
		data, err = fs.seal(data)
		if err != nil {
			return errors.Wrap(err, "seal session")
		}
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "chmod temp snapshot")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp snapshot")
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return errors.Wrap(err, "rename snapshot")
	}
	return nil
}

func (fs *FileStore) seal(plaintext []byte) ([]byte, error) {
	key, err := fs.sealKey(true)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

func (fs *FileStore) unseal(sealed []byte) ([]byte, error) {
	key, err := fs.sealKey(false)
	if err != nil {
		return nil, err
	}
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed snapshot too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, errors.New("secretbox open failed")
	}
	return plaintext, nil
}

// sealKey loads the secretbox key, generating one when create is set and no
// key exists yet.
func (fs *FileStore) sealKey(create bool) (*[keySize]byte, error) {
	var key [keySize]byte

	data, err := os.ReadFile(fs.keyPath)
	if err == nil {
		if len(data) != keySize {
			return nil, errors.Errorf("seal key has %d bytes, want %d", len(data), keySize)
		}
		copy(key[:], data)
		return &key, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read seal key")
	}
	if !create {
		return nil, errors.New("seal key missing")
	}

	if _, err := rand.Read(key[:]); err != nil {
		return nil, errors.Wrap(err, "generate seal key")
	}
	if err := os.MkdirAll(filepath.Dir(fs.keyPath), 0o700); err != nil {
		return nil, errors.Wrap(err, "create key dir")
	}
	if err := os.WriteFile(fs.keyPath, key[:], 0o600); err != nil {
		return nil, errors.Wrap(err, "write seal key")
	}
	return &key, nil
}
