package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// FileBackend stores all keys in one JSON object file with mode 0600.
// Writes go to a temp file that is renamed over the original.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates a backend persisting to path. The file and its
// directory are created on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the session file location.
func (f *FileBackend) Path() string {
	return f.path
}

// Get returns the value stored under key.
func (f *FileBackend) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

// Delete removes key. The file is removed once it holds no keys.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)

	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}
	return f.write(values)
}

func (f *FileBackend) read() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileBackend) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

const (
	saltKey          = "_salt"
	pbkdf2Iterations = 100000
	keyLength        = 32
)

// EncryptedFileBackend is a FileBackend whose values are sealed with
// AES-GCM under a key derived from a passphrase. The random salt is kept
// in the same file under a reserved key.
type EncryptedFileBackend struct {
	file *FileBackend
	key  []byte
}

// NewEncryptedFileBackend opens (or prepares) an encrypted session file.
func NewEncryptedFileBackend(path, passphrase string) (*EncryptedFileBackend, error) {
	if passphrase == "" {
		return nil, errors.New("encrypted session backend requires a passphrase (set EVENTCTL_SESSION_PASSPHRASE)")
	}

	file := NewFileBackend(path)
	ctx := context.Background()

	var salt []byte
	encoded, err := file.Get(ctx, saltKey)
	switch {
	case err == nil:
		salt, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("corrupt session salt: %w", err)
		}
	case errors.Is(err, ErrNotFound):
		salt = make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, err
		}
		if err := file.Set(ctx, saltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return &EncryptedFileBackend{
		file: file,
		key:  pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New),
	}, nil
}

// Get decrypts the value stored under key.
func (e *EncryptedFileBackend) Get(ctx context.Context, key string) (string, error) {
	sealed, err := e.file.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return e.decrypt(sealed)
}

// Set encrypts value and stores it under key.
func (e *EncryptedFileBackend) Set(ctx context.Context, key, value string) error {
	if key == saltKey {
		return fmt.Errorf("key %q is reserved", key)
	}
	sealed, err := e.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt session value: %w", err)
	}
	return e.file.Set(ctx, key, sealed)
}

// Delete removes key.
func (e *EncryptedFileBackend) Delete(ctx context.Context, key string) error {
	return e.file.Delete(ctx, key)
}

func (e *EncryptedFileBackend) encrypt(plaintext string) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (e *EncryptedFileBackend) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt session value (wrong passphrase?): %w", err)
	}
	return string(plaintext), nil
}

func (e *EncryptedFileBackend) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
