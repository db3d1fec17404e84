// Package connstore persists connection records in a JSON document
// encrypted at rest with an age X25519 identity.
package connstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// File is an encrypted record file. The zero value is not usable; call Open.
type File[T any] struct {
	mu       sync.Mutex
	path     string
	identity *age.X25519Identity
}

// Open prepares the record file at path. The identity is read from
// identityPath, or generated there when missing. An empty identityPath
// defaults to path + ".key".
func Open[T any](path, identityPath string) (*File[T], error) {
	if path == "" {
		return nil, errors.New("connection file path is required")
	}
	if identityPath == "" {
		identityPath = path + ".key"
	}

	identity, err := loadOrCreateIdentity(identityPath)
	if err != nil {
		return nil, err
	}
	return &File[T]{path: path, identity: identity}, nil
}

// Recipient returns the public key records are encrypted to.
func (f *File[T]) Recipient() string {
	return f.identity.Recipient().String()
}

// Load decrypts and decodes the records. A missing file yields an empty set.
func (f *File[T]) Load(ctx context.Context) (map[string]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]T), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(raw)), f.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", f.path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted records: %w", err)
	}

	records := make(map[string]T)
	if len(plaintext) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}

// Save encodes, encrypts and atomically replaces the record file.
func (f *File[T]) Save(ctx context.Context, records map[string]T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plaintext, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	var ciphertext bytes.Buffer
	armorWriter := armor.NewWriter(&ciphertext)
	writer, err := age.Encrypt(armorWriter, f.identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("finalizing armor: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return writeFileAtomic(f.path, ciphertext.Bytes(), 0o600)
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(firstKeyLine(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("parsing identity %s: %w", path, err)
		}
		return identity, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading identity %s: %w", path, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	content := "# public key: " + identity.Recipient().String() + "\n" + identity.String() + "\n"
	if err := writeFileAtomic(path, []byte(content), 0o600); err != nil {
		return nil, err
	}
	return identity, nil
}

// firstKeyLine skips comments and blank lines of an identity file.
func firstKeyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
