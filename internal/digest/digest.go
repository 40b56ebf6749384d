// Package digest computes SHA3-256 content hashes of user-selected files.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// chunkSize is the read size used on the streaming path.
const chunkSize = 64 * 1024

var hex64 = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Source is a named blob the user selected.
type Source interface {
	Name() string
	ReadAll() ([]byte, error)
}

// StreamSource is a Source that can also be read incrementally.
type StreamSource interface {
	Source
	Open() (io.ReadCloser, error)
}

// Sum returns the lowercase hex SHA3-256 digest of src. Streaming sources are
// read chunk by chunk; others are read into memory and hashed in one call.
func Sum(src Source) (string, error) {
	if s, ok := src.(StreamSource); ok {
		rc, err := s.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", s.Name(), err)
		}
		defer rc.Close()
		return SumReader(rc)
	}

	data, err := src.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	return SumBytes(data), nil
}

// SumReader hashes r incrementally.
func SumReader(r io.Reader) (string, error) {
	h := sha3.New256()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read stream: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes hashes data in one call.
func SumBytes(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidHash reports whether s is exactly 64 hex characters, ignoring
// surrounding whitespace.
func ValidHash(s string) bool {
	return hex64.MatchString(strings.TrimSpace(s))
}

// FileSource is a file on disk.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return filepath.Base(f.Path) }

func (f FileSource) ReadAll() ([]byte, error) { return os.ReadFile(f.Path) }

func (f FileSource) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

// BytesSource is an in-memory blob without a streaming interface.
type BytesSource struct {
	Filename string
	Data     []byte
}

func (b BytesSource) Name() string { return b.Filename }

func (b BytesSource) ReadAll() ([]byte, error) { return b.Data, nil }
