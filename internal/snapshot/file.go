package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoSnapshot is returned by ReadFile when the file does not exist.
var ErrNoSnapshot = errors.New("snapshot not found")

// Encoding is the on-disk representation of a snapshot.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

// EncodingFor picks the encoding from a file extension. Anything other than
// .msgpack or .mp is JSON.
func EncodingFor(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return EncodingMsgpack
	default:
		return EncodingJSON
	}
}

// Marshal encodes s.
func Marshal(s *Snapshot, enc Encoding) ([]byte, error) {
	if enc == EncodingMsgpack {
		return msgpack.Marshal(s)
	}
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal decodes data into a snapshot.
func Unmarshal(data []byte, enc Encoding) (*Snapshot, error) {
	var s Snapshot
	var err error
	if enc == EncodingMsgpack {
		err = msgpack.Unmarshal(data, &s)
	} else {
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ReadFile loads a snapshot, choosing the decoder by extension.
// Returns ErrNoSnapshot if the file does not exist.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	s, err := Unmarshal(data, EncodingFor(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return s, nil
}

// WriteFile encodes s by extension and writes it atomically via a temp file
// and os.Rename.
func WriteFile(path string, s *Snapshot) (err error) {
	data, err := Marshal(s, EncodingFor(path))
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
