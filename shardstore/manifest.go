package shardstore

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/model"
)

// ManifestName is the blob name of the manifest below a prefix.
const ManifestName = "manifest.json"

// FormatVersion is the manifest format written by Save.
const FormatVersion = 1

var (
	// ErrInvalidManifest is returned when a manifest cannot be decoded or
	// describes an impossible dataset.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrBlockMismatch is returned when a block's content disagrees with its
	// manifest entry.
	ErrBlockMismatch = errors.New("block does not match manifest")
)

// Manifest describes a saved dataset.
type Manifest struct {
	Version     int       `json:"version"`
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Layout      string    `json:"layout"`
	Cols        int       `json:"cols"`
	Rows        int       `json:"rows"`
	Compression string    `json:"compression"`
	Blocks      []Block   `json:"blocks"`
}

// Block is the manifest entry of one shard.
type Block struct {
	Name   string         `json:"name"`
	Worker model.WorkerID `json:"worker"`
	Offset int            `json:"offset"`
	Rows   int            `json:"rows"`
}

func blockName(i int) string {
	return fmt.Sprintf("block-%06d.bin", i)
}

func parseLayout(s string) (model.Layout, error) {
	switch s {
	case model.LayoutArray.String():
		return model.LayoutArray, nil
	case model.LayoutTabular.String():
		return model.LayoutTabular, nil
	default:
		return 0, fmt.Errorf("%w: unknown layout %q", ErrInvalidManifest, s)
	}
}

func encodeManifest(m *Manifest) ([]byte, error) {
	return codec.Default.Marshal(m)
}

// validBlockName reports whether name stays below the manifest's prefix.
func validBlockName(name string) bool {
	if name == "" || path.IsAbs(name) || strings.Contains(name, `\`) {
		return false
	}
	clean := path.Clean(name)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

func decodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidManifest, m.Version)
	}
	if len(m.Blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks", ErrInvalidManifest)
	}
	total := 0
	for _, b := range m.Blocks {
		if b.Rows < 0 || b.Offset < 0 || !validBlockName(b.Name) {
			return nil, fmt.Errorf("%w: bad block entry %+v", ErrInvalidManifest, b)
		}
		total += b.Rows
	}
	if total != m.Rows {
		return nil, fmt.Errorf("%w: blocks hold %d rows, manifest says %d", ErrInvalidManifest, total, m.Rows)
	}
	return &m, nil
}
