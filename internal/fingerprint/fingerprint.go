// Package fingerprint computes change signatures for media files. A
// record is reprocessed only when its current signature differs from the
// one stored alongside its derived content.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	lenserr "github.com/medialens/medialens/internal/errors"
)

// Mode selects how much of the file the signature covers.
type Mode string

const (
	// ModeStat hashes size and modification time only. Cheap, and enough
	// for libraries where files are written once.
	ModeStat Mode = "stat"

	// ModeContent hashes the full file contents. Immune to tools that
	// rewrite files while preserving timestamps, at the cost of a full
	// read per check.
	ModeContent Mode = "content"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeStat || m == ModeContent
}

// DefaultMemoSize bounds the signature memo. Entries are small
// (path + digest), so this covers large libraries comfortably.
const DefaultMemoSize = 8192

// Computer derives signatures in a fixed mode. Signatures are prefixed
// with the mode name, so switching modes invalidates every stored
// signature and forces a one-time reprocess, never a silent skip.
type Computer struct {
	mode Mode
	memo *lru.Cache[string, string]
}

// New creates a Computer. memoSize <= 0 uses DefaultMemoSize.
func New(mode Mode, memoSize int) (*Computer, error) {
	if !mode.Valid() {
		return nil, lenserr.ConfigError(fmt.Sprintf("unknown fingerprint mode %q", mode), nil)
	}
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, lenserr.InternalError("create fingerprint memo", err)
	}
	return &Computer{mode: mode, memo: memo}, nil
}

// Mode returns the configured mode.
func (c *Computer) Mode() Mode {
	return c.mode
}

// Compute returns the current signature for path.
// Missing files map to the not-found error code.
func (c *Computer) Compute(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", lenserr.NotFound(path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", lenserr.New(lenserr.ErrCodeUnsupportedFormat,
			fmt.Sprintf("%s is a directory", path), nil)
	}

	// Memo key includes size and mtime, so a changed file never hits a
	// stale entry even in content mode.
	memoKey := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if sig, ok := c.memo.Get(memoKey); ok {
		return sig, nil
	}

	var sig string
	switch c.mode {
	case ModeContent:
		sig, err = contentSignature(path)
		if err != nil {
			return "", err
		}
	default:
		sum := sha256.Sum256(fmt.Appendf(nil, "%d:%d", info.Size(), info.ModTime().Unix()))
		sig = string(ModeStat) + ":" + hex.EncodeToString(sum[:])
	}

	c.memo.Add(memoKey, sig)
	return sig, nil
}

// ShouldProcess compares the current signature against the one stored
// with the record. It returns the current signature so a subsequent
// successful run can persist exactly what was checked.
func (c *Computer) ShouldProcess(path, stored string) (bool, string, error) {
	current, err := c.Compute(path)
	if err != nil {
		return false, "", err
	}
	return stored == "" || stored != current, current, nil
}

func contentSignature(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", lenserr.NotFound(path)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", lenserr.Wrap(lenserr.ErrCodeCorruptInput, fmt.Errorf("read %s: %w", path, err))
	}
	return string(ModeContent) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
