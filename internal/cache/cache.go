// Package cache keeps check reports on disk, keyed by the schematic content
// and the options that shape the report.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

// Increment when the payload layout or the report shape changes.
const schemaVersion uint16 = 1

// Key identifies one (schematic, options) pair.
type Key [sha256.Size]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// KeyFor hashes the schematic together with every option that can change
// the report. Parallelism, job count and timeout do not change a complete
// report and are left out.
func KeyFor(sch *schematic.Schematic, opts erc.Options) (Key, error) {
	h := sha256.New()

	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], schemaVersion)
	h.Write(hdr[:])

	enc := msgpack.NewEncoder(h)
	enc.SetCustomStructTag("json")
	disabled := slices.Clone(opts.DisabledRules)
	slices.Sort(disabled)
	fingerprint := struct {
		MaxWires         int      `json:"maxWires"`
		MergeThroughPins bool     `json:"mergeThroughPins"`
		DisabledRules    []string `json:"disabledRules"`
	}{opts.MaxWires, opts.MergeThroughPins, disabled}
	if err := enc.Encode(fingerprint); err != nil {
		return Key{}, fmt.Errorf("hash options: %w", err)
	}
	if err := enc.Encode(sch); err != nil {
		return Key{}, fmt.Errorf("hash schematic: %w", err)
	}

	var k Key
	h.Sum(k[:0])
	return k, nil
}

type payload struct {
	Schema uint16      `json:"schema"`
	Key    string      `json:"key"`
	Report *erc.Report `json:"report"`
}

// Cache is a directory of msgpack-encoded reports. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// Open returns a cache rooted at dir, creating it if needed. An empty dir
// selects $XDG_CACHE_HOME/erc (or ~/.cache/erc).
func Open(dir string) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "erc")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) pathFor(key Key) string {
	return filepath.Join(c.dir, "reports", key.String()+".mp")
}

// Get returns the cached report for key, stamped with the current time.
// A missing, stale or unreadable entry is a miss; only I/O errors other than
// absence are returned.
func (c *Cache) Get(key Key) (*erc.Report, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	dec.SetCustomStructTag("json")
	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, false, nil
	}
	if p.Schema != schemaVersion || p.Key != key.String() || p.Report == nil {
		return nil, false, nil
	}
	p.Report.Timestamp = c.now().Unix()
	return p.Report, true, nil
}

// Put stores r under key. Incomplete reports are not cached.
func (c *Cache) Put(key Key, r *erc.Report) (err error) {
	if c == nil || r == nil || r.Status != erc.StatusComplete {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	enc := msgpack.NewEncoder(f)
	enc.SetCustomStructTag("json")
	if err = enc.Encode(payload{Schema: schemaVersion, Key: key.String(), Report: r}); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Clear drops every cached report.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := filepath.Join(c.dir, "reports.old-"+time.Now().Format("20060102150405"))
	if err := os.Rename(filepath.Join(c.dir, "reports"), old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
