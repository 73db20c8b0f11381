package schematic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for a file extension no decoder claims.
var ErrUnsupportedFormat = errors.New("schematic: unsupported format")

// DecodeFunc reads one document from r.
type DecodeFunc func(r io.Reader) (*Schematic, error)

var (
	formatsMu sync.RWMutex
	formats   = map[string]DecodeFunc{
		".json": DecodeJSON,
		".yaml": DecodeYAML,
		".yml":  DecodeYAML,
	}
)

// RegisterFormat makes a decoder available to Load for files with the given
// extension (including the dot). Importers for foreign formats call this
// from init, the same way image decoders register themselves.
func RegisterFormat(ext string, fn DecodeFunc) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formats[strings.ToLower(ext)] = fn
}

// Formats returns the registered extensions, sorted.
func Formats() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load reads, decodes and validates a document. Anonymous wires receive
// stable ids before validation.
func Load(path string) (*Schematic, error) {
	ext := strings.ToLower(filepath.Ext(path))
	formatsMu.RLock()
	decode, ok := formats[ext]
	formatsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnsupportedFormat, ext, strings.Join(Formats(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sch, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sch.Name == "" {
		sch.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	sch.AssignWireIDs()
	if err := sch.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sch, nil
}

// DecodeJSON decodes the editor's JSON document form.
func DecodeJSON(r io.Reader) (*Schematic, error) {
	var sch Schematic
	dec := json.NewDecoder(r)
	if err := dec.Decode(&sch); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return &sch, nil
}

// DecodeYAML decodes a YAML document using the same field names as JSON.
func DecodeYAML(r io.Reader) (*Schematic, error) {
	var sch Schematic
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&sch); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML: empty document")
		}
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return &sch, nil
}
