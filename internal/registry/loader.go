// Package registry discovers GGUF model files and reads the slice of their
// header metadata the UI cares about.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"llamadeskd/internal/common/fsutil"
	"llamadeskd/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds model records from
// file stats plus GGUF header metadata. Files whose header cannot be parsed
// are still listed, with metadata fields left empty.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		p := filepath.Join(abs, name)
		m := types.Model{
			Path:         p,
			Name:         name,
			Quantization: QuantFromFilename(name),
		}
		if fi, err := e.Info(); err == nil {
			m.SizeGB = float64(fi.Size()) / (1 << 30)
			m.Date = fi.ModTime().Unix()
		}
		if meta, err := ReadMetadata(p); err == nil {
			m.Architecture = meta.Architecture
			m.ModelName = meta.Name
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

var quantRe = regexp.MustCompile(`(?i)(IQ[1-4]_[A-Z0-9]+|Q[2-8]_[A-Z0-9_]+|F16|F32|BF16)`)

// QuantFromFilename infers the quantization variant from a model file name,
// e.g. "TinyLlama.Q4_K_M.gguf" -> "Q4_K_M".
func QuantFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if m := quantRe.FindString(base); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}
