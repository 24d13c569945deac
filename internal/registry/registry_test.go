package registry

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeGGUF builds a minimal valid GGUF v3 header with the given metadata
// key/value string pairs.
func writeGGUF(t *testing.T, path string, kv map[string]string) {
	t.Helper()
	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, uint32(ggufMagic))
	binary.Write(&b, le, uint32(3))
	binary.Write(&b, le, uint64(0))       // tensor count
	binary.Write(&b, le, uint64(len(kv))) // kv count
	writeStr := func(s string) {
		binary.Write(&b, le, uint64(len(s)))
		b.WriteString(s)
	}
	for k, v := range kv {
		writeStr(k)
		binary.Write(&b, le, uint32(ggufString))
		writeStr(v)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write gguf: %v", err)
	}
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gguf")
	writeGGUF(t, path, map[string]string{
		"general.architecture": "llama",
		"general.name":         "TinyLlama 1.1B",
		"tokenizer.ggml.model": "gpt2",
	})
	meta, err := ReadMetadata(path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.Architecture != "llama" || meta.Name != "TinyLlama 1.1B" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestReadMetadataSkipsNonStringValues(t *testing.T) {
	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, uint32(ggufMagic))
	binary.Write(&b, le, uint32(2))
	binary.Write(&b, le, uint64(5)) // tensor count
	binary.Write(&b, le, uint64(3)) // kv count

	writeStr := func(s string) {
		binary.Write(&b, le, uint64(len(s)))
		b.WriteString(s)
	}
	// uint32 scalar
	writeStr("llama.context_length")
	binary.Write(&b, le, uint32(ggufUint32))
	binary.Write(&b, le, uint32(4096))
	// array of uint64
	writeStr("some.array")
	binary.Write(&b, le, uint32(ggufArray))
	binary.Write(&b, le, uint32(ggufUint64))
	binary.Write(&b, le, uint64(3))
	for i := 0; i < 3; i++ {
		binary.Write(&b, le, uint64(i))
	}
	writeStr("general.architecture")
	binary.Write(&b, le, uint32(ggufString))
	writeStr("qwen2")

	meta, err := readMetadata(bufio.NewReader(&b))
	if err != nil {
		t.Fatalf("readMetadata: %v", err)
	}
	if meta.Architecture != "qwen2" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestReadMetadataRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.gguf")
	if err := os.WriteFile(bad, []byte("not a gguf file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadMetadata(bad); err == nil {
		t.Fatalf("expected magic error")
	}

	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, uint32(ggufMagic))
	binary.Write(&b, le, uint32(99)) // unsupported version
	old := filepath.Join(dir, "old.gguf")
	if err := os.WriteFile(old, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadMetadata(old); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestReadMetadataRejectsHugeArray(t *testing.T) {
	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, uint32(ggufMagic))
	binary.Write(&b, le, uint32(3))
	binary.Write(&b, le, uint64(0)) // tensor count
	binary.Write(&b, le, uint64(1)) // kv count
	binary.Write(&b, le, uint64(len("some.array")))
	b.WriteString("some.array")
	binary.Write(&b, le, uint32(ggufArray))
	binary.Write(&b, le, uint32(ggufUint64))
	// Element count so large that count*8 would wrap negative if trusted.
	binary.Write(&b, le, uint64(1)<<61)

	if _, err := readMetadata(bufio.NewReader(&b)); err == nil {
		t.Fatalf("expected array length error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeGGUF(t, filepath.Join(dir, "beta.Q4_K_M.gguf"), map[string]string{
		"general.architecture": "llama",
		"general.name":         "Beta",
	})
	writeGGUF(t, filepath.Join(dir, "alpha.gguf"), map[string]string{
		"general.architecture": "qwen2",
	})
	// Non-gguf and corrupt files: the first is ignored, the second still listed.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "corrupt.gguf"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("got %d models, want 3", len(models))
	}
	// Sorted by file name.
	if models[0].Name != "alpha.gguf" || models[1].Name != "beta.Q4_K_M.gguf" || models[2].Name != "corrupt.gguf" {
		t.Fatalf("order: %s, %s, %s", models[0].Name, models[1].Name, models[2].Name)
	}
	if models[0].Architecture != "qwen2" {
		t.Fatalf("alpha meta: %+v", models[0])
	}
	if models[1].ModelName != "Beta" || models[1].Quantization != "Q4_K_M" {
		t.Fatalf("beta meta: %+v", models[1])
	}
	if models[2].Architecture != "" {
		t.Fatalf("corrupt file should have empty metadata: %+v", models[2])
	}
	if models[0].SizeGB <= 0 || models[0].Date == 0 {
		t.Fatalf("file stats missing: %+v", models[0])
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestQuantFromFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"TinyLlama.Q4_K_M.gguf", "Q4_K_M"},
		{"model-q8_0.gguf", "Q8_0"},
		{"mistral.IQ2_XS.gguf", "IQ2_XS"},
		{"model.f16.gguf", "F16"},
		{"model.BF16.gguf", "BF16"},
		{"plain-model.gguf", ""},
	}
	for _, c := range cases {
		if got := QuantFromFilename(c.in); got != c.want {
			t.Fatalf("QuantFromFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCacheRescan(t *testing.T) {
	dir := t.TempDir()
	writeGGUF(t, filepath.Join(dir, "one.gguf"), map[string]string{"general.architecture": "llama"})

	c, err := NewCache(dir)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if got := c.ListModels(); len(got) != 1 {
		t.Fatalf("initial scan: %d models", len(got))
	}

	writeGGUF(t, filepath.Join(dir, "two.gguf"), map[string]string{"general.architecture": "llama"})
	if got := c.ListModels(); len(got) != 1 {
		t.Fatalf("list should not rescan: %d models", len(got))
	}
	models, err := c.Rescan()
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if len(models) != 2 || len(c.ListModels()) != 2 {
		t.Fatalf("rescan: %d models", len(models))
	}
}
