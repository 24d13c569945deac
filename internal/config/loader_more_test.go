package config

import (
	"testing"
)

func TestLoadNonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/llamadeskd.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoadMalformed(t *testing.T) {
	d := t.TempDir()
	cases := []struct{ name, content string }{
		{"bad.yaml", "models_dir: /m\n: broken\n"},
		{"bad.json", `{"catalog_path": "/etc/catalog.yaml", "default_port": }`},
		{"bad.toml", "executable_folder=\"/opt/llama.cpp\"\nallowed_origins\n"},
		// Wrong shape, valid syntax: origins must be a list.
		{"shape.json", `{"allowed_origins": "http://localhost:5173"}`},
	}
	for _, c := range cases {
		p := writeTempFile(t, d, c.name, c.content)
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected unmarshal error", c.name)
		}
	}
}

func TestLoadPartialThenDefaults(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "partial.yaml", "models_dir: /srv/models\ndefault_port: 9100\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.ApplyDefaults()
	// File values win, gaps get defaults.
	if cfg.ModelsDir != "/srv/models" || cfg.DefaultPort != 9100 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Addr != ":8090" || cfg.ExecutableFolder != "~/.llamadesk/llama.cpp" || cfg.ServerHost != "127.0.0.1" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
