package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"llamadeskd/internal/catalog"
	"llamadeskd/internal/markup"
	"llamadeskd/internal/proc"
	"llamadeskd/internal/settings"
	"llamadeskd/internal/store"
	"llamadeskd/internal/sysmon"
	"llamadeskd/pkg/types"
)

// fakeModels is a static ModelSource.
type fakeModels struct {
	models []types.Model
}

func (f *fakeModels) ListModels() []types.Model      { return f.models }
func (f *fakeModels) Rescan() ([]types.Model, error) { return f.models, nil }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.SettingDefinition{
		{ID: "ctx_size", Type: catalog.KindSlider, Argument: "-c", Aliases: []string{"--ctx-size"}, Default: 4096},
		{ID: "verbose", Type: catalog.KindFlag, IsFlag: true, Argument: "--verbose"},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

// newTestServer builds a fully wired mux on temp-dir state.
func newTestServer(t *testing.T) (*httptest.Server, Deps) {
	t.Helper()
	dir := t.TempDir()
	st, err := settings.Open(dir, settings.GlobalConfig{ThemeColor: "dark-gray"})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	chats, err := store.Open(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { chats.Close() })
	d := Deps{
		Models: &fakeModels{models: []types.Model{
			{Path: "/m/tiny.gguf", Name: "tiny.gguf", Architecture: "llama", Quantization: "Q4_K_M"},
		}},
		Settings:    st,
		Catalog:     testCatalog(t),
		Processes:   proc.NewSupervisor(zerolog.Nop()),
		Chats:       chats,
		Formatter:   markup.New(),
		System:      sysmon.New(),
		ServerHost:  "127.0.0.1",
		DefaultPort: 8080,
	}
	srv := httptest.NewServer(NewMux(d))
	t.Cleanup(srv.Close)
	return srv, d
}

// doJSON performs a request with a JSON body and decodes the JSON response.
func doJSON(t *testing.T, method, url string, body, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}
