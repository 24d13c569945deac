package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamadeskd/internal/argcodec"
	"llamadeskd/internal/catalog"
	"llamadeskd/internal/common/fsutil"
	"llamadeskd/internal/markup"
	"llamadeskd/internal/proc"
	"llamadeskd/internal/settings"
	"llamadeskd/internal/store"
	"llamadeskd/pkg/types"
)

// ModelSource lists discovered models and rescans on demand.
type ModelSource interface {
	ListModels() []types.Model
	Rescan() ([]types.Model, error)
}

// SystemSource samples host resource usage.
type SystemSource interface {
	Stats(ctx context.Context) types.SystemStats
}

// Deps wires the HTTP layer to the domain services.
type Deps struct {
	Models    ModelSource
	Settings  *settings.Store
	Catalog   *catalog.Catalog
	Processes *proc.Supervisor
	Chats     *store.Store
	Formatter *markup.Formatter
	System    SystemSource

	// ServerHost and DefaultPort seed per-model configs that were never saved.
	ServerHost  string
	DefaultPort int
}

// NewMux builds the chi router for the desktop UI.
func NewMux(d Deps) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// getModels godoc
	// @Summary List discovered GGUF models
	// @Produce json
	// @Success 200 {object} types.ModelsResponse
	// @Router /models [get]
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: d.Models.ListModels()})
	})

	r.Post("/models/rescan", func(w http.ResponseWriter, r *http.Request) {
		models, err := d.Models.Rescan()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	// deleteModel godoc
	// @Summary Delete a model file and its saved launch configuration
	// @Param path query string true "Model file path"
	// @Produce json
	// @Success 200 {object} types.ModelsResponse
	// @Router /models [delete]
	r.Delete("/models", func(w http.ResponseWriter, r *http.Request) {
		modelPath := r.URL.Query().Get("path")
		if modelPath == "" {
			writeJSONError(w, http.StatusBadRequest, "path is required")
			return
		}
		if !strings.HasSuffix(strings.ToLower(modelPath), ".gguf") {
			writeJSONError(w, http.StatusBadRequest, "only .gguf files can be deleted")
			return
		}
		base, err := fsutil.ExpandHome(d.Settings.Global().ModelsDirectory)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !insideDir(base, modelPath) {
			writeJSONError(w, http.StatusBadRequest, "cannot delete files outside the models directory")
			return
		}
		if err := os.Remove(modelPath); err != nil {
			if os.IsNotExist(err) {
				writeJSONError(w, http.StatusNotFound, "file does not exist")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := d.Settings.DeleteModelConfig(modelPath); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		models, err := d.Models.Rescan()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	r.Get("/settings/catalog", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Catalog.Definitions())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Settings.Global())
	})

	r.Put("/config", func(w http.ResponseWriter, r *http.Request) {
		var g settings.GlobalConfig
		if !decodeJSON(w, r, &g) {
			return
		}
		if err := d.Settings.SetGlobal(g); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, g)
	})

	// getModelSettings godoc
	// @Summary Launch configuration and structured settings view for a model
	// @Param path query string true "Model file path"
	// @Produce json
	// @Success 200 {object} types.ModelSettingsResponse
	// @Router /models/settings [get]
	r.Get("/models/settings", func(w http.ResponseWriter, r *http.Request) {
		modelPath := r.URL.Query().Get("path")
		if modelPath == "" {
			writeJSONError(w, http.StatusBadRequest, "path is required")
			return
		}
		cfg := d.Settings.ModelConfig(modelPath, d.ServerHost, d.DefaultPort)
		state := argcodec.Parse(cfg.CustomArgs, d.Catalog)
		writeJSON(w, types.ModelSettingsResponse{
			CustomArgs: cfg.CustomArgs,
			ServerHost: cfg.ServerHost,
			ServerPort: cfg.ServerPort,
			ModelPath:  cfg.ModelPath,
			Settings:   state.Wire(),
		})
	})

	// updateModelSettings godoc
	// @Summary Update a model's launch configuration
	// @Param path query string true "Model file path"
	// @Accept json
	// @Produce json
	// @Success 200 {object} types.ModelSettingsResponse
	// @Router /models/settings [put]
	r.Put("/models/settings", func(w http.ResponseWriter, r *http.Request) {
		modelPath := r.URL.Query().Get("path")
		if modelPath == "" {
			writeJSONError(w, http.StatusBadRequest, "path is required")
			return
		}
		var req types.UpdateModelSettingsRequest
		if !decodeJSON(w, r, &req) || !validateRequest(w, req) {
			return
		}
		cfg := d.Settings.ModelConfig(modelPath, d.ServerHost, d.DefaultPort)
		switch {
		case req.CustomArgs != nil:
			cfg.CustomArgs = *req.CustomArgs
		case req.Settings != nil:
			// Serialize against the stored string so unknown flags survive.
			state := argcodec.FromWire(req.Settings)
			cfg.CustomArgs = argcodec.Serialize(state, d.Catalog, cfg.CustomArgs)
		}
		if req.ServerHost != "" {
			cfg.ServerHost = req.ServerHost
		}
		if req.ServerPort != 0 {
			cfg.ServerPort = req.ServerPort
		}
		if err := d.Settings.SetModelConfig(cfg); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		state := argcodec.Parse(cfg.CustomArgs, d.Catalog)
		writeJSON(w, types.ModelSettingsResponse{
			CustomArgs: cfg.CustomArgs,
			ServerHost: cfg.ServerHost,
			ServerPort: cfg.ServerPort,
			ModelPath:  cfg.ModelPath,
			Settings:   state.Wire(),
		})
	})

	// launchModel godoc
	// @Summary Launch a llama-server for a model
	// @Accept json
	// @Produce json
	// @Success 200 {object} types.LaunchResult
	// @Router /processes [post]
	r.Post("/processes", func(w http.ResponseWriter, r *http.Request) {
		var req types.LaunchRequest
		if !decodeJSON(w, r, &req) || !validateRequest(w, req) {
			return
		}
		cfg := d.Settings.ModelConfig(req.ModelPath, d.ServerHost, d.DefaultPort)
		res, err := d.Processes.Launch(proc.LaunchSpec{
			BinPath:     proc.ResolveServerBin(d.Settings.Global().ExecutableFolder),
			ModelPath:   req.ModelPath,
			ModelName:   req.ModelName,
			Host:        cfg.ServerHost,
			DefaultPort: cfg.ServerPort,
			CustomArgs:  cfg.CustomArgs,
		})
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, res)
	})

	r.Get("/processes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Processes.List())
	})

	r.Get("/processes/{id}/output", func(w http.ResponseWriter, r *http.Request) {
		cursor := 0
		if c := r.URL.Query().Get("cursor"); c != "" {
			n, err := strconv.Atoi(c)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid cursor")
				return
			}
			cursor = n
		}
		out, err := d.Processes.OutputSince(chi.URLParam(r, "id"), cursor)
		if err != nil {
			if proc.IsProcessNotFound(err) {
				writeJSONError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, out)
	})

	r.Delete("/processes/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Processes.Remove(chi.URLParam(r, "id")); err != nil {
			if proc.IsProcessNotFound(err) {
				writeJSONError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// format godoc
	// @Summary Render assistant text to display markup
	// @Accept json
	// @Produce json
	// @Success 200 {object} types.FormatResponse
	// @Router /format [post]
	r.Post("/format", func(w http.ResponseWriter, r *http.Request) {
		var req types.FormatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		writeJSON(w, types.FormatResponse{HTML: d.Formatter.Format(req.Text, req.Streaming)})
	})

	// systemStats godoc
	// @Summary Host CPU, memory and GPU usage snapshot
	// @Produce json
	// @Success 200 {object} types.SystemStats
	// @Router /system/stats [get]
	r.Get("/system/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.System.Stats(r.Context()))
	})

	mountChatRoutes(r, d)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// insideDir reports whether path resolves to a location strictly under dir.
// Both are cleaned to absolute form first, so "../" traversal cannot escape.
func insideDir(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// writeJSON writes a JSON response body with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// decodeJSON enforces content type and body limits, then decodes into v.
// Returns false when the request was rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// logRequestEnd emits a terse structured line for a finished handler.
func logRequestEnd(r *http.Request, status int, start time.Time, err error) {
	if requestLogLevel(r) < LevelInfo {
		return
	}
	z := logger().Info().Int("status", status).Dur("dur", time.Since(start)).Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("request end")
}
