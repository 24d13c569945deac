package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamadeskd/internal/catalog"
	"llamadeskd/internal/common/fsutil"
	"llamadeskd/internal/config"
	"llamadeskd/internal/httpapi"
	"llamadeskd/internal/markup"
	"llamadeskd/internal/proc"
	"llamadeskd/internal/registry"
	"llamadeskd/internal/settings"
	"llamadeskd/internal/store"
	"llamadeskd/internal/sysmon"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "llamadeskd",
		Short:         "Backend service for the llamadesk desktop UI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a yaml/json/toml config file")
	root.AddCommand(serveCmd(), scanCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if v := os.Getenv("LLAMADESK_ADDR"); v != "" && cfg.Addr == "" {
		cfg.Addr = v
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				With().Timestamp().Logger()
			httpapi.SetLogger(log)

			dataDir, err := fsutil.ExpandHome(cfg.DataDir)
			if err != nil {
				return err
			}

			cat := catalog.Default()
			if cfg.CatalogPath != "" {
				cat, err = catalog.Load(cfg.CatalogPath)
				if err != nil {
					return fmt.Errorf("load catalog: %w", err)
				}
			}

			sets, err := settings.Open(dataDir, settings.GlobalConfig{
				ModelsDirectory:  cfg.ModelsDir,
				ExecutableFolder: cfg.ExecutableFolder,
				ThemeColor:       cfg.ThemeColor,
			})
			if err != nil {
				return fmt.Errorf("open settings: %w", err)
			}

			models, err := registry.NewCache(sets.Global().ModelsDirectory)
			if err != nil {
				return fmt.Errorf("scan models: %w", err)
			}

			sessions, err := store.Open(filepath.Join(dataDir, "sessions.db"))
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer sessions.Close()

			sup := proc.NewSupervisor(log)

			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			httpapi.SetBaseContext(baseCtx)
			httpapi.SetCORSOrigins(cfg.AllowedOrigins)

			mux := httpapi.NewMux(httpapi.Deps{
				Models:      models,
				Settings:    sets,
				Catalog:     cat,
				Processes:   sup,
				Chats:       sessions,
				Formatter:   markup.New(markup.WithHighlighter(markup.ChromaHighlighter{})),
				System:      sysmon.New(),
				ServerHost:  cfg.ServerHost,
				DefaultPort: cfg.DefaultPort,
			})
			srv := &http.Server{Addr: cfg.Addr, Handler: mux}

			go func() {
				log.Info().Str("addr", cfg.Addr).Str("models_dir", sets.Global().ModelsDirectory).Msg("llamadeskd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown error")
			}
			sup.StopAll(ctx)
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the models directory and print the registry as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			models, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(models)
		},
	}
}
