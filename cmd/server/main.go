package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yourorg/labreport-extract/internal/config"
	"github.com/yourorg/labreport-extract/internal/httpapi"
	"github.com/yourorg/labreport-extract/internal/lexicon"
)

func main() {
	// Try loading .env from multiple locations:
	// 1. Current directory (when running from cmd/server)
	// 2. Repository root
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	rootCmd := &cobra.Command{
		Use:   "labreport-extract-server",
		Short: "Batch HTTP surface for the lab-report extraction core",
	}

	rootCmd.AddCommand(newServeCmd(), newMigrateLexiconCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP extraction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.LoadConfig()
	slog.Info("starting server", "host", cfg.Host, "port", cfg.Port, "fallback_enabled", cfg.FallbackEnabled)

	router := httpapi.SetupRouter(cfg)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		slog.Info("http server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "err", err)
		return err
	}

	slog.Info("server shutdown complete")
	return nil
}

// newMigrateLexiconCmd forces a fresh build of the code lexicon, fails if it
// has no entries, and reports its size, so an operator can confirm a
// reference-data change loads cleanly before the service starts taking
// traffic.
func newMigrateLexiconCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-lexicon",
		Short: "Rebuild the code/unit lexicons and validate the code lexicon",
		RunE: func(cmd *cobra.Command, args []string) error {
			codeLexicon := lexicon.BuildCodeLexicon()
			codes := codeLexicon.ListAllCodes()
			if len(codes) == 0 {
				return fmt.Errorf("migrate-lexicon: code lexicon built with zero entries")
			}

			// The unit lexicon is built here too, but its result is not
			// checked: units that fail to normalize are skipped silently
			// by the build, so this command neither counts nor validates it.
			_ = lexicon.GetUnitLexicon()

			slog.Info("lexicon rebuilt", "codes", len(codes))
			fmt.Printf("code lexicon: %d canonical codes\n", len(codes))
			return nil
		},
	}
}
