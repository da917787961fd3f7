// Command articletester exercises the extraction, summary and chat services
// from the command line without starting the HTTP server.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/article-rag/backend/internal/config"
	"github.com/zhouzirui/article-rag/backend/internal/service/ai/gemini"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file loaded, using system environment only",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration",
			"error", err)
		os.Exit(1)
	}

	client := gemini.New(
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithTimeout(cfg.Gemini.Timeout),
	)

	root := newRootCmd(client, cfg.Gemini.APIKey, log)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
