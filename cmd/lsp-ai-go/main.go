// Command lsp-ai-go is the server entry point: it loads ambient process
// configuration, wires the memory backend/model registry/action engine
// from the wire-sourced initializationOptions at initialize time, and
// drives the Content-Length-framed stdio transport until exit.
// Grounded on the teacher's cmd/grasshopper/main.go (log to stderr, build
// one server, run it against stdin/stdout, translate Run's outcome to a
// process exit code).
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lsp-ai-go/lsp-ai-go/internal/action"
	"github.com/lsp-ai-go/lsp-ai-go/internal/chunker"
	"github.com/lsp-ai-go/lsp-ai-go/internal/config"
	"github.com/lsp-ai-go/lsp-ai-go/internal/document"
	"github.com/lsp-ai-go/lsp-ai-go/internal/logging"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lspserver"
	"github.com/lsp-ai-go/lsp-ai-go/internal/memory"
	"github.com/lsp-ai-go/lsp-ai-go/internal/metrics"
	"github.com/lsp-ai-go/lsp-ai-go/internal/ratelimit"
	"github.com/lsp-ai-go/lsp-ai-go/internal/registry"
)

// initWire is the subset of initializationOptions main needs to decode
// directly, ahead of internal/lspserver's own richer wire types, to build
// the memory backend and per-model rate limits before constructing the
// action engine.
type initWire struct {
	Memory json.RawMessage `json:"memory"`
	Models json.RawMessage `json:"models"`
}

type wireMemorySelector struct {
	FileStore *struct {
		Chunking bool `json:"chunking"`
		TopK     int  `json:"top_k"`
	} `json:"file_store"`
	PostgresML *struct {
		ConnString string `json:"conn_string"`
	} `json:"postgresml"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("lsp-ai-go: loading config: " + err.Error() + "\n")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	} else if cfg.LogLevel == "warn" {
		level = slog.LevelWarn
	} else if cfg.LogLevel == "error" {
		level = slog.LevelError
	}
	format := logging.FormatText
	if cfg.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logger := logging.New(format, level)

	watcher, err := config.NewWatcher(*cfg)
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", "error", err)
			}
		}()
	}

	httpClient := &http.Client{}

	buildDeps := func(raw json.RawMessage, documents *document.Table) (*registry.Registry, *action.Engine, *ratelimit.Limiter, memory.Backend, *chunker.Chunker, error) {
		var opts initWire
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &opts); err != nil {
				return nil, nil, nil, nil, nil, err
			}
		}

		// Local-inference kinds need a real GGUF/llama.cpp-style engine and
		// a weight fetcher; nothing in the retrieval pack supplies either,
		// so local-kind models fail at registry construction with a
		// ConfigError naming the gap rather than being silently dropped.
		reg, err := registry.New(opts.Models, registry.Deps{HTTP: httpClient, Logger: logger})
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}

		limiter := ratelimit.New()
		for _, name := range reg.List() {
			entry, _ := reg.Entry(name)
			limiter.Configure(name, entry.Rate.MaxRequestsPerSecond)
		}

		var memSel wireMemorySelector
		_ = json.Unmarshal(opts.Memory, &memSel)

		var chnkr *chunker.Chunker
		var mem memory.Backend
		switch {
		case memSel.PostgresML != nil:
			mem = memory.NewPostgresML(memSel.PostgresML.ConnString)
		case memSel.FileStore != nil && memSel.FileStore.Chunking:
			chnkr = chunker.New()
			mem = memory.NewFileStore(chnkr, memSel.FileStore.TopK)
		default:
			mem = memory.NewFileStore(nil, 0)
		}

		actions, err := lspserver.ParseActions(raw)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}

		engine, err := action.New(actions, action.Deps{Registry: reg, Documents: documents, Limiter: limiter, Memory: mem})
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return reg, engine, limiter, mem, chnkr, nil
	}

	srv := lspserver.New(logger, cfg.WorkerPoolSize, cfg.MaxCompletionsPerSec, buildDeps)

	logger.Info("lsp-ai-go starting")
	code := srv.Run(os.Stdin, os.Stdout)
	logger.Info("lsp-ai-go stopped", "exit_code", code)
	os.Exit(code)
}
