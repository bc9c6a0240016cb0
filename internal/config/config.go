// Package config loads the ambient process configuration: log format,
// debounce rate, worker pool size, local weight-cache directory, metrics
// listen address. Model/action configuration arrives over the wire via
// initialize.params.initializationOptions (§6) and is never touched here.
// Grounded on the teacher's internal/config.LoadConfig (os.UserConfigDir
// lookup, TOML decode, default cascade), narrowed from provider-credential
// settings to process-level knobs, with a watcher added on top via
// github.com/fsnotify/fsnotify (used the same way by C360Studio-semspec,
// jeranaias-rigrun, and jinterlante1206-AleutianLocal in the retrieval
// pack) so an operator can retune debounce/log-level without restarting
// the editor session.
package config

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

const appName = "lsp-ai-go"

// Config is the ambient, hot-reloadable process configuration. Model/action
// configuration (§3, §6) is immutable post-init and never lives here.
type Config struct {
	LogFormat           string  `toml:"log_format"`
	LogLevel            string  `toml:"log_level"`
	MaxCompletionsPerSec float64 `toml:"max_completions_per_second"`
	WorkerPoolSize       int     `toml:"worker_pool_size"`
	WeightCacheDir       string  `toml:"weight_cache_dir"`
	MetricsAddr          string  `toml:"metrics_addr"`
}

var defaultConfig = Config{
	LogFormat:            "text",
	LogLevel:             "info",
	MaxCompletionsPerSec: 3,
	WorkerPoolSize:       4,
	MetricsAddr:          "",
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.toml"), nil
}

// Load reads the ambient config file if present, applying defaults for
// anything missing, matching the teacher's "start with defaults, decode
// over them" shape.
func Load() (*Config, error) {
	cfg := defaultConfig

	path, err := configPath()
	if err != nil {
		log.Printf("config: could not determine user config directory: %v; using defaults", err)
		return &cfg, nil
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(statErr) {
		return nil, statErr
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		cfg.LogFormat = defaultConfig.LogFormat
	}
	if cfg.MaxCompletionsPerSec <= 0 {
		cfg.MaxCompletionsPerSec = defaultConfig.MaxCompletionsPerSec
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultConfig.WorkerPoolSize
	}
	if cfg.WeightCacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.WeightCacheDir = filepath.Join(dir, appName, "weights")
		}
	}
}

// Watcher hot-reloads the ambient config file on change and publishes the
// result on Updates, matching §"Configuration" ambient-stack note: model/
// action configuration is never affected, only debounce/log-level knobs.
type Watcher struct {
	mu      sync.RWMutex
	current Config
	Updates chan Config

	fsw *fsnotify.Watcher
}

// NewWatcher starts watching the ambient config file, if one exists, and
// returns a Watcher seeded with the already-loaded initial config. A
// missing config file or an environment without inotify support degrades
// to "never reloads" rather than a fatal error, since ambient config is
// optional.
func NewWatcher(initial Config) (*Watcher, error) {
	w := &Watcher{current: initial, Updates: make(chan Config, 1)}

	path, err := configPath()
	if err != nil {
		return w, nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("config: fsnotify unavailable, hot-reload disabled: %v", err)
		return w, nil
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		log.Printf("config: could not watch config directory: %v", err)
		return w, nil
	}
	w.fsw = fsw
	go w.run(path)
	return w, nil
}

func (w *Watcher) run(path string) {
	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() { w.reload(path) })
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watch error: %v", err)
		}
	}
}

func (w *Watcher) reload(path string) {
	cfg := w.Current()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		log.Printf("config: reload failed, keeping previous config: %v", err)
		return
	}
	applyDefaults(&cfg)

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	select {
	case w.Updates <- cfg:
	default:
	}
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Close() {
	if w.fsw != nil {
		w.fsw.Close()
	}
}
