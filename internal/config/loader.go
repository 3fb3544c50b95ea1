package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file
// changes. Call the returned stop function to clean up. A reload that fails
// to parse or validate keeps the previous config in effect.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Keep running with the old config.
						continue
					}
					if err := Validate(cfg); err != nil {
						continue
					}
					l.mu.Lock()
					l.current = cfg
					callbacks := make([]func(*Config), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.Unlock()
					for _, fn := range callbacks {
						fn(cfg)
					}
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

func (l *Loader) load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.EmitterAddr == "" {
		cfg.Server.EmitterAddr = "127.0.0.1:9001"
	}
	if cfg.Server.ReconnectBackoffMs == 0 {
		cfg.Server.ReconnectBackoffMs = 1000
	}
	if cfg.Server.WriteQueueDepth == 0 {
		cfg.Server.WriteQueueDepth = 10000
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite3"
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "file:events.db?cache=shared"
	}
	if cfg.Emitter.ListenAddr == "" {
		cfg.Emitter.ListenAddr = ":9001"
	}
	if cfg.Emitter.WarmupMs == 0 {
		cfg.Emitter.WarmupMs = 5000
	}
	if cfg.Emitter.UpdateIntervalMs == 0 {
		cfg.Emitter.UpdateIntervalMs = 1000
	}
	if cfg.Emitter.ConcurrentTrips == 0 {
		cfg.Emitter.ConcurrentTrips = 500
	}
	if cfg.Emitter.EndProbability == 0 {
		cfg.Emitter.EndProbability = 0.01
	}
	if cfg.Emitter.MinFare == 0 {
		cfg.Emitter.MinFare = 10
	}
	if cfg.Emitter.MaxFare == 0 {
		cfg.Emitter.MaxFare = 29
	}
	zero := SpawnBox{}
	if cfg.Emitter.Spawn == zero {
		// Default spawn box covers San Francisco.
		cfg.Emitter.Spawn = SpawnBox{
			NE: LatLng{Lat: 37.814039, Lng: -122.359200},
			SW: LatLng{Lat: 37.704382, Lng: -122.514381},
		}
	}
}
