package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"bytebill/internal/domain/model"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Watcher re-reads the config file when it changes and hands the settings block
// to onChange. Other sections need a restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(model.Settings)
	log      *zerolog.Logger

	mu       sync.Mutex
	lastHash string
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewWatcher(path string, onChange func(model.Settings), logger *zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "ConfigWatcher").Logger()
	return &Watcher{
		path:     path,
		watcher:  fw,
		onChange: onChange,
		log:      &l,
		stopChan: make(chan struct{}),
	}, nil
}

// Run watches the config directory until Stop is called or the watcher fails.
// Editors replace files on save, so the directory is watched, not the file.
func (w *Watcher) Run() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.log.Info().Str("path", w.path).Msg("watching config for settings changes")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce - wait a bit for write to complete
			time.Sleep(100 * time.Millisecond)
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("config watcher error")
		case <-w.stopChan:
			return nil
		}
	}
}

// Reload parses the file and applies the settings block if it changed.
func (w *Watcher) Reload() {
	b, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to read config file")
		return
	}
	cfg, err := Parse(b)
	if err != nil {
		w.log.Error().Err(err).Msg("ignoring invalid config file")
		return
	}
	s := cfg.Settings.Defaults
	if !s.Valid() {
		w.log.Warn().Msg("ignoring invalid settings block")
		return
	}

	w.mu.Lock()
	hash := settingsKey(s)
	changed := hash != w.lastHash
	w.lastHash = hash
	w.mu.Unlock()
	if !changed {
		return
	}
	w.log.Info().Str("company", s.CompanyName).Msg("settings reloaded from config")
	w.onChange(s)
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.watcher.Close()
	})
}

func settingsKey(s model.Settings) string {
	b, _ := yaml.Marshal(s)
	return string(b)
}
