package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

// DefaultDebounce is the quiet period before a burst of file events is
// reported.
const DefaultDebounce = 100 * time.Millisecond

// FileSource loads the rule base and an optional taxonomy from disk.
type FileSource struct {
	rulesPath    string
	taxonomyPath string
	debounce     time.Duration
	logger       *slog.Logger
}

// NewFileSource creates a file source. An empty taxonomyPath selects the
// built-in taxonomy; a non-positive debounce uses DefaultDebounce.
func NewFileSource(rulesPath, taxonomyPath string, debounce time.Duration, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileSource{
		rulesPath:    rulesPath,
		taxonomyPath: taxonomyPath,
		debounce:     debounce,
		logger:       logger.With("component", "rulebase.source"),
	}
}

// Load reads and validates both files.
func (s *FileSource) Load(ctx context.Context) (*Bundle, error) {
	b, err := loadBundle(ctx, s.rulesPath, s.taxonomyPath)
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded rule base",
		"path", s.rulesPath,
		"taxonomy", s.taxonomyPath,
		"rule_count", len(b.Rules.Rules),
	)
	return b, nil
}

// loadBundle reads a rule base and an optional taxonomy.
func loadBundle(ctx context.Context, rulesPath, taxonomyPath string) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rb, err := rulebase.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}

	tax := taxonomy.Default()
	if taxonomyPath != "" {
		tax, err = rulebase.LoadTaxonomy(taxonomyPath)
		if err != nil {
			return nil, err
		}
	}
	return &Bundle{Rules: rb, Taxonomy: tax}, nil
}

// Watch reports changes to the rule and taxonomy files. The parent
// directories are watched so editors that replace files by rename are
// seen too.
func (s *FileSource) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	targets := make(map[string]struct{}, 2)
	dirs := make(map[string]struct{}, 2)
	for _, p := range []string{s.rulesPath, s.taxonomyPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}

	events := make(chan Event, 1)
	debouncer := NewDebouncer(s.debounce)

	go func() {
		defer close(events)
		defer watcher.Close()
		defer debouncer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Chmod == fsnotify.Chmod {
					continue
				}
				abs, err := filepath.Abs(ev.Name)
				if err != nil {
					continue
				}
				if _, ok := targets[abs]; !ok {
					continue
				}

				s.logger.Debug("rule file event", "path", ev.Name, "op", ev.Op.String())

				out := Event{Path: ev.Name, Op: ev.Op.String(), Time: time.Now()}
				debouncer.Trigger(func() {
					select {
					case events <- out:
					case <-ctx.Done():
					default:
						// A reload is already pending; it will read the latest files.
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("rule file watcher error", "error", err)
			}
		}
	}()

	s.logger.Info("watching rule base",
		"rules", s.rulesPath,
		"taxonomy", s.taxonomyPath,
		"debounce_ms", s.debounce.Milliseconds(),
	)

	return events, nil
}
