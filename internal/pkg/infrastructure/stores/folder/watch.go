package folder

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/fsnotify/fsnotify"
)

const debounce = 250 * time.Millisecond

// Watch keeps the store in sync with changes made to the directory by other
// processes until the context is cancelled. Rapid successive events for a
// file are folded into a single reload.
func (b *Backend) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(b.dir); err != nil {
		return err
	}

	log := logging.GetFromContext(ctx)
	log.Info().Msgf("watching %s for changes", b.dir)

	pending := map[string]time.Time{}

	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if path, ok := b.mainFile(event.Name); ok {
				pending[path] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("folder watcher failed")

		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) < debounce {
					continue
				}
				delete(pending, path)
				b.refresh(ctx, path)
			}
		}
	}
}

// mainFile maps an event on a file, or one of its sidecar files, to the file
// that defines the type
func (b *Backend) mainFile(name string) (string, bool) {
	b.mu.Lock()
	path, known := b.files[typeNameOf(name)]
	b.mu.Unlock()

	if known {
		return path, true
	}
	if b.formatOf(name) != nil {
		return name, true
	}
	return "", false
}

func (b *Backend) refresh(ctx context.Context, path string) {
	log := logging.GetFromContext(ctx)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info().Msgf("%s was removed", path)
		b.forget(ctx, path)
		return
	}

	if err := b.reload(ctx, path); err != nil {
		log.Error().Err(err).Msgf("failed to reload %s", path)
	}
}
