package coordinator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 250 * time.Millisecond

// Target is the watch loop the coordinator drives.
type Target interface {
	Run(ctx context.Context) error
	SetSuite(suite *check.Suite, fingerprint string)
}

// Loader rebuilds the suite and its fingerprint from the current definitions.
type Loader func() (*check.Suite, string, error)

// Coordinator runs the watch loop alongside a watcher that reloads the suite
// file when it changes. It blocks until the context is canceled.
type Coordinator struct {
	logger    zerolog.Logger
	target    Target
	loader    Loader
	suitePath string
	debounce  time.Duration

	mu           sync.RWMutex
	reloads      int
	reloadErrors int
	targetErr    error
}

// New constructs a Coordinator. An empty suitePath disables reloading.
func New(logger zerolog.Logger, target Target, loader Loader, suitePath string) *Coordinator {
	return &Coordinator{
		logger:    logger,
		target:    target,
		loader:    loader,
		suitePath: suitePath,
		debounce:  DefaultDebounce,
	}
}

// Run starts the target and the suite watcher in parallel and waits for both to exit.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := c.target.Run(ctx); err != nil {
			c.logger.Error().Err(err).Msg("runner exited with error")
			c.mu.Lock()
			c.targetErr = err
			c.mu.Unlock()
		}
	}()

	if c.suitePath != "" && c.loader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.watch(ctx); err != nil {
				c.logger.Error().Err(err).Str("path", c.suitePath).Msg("suite watcher stopped; reload disabled")
			}
		}()
	}

	wg.Wait()
	c.logger.Info().Msg("coordinator stopped")

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.targetErr
}

func (c *Coordinator) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(c.suitePath)
	// Watch the directory: editors often replace the file rather than write it.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	c.logger.Info().Str("path", target).Msg("watching suite file")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			c.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn().Err(err).Msg("suite watcher error")
		}
	}
}

func (c *Coordinator) reload() {
	suite, fingerprint, err := c.loader()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.reloadErrors++
		c.logger.Error().Err(err).Str("path", c.suitePath).Msg("suite reload failed; keeping previous suite")
		return
	}
	c.reloads++
	c.target.SetSuite(suite, fingerprint)
	c.logger.Info().
		Str("path", c.suitePath).
		Int("checks", len(suite.Checks())).
		Str("fingerprint", fingerprint).
		Msg("suite reloaded")
}

// Reloads returns how many reloads succeeded and failed.
func (c *Coordinator) Reloads() (ok int, failed int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reloads, c.reloadErrors
}
