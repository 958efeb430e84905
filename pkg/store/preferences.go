// Package store persists per-user rule preferences and the recommendation
// history log.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/younsl/costadvisor/pkg/rules"
)

const preferenceExt = ".json"

// ErrInvalidUser is returned for user ids that cannot name a preference file
var ErrInvalidUser = errors.New("invalid user id")

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// ValidateUserID rejects ids that are empty or could escape the store directory
func ValidateUserID(user string) error {
	if !userIDPattern.MatchString(user) || strings.Contains(user, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	return nil
}

// Preferences stores one JSON rule document per user under a directory.
// Stored documents only need the fields a user overrides; everything else
// comes from the defaults.
type Preferences struct {
	dir      string
	defaults rules.Set
	logger   zerolog.Logger

	mu    sync.RWMutex
	cache map[string]rules.Set
}

// NewPreferences creates the store, creating dir if needed
func NewPreferences(dir string, defaults rules.Set, logger zerolog.Logger) (*Preferences, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating preferences directory: %w", err)
	}
	return &Preferences{
		dir:      dir,
		defaults: defaults.Clone(),
		logger:   logger.With().Str("component", "preferences").Logger(),
		cache:    make(map[string]rules.Set),
	}, nil
}

// Dir returns the directory holding the preference documents
func (p *Preferences) Dir() string {
	return p.dir
}

func (p *Preferences) path(user string) string {
	return filepath.Join(p.dir, user+preferenceExt)
}

// Get returns the user's rules merged over the defaults. A user without a
// stored document gets the defaults.
func (p *Preferences) Get(user string) (rules.Set, error) {
	if err := ValidateUserID(user); err != nil {
		return rules.Set{}, err
	}

	p.mu.RLock()
	cached, ok := p.cache[user]
	p.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	data, err := os.ReadFile(p.path(user))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return rules.Set{}, fmt.Errorf("error reading preferences for %s: %w", user, err)
	}

	set, err := rules.MergeJSON(p.defaults, data)
	if err != nil {
		return rules.Set{}, err
	}
	if err := set.Validate(); err != nil {
		return rules.Set{}, err
	}

	p.mu.Lock()
	p.cache[user] = set
	p.mu.Unlock()

	return set.Clone(), nil
}

// Save validates and writes the user's rules. The file is replaced atomically.
func (p *Preferences) Save(user string, set rules.Set) error {
	if err := ValidateUserID(user); err != nil {
		return err
	}
	if err := set.Validate(); err != nil {
		return err
	}

	data, err := rules.Encode(set)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(p.dir, "."+user+"-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing preferences for %s: %w", user, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing preferences for %s: %w", user, err)
	}
	if err := os.Rename(tmp.Name(), p.path(user)); err != nil {
		return fmt.Errorf("error saving preferences for %s: %w", user, err)
	}

	p.mu.Lock()
	p.cache[user] = set.Clone()
	p.mu.Unlock()

	p.logger.Debug().Str("user", user).Msg("Preferences saved")
	return nil
}

// Delete removes the user's document so later reads return the defaults
func (p *Preferences) Delete(user string) error {
	if err := ValidateUserID(user); err != nil {
		return err
	}
	if err := os.Remove(p.path(user)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error deleting preferences for %s: %w", user, err)
	}
	p.invalidate(user)
	return nil
}

func (p *Preferences) invalidate(user string) {
	p.mu.Lock()
	delete(p.cache, user)
	p.mu.Unlock()
}

func (p *Preferences) cached(user string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.cache[user]
	return ok
}

// handleEvent drops the cache entry for a preference file touched outside Save
func (p *Preferences) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if filepath.Ext(name) != preferenceExt || strings.HasPrefix(name, ".") {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	user := strings.TrimSuffix(name, preferenceExt)
	p.invalidate(user)
	p.logger.Debug().Str("user", user).Str("op", event.Op.String()).Msg("Preferences changed on disk")
}

// Watch invalidates cached preferences when their files change on disk.
// It blocks until ctx is cancelled.
func (p *Preferences) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.dir); err != nil {
		return fmt.Errorf("error watching %s: %w", p.dir, err)
	}

	p.logger.Info().Str("dir", p.dir).Msg("Watching preferences")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			p.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn().Err(err).Msg("Preferences watcher error")
		}
	}
}
