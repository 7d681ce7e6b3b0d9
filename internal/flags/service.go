package flags

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
)

// Store is the persistence contract the service needs.
type Store interface {
	Get(ctx context.Context, name Name) (bool, error)
	Upsert(ctx context.Context, name Name, enabled bool) error
	SetMany(ctx context.Context, enabled, disabled []Name) error
	List(ctx context.Context) ([]Flag, error)
	Names(ctx context.Context) (map[Name]bool, error)
}

// Service is the single flag authority. Every component consults it through
// Enabled; all mutations flow through SetPhase/Toggle so cache invalidation
// is never forgotten at a call site.
type Service struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, cache: NewMemoryCache()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether the named flag is on. A flag missing from storage
// reads as disabled; only phase transitions treat absence as a
// configuration error (see SetPhase's catalog pre-check).
func (s *Service) Enabled(ctx context.Context, name Name) bool {
	if enabled, ok := s.cache.Get(ctx, name); ok {
		return enabled
	}
	enabled, err := s.store.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.Warn("flag lookup failed", "flag", string(name), "error", err)
		}
		return false
	}
	s.cache.Put(ctx, name, enabled)
	return enabled
}

// AnyEnabled reports whether at least one of the named flags is on.
func (s *Service) AnyEnabled(ctx context.Context, names ...Name) bool {
	for _, name := range names {
		if s.Enabled(ctx, name) {
			return true
		}
	}
	return false
}

// SetPhase applies a full phase-flag transition: enabled and disabled
// together must cover the phase catalog exactly. Settings flags are out of
// bounds here. The batch is atomic and the cache is invalidated afterwards.
func (s *Service) SetPhase(ctx context.Context, enabled, disabled []Name) error {
	if err := validatePhaseSets(enabled, disabled); err != nil {
		return err
	}

	stored, err := s.store.Names(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read flag catalog")
	}
	if missing := missingFrom(stored, Catalog()); len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeConfiguration,
			"flag catalog incomplete, missing: %s", joinNames(missing))
	}

	if err := s.store.SetMany(ctx, enabled, disabled); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "apply flag batch")
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Toggle flips a single flag (direct admin action, settings included).
func (s *Service) Toggle(ctx context.Context, name Name, enabled bool) error {
	if !known(name) {
		return dErrors.Newf(dErrors.CodeValidation, "unknown flag %q", name)
	}
	if err := s.store.Upsert(ctx, name, enabled); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "toggle flag")
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Seed inserts every catalog flag that is not yet stored, disabled. It is
// idempotent: flags already present keep their value.
func (s *Service) Seed(ctx context.Context) error {
	stored, err := s.store.Names(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read flag catalog")
	}
	for _, name := range Catalog() {
		if stored[name] {
			continue
		}
		if err := s.store.Upsert(ctx, name, false); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "seed flag")
		}
	}
	s.cache.Invalidate(ctx)
	return nil
}

// List returns all stored flags.
func (s *Service) List(ctx context.Context) ([]Flag, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list flags")
	}
	return list, nil
}

func validatePhaseSets(enabled, disabled []Name) error {
	seen := make(map[Name]bool, len(enabled)+len(disabled))
	for _, name := range append(append([]Name{}, enabled...), disabled...) {
		if !IsPhaseFlag(name) {
			return dErrors.Newf(dErrors.CodeConfiguration,
				"%q is not a phase flag", name)
		}
		if seen[name] {
			return dErrors.Newf(dErrors.CodeConfiguration,
				"flag %q appears in both sets", name)
		}
		seen[name] = true
	}
	if missing := missingFrom(seen, PhaseFlags()); len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeConfiguration,
			"phase transition does not cover: %s", joinNames(missing))
	}
	return nil
}

func missingFrom(present map[Name]bool, wanted []Name) []Name {
	var missing []Name
	for _, name := range wanted {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func joinNames(names []Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

func known(name Name) bool {
	for _, n := range Catalog() {
		if n == name {
			return true
		}
	}
	return false
}
