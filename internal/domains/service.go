package domains

import (
	"context"
	"errors"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
)

// Store is the persistence contract the registry needs.
type Store interface {
	CreateIfNameAvailable(ctx context.Context, d Domain) error
	FindByID(ctx context.Context, domainID id.DomainID) (Domain, error)
	FindByName(ctx context.Context, name string) (Domain, error)
	List(ctx context.Context) ([]Domain, error)
	Count(ctx context.Context) (int, error)
}

// Registry exposes read access to the electoral colleges plus idempotent
// seeding. No runtime mutation surface exists on purpose.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Get(ctx context.Context, domainID id.DomainID) (Domain, error) {
	d, err := r.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Domain{}, dErrors.New(dErrors.CodeNotFound, "domain not found")
		}
		return Domain{}, dErrors.Wrap(err, dErrors.CodeInternal, "load domain")
	}
	return d, nil
}

func (r *Registry) List(ctx context.Context) ([]Domain, error) {
	list, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list domains")
	}
	return list, nil
}

// Single returns the sole domain when exactly one exists. Used by the
// single-domain-round setting: candidate registration forces this domain
// regardless of caller input.
func (r *Registry) Single(ctx context.Context) (Domain, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return Domain{}, dErrors.Wrap(err, dErrors.CodeInternal, "count domains")
	}
	if n != 1 {
		return Domain{}, dErrors.Newf(dErrors.CodeConfiguration,
			"single-domain round requires exactly one domain, found %d", n)
	}
	list, err := r.store.List(ctx)
	if err != nil {
		return Domain{}, dErrors.Wrap(err, dErrors.CodeInternal, "list domains")
	}
	return list[0], nil
}

// Seed inserts the reference domains that are not yet present, keyed by
// name. Existing rows keep their seat counts.
func (r *Registry) Seed(ctx context.Context) error {
	for _, d := range SeedSet() {
		if _, err := r.store.FindByName(ctx, d.Name); err == nil {
			continue
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "probe domain")
		}
		if err := r.store.CreateIfNameAvailable(ctx, d); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				continue
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "seed domain")
		}
	}
	return nil
}
