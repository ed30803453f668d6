// Package tenant resolves which tenant a request acts on.
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/metrics"
	"cmms/internal/models"
	"cmms/internal/repository"
	console "cmms/internal/utils/logger"

	"github.com/google/uuid"
)

var log = console.New("TENANT")

// Info is the resolved tenant identity placed on each request.
type Info struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	IsReadOnly bool   `json:"isReadOnly"`
}

// Request carries the optional explicit identifiers of a request.
type Request struct {
	TenantID   string
	TenantSlug string
}

func (r Request) explicit() bool {
	return r.TenantID != "" || r.TenantSlug != ""
}

// Store is the tenant lookup surface the resolver needs. Lookups that
// match nothing return repository.ErrNotFound.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	FindOldest(ctx context.Context) (*models.Tenant, error)
}

// Options configures implicit resolution.
type Options struct {
	DefaultSlug string
	Fallback    Info
	Timeout     time.Duration
}

type Resolver struct {
	store Store
	cache Cache
	opts  Options
}

func NewResolver(store Store, cache Cache, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Resolver{store: store, cache: cache, opts: opts}
}

// Fallback returns the identity used when nothing else resolves.
func (r *Resolver) Fallback() Info {
	return r.opts.Fallback
}

// Cache exposes the injected cache so callers can reset it after tenant
// mutations.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// ValidTenantID reports whether id is a canonical hyphenated UUID.
func ValidTenantID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Resolve maps a request onto a tenant. Explicit identifiers must match a
// tenant; without them the cached default is used, degrading to the
// fallback identity on any store failure.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Info, error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.TenantSlug = strings.ToLower(strings.TrimSpace(req.TenantSlug))

	if req.explicit() {
		return r.resolveExplicit(ctx, req)
	}
	return r.resolveImplicit(ctx), nil
}

func (r *Resolver) resolveExplicit(ctx context.Context, req Request) (Info, error) {
	if req.TenantID != "" && !ValidTenantID(req.TenantID) {
		return Info{}, apperr.InvalidInput("Invalid x-tenant-id")
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var (
		t   *models.Tenant
		err error
	)
	if req.TenantID != "" {
		t, err = r.store.FindByID(ctx, req.TenantID)
	} else {
		t, err = r.store.FindBySlug(ctx, req.TenantSlug)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return Info{}, apperr.NotFound("Tenant not found")
	}
	if err != nil {
		return Info{}, apperr.Internal(err)
	}
	return infoOf(t), nil
}

func (r *Resolver) resolveImplicit(ctx context.Context) Info {
	if info, ok := r.cache.Get(ctx); ok {
		metrics.TenantCacheLookups.WithLabelValues("hit").Inc()
		return info
	}
	metrics.TenantCacheLookups.WithLabelValues("miss").Inc()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	t, err := r.lookupDefault(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn("Default tenant lookup failed, using fallback: %v", err)
		}
		metrics.TenantFallbacks.Inc()
		return r.opts.Fallback
	}

	info := infoOf(t)
	r.cache.Set(ctx, info)
	return info
}

// lookupDefault tries the configured slug, then the oldest tenant.
func (r *Resolver) lookupDefault(ctx context.Context) (*models.Tenant, error) {
	if r.opts.DefaultSlug != "" {
		t, err := r.store.FindBySlug(ctx, r.opts.DefaultSlug)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return r.store.FindOldest(ctx)
}

func infoOf(t *models.Tenant) Info {
	return Info{ID: t.ID, Slug: t.Slug, IsReadOnly: t.IsReadOnly}
}

// SlugFromHost extracts the left-most label of host when host is a direct
// subdomain of baseDomain. "acme.cmms.example.com" -> "acme".
func SlugFromHost(host, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix := "." + strings.ToLower(strings.TrimPrefix(baseDomain, "."))
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") || sub == "www" || sub == "api" {
		return ""
	}
	return sub
}
