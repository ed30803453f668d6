package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmeID = "11111111-1111-1111-1111-111111111111"

type fakeStore struct {
	bySlug  map[string]*models.Tenant
	byID    map[string]*models.Tenant
	oldest  *models.Tenant
	err     error
	lookups int
}

func newFakeStore(tenants ...*models.Tenant) *fakeStore {
	s := &fakeStore{bySlug: map[string]*models.Tenant{}, byID: map[string]*models.Tenant{}}
	for _, t := range tenants {
		s.bySlug[t.Slug] = t
		s.byID[t.ID] = t
		if s.oldest == nil {
			s.oldest = t
		}
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*models.Tenant, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.byID[id]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) FindBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.bySlug[slug]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) FindOldest(_ context.Context) (*models.Tenant, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	if s.oldest == nil {
		return nil, repository.ErrNotFound
	}
	return s.oldest, nil
}

func acme() *models.Tenant {
	t := &models.Tenant{Slug: "acme", Name: "Acme", IsReadOnly: true}
	t.ID = acmeID
	return t
}

var fallback = Info{ID: "00000000-0000-0000-0000-000000000001", Slug: "default"}

func newResolver(store Store) *Resolver {
	return NewResolver(store, NewMemoryCache(time.Minute), Options{Fallback: fallback, Timeout: time.Second})
}

func errKind(t *testing.T, err error) apperr.Kind {
	t.Helper()
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	return ae.Kind
}

func TestResolve_ExplicitID(t *testing.T) {
	r := newResolver(newFakeStore(acme()))

	info, err := r.Resolve(context.Background(), Request{TenantID: " " + acmeID + " "})
	require.NoError(t, err)
	assert.Equal(t, Info{ID: acmeID, Slug: "acme", IsReadOnly: true}, info)

	_, err = r.Resolve(context.Background(), Request{TenantID: "not-a-uuid"})
	assert.Equal(t, apperr.KindInvalidInput, errKind(t, err))

	_, err = r.Resolve(context.Background(), Request{TenantID: "99999999-9999-9999-9999-999999999999"})
	assert.Equal(t, apperr.KindNotFound, errKind(t, err))
}

func TestResolve_ExplicitSlugIsCaseInsensitive(t *testing.T) {
	r := newResolver(newFakeStore(acme()))

	info, err := r.Resolve(context.Background(), Request{TenantSlug: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, acmeID, info.ID)

	_, err = r.Resolve(context.Background(), Request{TenantSlug: "globex"})
	assert.Equal(t, apperr.KindNotFound, errKind(t, err))
}

func TestResolve_ExplicitStoreFailureIsInternal(t *testing.T) {
	store := newFakeStore(acme())
	store.err = errors.New("connection refused")
	r := newResolver(store)

	_, err := r.Resolve(context.Background(), Request{TenantID: acmeID})
	assert.Equal(t, apperr.KindInternal, errKind(t, err))
}

func TestResolve_ImplicitUsesCache(t *testing.T) {
	store := newFakeStore(acme())
	r := newResolver(store)

	info, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, acmeID, info.ID)
	lookups := store.lookups

	info, err = r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, acmeID, info.ID)
	assert.Equal(t, lookups, store.lookups)

	r.Cache().Reset(context.Background())
	_, err = r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Greater(t, store.lookups, lookups)
}

func TestResolve_ImplicitPrefersDefaultSlug(t *testing.T) {
	other := &models.Tenant{Slug: "globex"}
	other.ID = "44444444-4444-4444-4444-444444444444"
	store := newFakeStore(other, acme())

	r := NewResolver(store, NewMemoryCache(time.Minute), Options{DefaultSlug: "acme", Fallback: fallback})
	info, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, acmeID, info.ID)

	r = NewResolver(store, NewMemoryCache(time.Minute), Options{DefaultSlug: "missing", Fallback: fallback})
	info, err = r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, other.ID, info.ID)
}

func TestResolve_ImplicitFallsBack(t *testing.T) {
	r := newResolver(newFakeStore())
	info, err := r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, fallback, info)

	store := newFakeStore(acme())
	store.err = errors.New("timeout")
	r = newResolver(store)
	info, err = r.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, fallback, info)

	// Fallbacks are not cached.
	_, ok := r.Cache().Get(context.Background())
	assert.False(t, ok)
}

func TestValidTenantID(t *testing.T) {
	assert.True(t, ValidTenantID(acmeID))
	assert.False(t, ValidTenantID("11111111111111111111111111111111"))
	assert.False(t, ValidTenantID(""))
	assert.False(t, ValidTenantID("{11111111-1111-1111-1111-111111111111}"))
}

func TestSlugFromHost(t *testing.T) {
	cases := []struct {
		host, base, want string
	}{
		{"acme.cmms.example.com", "cmms.example.com", "acme"},
		{"ACME.cmms.example.com:8080", "cmms.example.com", "acme"},
		{"cmms.example.com", "cmms.example.com", ""},
		{"www.cmms.example.com", "cmms.example.com", ""},
		{"a.b.cmms.example.com", "cmms.example.com", ""},
		{"acme.other.com", "cmms.example.com", ""},
		{"acme.cmms.example.com", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SlugFromHost(tc.host, tc.base), tc.host)
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)
	c.Set(context.Background(), Info{ID: acmeID})

	info, ok := c.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, acmeID, info.ID)

	assert.Eventually(t, func() bool {
		_, ok := c.Get(context.Background())
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "test", time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx)
	assert.False(t, ok)

	c.Set(ctx, Info{ID: acmeID, Slug: "acme"})
	assert.True(t, mr.Exists("test:tenant:default"))

	info, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "acme", info.Slug)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx)
	assert.False(t, ok)

	c.Set(ctx, Info{ID: acmeID})
	c.Reset(ctx)
	_, ok = c.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, mr.Set("test:tenant:default", "{not json"))
	_, ok = c.Get(ctx)
	assert.False(t, ok)
}

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	c := NewRedisCache(client, "", time.Minute)
	c.Set(context.Background(), Info{ID: acmeID})
	_, ok := c.Get(context.Background())
	assert.False(t, ok)
}
