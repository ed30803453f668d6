package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantA = "11111111-1111-1111-1111-111111111111"
	plantA  = "22222222-2222-2222-2222-222222222222"
	plantB  = "33333333-3333-3333-3333-333333333333"
)

type grantKey struct{ tenant, role, perm string }

type fakeStore struct {
	grants     map[grantKey]bool
	overrides  map[string]string // userID|plantID -> role
	plants     map[string]string // plantID -> tenantID
	err        error
	grantCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		grants:    map[grantKey]bool{},
		overrides: map[string]string{},
		plants:    map[string]string{plantA: tenantA},
	}
}

func (f *fakeStore) grant(role, perm string) {
	f.grants[grantKey{tenantA, role, perm}] = true
}

func (f *fakeStore) PlantRole(_ context.Context, userID, plantID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	role, ok := f.overrides[userID+"|"+plantID]
	return role, ok, nil
}

func (f *fakeStore) HasGrant(_ context.Context, tenantID, roleKey, permissionKey string) (bool, error) {
	f.grantCalls++
	if f.err != nil {
		return false, f.err
	}
	return f.grants[grantKey{tenantID, roleKey, permissionKey}], nil
}

func (f *fakeStore) CountGrants(_ context.Context, tenantID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for k := range f.grants {
		if k.tenant == tenantID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PlantInTenant(_ context.Context, tenantID, plantID string) (bool, error) {
	return f.plants[plantID] == tenantID, nil
}

func newGuard(store Store, hook BreakGlassHook) *Guard {
	return NewGuard(NewEngine(store, time.Second), hook)
}

func principal(role string) *Principal {
	return &Principal{UserID: "user-1", TenantID: tenantA, Role: role}
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %T", err)
	return ae.Kind
}

func TestAuthorize_RequiresPrincipalAndTenant(t *testing.T) {
	g := newGuard(newFakeStore(), nil)

	_, err := g.Authorize(context.Background(), Request{TenantID: tenantA, Permission: models.PermTicketsRead, Scope: ScopeTenant})
	assert.Equal(t, apperr.KindUnauthenticated, kindOf(t, err))

	_, err = g.Authorize(context.Background(), Request{Principal: principal(models.RoleGestor), Permission: models.PermTicketsRead, Scope: ScopeTenant})
	assert.Equal(t, apperr.KindInvalidInput, kindOf(t, err))
}

func TestAuthorize_SuperadminBypassesGrants(t *testing.T) {
	store := newFakeStore()
	g := newGuard(store, nil)

	d, err := g.Authorize(context.Background(), Request{
		Principal:  principal(" SuperAdmin "),
		TenantID:   tenantA,
		Permission: models.PermAdminRBAC,
		Scope:      ScopeTenant,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonSuperadmin, d.Reason)
	assert.Zero(t, store.grantCalls)
}

func TestAuthorize_GrantedWithNormalisedRole(t *testing.T) {
	store := newFakeStore()
	store.grant(models.RoleGestor, models.PermTicketsRead)
	g := newGuard(store, nil)

	d, err := g.Authorize(context.Background(), Request{
		Principal:  principal("  GESTOR "),
		TenantID:   tenantA,
		Permission: models.PermTicketsRead,
		Scope:      ScopeTenant,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonGranted, d.Reason)
	assert.Equal(t, models.RoleGestor, d.EffectiveRole)
}

func TestAuthorize_MissingPermissionCarriesKey(t *testing.T) {
	store := newFakeStore()
	store.grant(models.RoleSupervisor, models.PermWorkOrdersRead)
	g := newGuard(store, nil)

	_, err := g.Authorize(context.Background(), Request{
		Principal:  principal(models.RoleSupervisor),
		TenantID:   tenantA,
		PlantID:    plantA,
		Permission: models.PermWorkOrdersCreate,
		Scope:      ScopePlant,
	})
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindForbidden, ae.Kind)
	assert.Equal(t, models.PermWorkOrdersCreate, ae.Permission)
}

func TestAuthorize_EmptyRoleIsForbidden(t *testing.T) {
	g := newGuard(newFakeStore(), nil)
	_, err := g.Authorize(context.Background(), Request{
		Principal:  principal("   "),
		TenantID:   tenantA,
		Permission: models.PermTicketsRead,
		Scope:      ScopeTenant,
	})
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
}

func TestAuthorize_PlantScope(t *testing.T) {
	store := newFakeStore()
	store.grant(models.RoleGestor, models.PermWorkOrdersCreate)
	store.overrides["user-1|"+plantA] = models.RoleGestor
	g := newGuard(store, nil)

	t.Run("missing plant id", func(t *testing.T) {
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleTecnico), TenantID: tenantA,
			Permission: models.PermWorkOrdersCreate, Scope: ScopePlant,
		})
		assert.Equal(t, apperr.KindInvalidInput, kindOf(t, err))
	})

	t.Run("plant of another tenant", func(t *testing.T) {
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleTecnico), TenantID: tenantA, PlantID: plantB,
			Permission: models.PermWorkOrdersCreate, Scope: ScopePlant,
		})
		assert.Equal(t, apperr.KindNotFound, kindOf(t, err))
	})

	t.Run("override replaces global role", func(t *testing.T) {
		d, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleTecnico), TenantID: tenantA, PlantID: plantA,
			Permission: models.PermWorkOrdersCreate, Scope: ScopePlant,
		})
		require.NoError(t, err)
		assert.Equal(t, models.RoleGestor, d.EffectiveRole)
	})

	t.Run("override ignored at tenant scope", func(t *testing.T) {
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleTecnico), TenantID: tenantA, PlantID: plantA,
			Permission: models.PermWorkOrdersCreate, Scope: ScopeTenant,
		})
		assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
	})
}

func TestAuthorize_BreakGlass(t *testing.T) {
	for _, perm := range []string{models.PermSetupRun, models.PermAdminRBAC, models.PermAdminUsers, models.PermAdminPlants} {
		t.Run(perm, func(t *testing.T) {
			var hooked []Request
			g := newGuard(newFakeStore(), func(_ context.Context, req Request) {
				hooked = append(hooked, req)
			})
			d, err := g.Authorize(context.Background(), Request{
				Principal: principal(models.RoleAdminEmpresa), TenantID: tenantA,
				Permission: perm, Scope: ScopeTenant,
			})
			require.NoError(t, err)
			assert.Equal(t, ReasonBreakGlass, d.Reason)
			require.Len(t, hooked, 1)
			assert.Equal(t, perm, hooked[0].Permission)
		})
	}

	t.Run("non bootstrap permission", func(t *testing.T) {
		g := newGuard(newFakeStore(), nil)
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleAdminEmpresa), TenantID: tenantA,
			Permission: models.PermAdminSLA, Scope: ScopeTenant,
		})
		assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
	})

	t.Run("tenant already has grants", func(t *testing.T) {
		store := newFakeStore()
		store.grant(models.RoleTecnico, models.PermTicketsRead)
		g := newGuard(store, nil)
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleAdminEmpresa), TenantID: tenantA,
			Permission: models.PermSetupRun, Scope: ScopeTenant,
		})
		assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
	})

	t.Run("plant scope never breaks glass", func(t *testing.T) {
		g := newGuard(newFakeStore(), nil)
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal(models.RoleAdminEmpresa), TenantID: tenantA, PlantID: plantA,
			Permission: models.PermAdminPlants, Scope: ScopePlant,
		})
		assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
	})

	t.Run("raw role must match exactly", func(t *testing.T) {
		g := newGuard(newFakeStore(), nil)
		_, err := g.Authorize(context.Background(), Request{
			Principal: principal("Admin_Empresa"), TenantID: tenantA,
			Permission: models.PermSetupRun, Scope: ScopeTenant,
		})
		assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
	})
}

func TestAuthorize_NotProvisioned(t *testing.T) {
	store := newFakeStore()
	store.err = repository.ErrNotProvisioned
	g := newGuard(store, nil)

	d, err := g.Authorize(context.Background(), Request{
		Principal: principal(models.RoleAdminEmpresa), TenantID: tenantA,
		Permission: models.PermAdminSLA, Scope: ScopeTenant,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonLegacyFallback, d.Reason)

	_, err = g.Authorize(context.Background(), Request{
		Principal: principal(models.RoleTecnico), TenantID: tenantA,
		Permission: models.PermTicketsRead, Scope: ScopeTenant,
	})
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindForbidden, ae.Kind)
	assert.Equal(t, "RBAC not yet applied", ae.Message)
}

func TestAuthorize_StoreErrorIsInternal(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection reset")
	g := newGuard(store, nil)

	_, err := g.Authorize(context.Background(), Request{
		Principal: principal(models.RoleGestor), TenantID: tenantA,
		Permission: models.PermTicketsRead, Scope: ScopeTenant,
	})
	assert.Equal(t, apperr.KindInternal, kindOf(t, err))
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, "gestor", NormalizeRole("  Gestor\t"))
	assert.Equal(t, "", NormalizeRole("   "))
	assert.Equal(t, "admin_empresa", NormalizeRole("ADMIN_EMPRESA"))
}
