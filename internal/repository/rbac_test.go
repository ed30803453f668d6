package repository_test

import (
	"context"
	"errors"
	"testing"

	"cmms/internal/config"
	"cmms/internal/db"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	tenantID = "11111111-1111-1111-1111-111111111111"
	userID   = "22222222-2222-2222-2222-222222222222"
)

func setupDB(t *testing.T, rbacTables bool) *gorm.DB {
	t.Helper()
	cfg := config.LoadTestConfig()
	cfg.RBAC.AutoMigrate = rbacTables
	conn, err := db.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func TestRBAC_NotProvisioned(t *testing.T) {
	conn := setupDB(t, false)
	repo := repository.NewRBACRepository(conn)
	ctx := context.Background()

	_, err := repo.HasGrant(ctx, tenantID, models.RoleGestor, models.PermTicketsRead)
	assert.ErrorIs(t, err, repository.ErrNotProvisioned)
	_, err = repo.CountGrants(ctx, tenantID)
	assert.ErrorIs(t, err, repository.ErrNotProvisioned)
	_, _, err = repo.PlantRole(ctx, userID, "p")
	assert.ErrorIs(t, err, repository.ErrNotProvisioned)

	// Plants live outside the RBAC schema.
	ok, err := repo.PlantInTenant(ctx, tenantID, "p")
	require.NoError(t, err)
	assert.False(t, ok)

	// Applying the migration later is picked up without a restart.
	require.NoError(t, conn.AutoMigrate(&models.RolePermission{}, &models.UserPlantRole{}))
	n, err := repo.CountGrants(ctx, tenantID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRBAC_Grants(t *testing.T) {
	repo := repository.NewRBACRepository(setupDB(t, true))
	ctx := context.Background()

	require.NoError(t, repo.Grant(ctx, tenantID, models.RoleGestor, models.PermTicketsRead))
	require.NoError(t, repo.Grant(ctx, tenantID, models.RoleGestor, models.PermTicketsRead))

	ok, err := repo.HasGrant(ctx, tenantID, models.RoleGestor, models.PermTicketsRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasGrant(ctx, "99999999-9999-9999-9999-999999999999", models.RoleGestor, models.PermTicketsRead)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.CountGrants(ctx, tenantID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	removed, err := repo.Revoke(ctx, tenantID, models.RoleGestor, models.PermTicketsRead)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Revoke(ctx, tenantID, models.RoleGestor, models.PermTicketsRead)
	require.NoError(t, err)
	assert.False(t, removed)

	// A revoked grant can be granted again.
	require.NoError(t, repo.Grant(ctx, tenantID, models.RoleGestor, models.PermTicketsRead))
	grants, err := repo.ListGrants(ctx, tenantID, models.RoleGestor)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestRBAC_PlantRoles(t *testing.T) {
	conn := setupDB(t, true)
	repo := repository.NewRBACRepository(conn)
	ctx := context.Background()

	plant := models.Plant{TenantID: tenantID, Name: "North"}
	require.NoError(t, conn.Create(&plant).Error)

	ok, err := repo.PlantInTenant(ctx, tenantID, plant.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.PlantInTenant(ctx, "99999999-9999-9999-9999-999999999999", plant.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := repo.PlantRole(ctx, userID, plant.ID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetPlantRole(ctx, userID, plant.ID, models.RoleTecnico))
	require.NoError(t, repo.SetPlantRole(ctx, userID, plant.ID, models.RoleGestor))
	role, found, err := repo.PlantRole(ctx, userID, plant.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.RoleGestor, role)

	require.NoError(t, repo.SetPlantRole(ctx, userID, plant.ID, ""))
	_, found, err = repo.PlantRole(ctx, userID, plant.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRBAC_SeedDefaults(t *testing.T) {
	repo := repository.NewRBACRepository(setupDB(t, true))
	ctx := context.Background()

	n, err := repo.SeedDefaults(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 35, n)

	n, err = repo.SeedDefaults(ctx, tenantID)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := repo.HasGrant(ctx, tenantID, models.RoleSupervisor, models.PermWorkOrdersCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.HasGrant(ctx, tenantID, models.RoleAdminEmpresa, models.PermAdminAudit)
	require.NoError(t, err)
	assert.True(t, ok)
}

func mockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return conn, mock
}

func TestRBAC_UndefinedTableMidFlight(t *testing.T) {
	conn, mock := mockPostgres(t)
	repo := repository.NewRBACRepository(conn)
	repo.MarkProvisioned()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "role_permissions"`).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "role_permissions" does not exist`})

	_, err := repo.HasGrant(context.Background(), tenantID, models.RoleGestor, models.PermTicketsRead)
	assert.ErrorIs(t, err, repository.ErrNotProvisioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRBAC_OtherDriverErrorsPassThrough(t *testing.T) {
	conn, mock := mockPostgres(t)
	repo := repository.NewRBACRepository(conn)
	repo.MarkProvisioned()

	boom := errors.New("connection reset by peer")
	mock.ExpectQuery(`SELECT count\(\*\) FROM "role_permissions"`).WillReturnError(boom)

	_, err := repo.CountGrants(context.Background(), tenantID)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrNotProvisioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
