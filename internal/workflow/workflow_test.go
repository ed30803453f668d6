package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/config"
	"cmms/internal/db"
	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	tenantID = "11111111-1111-1111-1111-111111111111"
	plantID  = "22222222-2222-2222-2222-222222222222"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Connect(config.LoadTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func kind(err error) apperr.Kind {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return -1
}

func TestValidate_DefaultTable(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, Validate(cfg, models.StatusAberta, models.StatusEmAnalise, models.RoleTecnico))
	assert.NoError(t, Validate(cfg, models.StatusFechada, models.StatusAberta, ""))

	err := Validate(cfg, models.StatusAberta, models.StatusConcluida, models.RoleGestor)
	assert.Equal(t, apperr.KindInvalidTransition, kind(err))

	err = Validate(cfg, models.StatusEmExecucao, models.StatusEmExecucao, models.RoleGestor)
	assert.Equal(t, apperr.KindInvalidTransition, kind(err))
}

func TestValidate_AllowedRoles(t *testing.T) {
	cfg := Config{Transitions: []Rule{
		{From: models.StatusConcluida, To: models.StatusFechada, AllowedRoles: []string{"Gestor"}},
	}}

	assert.NoError(t, Validate(cfg, models.StatusConcluida, models.StatusFechada, " gestor "))
	assert.NoError(t, Validate(cfg, models.StatusConcluida, models.StatusFechada, models.RoleSuperadmin))

	err := Validate(cfg, models.StatusConcluida, models.StatusFechada, models.RoleTecnico)
	assert.Equal(t, apperr.KindRoleNotPermitted, kind(err))

	err = Validate(cfg, models.StatusConcluida, models.StatusFechada, "")
	assert.Equal(t, apperr.KindRoleNotPermitted, kind(err))
}

func TestTargets(t *testing.T) {
	assert.Equal(t,
		[]models.WorkOrderStatus{models.StatusEmExecucao, models.StatusCancelada},
		Targets(DefaultConfig(), models.StatusEmPausa))
	assert.Empty(t, Targets(DefaultConfig(), models.StatusCancelada))
}

func newWorkflow(name string, plant *string, isDefault bool, created time.Time, rules ...Rule) *models.WorkOrderWorkflow {
	wf := &models.WorkOrderWorkflow{
		TenantID:  tenantID,
		PlantID:   plant,
		Name:      name,
		IsDefault: isDefault,
		Config:    datatypes.NewJSONType(Config{Transitions: rules}),
	}
	wf.CreatedAt = created
	return wf
}

func TestResolveActive_PlantBeforeTenant(t *testing.T) {
	conn := setupDB(t)
	svc := NewService(repository.NewWorkflowRepository(conn), time.Second)
	ctx := context.Background()
	now := time.Now().UTC()

	wf, err := svc.ResolveActive(ctx, tenantID, plantID)
	require.NoError(t, err)
	assert.Nil(t, wf)

	cfg, err := svc.ActiveConfig(ctx, tenantID, plantID)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	tenantWide := newWorkflow("tenant", nil, false, now,
		Rule{From: models.StatusAberta, To: models.StatusCancelada})
	require.NoError(t, svc.Save(ctx, tenantWide))

	wf, err = svc.ResolveActive(ctx, tenantID, plantID)
	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.Equal(t, "tenant", wf.Name)

	p := plantID
	first := newWorkflow("plant-first", &p, false, now.Add(time.Second),
		Rule{From: models.StatusAberta, To: models.StatusEmExecucao})
	second := newWorkflow("plant-second", &p, false, now.Add(2*time.Second),
		Rule{From: models.StatusAberta, To: models.StatusFechada})
	require.NoError(t, svc.Save(ctx, first))
	require.NoError(t, svc.Save(ctx, second))

	wf, err = svc.ResolveActive(ctx, tenantID, plantID)
	require.NoError(t, err)
	assert.Equal(t, "plant-first", wf.Name)

	second.IsDefault = true
	require.NoError(t, svc.Save(ctx, second))
	wf, err = svc.ResolveActive(ctx, tenantID, plantID)
	require.NoError(t, err)
	assert.Equal(t, "plant-second", wf.Name)

	cfg, err = svc.ActiveConfig(ctx, tenantID, plantID)
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg, models.StatusAberta, models.StatusFechada, models.RoleTecnico))
	assert.Error(t, Validate(cfg, models.StatusAberta, models.StatusEmAnalise, models.RoleTecnico))
}

func TestSave_SingleDefaultPerScope(t *testing.T) {
	conn := setupDB(t)
	svc := NewService(repository.NewWorkflowRepository(conn), time.Second)
	ctx := context.Background()
	now := time.Now().UTC()

	a := newWorkflow("a", nil, true, now, Rule{From: models.StatusAberta, To: models.StatusEmAnalise})
	b := newWorkflow("b", nil, true, now.Add(time.Second), Rule{From: models.StatusAberta, To: models.StatusEmAnalise})
	require.NoError(t, svc.Save(ctx, a))
	require.NoError(t, svc.Save(ctx, b))

	rows, err := svc.List(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	defaults := 0
	for _, r := range rows {
		if r.IsDefault {
			defaults++
			assert.Equal(t, "b", r.Name)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestSave_RejectsUnknownStatus(t *testing.T) {
	conn := setupDB(t)
	svc := NewService(repository.NewWorkflowRepository(conn), time.Second)

	wf := newWorkflow("bad", nil, false, time.Now(), Rule{From: "aberta", To: "arquivada"})
	err := svc.Save(context.Background(), wf)
	assert.Equal(t, apperr.KindInvalidInput, kind(err))
}

func TestGet_NotFound(t *testing.T) {
	conn := setupDB(t)
	svc := NewService(repository.NewWorkflowRepository(conn), time.Second)

	_, err := svc.Get(context.Background(), tenantID, "33333333-3333-3333-3333-333333333333")
	assert.Equal(t, apperr.KindNotFound, kind(err))
}

func TestSave_RejectsSelfLoop(t *testing.T) {
	conn := setupDB(t)
	svc := NewService(repository.NewWorkflowRepository(conn), time.Second)

	wf := newWorkflow("loop", nil, false, time.Now(),
		Rule{From: models.StatusAberta, To: models.StatusEmAnalise},
		Rule{From: models.StatusEmExecucao, To: models.StatusEmExecucao})
	err := svc.Save(context.Background(), wf)
	assert.Equal(t, apperr.KindInvalidInput, kind(err))

	rows, err := svc.List(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResolveActive_Tiers(t *testing.T) {
	now := time.Now().UTC()
	p := plantID
	other := "44444444-4444-4444-4444-444444444444"
	toAnalise := Rule{From: models.StatusAberta, To: models.StatusEmAnalise}

	tests := []struct {
		name string
		seed []*models.WorkOrderWorkflow
		want string
	}{
		{
			name: "nothing configured",
			want: "",
		},
		{
			name: "plant default beats earlier plant row",
			seed: []*models.WorkOrderWorkflow{
				newWorkflow("plant-early", &p, false, now, toAnalise),
				newWorkflow("plant-default", &p, true, now.Add(time.Second), toAnalise),
			},
			want: "plant-default",
		},
		{
			name: "earliest plant row without a default",
			seed: []*models.WorkOrderWorkflow{
				newWorkflow("plant-early", &p, false, now, toAnalise),
				newWorkflow("plant-late", &p, false, now.Add(time.Second), toAnalise),
			},
			want: "plant-early",
		},
		{
			name: "tenant default beats earlier tenant row",
			seed: []*models.WorkOrderWorkflow{
				newWorkflow("tenant-early", nil, false, now, toAnalise),
				newWorkflow("tenant-default", nil, true, now.Add(time.Second), toAnalise),
			},
			want: "tenant-default",
		},
		{
			name: "earliest tenant row without a default",
			seed: []*models.WorkOrderWorkflow{
				newWorkflow("tenant-early", nil, false, now, toAnalise),
				newWorkflow("tenant-late", nil, false, now.Add(time.Second), toAnalise),
			},
			want: "tenant-early",
		},
		{
			name: "any plant row beats the tenant default",
			seed: []*models.WorkOrderWorkflow{
				newWorkflow("tenant-default", nil, true, now, toAnalise),
				newWorkflow("plant-late", &p, false, now.Add(time.Second), toAnalise),
			},
			want: "plant-late",
		},
		{
			name: "another plant's default is ignored",
			seed: []*models.WorkOrderWorkflow{
				newWorkflow("other-default", &other, true, now, toAnalise),
				newWorkflow("tenant-late", nil, false, now.Add(time.Second), toAnalise),
			},
			want: "tenant-late",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := setupDB(t)
			svc := NewService(repository.NewWorkflowRepository(conn), time.Second)
			ctx := context.Background()
			for _, wf := range tt.seed {
				require.NoError(t, svc.Save(ctx, wf))
			}

			wf, err := svc.ResolveActive(ctx, tenantID, plantID)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, wf)
				return
			}
			require.NotNil(t, wf)
			assert.Equal(t, tt.want, wf.Name)
		})
	}
}

func TestSave_SingleDefaultPerPlant(t *testing.T) {
	conn := setupDB(t)
	svc := NewService(repository.NewWorkflowRepository(conn), time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	p := plantID
	toAnalise := Rule{From: models.StatusAberta, To: models.StatusEmAnalise}

	require.NoError(t, svc.Save(ctx, newWorkflow("tenant", nil, true, now, toAnalise)))
	for i, name := range []string{"p1", "p2", "p3", "p4"} {
		wf := newWorkflow(name, &p, true, now.Add(time.Duration(i+1)*time.Second), toAnalise)
		require.NoError(t, svc.Save(ctx, wf))
	}

	rows, err := svc.List(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	defaults := map[string]bool{}
	for _, r := range rows {
		if r.IsDefault {
			defaults[r.Name] = true
		}
	}
	// The tenant-wide default lives in another scope and survives.
	assert.Equal(t, map[string]bool{"tenant": true, "p4": true}, defaults)

	wf, err := svc.ResolveActive(ctx, tenantID, plantID)
	require.NoError(t, err)
	assert.Equal(t, "p4", wf.Name)
}
