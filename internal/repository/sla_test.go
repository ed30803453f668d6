package repository_test

import (
	"context"
	"testing"

	"cmms/internal/models"
	"cmms/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hours(h float64) *float64 { return &h }

func TestSlaRuleRepository_UpsertInPlace(t *testing.T) {
	conn := setupDB(t, false)
	repo := repository.NewSlaRuleRepository(conn)
	ctx := context.Background()

	first := &models.SlaRule{
		TenantID:            tenantID,
		EntityType:          models.SlaEntityWorkOrder,
		Priority:            models.PriorityAlta,
		ResolutionTimeHours: hours(24),
		IsActive:            true,
	}
	require.NoError(t, repo.Upsert(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &models.SlaRule{
		TenantID:            tenantID,
		EntityType:          models.SlaEntityWorkOrder,
		Priority:            models.PriorityAlta,
		ResponseTimeHours:   hours(2),
		ResolutionTimeHours: hours(8),
		IsActive:            true,
	}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	rules, err := repo.List(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.NotNil(t, rules[0].ResolutionTimeHours)
	assert.Equal(t, 8.0, *rules[0].ResolutionTimeHours)
	require.NotNil(t, rules[0].ResponseTimeHours)
	assert.Equal(t, 2.0, *rules[0].ResponseTimeHours)

	// Another priority is a separate row.
	require.NoError(t, repo.Upsert(ctx, &models.SlaRule{
		TenantID:            tenantID,
		EntityType:          models.SlaEntityWorkOrder,
		Priority:            models.PriorityBaixa,
		ResolutionTimeHours: hours(96),
		IsActive:            true,
	}))
	rules, err = repo.List(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestSlaRuleRepository_ActiveRule(t *testing.T) {
	conn := setupDB(t, false)
	repo := repository.NewSlaRuleRepository(conn)
	ctx := context.Background()

	rule, err := repo.ActiveRule(ctx, tenantID, models.SlaEntityWorkOrder, models.PriorityAlta)
	require.NoError(t, err)
	assert.Nil(t, rule)

	require.NoError(t, repo.Upsert(ctx, &models.SlaRule{
		TenantID:            tenantID,
		EntityType:          models.SlaEntityWorkOrder,
		Priority:            models.PriorityAlta,
		ResolutionTimeHours: hours(12),
		IsActive:            true,
	}))

	rule, err = repo.ActiveRule(ctx, tenantID, models.SlaEntityWorkOrder, models.PriorityAlta)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, 12.0, *rule.ResolutionTimeHours)

	// Scoped by entity and tenant.
	rule, err = repo.ActiveRule(ctx, tenantID, models.SlaEntityTicket, models.PriorityAlta)
	require.NoError(t, err)
	assert.Nil(t, rule)
	rule, err = repo.ActiveRule(ctx, userID, models.SlaEntityWorkOrder, models.PriorityAlta)
	require.NoError(t, err)
	assert.Nil(t, rule)

	// Deactivating through an upsert hides the rule.
	require.NoError(t, repo.Upsert(ctx, &models.SlaRule{
		TenantID:            tenantID,
		EntityType:          models.SlaEntityWorkOrder,
		Priority:            models.PriorityAlta,
		ResolutionTimeHours: hours(12),
		IsActive:            false,
	}))
	rule, err = repo.ActiveRule(ctx, tenantID, models.SlaEntityWorkOrder, models.PriorityAlta)
	require.NoError(t, err)
	assert.Nil(t, rule)
}
