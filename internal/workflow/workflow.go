// Package workflow resolves and enforces the work-order transition table
// of a tenant or plant.
package workflow

import (
	"context"
	"errors"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/repository"
)

type (
	Config = models.WorkflowConfig
	Rule   = models.TransitionRule
)

func rule(from, to models.WorkOrderStatus) Rule {
	return Rule{From: from, To: to}
}

// DefaultConfig is the built-in lifecycle used when no workflow is
// configured for a scope.
func DefaultConfig() Config {
	return Config{Transitions: []Rule{
		rule(models.StatusAberta, models.StatusEmAnalise),
		rule(models.StatusAberta, models.StatusCancelada),
		rule(models.StatusEmAnalise, models.StatusEmExecucao),
		rule(models.StatusEmAnalise, models.StatusCancelada),
		rule(models.StatusEmExecucao, models.StatusConcluida),
		rule(models.StatusEmExecucao, models.StatusEmPausa),
		rule(models.StatusEmExecucao, models.StatusCancelada),
		rule(models.StatusEmPausa, models.StatusEmExecucao),
		rule(models.StatusEmPausa, models.StatusCancelada),
		rule(models.StatusConcluida, models.StatusFechada),
		rule(models.StatusConcluida, models.StatusCancelada),
		rule(models.StatusFechada, models.StatusAberta),
		rule(models.StatusFechada, models.StatusEmAnalise),
	}}
}

// Find returns the first rule for from -> to.
func Find(cfg Config, from, to models.WorkOrderStatus) (Rule, bool) {
	for _, r := range cfg.Transitions {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return Rule{}, false
}

// Targets lists the statuses reachable from from, in table order.
func Targets(cfg Config, from models.WorkOrderStatus) []models.WorkOrderStatus {
	var out []models.WorkOrderStatus
	for _, r := range cfg.Transitions {
		if r.From == from {
			out = append(out, r.To)
		}
	}
	return out
}

// Validate checks that from -> to is in cfg and that actorRole passes the
// rule's allowed_roles gate. approval_roles is carried but not enforced.
func Validate(cfg Config, from, to models.WorkOrderStatus, actorRole string) error {
	if from == to {
		return apperr.InvalidTransition(string(from), string(to))
	}
	r, ok := Find(cfg, from, to)
	if !ok {
		return apperr.InvalidTransition(string(from), string(to))
	}
	if len(r.AllowedRoles) == 0 {
		return nil
	}
	role := models.NormalizeRole(actorRole)
	if role == models.RoleSuperadmin {
		return nil
	}
	for _, allowed := range r.AllowedRoles {
		if models.NormalizeRole(allowed) == role && role != "" {
			return nil
		}
	}
	return apperr.RoleNotPermitted(role, string(from), string(to))
}

// Store is the workflow persistence surface.
type Store interface {
	ListByScope(ctx context.Context, tenantID string, plantID *string) ([]models.WorkOrderWorkflow, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.WorkOrderWorkflow, error)
	Get(ctx context.Context, tenantID, id string) (*models.WorkOrderWorkflow, error)
	Save(ctx context.Context, wf *models.WorkOrderWorkflow) error
}

type Service struct {
	store   Store
	timeout time.Duration
}

func NewService(store Store, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{store: store, timeout: timeout}
}

// pick prefers the default row, else the earliest one. rows are ordered
// by creation time.
func pick(rows []models.WorkOrderWorkflow) *models.WorkOrderWorkflow {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].IsDefault {
			return &rows[i]
		}
	}
	return &rows[0]
}

// ResolveActive returns the workflow governing plantID, searching the
// plant scope before the tenant-wide scope. It returns nil when neither
// has a workflow.
func (s *Service) ResolveActive(ctx context.Context, tenantID, plantID string) (*models.WorkOrderWorkflow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if plantID != "" {
		rows, err := s.store.ListByScope(ctx, tenantID, &plantID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if wf := pick(rows); wf != nil {
			return wf, nil
		}
	}
	rows, err := s.store.ListByScope(ctx, tenantID, nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return pick(rows), nil
}

// ActiveConfig is ResolveActive with the built-in table substituted for
// a missing or empty workflow.
func (s *Service) ActiveConfig(ctx context.Context, tenantID, plantID string) (Config, error) {
	wf, err := s.ResolveActive(ctx, tenantID, plantID)
	if err != nil {
		return Config{}, err
	}
	if wf == nil {
		return DefaultConfig(), nil
	}
	cfg := wf.Config.Data()
	if len(cfg.Transitions) == 0 {
		return DefaultConfig(), nil
	}
	return cfg, nil
}

func (s *Service) List(ctx context.Context, tenantID string) ([]models.WorkOrderWorkflow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.WorkOrderWorkflow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	wf, err := s.store.Get(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Workflow not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return wf, nil
}

// Save persists wf. A default workflow displaces any other default in the
// same scope.
func (s *Service) Save(ctx context.Context, wf *models.WorkOrderWorkflow) error {
	for _, r := range wf.Config.Data().Transitions {
		if !models.IsValidWorkOrderStatus(string(r.From)) || !models.IsValidWorkOrderStatus(string(r.To)) {
			return apperr.InvalidInput("Unknown status in transition " + string(r.From) + " -> " + string(r.To))
		}
		if r.From == r.To {
			// Validate never accepts a move to the current status.
			return apperr.InvalidInput("Transition " + string(r.From) + " -> " + string(r.To) + " does not change status")
		}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Save(ctx, wf); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
