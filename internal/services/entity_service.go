package services

import (
	"context"

	"finconsole/internal/api"
	"finconsole/internal/core"
	"finconsole/internal/hierarchy"
	applog "finconsole/internal/log"
)

// EntityService runs the console's create, update and delete operations:
// validate, check hierarchy integrity, call the Entity Store, then audit.
type EntityService struct {
	audit   *AuditService
	options *OptionService
	logger  *applog.StructuredLogger
	limit   int
}

func NewEntityService(audit *AuditService, options *OptionService, logger *applog.Logger, optionsLimit int) *EntityService {
	return &EntityService{
		audit:   audit,
		options: options,
		logger:  applog.NewStructuredLogger(logger.WithComponent(applog.ComponentEntity)),
		limit:   optionsLimit,
	}
}

// Create validates input, creates the entity and records the audit event.
func Create[T any](ctx context.Context, s *EntityService, c *api.Client, res core.Resource, input any, actor string) (T, error) {
	var zero T
	if err := core.Validate(input); err != nil {
		return zero, err
	}
	if err := s.checkParent(ctx, c, res, 0, input); err != nil {
		return zero, err
	}

	created, err := api.Create[T](ctx, c, res, input)
	if err != nil {
		return zero, err
	}
	id, label := EntityRef(created)
	s.afterMutation(ctx, core.AuditCreate, res, id, label, actor, input)
	return created, nil
}

// Update validates input and replaces the entity with id.
func Update[T any](ctx context.Context, s *EntityService, c *api.Client, res core.Resource, id int64, input any, actor string) (T, error) {
	var zero T
	if err := core.Validate(input); err != nil {
		return zero, err
	}
	if err := s.checkParent(ctx, c, res, id, input); err != nil {
		return zero, err
	}

	updated, err := api.Update[T](ctx, c, res, id, input)
	if err != nil {
		return zero, err
	}
	gotID, label := EntityRef(updated)
	if gotID == 0 {
		gotID = id
	}
	s.afterMutation(ctx, core.AuditUpdate, res, gotID, label, actor, input)
	return updated, nil
}

// Delete removes the entity with id. label is what the ledger shows for it.
func (s *EntityService) Delete(ctx context.Context, c *api.Client, res core.Resource, id int64, label, actor string) error {
	if err := api.Delete(ctx, c, res, id); err != nil {
		return err
	}
	s.afterMutation(ctx, core.AuditDelete, res, id, label, actor, nil)
	return nil
}

// checkParent rejects a cash flow type parent that would break the tree.
// It always reads the current list, never the option cache.
func (s *EntityService) checkParent(ctx context.Context, c *api.Client, res core.Resource, nodeID int64, input any) error {
	if res != core.ResourceCashFlowType {
		return nil
	}
	in, ok := input.(*core.CashFlowTypeInput)
	if !ok || in.ParentID == nil {
		return nil
	}

	all, err := api.ListAll[core.CashFlowType](ctx, c, core.ResourceCashFlowType, api.ListParams{Limit: s.limit})
	if err != nil {
		return err
	}
	if err := hierarchy.ValidateParent(all, nodeID, in.ParentID); err != nil {
		return &core.ValidationError{Fields: []string{"parentId"}, Reason: err.Error()}
	}
	return nil
}

func (s *EntityService) afterMutation(ctx context.Context, action core.AuditAction, res core.Resource, id int64, label, actor string, payload any) {
	if s.options != nil {
		s.options.Invalidate(res)
	}
	s.logger.LogMutation(ctx, string(action), res.String(), id, actor)

	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, action, res, id, label, actor, payload); err != nil {
		s.logger.LogError(ctx, "Failed to record audit event", err, applog.ComponentEntity, string(action),
			applog.NewFields().WithEntity(res.String(), id))
	}
}
