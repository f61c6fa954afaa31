package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"finconsole/internal/api"
	"finconsole/internal/cache"
	"finconsole/internal/core"
	"finconsole/internal/hierarchy"
)

// OptionService serves the select lists of foreign-key fields. Lists are
// cached per session and resource and dropped when the resource changes.
type OptionService struct {
	limit   int
	options *cache.LRU[optionKey, []hierarchy.Option]
	types   *cache.LRU[optionKey, []core.CashFlowType]
}

type optionKey struct {
	session  string
	resource core.Resource
}

// NewOptionService caches at most maxEntries lists per kind for ttl.
// limit is the page size used when walking the Entity Store.
func NewOptionService(limit, maxEntries int, ttl time.Duration) *OptionService {
	return &OptionService{
		limit:   limit,
		options: cache.NewLRU[optionKey, []hierarchy.Option]("select_options", maxEntries, ttl),
		types:   cache.NewLRU[optionKey, []core.CashFlowType]("cash_flow_types", maxEntries, ttl),
	}
}

// Register hands the caches to the cleanup manager.
func (s *OptionService) Register(m *cache.Manager) {
	m.Register(s.options, s.types)
}

// Options returns the select options of res. Cash flow types come in tree
// order with their depth.
func (s *OptionService) Options(ctx context.Context, sessionID string, c *api.Client, res core.Resource) ([]hierarchy.Option, error) {
	key := optionKey{session: sessionID, resource: res}
	if opts, ok := s.options.Get(key); ok {
		return opts, nil
	}

	var opts []hierarchy.Option
	var err error
	switch res {
	case core.ResourceCashFlowType:
		var all []core.CashFlowType
		all, err = s.CashFlowTypes(ctx, sessionID, c)
		opts = hierarchy.ParentOptions(all, 0)
	case core.ResourceDepartment:
		opts, err = flatOptions[core.Department](ctx, c, res, s.limit)
	case core.ResourceBudgetType:
		opts, err = flatOptions[core.BudgetType](ctx, c, res, s.limit)
	case core.ResourceBudget:
		opts, err = flatOptions[core.Budget](ctx, c, res, s.limit)
	case core.ResourceCashFlow:
		opts, err = flatOptions[core.CashFlow](ctx, c, res, s.limit)
	default:
		return nil, fmt.Errorf("no options for %s", res)
	}
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = []hierarchy.Option{}
	}
	s.options.Set(key, opts)
	return opts, nil
}

// CashFlowTypes returns the complete, cached list of cash flow types.
func (s *OptionService) CashFlowTypes(ctx context.Context, sessionID string, c *api.Client) ([]core.CashFlowType, error) {
	key := optionKey{session: sessionID, resource: core.ResourceCashFlowType}
	if all, ok := s.types.Get(key); ok {
		return all, nil
	}
	all, err := api.ListAll[core.CashFlowType](ctx, c, core.ResourceCashFlowType, api.ListParams{Limit: s.limit})
	if err != nil {
		return nil, err
	}
	s.types.Set(key, all)
	return all, nil
}

// ParentOptions lists the valid parents for the cash flow type nodeID.
func (s *OptionService) ParentOptions(ctx context.Context, sessionID string, c *api.Client, nodeID int64) ([]hierarchy.Option, error) {
	all, err := s.CashFlowTypes(ctx, sessionID, c)
	if err != nil {
		return nil, err
	}
	return hierarchy.ParentOptions(all, nodeID), nil
}

// Invalidate drops every cached list of res, for all sessions.
func (s *OptionService) Invalidate(res core.Resource) {
	match := func(k optionKey) bool { return k.resource == res }
	s.options.DeleteFunc(match)
	if res == core.ResourceCashFlowType {
		s.types.DeleteFunc(match)
	}
}

func flatOptions[T any](ctx context.Context, c *api.Client, res core.Resource, limit int) ([]hierarchy.Option, error) {
	all, err := api.ListAll[T](ctx, c, res, api.ListParams{Limit: limit})
	if err != nil {
		return nil, err
	}
	opts := make([]hierarchy.Option, 0, len(all))
	for _, item := range all {
		id, label := EntityRef(item)
		opts = append(opts, hierarchy.Option{ID: id, Label: label})
	}
	return opts, nil
}

// EntityRef returns the id and display label of a console entity.
func EntityRef(v any) (int64, string) {
	switch e := v.(type) {
	case core.Department:
		return e.ID, e.Label()
	case core.BudgetType:
		return e.ID, e.Name
	case core.Budget:
		return e.ID, e.Label()
	case core.CashFlowType:
		return e.ID, e.Label()
	case core.CashFlow:
		return e.ID, e.Label()
	case core.Transaction:
		if e.Description != "" {
			return e.ID, e.Description
		}
		return e.ID, "#" + strconv.FormatInt(e.ID, 10)
	default:
		return 0, ""
	}
}
