// Package inventory implements the item CRUD reducer over a document store.
//
// Every mutation is read, decide, write, with no locking: concurrent writers
// can lose updates. Each mutation ends with a full re-fetch whose result is
// returned to the caller.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stockroom-cli/internal/model"
	"stockroom-cli/internal/store"
)

type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeIncremented Outcome = "incremented"
	OutcomeDecremented Outcome = "decremented"
	OutcomeDeleted     Outcome = "deleted"
	OutcomeRenamed     Outcome = "renamed"
	OutcomeResized     Outcome = "resized"
)

// Result describes one applied mutation. Item is the record as written (for
// deletions, the record as it was); Items is the inventory after the write.
type Result struct {
	Outcome Outcome      `json:"outcome"`
	Item    model.Item   `json:"item"`
	Items   []model.Item `json:"items"`
}

type CollisionPolicy string

const (
	// CollisionOverwrite replaces the target quantity.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionMerge adds the new quantity to the target.
	CollisionMerge CollisionPolicy = "merge"
	// CollisionReject refuses the rename with ErrNameTaken.
	CollisionReject CollisionPolicy = "reject"
)

func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionOverwrite:
		return CollisionOverwrite, nil
	case CollisionMerge:
		return CollisionMerge, nil
	case CollisionReject:
		return CollisionReject, nil
	default:
		return "", fmt.Errorf("unknown collision policy: %s (expected overwrite|merge|reject)", s)
	}
}

// EventRecorder receives one event per successful mutation.
type EventRecorder interface {
	Append(ctx context.Context, ev model.Event) (model.Event, error)
}

type Options struct {
	Events    EventRecorder
	Logger    *zap.Logger
	Collision CollisionPolicy
}

type Service struct {
	items     store.Collection
	events    EventRecorder
	log       *zap.Logger
	collision CollisionPolicy
}

func NewService(items store.Collection, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	collision := opts.Collision
	if collision == "" {
		collision = CollisionOverwrite
	}
	return &Service{
		items:     items,
		events:    opts.Events,
		log:       log,
		collision: collision,
	}
}

// WithCollision returns a copy of s using policy p for Rename.
func (s *Service) WithCollision(p CollisionPolicy) *Service {
	cp := *s
	if p != "" {
		cp.collision = p
	}
	return &cp
}

// FetchAll lists every item in store enumeration order.
func (s *Service) FetchAll(ctx context.Context) ([]model.Item, error) {
	entries, err := s.items.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}
	out := make([]model.Item, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Item{Name: e.Key, Quantity: e.Quantity})
	}
	return out, nil
}

// Increment is AddOrIncrement by one.
func (s *Service) Increment(ctx context.Context, name string) (Result, error) {
	return s.AddOrIncrement(ctx, name, 1)
}

// AddOrIncrement creates name with quantity, or adds quantity to an existing
// record. A zero quantity counts as one.
func (s *Service) AddOrIncrement(ctx context.Context, name string, quantity int) (Result, error) {
	if name == "" {
		return Result{}, ErrInvalidName
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return Result{}, ErrInvalidQuantity
	}

	doc, found, err := s.items.Get(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("read %q: %w", name, err)
	}
	outcome, evType := OutcomeCreated, model.EventItemAdd
	next := quantity
	if found {
		outcome, evType = OutcomeIncremented, model.EventItemIncrement
		next = doc.Quantity + quantity
	}
	if err := s.items.Set(ctx, name, store.Document{Quantity: next}); err != nil {
		return Result{}, fmt.Errorf("write %q: %w", name, err)
	}

	item := model.Item{Name: name, Quantity: next}
	s.record(ctx, outcome, model.Event{Type: evType, Name: name, Quantity: next})
	return s.refresh(ctx, outcome, item)
}

// RemoveOrDecrement deletes name when its quantity is at most one, else
// lowers it by one. A missing record leaves the store unchanged and returns
// a *NotFoundError.
func (s *Service) RemoveOrDecrement(ctx context.Context, name string) (Result, error) {
	doc, found, err := s.items.Get(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("read %q: %w", name, err)
	}
	if !found {
		return Result{}, &NotFoundError{Name: name}
	}

	if doc.Quantity <= 1 {
		if err := s.items.Delete(ctx, name); err != nil {
			return Result{}, fmt.Errorf("delete %q: %w", name, err)
		}
		item := model.Item{Name: name, Quantity: doc.Quantity}
		s.record(ctx, OutcomeDeleted, model.Event{Type: model.EventItemDelete, Name: name})
		return s.refresh(ctx, OutcomeDeleted, item)
	}

	next := doc.Quantity - 1
	if err := s.items.Set(ctx, name, store.Document{Quantity: next}); err != nil {
		return Result{}, fmt.Errorf("write %q: %w", name, err)
	}
	item := model.Item{Name: name, Quantity: next}
	s.record(ctx, OutcomeDecremented, model.Event{Type: model.EventItemDecrement, Name: name, Quantity: next})
	return s.refresh(ctx, OutcomeDecremented, item)
}

// Rename moves oldName to newName with newQuantity. With equal names only the
// quantity changes. What happens when newName already exists is decided by
// the collision policy.
func (s *Service) Rename(ctx context.Context, oldName, newName string, newQuantity int) (Result, error) {
	if newName == "" {
		return Result{}, ErrInvalidName
	}
	if newQuantity < 1 {
		return Result{}, ErrInvalidQuantity
	}

	if _, found, err := s.items.Get(ctx, oldName); err != nil {
		return Result{}, fmt.Errorf("read %q: %w", oldName, err)
	} else if !found {
		return Result{}, &NotFoundError{Name: oldName}
	}

	if oldName == newName {
		if err := s.items.Set(ctx, newName, store.Document{Quantity: newQuantity}); err != nil {
			return Result{}, fmt.Errorf("write %q: %w", newName, err)
		}
		item := model.Item{Name: newName, Quantity: newQuantity}
		s.record(ctx, OutcomeResized, model.Event{Type: model.EventItemResize, Name: newName, Quantity: newQuantity})
		return s.refresh(ctx, OutcomeResized, item)
	}

	target, taken, err := s.items.Get(ctx, newName)
	if err != nil {
		return Result{}, fmt.Errorf("read %q: %w", newName, err)
	}
	next := newQuantity
	if taken {
		switch s.collision {
		case CollisionReject:
			return Result{}, fmt.Errorf("rename %q to %q: %w", oldName, newName, ErrNameTaken)
		case CollisionMerge:
			next = target.Quantity + newQuantity
		}
	}

	if err := s.items.Set(ctx, newName, store.Document{Quantity: next}); err != nil {
		return Result{}, fmt.Errorf("write %q: %w", newName, err)
	}
	if err := s.items.Delete(ctx, oldName); err != nil {
		return Result{}, fmt.Errorf("delete %q: %w", oldName, err)
	}
	item := model.Item{Name: newName, Quantity: next}
	s.record(ctx, OutcomeRenamed, model.Event{Type: model.EventItemRename, Name: oldName, NewName: newName, Quantity: next})
	return s.refresh(ctx, OutcomeRenamed, item)
}

func (s *Service) refresh(ctx context.Context, outcome Outcome, item model.Item) (Result, error) {
	items, err := s.FetchAll(ctx)
	return Result{Outcome: outcome, Item: item, Items: items}, err
}

// record logs the mutation and appends it to the event log. The write has
// already happened, so a failed append is logged, not returned.
func (s *Service) record(ctx context.Context, outcome Outcome, ev model.Event) {
	ev.ActorID = ActorFromContext(ctx)
	fields := []zap.Field{
		zap.String("outcome", string(outcome)),
		zap.String("name", ev.Name),
		zap.Int("quantity", ev.Quantity),
	}
	if ev.NewName != "" {
		fields = append(fields, zap.String("new_name", ev.NewName))
	}
	if ev.ActorID != "" {
		fields = append(fields, zap.String("actor", ev.ActorID))
	}
	s.log.Info("inventory mutation", fields...)

	if s.events == nil {
		return
	}
	if _, err := s.events.Append(ctx, ev); err != nil {
		s.log.Warn("append event failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
