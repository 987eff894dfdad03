package model

import (
	"fmt"
	"strings"
	"time"
)

// Item is one inventory record. Name doubles as the store key.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type SortOrder string

const (
	SortDefault SortOrder = "default"
	SortAsc     SortOrder = "asc"
	SortDesc    SortOrder = "desc"
)

// Next returns the following mode in the default -> asc -> desc cycle.
func (o SortOrder) Next() SortOrder {
	switch o {
	case SortDefault, "":
		return SortAsc
	case SortAsc:
		return SortDesc
	default:
		return SortDefault
	}
}

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortDefault:
		return SortDefault, nil
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return SortDefault, fmt.Errorf("unknown sort order: %s (expected default|asc|desc)", s)
	}
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type EventType string

const (
	EventItemAdd       EventType = "item.add"
	EventItemIncrement EventType = "item.increment"
	EventItemDecrement EventType = "item.decrement"
	EventItemDelete    EventType = "item.delete"
	EventItemRename    EventType = "item.rename"
	EventItemResize    EventType = "item.resize"
	EventImport        EventType = "inventory.import"
)

// Event is an append-only record of a successful inventory mutation.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Name     string    `json:"name"`
	NewName  string    `json:"newName,omitempty"`
	Quantity int       `json:"quantity"`
	ActorID  string    `json:"actorId,omitempty"`
	At       time.Time `json:"at"`
}
