package inventory

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an item is missing so surfaces can respond with 404.
var ErrNotFound = errors.New("inventory item not found")

// ErrNameTaken is returned by Rename under the reject collision policy.
var ErrNameTaken = errors.New("inventory item name already taken")

var (
	ErrInvalidName     = errors.New("item name must not be empty")
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
)

// NotFoundError names the missing item. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
