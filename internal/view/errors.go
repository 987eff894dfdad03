package view

import "errors"

const (
	FieldName     = "name"
	FieldQuantity = "quantity"

	MsgBothRequired      = "Both fields are required."
	MsgQuantityNotNumber = "Quantity must be a whole number."
	MsgQuantityTooSmall  = "Quantity must be at least 1."
)

// ValidationError is an editor input problem. Field is empty when it
// concerns the form as a whole.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
