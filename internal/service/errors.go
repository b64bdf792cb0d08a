package service

import "fmt"

const saveAttempts = 3

// UnsavedOrderError reports a provider order whose conversation could not be saved. The
// order is live and has to be reconciled by its id.
type UnsavedOrderError struct {
	SessionID        string
	OrderID          string
	BookingReference string
	Err              error
}

func (e *UnsavedOrderError) Error() string {
	return fmt.Sprintf("order %s (%s) was created but session %s was not saved: %v",
		e.OrderID, e.BookingReference, e.SessionID, e.Err)
}

func (e *UnsavedOrderError) Unwrap() error { return e.Err }
