package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrEntryNotFound       = errors.New("history entry not found")
	ErrNothingToUndo       = errors.New("nothing to undo")

	ErrInvalidIndex    = errors.New("invalid seat index")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAlreadySeated   = errors.New("participant already seated")
	ErrSeatOccupied    = errors.New("seat occupied")
	ErrNoGuestSlots    = errors.New("no guest names available")

	ErrPermissionDenied  = errors.New("permission denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWriteConflict     = errors.New("write conflict")
)
