package domain

import "errors"

var (
	ErrRoomUnknown   = errors.New("unknown room")
	ErrUnknownType   = errors.New("unknown entry type")
	ErrUnknownAction = errors.New("unknown action")
	ErrEntryNotFound = errors.New("entry not found")
)
