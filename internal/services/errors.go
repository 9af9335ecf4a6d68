package services

import "errors"

var (
	ErrConfiguration  = errors.New("generation configuration error")
	ErrRunInProgress  = errors.New("generation already running for this kind")
	ErrVersionMissing = errors.New("cache version does not exist")
	ErrNotFound       = errors.New("not found")
	ErrInvalidPayload = errors.New("invalid import payload")
	ErrUnknownKind    = errors.New("unknown generation kind")
)
