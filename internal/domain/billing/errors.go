package billing

import "errors"

var (
	ErrPackageNotFound  = errors.New("package not found")
	ErrEventProcessed   = errors.New("event already processed")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrBadMetadata      = errors.New("checkout session metadata is invalid")
)
