package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrInvalidHolder      = errors.New("holder name must not be empty")
	ErrNotRedeemable      = errors.New("coupon is not redeemable")
	ErrMalformedPayload   = errors.New("malformed coupon payload")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
