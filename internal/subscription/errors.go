package subscription

import "errors"

// Command errors. Invalid input never changes state.
var (
	ErrInvalidAddress  = errors.New("invalid solana address")
	ErrNotWatched      = errors.New("address not watched")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)
