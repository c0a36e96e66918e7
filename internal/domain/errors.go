package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")
	ErrLockLost      = errors.New("lock lost")

	// Lifecycle and staking preconditions.
	ErrFeeTooHigh       = errors.New("fee too high")
	ErrNotOpen          = errors.New("not open")
	ErrZeroAmount       = errors.New("zero amount")
	ErrInvalidOutcome   = errors.New("invalid outcome")
	ErrBadStatus        = errors.New("bad status")
	ErrAlreadyFinalized = errors.New("already settled/cancelled")
	ErrInvalidResult    = errors.New("invalid result")
	ErrBadSignature     = errors.New("bad signature")
	ErrStaleSignature   = errors.New("stale signature")

	// Claims and refunds.
	ErrNotSettled     = errors.New("not settled")
	ErrNotCancelled   = errors.New("not cancelled")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrNoWinningBet   = errors.New("no winning bet")
	ErrNoStake        = errors.New("no stake")

	ErrZeroAddress         = errors.New("zero address")
	ErrReentrantCall       = errors.New("reentrant call")
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
