package domain

import "errors"

// Error kinds surfaced to API callers. Handlers map these to status codes;
// everything else is an internal error.
var (
	// ErrValidation marks malformed or missing request fields.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateBet marks a second wager for the same (wallet, asset, round).
	ErrDuplicateBet = errors.New("bet already placed for this asset and round")

	// ErrBettingClosed marks a wager attempted inside the lock window.
	ErrBettingClosed = errors.New("betting is closed for this round")

	// ErrUnauthorized marks a missing or wrong admin token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyResolved marks a result that was already applied for its
	// (wallet, round, asset); applying it again would double-count points.
	ErrAlreadyResolved = errors.New("result already recorded")

	// ErrNoRecordedWin marks a reward claim with no matching winning
	// history entry.
	ErrNoRecordedWin = errors.New("no recorded win for this claim")

	// ErrStoreUnavailable marks a store that stayed unreachable after
	// retries; callers may try again later.
	ErrStoreUnavailable = errors.New("store unavailable")
)
