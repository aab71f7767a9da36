// Package apperrors holds sentinel errors for the specific reasons a chain
// node can reject a request. internal/engerrors classifies transport
// failures into its own retry taxonomy (ChainTransient/ChainPermanent) and
// attaches one of these as the Cause for rejections, so callers can match
// either level with errors.Is against the same error value.
package apperrors

import "errors"

// Standardized chain/exchange rejection reasons.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOrderRejected         = errors.New("order rejected")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrInvalidSymbol         = errors.New("invalid symbol")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrExchangeMaintenance   = errors.New("exchange maintenance")
	ErrOrderNotFound         = errors.New("order not found")
	ErrDuplicateOrder        = errors.New("duplicate order")
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
	ErrSystemOverload        = errors.New("system overload")
	ErrTimestampOutOfBounds  = errors.New("timestamp out of bounds")
)
