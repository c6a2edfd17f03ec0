package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrTransactionNotFound indicates that a ledger transaction with the given ID does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrPositionNotFound indicates that no position exists for the given account and symbol.
	ErrPositionNotFound = errors.New("position not found")

	// ErrRecommendationNotFound indicates that a harvest recommendation with the given ID does not exist.
	ErrRecommendationNotFound = errors.New("harvest recommendation not found")

	// ErrUserProfileNotFound indicates that no profile exists for the given account.
	ErrUserProfileNotFound = errors.New("user profile not found")
)

// Matching errors are fatal to the one match operation that raised them and
// leave no partial state behind; the involved lots are untouched.
var (
	// ErrInsufficientLots indicates that the sell quantity exceeds all open
	// lots for the account and symbol. The match is aborted atomically.
	ErrInsufficientLots = errors.New("insufficient open lots to cover sale")

	// ErrInvalidLotSelection indicates that a SPECIFIC_LOT request references
	// a lot that is not open, does not belong to the account/symbol, or asks
	// for more shares than the lot holds.
	ErrInvalidLotSelection = errors.New("invalid lot selection")

	// ErrStaleConcurrentModification indicates that a lot's remaining quantity
	// changed between read and write. The caller retries the whole match.
	ErrStaleConcurrentModification = errors.New("concurrent modification of lot quantity")

	// ErrNotASell indicates that lot matching was requested for a transaction
	// that is not a filled SELL.
	ErrNotASell = errors.New("transaction is not a filled sell")
)

// Scan-time errors are isolated per lot: the harvest generator logs them and
// continues with the remaining lots, never aborting the whole scan.
var (
	// ErrMissingPrice indicates that no current price is available for a symbol.
	ErrMissingPrice = errors.New("no current price for symbol")

	// ErrMissingTaxRate indicates that the user profile carries no tax rate,
	// so potential tax savings cannot be computed.
	ErrMissingTaxRate = errors.New("user profile has no tax rate")

	// ErrCorrelationDataUnavailable indicates the correlation store could not
	// be read; recommendations are still emitted with empty alternatives.
	ErrCorrelationDataUnavailable = errors.New("correlation data unavailable")
)

// Business logic errors represent validation failures or constraint violations.
var (
	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrNegativeAmount indicates that an amount field has an invalid negative value.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidStatusTransition indicates a harvest recommendation transition
	// that the lifecycle does not allow (only OPEN recommendations move).
	ErrInvalidStatusTransition = errors.New("invalid recommendation status transition")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data, not missing entities or validation issues.
var (
	ErrFailedToRetrieveTransactions    = errors.New("failed to retrieve transactions")
	ErrFailedToRetrieveTransaction     = errors.New("failed to retrieve transaction")
	ErrFailedToRetrieveMatches         = errors.New("failed to retrieve lot matches")
	ErrFailedToRetrievePositions       = errors.New("failed to retrieve positions")
	ErrFailedToRetrieveRecommendations = errors.New("failed to retrieve harvest recommendations")
	ErrFailedToRetrieveSubstitutes     = errors.New("failed to retrieve substitute tickers")
	ErrFailedToRetrieveProfile         = errors.New("failed to retrieve user profile")
	ErrFailedToGetVersionInfo          = errors.New("failed to get version information")
)
