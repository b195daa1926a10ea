package auction

import "errors"

var (
	// ErrNotFound means no active auction exists for the given handle.
	ErrNotFound = errors.New("auction not found")
	// ErrInvalidAmount means the raw bid did not parse to a positive finite number.
	ErrInvalidAmount = errors.New("invalid bid amount")
	// ErrOutOfRange means the bid falls outside the auction's price range.
	ErrOutOfRange = errors.New("bid out of range")
	// ErrBidTooLow means the bid does not beat the standing offer.
	ErrBidTooLow = errors.New("bid not higher than current offer")
	// ErrAlreadyHighBidder means the bidder already holds the standing offer.
	ErrAlreadyHighBidder = errors.New("bidder already holds the highest offer")
	// ErrRateLimited means the bidder placed an accepted bid too recently.
	ErrRateLimited = errors.New("bidding too fast")
	// ErrInvalidRange means the requested minimum exceeds the maximum.
	ErrInvalidRange = errors.New("minimum price exceeds maximum")
	// ErrChannelBusy means the channel already hosts an active auction.
	ErrChannelBusy = errors.New("channel already has an active auction")
)
