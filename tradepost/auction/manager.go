// Package auction implements the sealed-ascending bid engine. The durable
// store is the source of truth; the in-memory cache only answers the hot
// path and is rebuilt from storage at startup.
package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/tradepost/tradepost-bot/tradepost/database/repositories"
)

// Accepted bids only. Rejected attempts never start the window.
const bidCooldown = 30 * time.Second

// state is the cache entry for one live auction, keyed by its primary
// message. Mutated only after the corresponding durable write committed.
type state struct {
	auctionID         int64
	channelID         snowflake.ID
	messageID         snowflake.ID
	minPrice          float64
	maxPrice          float64
	currentOffer      float64
	currentBidderID   snowflake.ID
	currentBidderName string
	notificationID    snowflake.ID
	createdBy         snowflake.ID
	// last accepted bid per bidder, reset on restart
	lastBids map[snowflake.ID]time.Time
}

type Manager struct {
	repo repositories.AuctionRepository

	mu        sync.RWMutex
	entries   map[snowflake.ID]*state
	byChannel map[snowflake.ID]snowflake.ID

	locks sync.Map // messageID -> *sync.Mutex
}

func NewManager(repo repositories.AuctionRepository) *Manager {
	return &Manager{
		repo:      repo,
		entries:   make(map[snowflake.ID]*state),
		byChannel: make(map[snowflake.ID]snowflake.ID),
	}
}

func (m *Manager) lockFor(messageID snowflake.ID) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(messageID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// CreateParams carries everything needed to open an auction once its
// primary message has been posted.
type CreateParams struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	MinPrice  float64
	MaxPrice  float64
	CreatedBy snowflake.ID
}

// Create opens a new auction. One active auction per channel; the partial
// unique index backs this check against races.
func (m *Manager) Create(ctx context.Context, params CreateParams, now time.Time) (*models.Auction, error) {
	if params.MinPrice > params.MaxPrice {
		return nil, ErrInvalidRange
	}

	if _, err := m.repo.GetByChannelID(ctx, params.ChannelID.String()); err == nil {
		return nil, ErrChannelBusy
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check channel: %w", err)
	}

	auction := &models.Auction{
		ChannelID: params.ChannelID.String(),
		MessageID: params.MessageID.String(),
		MinPrice:  params.MinPrice,
		MaxPrice:  params.MaxPrice,
		CreatedBy: params.CreatedBy.String(),
		CreatedAt: now,
	}
	if err := m.repo.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	m.mu.Lock()
	m.entries[params.MessageID] = &state{
		auctionID: auction.ID,
		channelID: params.ChannelID,
		messageID: params.MessageID,
		minPrice:  params.MinPrice,
		maxPrice:  params.MaxPrice,
		createdBy: params.CreatedBy,
		lastBids:  make(map[snowflake.ID]time.Time),
	}
	m.byChannel[params.ChannelID] = params.MessageID
	m.mu.Unlock()

	slog.Info("Auction created",
		slog.Int64("auction_id", auction.ID),
		slog.String("channel_id", params.ChannelID.String()),
		slog.Float64("min_price", params.MinPrice),
		slog.Float64("max_price", params.MaxPrice),
	)
	return auction, nil
}

// BidResult describes an accepted bid so callers can render and notify.
type BidResult struct {
	AuctionID              int64
	ChannelID              snowflake.ID
	MessageID              snowflake.ID
	Amount                 float64
	BidderID               snowflake.ID
	BidderName             string
	MinPrice               float64
	MaxPrice               float64
	PreviousNotificationID snowflake.ID
}

// PlaceBid validates and records one bid against the auction hosted at the
// given primary message. Rejections are cheap cache-only reads; only an
// accepted bid touches storage, and the cache mutates strictly after the
// durable write commits.
func (m *Manager) PlaceBid(ctx context.Context, messageID, bidderID snowflake.ID, bidderName, rawAmount string, now time.Time) (*BidResult, error) {
	lock := m.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	entry, ok := m.entries[messageID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < entry.minPrice || amount > entry.maxPrice {
		return nil, ErrOutOfRange
	}
	if entry.currentBidderID != 0 && amount <= entry.currentOffer {
		return nil, ErrBidTooLow
	}
	if entry.currentBidderID == bidderID {
		return nil, ErrAlreadyHighBidder
	}
	if last, ok := entry.lastBids[bidderID]; ok && now.Sub(last) < bidCooldown {
		return nil, ErrRateLimited
	}

	if err := m.repo.RecordOffer(ctx, entry.auctionID, bidderID.String(), bidderName, amount, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Row already finished under us. Drop the stale entry.
			m.evict(entry)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to record offer: %w", err)
	}

	prevNotification := entry.notificationID
	entry.currentOffer = amount
	entry.currentBidderID = bidderID
	entry.currentBidderName = bidderName
	entry.lastBids[bidderID] = now

	slog.Info("Bid accepted",
		slog.Int64("auction_id", entry.auctionID),
		slog.String("bidder_id", bidderID.String()),
		slog.Float64("amount", amount),
	)

	return &BidResult{
		AuctionID:              entry.auctionID,
		ChannelID:              entry.channelID,
		MessageID:              entry.messageID,
		Amount:                 amount,
		BidderID:               bidderID,
		BidderName:             bidderName,
		MinPrice:               entry.minPrice,
		MaxPrice:               entry.maxPrice,
		PreviousNotificationID: prevNotification,
	}, nil
}

// FinalizeResult carries the closed auction row and its full offer history
// in time-ascending order.
type FinalizeResult struct {
	Auction *models.Auction
	Offers  []*models.Offer
}

// Finalize closes the channel's active auction, awarding it to the winner
// the caller names. Reads the durable row rather than the cache so admin
// finalization works even when the cache has drifted.
func (m *Manager) Finalize(ctx context.Context, channelID, winnerID snowflake.ID, now time.Time) (*FinalizeResult, error) {
	auction, err := m.repo.GetByChannelID(ctx, channelID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}

	messageID, err := snowflake.Parse(auction.MessageID)
	if err != nil {
		return nil, fmt.Errorf("malformed message id %q: %w", auction.MessageID, err)
	}

	lock := m.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	// Bids may have committed between the first read and the lock; re-read
	// so the result carries the final standing offer.
	auction, err = m.repo.GetByChannelID(ctx, channelID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}

	won, err := m.repo.Finish(ctx, auction.ID, winnerID.String(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to finish auction: %w", err)
	}
	if !won {
		return nil, ErrNotFound
	}

	offers, err := m.repo.GetOffers(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer history: %w", err)
	}

	m.mu.Lock()
	if entry, ok := m.entries[messageID]; ok {
		delete(m.entries, messageID)
		delete(m.byChannel, entry.channelID)
	}
	m.mu.Unlock()
	m.locks.Delete(messageID)

	auction.Status = models.AuctionStatusFinished
	auction.WinnerID = winnerID.String()
	auction.FinishedAt = now

	slog.Info("Auction finalized",
		slog.Int64("auction_id", auction.ID),
		slog.String("winner_id", auction.WinnerID),
		slog.Int("offers", len(offers)),
	)
	return &FinalizeResult{Auction: auction, Offers: offers}, nil
}

// RecordNotification persists the latest bid-notification message handle,
// then mirrors it into the cache so the next bid can clean it up.
func (m *Manager) RecordNotification(ctx context.Context, messageID, notificationID snowflake.ID) error {
	m.mu.RLock()
	entry, ok := m.entries[messageID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := m.repo.UpdateNotificationID(ctx, entry.auctionID, notificationID.String()); err != nil {
		return fmt.Errorf("failed to persist notification id: %w", err)
	}

	lock := m.lockFor(messageID)
	lock.Lock()
	entry.notificationID = notificationID
	lock.Unlock()
	return nil
}

// Restore seeds the cache from a durable row during reconciliation. The
// cooldown map starts empty; restart clears rate-limit history.
func (m *Manager) Restore(a *models.Auction) error {
	channelID, err := snowflake.Parse(a.ChannelID)
	if err != nil {
		return fmt.Errorf("malformed channel id %q: %w", a.ChannelID, err)
	}
	messageID, err := snowflake.Parse(a.MessageID)
	if err != nil {
		return fmt.Errorf("malformed message id %q: %w", a.MessageID, err)
	}

	entry := &state{
		auctionID:         a.ID,
		channelID:         channelID,
		messageID:         messageID,
		minPrice:          a.MinPrice,
		maxPrice:          a.MaxPrice,
		currentOffer:      a.CurrentOffer,
		currentBidderName: a.CurrentBidderName,
		lastBids:          make(map[snowflake.ID]time.Time),
	}
	if a.CurrentBidderID != "" {
		bidderID, err := snowflake.Parse(a.CurrentBidderID)
		if err != nil {
			return fmt.Errorf("malformed bidder id %q: %w", a.CurrentBidderID, err)
		}
		entry.currentBidderID = bidderID
	}
	if a.NotificationID != "" {
		notificationID, err := snowflake.Parse(a.NotificationID)
		if err != nil {
			return fmt.Errorf("malformed notification id %q: %w", a.NotificationID, err)
		}
		entry.notificationID = notificationID
	}
	if a.CreatedBy != "" {
		if createdBy, err := snowflake.Parse(a.CreatedBy); err == nil {
			entry.createdBy = createdBy
		}
	}

	m.mu.Lock()
	m.entries[messageID] = entry
	m.byChannel[channelID] = messageID
	m.mu.Unlock()
	return nil
}

// Cached reports whether the auction hosted at the message is live in the
// cache.
func (m *Manager) Cached(messageID snowflake.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[messageID]
	return ok
}

// ActiveCount returns the number of cached live auctions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Manager) evict(entry *state) {
	m.mu.Lock()
	delete(m.entries, entry.messageID)
	delete(m.byChannel, entry.channelID)
	m.mu.Unlock()
}
