// Package giveaway implements the fixed-duration raffle lifecycle. Entries
// live only in the durable store; in-process state is limited to the timer
// per pending giveaway and a bounded tombstone cache of recent closures.
package giveaway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/tradepost/tradepost-bot/tradepost/database/repositories"
)

const (
	closedCacheSize = 512
	expiryTimeout   = 30 * time.Second
)

// Announcer renders a finished giveaway back onto the messaging surface.
// Delivery is best effort; the closure itself is already durable.
type Announcer interface {
	AnnounceClosure(ctx context.Context, result *ClosureResult) error
}

type Manager struct {
	repo      repositories.GiveawayRepository
	sched     *Scheduler
	announcer Announcer

	// message handles of recently closed giveaways, answers late
	// join/leave clicks without a durable read
	closed *lru.Cache

	locks   sync.Map // giveaway id -> *sync.Mutex
	randInt func(n int) int
}

func NewManager(repo repositories.GiveawayRepository) *Manager {
	closed, _ := lru.New(closedCacheSize)
	m := &Manager{
		repo:    repo,
		closed:  closed,
		randInt: rand.Intn,
	}
	m.sched = NewScheduler(m.onExpiry)
	return m
}

// SetAnnouncer attaches the presentation callback. Must be called before
// the scheduler can fire; the manager tolerates a nil announcer.
func (m *Manager) SetAnnouncer(a Announcer) {
	m.announcer = a
}

func (m *Manager) Scheduler() *Scheduler {
	return m.sched
}

func (m *Manager) Shutdown() {
	m.sched.Shutdown()
}

func (m *Manager) lockFor(id int64) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// CreateParams carries everything needed to start a giveaway once its
// message has been posted.
type CreateParams struct {
	ChannelID     snowflake.ID
	MessageID     snowflake.ID
	CreatedBy     snowflake.ID
	CreatedByName string
	WinnersCount  int
	Prize         string
	Duration      time.Duration
}

// Create persists the giveaway and arms its expiry timer.
func (m *Manager) Create(ctx context.Context, params CreateParams, now time.Time) (*models.Giveaway, error) {
	giveaway := &models.Giveaway{
		ChannelID:     params.ChannelID.String(),
		MessageID:     params.MessageID.String(),
		CreatedBy:     params.CreatedBy.String(),
		CreatedByName: params.CreatedByName,
		WinnersCount:  params.WinnersCount,
		Prize:         params.Prize,
		EndTime:       now.Add(params.Duration),
		CreatedAt:     now,
	}
	if err := m.repo.Create(ctx, giveaway); err != nil {
		return nil, fmt.Errorf("failed to create giveaway: %w", err)
	}

	m.sched.Arm(giveaway.ID, params.Duration)

	slog.Info("Giveaway created",
		slog.Int64("giveaway_id", giveaway.ID),
		slog.String("channel_id", giveaway.ChannelID),
		slog.Int("winners", giveaway.WinnersCount),
		slog.Time("end_time", giveaway.EndTime),
	)
	return giveaway, nil
}

// Join enters the user into the giveaway hosted at the message and returns
// the updated participant count. Duplicate joins are rejected by the unique
// entry constraint, never by in-memory state.
func (m *Manager) Join(ctx context.Context, messageID, userID snowflake.ID, userName string, now time.Time) (int, error) {
	giveaway, err := m.lookup(ctx, messageID)
	if err != nil {
		return 0, err
	}

	lock := m.lockFor(giveaway.ID)
	lock.Lock()
	defer lock.Unlock()

	// The lookup ran outside the lock; a closure may have won the race.
	if err := m.requireActive(ctx, giveaway.ID); err != nil {
		return 0, err
	}

	added, err := m.repo.AddParticipant(ctx, giveaway.ID, userID.String(), userName, now)
	if err != nil {
		return 0, fmt.Errorf("failed to join giveaway: %w", err)
	}
	if !added {
		return 0, ErrAlreadyJoined
	}

	count, err := m.repo.CountParticipants(ctx, giveaway.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// Leave withdraws the user's entry and returns the updated participant
// count.
func (m *Manager) Leave(ctx context.Context, messageID, userID snowflake.ID) (int, error) {
	giveaway, err := m.lookup(ctx, messageID)
	if err != nil {
		return 0, err
	}

	lock := m.lockFor(giveaway.ID)
	lock.Lock()
	defer lock.Unlock()

	// Same race as Join: verify the status again now that we hold the lock.
	if err := m.requireActive(ctx, giveaway.ID); err != nil {
		return 0, err
	}

	removed, err := m.repo.RemoveParticipant(ctx, giveaway.ID, userID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to leave giveaway: %w", err)
	}
	if !removed {
		return 0, ErrNotJoined
	}

	count, err := m.repo.CountParticipants(ctx, giveaway.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// requireActive re-reads the giveaway's status under the caller's lock.
// Closure flips the status inside the same lock, so a finished giveaway can
// never admit an entry mutation after winners were drawn.
func (m *Manager) requireActive(ctx context.Context, giveawayID int64) error {
	current, err := m.repo.GetByID(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load giveaway: %w", err)
	}
	if current.Status != models.GiveawayStatusActive {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) lookup(ctx context.Context, messageID snowflake.ID) (*models.Giveaway, error) {
	if m.closed.Contains(messageID.String()) {
		return nil, ErrNotFound
	}

	giveaway, err := m.repo.GetByMessageID(ctx, messageID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load giveaway: %w", err)
	}
	return giveaway, nil
}

// Close finishes the giveaway and draws winners. Safe to race with the
// expiry timer and with repeated manual closure; only the caller that wins
// the status flip gets a result, everyone else sees ErrNotFound.
func (m *Manager) Close(ctx context.Context, giveawayID int64, now time.Time) (*ClosureResult, error) {
	lock := m.lockFor(giveawayID)
	lock.Lock()
	defer lock.Unlock()

	won, err := m.repo.Finish(ctx, giveawayID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to finish giveaway: %w", err)
	}
	if !won {
		return nil, ErrNotFound
	}

	giveaway, err := m.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to load giveaway: %w", err)
	}
	giveaway.Status = models.GiveawayStatusFinished
	giveaway.FinishedAt = now

	participants, err := m.repo.GetParticipants(ctx, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	winners := sampleWinners(participants, splitPrizes(giveaway.Prize), giveaway.WinnersCount, m.randInt)

	m.closed.Add(giveaway.MessageID, giveawayID)
	m.sched.Cancel(giveawayID)
	m.locks.Delete(giveawayID)

	slog.Info("Giveaway closed",
		slog.Int64("giveaway_id", giveawayID),
		slog.Int("participants", len(participants)),
		slog.Int("winners", len(winners)),
	)
	return &ClosureResult{
		Giveaway:         giveaway,
		Winners:          winners,
		ParticipantCount: len(participants),
	}, nil
}

// CloseByMessage is the manual closure path. It cancels the pending timer
// and announces immediately.
func (m *Manager) CloseByMessage(ctx context.Context, messageID snowflake.ID, now time.Time) (*ClosureResult, error) {
	giveaway, err := m.lookup(ctx, messageID)
	if err != nil {
		return nil, err
	}

	result, err := m.Close(ctx, giveaway.ID, now)
	if err != nil {
		return nil, err
	}
	m.announce(ctx, result)
	return result, nil
}

// Restore resumes one active giveaway during reconciliation. Overdue
// giveaways close synchronously; the rest are armed for the remainder.
func (m *Manager) Restore(ctx context.Context, giveaway *models.Giveaway, now time.Time) error {
	remaining := giveaway.EndTime.Sub(now)
	if remaining <= 0 {
		result, err := m.Close(ctx, giveaway.ID, now)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to close overdue giveaway: %w", err)
		}
		m.announce(ctx, result)
		return nil
	}

	m.sched.Arm(giveaway.ID, remaining)
	return nil
}

func (m *Manager) onExpiry(giveawayID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
	defer cancel()

	result, err := m.Close(ctx, giveawayID, time.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost the race against a manual closure.
			return
		}
		slog.Error("Failed to close expired giveaway",
			slog.Int64("giveaway_id", giveawayID),
			slog.Any("error", err),
		)
		return
	}
	m.announce(ctx, result)
}

func (m *Manager) announce(ctx context.Context, result *ClosureResult) {
	if m.announcer == nil {
		return
	}
	if err := m.announcer.AnnounceClosure(ctx, result); err != nil {
		slog.Error("Failed to announce giveaway closure",
			slog.Int64("giveaway_id", result.Giveaway.ID),
			slog.Any("error", err),
		)
	}
}
