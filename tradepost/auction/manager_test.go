package auction

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/tradepost/tradepost-bot/tradepost/database/models"
)

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[int64]*models.Auction
	offers   []*models.Offer
	nextID   int64

	// runs once after the next GetByChannelID returns
	afterChannelRead func()
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[int64]*models.Auction)}
}

func (r *fakeAuctionRepo) Create(_ context.Context, a *models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.Status = models.AuctionStatusActive
	copied := *a
	r.auctions[a.ID] = &copied
	return nil
}

func (r *fakeAuctionRepo) GetByMessageID(_ context.Context, messageID string) (*models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.auctions {
		if a.MessageID == messageID && a.Status == models.AuctionStatusActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeAuctionRepo) GetByChannelID(_ context.Context, channelID string) (*models.Auction, error) {
	r.mu.Lock()
	var found *models.Auction
	for _, a := range r.auctions {
		if a.ChannelID == channelID && a.Status == models.AuctionStatusActive {
			copied := *a
			found = &copied
			break
		}
	}
	r.mu.Unlock()

	if hook := r.afterChannelRead; hook != nil {
		r.afterChannelRead = nil
		hook()
	}

	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (r *fakeAuctionRepo) GetActive(_ context.Context) ([]*models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Auction
	for _, a := range r.auctions {
		if a.Status == models.AuctionStatusActive {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) RecordOffer(_ context.Context, auctionID int64, userID, userName string, amount float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok || a.Status != models.AuctionStatusActive {
		return sql.ErrNoRows
	}
	a.CurrentOffer = amount
	a.CurrentBidderID = userID
	a.CurrentBidderName = userName
	r.offers = append(r.offers, &models.Offer{
		AuctionID: auctionID,
		UserID:    userID,
		UserName:  userName,
		Amount:    amount,
		CreatedAt: at,
	})
	return nil
}

func (r *fakeAuctionRepo) UpdateNotificationID(_ context.Context, auctionID int64, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[auctionID]; ok {
		a.NotificationID = notificationID
	}
	return nil
}

func (r *fakeAuctionRepo) Finish(_ context.Context, auctionID int64, winnerID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok || a.Status != models.AuctionStatusActive {
		return false, nil
	}
	a.Status = models.AuctionStatusFinished
	a.WinnerID = winnerID
	a.FinishedAt = at
	return true, nil
}

func (r *fakeAuctionRepo) GetOffers(_ context.Context, auctionID int64) ([]*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Offer
	for _, o := range r.offers {
		if o.AuctionID == auctionID {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

const (
	testChannel = snowflake.ID(100)
	testMessage = snowflake.ID(200)
	bidderA     = snowflake.ID(1)
	bidderB     = snowflake.ID(2)
)

func newTestManager(t *testing.T, repo *fakeAuctionRepo, minPrice, maxPrice float64, now time.Time) *Manager {
	t.Helper()
	m := NewManager(repo)
	_, err := m.Create(context.Background(), CreateParams{
		ChannelID: testChannel,
		MessageID: testMessage,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		CreatedBy: snowflake.ID(999),
	}, now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

func TestPlaceBidScenario(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeAuctionRepo()
	m := newTestManager(t, repo, 20.00, 80.00, now)

	steps := []struct {
		bidder  snowflake.ID
		name    string
		amount  string
		at      time.Duration
		wantErr error
	}{
		{bidderA, "alice", "25.00", 0, nil},
		{bidderB, "bob", "25.00", time.Second, ErrBidTooLow},
		{bidderA, "alice", "30.00", 2 * time.Second, ErrAlreadyHighBidder},
		{bidderB, "bob", "90.00", 3 * time.Second, ErrOutOfRange},
		{bidderB, "bob", "40.00", 4 * time.Second, nil},
	}

	for i, step := range steps {
		_, err := m.PlaceBid(ctx, testMessage, step.bidder, step.name, step.amount, now.Add(step.at))
		if !errors.Is(err, step.wantErr) {
			t.Fatalf("step %d: PlaceBid(%s, %s) error = %v, want %v", i, step.name, step.amount, err, step.wantErr)
		}
	}

	result, err := m.Finalize(ctx, testChannel, bidderB, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if result.Auction.WinnerID != bidderB.String() {
		t.Errorf("WinnerID = %q, want %q", result.Auction.WinnerID, bidderB.String())
	}
	if len(result.Offers) != 2 {
		t.Fatalf("len(Offers) = %d, want 2", len(result.Offers))
	}
	if result.Offers[0].Amount != 25.00 || result.Offers[1].Amount != 40.00 {
		t.Errorf("offer history = [%.2f, %.2f], want [25.00, 40.00]", result.Offers[0].Amount, result.Offers[1].Amount)
	}
}

func TestPlaceBidUnknownMessage(t *testing.T) {
	m := NewManager(newFakeAuctionRepo())
	_, err := m.PlaceBid(context.Background(), snowflake.ID(404), bidderA, "alice", "25", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("PlaceBid() error = %v, want ErrNotFound", err)
	}
}

func TestPlaceBidInvalidAmounts(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, newFakeAuctionRepo(), 20, 80, now)

	for _, raw := range []string{"abc", "", "-5", "0", "NaN", "Inf"} {
		_, err := m.PlaceBid(context.Background(), testMessage, bidderA, "alice", raw, now)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("PlaceBid(%q) error = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestPlaceBidCooldown(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeAuctionRepo()
	m := newTestManager(t, repo, 20, 80, now)

	if _, err := m.PlaceBid(ctx, testMessage, bidderA, "alice", "25", now); err != nil {
		t.Fatalf("first bid error = %v", err)
	}
	if _, err := m.PlaceBid(ctx, testMessage, bidderB, "bob", "30", now.Add(time.Second)); err != nil {
		t.Fatalf("outbid error = %v", err)
	}

	// Alice's accepted bid is 5s old, inside the window.
	if _, err := m.PlaceBid(ctx, testMessage, bidderA, "alice", "35", now.Add(5*time.Second)); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("rebid inside window error = %v, want ErrRateLimited", err)
	}
	if _, err := m.PlaceBid(ctx, testMessage, bidderA, "alice", "35", now.Add(31*time.Second)); err != nil {
		t.Fatalf("rebid after window error = %v", err)
	}
}

func TestRejectedBidsLeaveNoOffers(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeAuctionRepo()
	m := newTestManager(t, repo, 20, 80, now)

	_, _ = m.PlaceBid(ctx, testMessage, bidderA, "alice", "10", now)
	_, _ = m.PlaceBid(ctx, testMessage, bidderA, "alice", "abc", now)
	_, _ = m.PlaceBid(ctx, testMessage, bidderA, "alice", "100", now)

	if len(repo.offers) != 0 {
		t.Fatalf("rejected bids wrote %d offer rows, want 0", len(repo.offers))
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := newTestManager(t, newFakeAuctionRepo(), 20, 80, now)

	if _, err := m.Finalize(ctx, testChannel, bidderA, now); err != nil {
		t.Fatalf("first Finalize() error = %v", err)
	}
	if _, err := m.Finalize(ctx, testChannel, bidderA, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Finalize() error = %v, want ErrNotFound", err)
	}
	if m.Cached(testMessage) {
		t.Error("cache entry survived finalization")
	}
}

func TestFinalizeAwardsNamedWinnerDespiteRacingBid(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeAuctionRepo()
	m := newTestManager(t, repo, 20, 80, now)

	if _, err := m.PlaceBid(ctx, testMessage, bidderA, "alice", "25", now); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}

	// A bid commits between finalization's first read and the auction lock.
	repo.afterChannelRead = func() {
		if err := repo.RecordOffer(ctx, 1, bidderB.String(), "bob", 40, now.Add(time.Second)); err != nil {
			t.Errorf("racing offer error = %v", err)
		}
	}

	result, err := m.Finalize(ctx, testChannel, bidderB, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if result.Auction.WinnerID != bidderB.String() {
		t.Errorf("WinnerID = %q, want %q", result.Auction.WinnerID, bidderB.String())
	}
	if result.Auction.CurrentOffer != 40 {
		t.Errorf("CurrentOffer = %.2f, want 40.00 from the re-read under the lock", result.Auction.CurrentOffer)
	}
	if stored := repo.auctions[1]; stored.WinnerID != bidderB.String() {
		t.Errorf("stored winner = %q, want %q", stored.WinnerID, bidderB.String())
	}
}

func TestCreateRejectsBusyChannel(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeAuctionRepo()
	m := newTestManager(t, repo, 20, 80, now)

	_, err := m.Create(ctx, CreateParams{
		ChannelID: testChannel,
		MessageID: snowflake.ID(201),
		MinPrice:  10,
		MaxPrice:  20,
	}, now)
	if !errors.Is(err, ErrChannelBusy) {
		t.Fatalf("Create() on busy channel error = %v, want ErrChannelBusy", err)
	}
}

func TestCreateRejectsInvalidRange(t *testing.T) {
	m := NewManager(newFakeAuctionRepo())
	_, err := m.Create(context.Background(), CreateParams{
		ChannelID: testChannel,
		MessageID: testMessage,
		MinPrice:  80,
		MaxPrice:  20,
	}, time.Now())
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("Create() error = %v, want ErrInvalidRange", err)
	}
}

func TestRestoreSeedsCache(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeAuctionRepo()

	a := &models.Auction{
		ChannelID:         testChannel.String(),
		MessageID:         testMessage.String(),
		MinPrice:          20,
		MaxPrice:          80,
		CurrentOffer:      30,
		CurrentBidderID:   bidderA.String(),
		CurrentBidderName: "alice",
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	m := NewManager(repo)
	if err := m.Restore(a); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !m.Cached(testMessage) {
		t.Fatal("Restore() did not seed the cache")
	}

	// The standing offer survived; a lower bid must lose to it.
	if _, err := m.PlaceBid(ctx, testMessage, bidderB, "bob", "25", now); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("PlaceBid() below restored offer error = %v, want ErrBidTooLow", err)
	}
	if _, err := m.PlaceBid(ctx, testMessage, bidderB, "bob", "40", now); err != nil {
		t.Fatalf("PlaceBid() above restored offer error = %v", err)
	}
}
