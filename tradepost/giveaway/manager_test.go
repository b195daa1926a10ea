package giveaway

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

type fakeGiveawayRepo struct {
	mu           sync.Mutex
	giveaways    map[int64]*models.Giveaway
	participants map[int64][]*models.GiveawayParticipant
	nextID       int64

	// runs once after the next GetByMessageID returns
	afterLookup func()
}

func newFakeGiveawayRepo() *fakeGiveawayRepo {
	return &fakeGiveawayRepo{
		giveaways:    make(map[int64]*models.Giveaway),
		participants: make(map[int64][]*models.GiveawayParticipant),
	}
}

func (r *fakeGiveawayRepo) Create(_ context.Context, g *models.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	g.ID = r.nextID
	g.Status = models.GiveawayStatusActive
	copied := *g
	r.giveaways[g.ID] = &copied
	return nil
}

func (r *fakeGiveawayRepo) GetByMessageID(_ context.Context, messageID string) (*models.Giveaway, error) {
	r.mu.Lock()
	var found *models.Giveaway
	for _, g := range r.giveaways {
		if g.MessageID == messageID && g.Status == models.GiveawayStatusActive {
			copied := *g
			found = &copied
			break
		}
	}
	r.mu.Unlock()

	if hook := r.afterLookup; hook != nil {
		r.afterLookup = nil
		hook()
	}

	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (r *fakeGiveawayRepo) GetByID(_ context.Context, id int64) (*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *g
	return &copied, nil
}

func (r *fakeGiveawayRepo) GetActive(_ context.Context) ([]*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Giveaway
	for _, g := range r.giveaways {
		if g.Status == models.GiveawayStatusActive {
			copied := *g
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeGiveawayRepo) AddParticipant(_ context.Context, giveawayID int64, userID, userName string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[giveawayID] {
		if p.UserID == userID {
			return false, nil
		}
	}
	r.participants[giveawayID] = append(r.participants[giveawayID], &models.GiveawayParticipant{
		GiveawayID: giveawayID,
		UserID:     userID,
		UserName:   userName,
		JoinedAt:   at,
	})
	return true, nil
}

func (r *fakeGiveawayRepo) RemoveParticipant(_ context.Context, giveawayID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.participants[giveawayID]
	for i, p := range list {
		if p.UserID == userID {
			r.participants[giveawayID] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGiveawayRepo) CountParticipants(_ context.Context, giveawayID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants[giveawayID]), nil
}

func (r *fakeGiveawayRepo) IsParticipating(_ context.Context, giveawayID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[giveawayID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGiveawayRepo) GetParticipants(_ context.Context, giveawayID int64) ([]*models.GiveawayParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.GiveawayParticipant, 0, len(r.participants[giveawayID]))
	for _, p := range r.participants[giveawayID] {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeGiveawayRepo) Finish(_ context.Context, giveawayID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[giveawayID]
	if !ok || g.Status != models.GiveawayStatusActive {
		return false, nil
	}
	g.Status = models.GiveawayStatusFinished
	g.FinishedAt = at
	return true, nil
}

type recordingAnnouncer struct {
	mu      sync.Mutex
	results []*ClosureResult
}

func (a *recordingAnnouncer) AnnounceClosure(_ context.Context, result *ClosureResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
	return nil
}

func (a *recordingAnnouncer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

const (
	gwChannel = snowflake.ID(300)
	gwMessage = snowflake.ID(400)
	userA     = snowflake.ID(11)
	userB     = snowflake.ID(12)
)

func createTestGiveaway(t *testing.T, m *Manager, winners int, prize string, d time.Duration, now time.Time) *models.Giveaway {
	t.Helper()
	g, err := m.Create(context.Background(), CreateParams{
		ChannelID:     gwChannel,
		MessageID:     gwMessage,
		CreatedBy:     snowflake.ID(999),
		CreatedByName: "host",
		WinnersCount:  winners,
		Prize:         prize,
		Duration:      d,
	}, now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return g
}

func TestJoinLeaveCycle(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewManager(newFakeGiveawayRepo())
	defer m.Shutdown()
	createTestGiveaway(t, m, 1, "Nitro", time.Hour, now)

	count, err := m.Join(ctx, gwMessage, userA, "alice", now)
	if err != nil || count != 1 {
		t.Fatalf("Join() = (%d, %v), want (1, nil)", count, err)
	}

	if _, err := m.Join(ctx, gwMessage, userA, "alice", now); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("second Join() error = %v, want ErrAlreadyJoined", err)
	}

	count, err = m.Leave(ctx, gwMessage, userA)
	if err != nil || count != 0 {
		t.Fatalf("Leave() = (%d, %v), want (0, nil)", count, err)
	}

	if _, err := m.Leave(ctx, gwMessage, userA); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("second Leave() error = %v, want ErrNotJoined", err)
	}

	// Leaving and rejoining is allowed.
	if count, err = m.Join(ctx, gwMessage, userA, "alice", now); err != nil || count != 1 {
		t.Fatalf("rejoin = (%d, %v), want (1, nil)", count, err)
	}
}

func TestCloseWithNoParticipants(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewManager(newFakeGiveawayRepo())
	defer m.Shutdown()
	g := createTestGiveaway(t, m, 2, "Nitro", time.Hour, now)

	result, err := m.Close(ctx, g.ID, now)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(result.Winners) != 0 || result.ParticipantCount != 0 {
		t.Errorf("Close() = %d winners / %d participants, want 0 / 0", len(result.Winners), result.ParticipantCount)
	}
}

func TestCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewManager(newFakeGiveawayRepo())
	defer m.Shutdown()
	g := createTestGiveaway(t, m, 1, "Nitro", time.Hour, now)

	if _, err := m.Close(ctx, g.ID, now); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if _, err := m.Close(ctx, g.ID, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Close() error = %v, want ErrNotFound", err)
	}
	if m.sched.Armed(g.ID) {
		t.Error("timer survived closure")
	}
}

func TestJoinAfterCloseRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewManager(newFakeGiveawayRepo())
	defer m.Shutdown()
	g := createTestGiveaway(t, m, 1, "Nitro", time.Hour, now)

	if _, err := m.Close(ctx, g.ID, now); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Join(ctx, gwMessage, userA, "alice", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Join() after close error = %v, want ErrNotFound", err)
	}
}

func TestJoinLosesRaceToClose(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeGiveawayRepo()
	m := NewManager(repo)
	defer m.Shutdown()
	g := createTestGiveaway(t, m, 1, "Nitro", time.Hour, now)

	// The giveaway closes between the unlocked lookup and the join lock.
	repo.afterLookup = func() {
		if _, err := m.Close(ctx, g.ID, now); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}

	if _, err := m.Join(ctx, gwMessage, userA, "alice", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Join() racing close error = %v, want ErrNotFound", err)
	}

	participants, err := repo.GetParticipants(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(participants) != 0 {
		t.Fatalf("join into finished giveaway persisted %d rows, want 0", len(participants))
	}
}

func TestLeaveLosesRaceToClose(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeGiveawayRepo()
	m := NewManager(repo)
	defer m.Shutdown()
	g := createTestGiveaway(t, m, 1, "Nitro", time.Hour, now)

	if _, err := m.Join(ctx, gwMessage, userA, "alice", now); err != nil {
		t.Fatal(err)
	}

	repo.afterLookup = func() {
		if _, err := m.Close(ctx, g.ID, now); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}

	if _, err := m.Leave(ctx, gwMessage, userA); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Leave() racing close error = %v, want ErrNotFound", err)
	}

	// The drawn entry list is frozen by the closure.
	participants, err := repo.GetParticipants(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(participants) != 1 {
		t.Fatalf("closure's entry list mutated: %d rows, want 1", len(participants))
	}
}

func TestCloseDrawsCappedWinners(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewManager(newFakeGiveawayRepo())
	defer m.Shutdown()
	m.randInt = func(int) int { return 0 }
	g := createTestGiveaway(t, m, 5, "Nitro", time.Hour, now)

	if _, err := m.Join(ctx, gwMessage, userA, "alice", now); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Join(ctx, gwMessage, userB, "bob", now); err != nil {
		t.Fatal(err)
	}

	result, err := m.Close(ctx, g.ID, now)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(result.Winners) != 2 {
		t.Fatalf("len(Winners) = %d, want 2 (capped at participant count)", len(result.Winners))
	}
	if result.Winners[0].UserID == result.Winners[1].UserID {
		t.Error("the same participant won twice")
	}
	for _, w := range result.Winners {
		if w.Prize != "Nitro" {
			t.Errorf("Prize = %q, want %q", w.Prize, "Nitro")
		}
	}
}

func TestCreateArmsTimerAndExpiryAnnounces(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	announcer := &recordingAnnouncer{}
	m := NewManager(newFakeGiveawayRepo())
	defer m.Shutdown()
	m.SetAnnouncer(announcer)

	g := createTestGiveaway(t, m, 1, "Nitro", 20*time.Millisecond, now)
	if !m.sched.Armed(g.ID) {
		t.Fatal("Create() did not arm the timer")
	}

	deadline := time.After(2 * time.Second)
	for announcer.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expiry never announced the closure")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The durable row flipped; late joins are rejected.
	if _, err := m.Join(ctx, gwMessage, userA, "alice", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Join() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestRestoreOverdueClosesImmediately(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeGiveawayRepo()
	announcer := &recordingAnnouncer{}

	g := &models.Giveaway{
		ChannelID:    gwChannel.String(),
		MessageID:    gwMessage.String(),
		WinnersCount: 1,
		Prize:        "Nitro",
		EndTime:      now.Add(-time.Minute),
	}
	if err := repo.Create(ctx, g); err != nil {
		t.Fatal(err)
	}

	m := NewManager(repo)
	defer m.Shutdown()
	m.SetAnnouncer(announcer)

	if err := m.Restore(ctx, g, now); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if announcer.count() != 1 {
		t.Fatalf("announcer called %d times, want 1", announcer.count())
	}
	if m.sched.Armed(g.ID) {
		t.Error("overdue giveaway left a timer armed")
	}
}

func TestRestoreFutureArmsTimer(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := newFakeGiveawayRepo()

	g := &models.Giveaway{
		ChannelID:    gwChannel.String(),
		MessageID:    gwMessage.String(),
		WinnersCount: 1,
		Prize:        "Nitro",
		EndTime:      now.Add(time.Hour),
	}
	if err := repo.Create(ctx, g); err != nil {
		t.Fatal(err)
	}

	m := NewManager(repo)
	defer m.Shutdown()

	if err := m.Restore(ctx, g, now); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !m.sched.Armed(g.ID) {
		t.Fatal("Restore() did not arm the timer")
	}
}
