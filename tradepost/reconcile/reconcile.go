// Package reconcile rebuilds in-process state from the durable store at
// startup, checking each record against the messaging surface. The surface
// may have drifted while the process was down; records whose channel or
// message no longer resolve are skipped with a warning and stay active in
// storage for a later pass.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tradepost/tradepost-bot/tradepost/auction"
	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/tradepost/tradepost-bot/tradepost/giveaway"
	"github.com/tradepost/tradepost-bot/tradepost/surface"
)

const concurrency = 4

type AuctionSource interface {
	GetActive(ctx context.Context) ([]*models.Auction, error)
}

type GiveawaySource interface {
	GetActive(ctx context.Context) ([]*models.Giveaway, error)
}

type Reconciler struct {
	auctions  AuctionSource
	giveaways GiveawaySource

	auctionManager  *auction.Manager
	giveawayManager *giveaway.Manager
	surface         surface.Surface
}

func New(auctions AuctionSource, giveaways GiveawaySource, am *auction.Manager, gm *giveaway.Manager, s surface.Surface) *Reconciler {
	return &Reconciler{
		auctions:        auctions,
		giveaways:       giveaways,
		auctionManager:  am,
		giveawayManager: gm,
		surface:         s,
	}
}

// Run reconciles auctions then giveaways. Per-record failures are logged
// and never abort the rest; Run only fails when the store itself cannot be
// read.
func (r *Reconciler) Run(ctx context.Context, now time.Time) error {
	start := time.Now()

	auctions, err := r.auctions.GetActive(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, a := range auctions {
		a := a
		g.Go(func() error {
			r.restoreAuction(gctx, a)
			return nil
		})
	}
	_ = g.Wait()

	giveaways, err := r.giveaways.GetActive(ctx)
	if err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, gw := range giveaways {
		gw := gw
		g.Go(func() error {
			r.restoreGiveaway(gctx, gw, now)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Reconciliation complete",
		slog.Int("auctions", len(auctions)),
		slog.Int("giveaways", len(giveaways)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func (r *Reconciler) restoreAuction(ctx context.Context, a *models.Auction) {
	if !r.resolvable(ctx, "auction", a.ID, a.ChannelID, a.MessageID) {
		return
	}

	if err := r.auctionManager.Restore(a); err != nil {
		slog.Warn("Skipping auction with unusable record",
			slog.Int64("auction_id", a.ID),
			slog.Any("error", err),
		)
		return
	}

	slog.Info("Auction restored",
		slog.Int64("auction_id", a.ID),
		slog.String("channel_id", a.ChannelID),
	)
}

func (r *Reconciler) restoreGiveaway(ctx context.Context, gw *models.Giveaway, now time.Time) {
	if !r.resolvable(ctx, "giveaway", gw.ID, gw.ChannelID, gw.MessageID) {
		return
	}

	if err := r.giveawayManager.Restore(ctx, gw, now); err != nil {
		slog.Warn("Skipping giveaway that failed to restore",
			slog.Int64("giveaway_id", gw.ID),
			slog.Any("error", err),
		)
		return
	}

	slog.Info("Giveaway restored",
		slog.Int64("giveaway_id", gw.ID),
		slog.Time("end_time", gw.EndTime),
	)
}

// resolvable checks that the record's channel and message still exist on
// the surface. Skipped records stay active in storage.
func (r *Reconciler) resolvable(ctx context.Context, kind string, id int64, rawChannelID, rawMessageID string) bool {
	channelID, err := snowflake.Parse(rawChannelID)
	if err != nil {
		slog.Warn("Skipping record with malformed channel id",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("channel_id", rawChannelID),
		)
		return false
	}
	messageID, err := snowflake.Parse(rawMessageID)
	if err != nil {
		slog.Warn("Skipping record with malformed message id",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("message_id", rawMessageID),
		)
		return false
	}

	if _, err := r.surface.Channel(ctx, channelID); err != nil {
		slog.Warn("Skipping record, channel no longer resolves",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("channel_id", rawChannelID),
			slog.Any("error", err),
		)
		return false
	}
	if _, err := r.surface.Message(ctx, channelID, messageID); err != nil {
		slog.Warn("Skipping record, message no longer resolves",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("message_id", rawMessageID),
			slog.Any("error", err),
		)
		return false
	}
	return true
}
