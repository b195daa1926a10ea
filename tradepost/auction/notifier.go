package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/tradepost/tradepost-bot/tradepost/surface"
)

// Notifier maintains the bid-notification chain: each accepted bid replaces
// the previous @everyone ping in the auction channel and the new handle is
// persisted so the chain survives restarts.
type Notifier struct {
	surface surface.Surface
	manager *Manager
}

func NewNotifier(s surface.Surface, m *Manager) *Notifier {
	return &Notifier{surface: s, manager: m}
}

// AnnounceBid is called after PlaceBid returns. Delivery is best effort;
// the bid itself is already durable.
func (n *Notifier) AnnounceBid(ctx context.Context, result *BidResult) error {
	if result.PreviousNotificationID != 0 {
		if err := n.surface.Delete(ctx, result.ChannelID, result.PreviousNotificationID); err != nil {
			slog.Warn("Failed to delete previous bid notification",
				slog.Int64("auction_id", result.AuctionID),
				slog.String("message_id", result.PreviousNotificationID.String()),
				slog.Any("error", err),
			)
		}
	}

	message := discord.NewMessageCreateBuilder().
		SetContentf("@everyone New offer of **%.2f** by **%s**!", result.Amount, result.BidderName).
		SetAllowedMentions(&discord.AllowedMentions{
			Parse: []discord.AllowedMentionType{discord.AllowedMentionTypeEveryone},
		}).
		Build()

	sent, err := n.surface.Send(ctx, result.ChannelID, message)
	if err != nil {
		return fmt.Errorf("failed to send bid notification: %w", err)
	}

	if err := n.manager.RecordNotification(ctx, result.MessageID, sent.ID); err != nil {
		return fmt.Errorf("failed to record bid notification: %w", err)
	}
	return nil
}
