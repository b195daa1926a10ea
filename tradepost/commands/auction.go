package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"

	"github.com/tradepost/tradepost-bot/tradepost"
	"github.com/tradepost/tradepost-bot/tradepost/auction"
	"github.com/tradepost/tradepost-bot/tradepost/handlers"
)

const queryTimeout = 5 * time.Second

var AuctionCommand = discord.SlashCommandCreate{
	Name:        "auction",
	Description: "Sale related commands",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "create",
			Description: "Open a new sale with an offer range",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionFloat{
					Name:        "min_price",
					Description: "Minimum accepted offer",
					Required:    true,
					MinValue:    floatPtr(0),
				},
				discord.ApplicationCommandOptionFloat{
					Name:        "max_price",
					Description: "Maximum accepted offer",
					Required:    true,
					MinValue:    floatPtr(0),
				},
				discord.ApplicationCommandOptionString{
					Name:        "details",
					Description: "What is being sold",
				},
				discord.ApplicationCommandOptionString{
					Name:        "media",
					Description: "Image link to attach",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "finalize",
			Description: "Close this channel's sale and award it to the winner",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "winner",
					Description: "The buyer who won the sale",
					Required:    true,
				},
			},
		},
	},
}

type AuctionHandler struct {
	bot *tradepost.Bot
}

func NewAuctionHandler(b *tradepost.Bot) *AuctionHandler {
	return &AuctionHandler{bot: b}
}

func (h *AuctionHandler) Register(r handler.Router) {
	r.Route("/auction", func(r handler.Router) {
		r.Command("/create", handlers.WrapWithLogging("auction create", h.HandleCreate))
		r.Command("/finalize", handlers.WrapWithLogging("auction finalize", h.HandleFinalize))
	})

	r.Component("/offers/button", handlers.WrapComponentWithLogging("offer button", h.HandleOfferButton))
	r.Modal("/offers/modal/{message_id}", handlers.WrapModalWithLogging("offer modal", h.HandleOfferModal))
}

func (h *AuctionHandler) HandleCreate(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	guildID := event.GuildID()
	if guildID == nil {
		return ephemeral(event, "Sales can only be opened inside a server.")
	}
	if !h.canSell(ctx, *guildID, event.Member()) {
		return ephemeral(event, "You need the seller role to open sales.")
	}

	data := event.SlashCommandInteractionData()
	minPrice := data.Float("min_price")
	maxPrice := data.Float("max_price")
	details, _ := data.OptString("details")
	media, _ := data.OptString("media")

	if minPrice > maxPrice {
		return ephemeral(event, "The minimum price cannot exceed the maximum.")
	}

	channelID, err := h.salesChannel(ctx, *guildID, minPrice, maxPrice)
	if err != nil {
		slog.Warn("Falling back to current channel for sale",
			slog.Any("error", err))
		channelID = event.ChannelID()
	}

	message, err := h.bot.Surface.Send(ctx, channelID, discord.MessageCreate{
		Embeds:     []discord.Embed{auctionEmbed(minPrice, maxPrice, details, media)},
		Components: []discord.ContainerComponent{offerButton()},
	})
	if err != nil {
		return fmt.Errorf("failed to post sale message: %w", err)
	}

	_, err = h.bot.AuctionManager.Create(ctx, auction.CreateParams{
		ChannelID: channelID,
		MessageID: message.ID,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		CreatedBy: event.User().ID,
	}, time.Now())
	if err != nil {
		// The posted message has no live auction behind it. Remove it.
		if delErr := h.bot.Surface.Delete(ctx, channelID, message.ID); delErr != nil {
			slog.Warn("Failed to delete orphaned sale message", slog.Any("error", delErr))
		}
		switch {
		case errors.Is(err, auction.ErrInvalidRange):
			return ephemeral(event, "The minimum price cannot exceed the maximum.")
		case errors.Is(err, auction.ErrChannelBusy):
			return ephemeral(event, "That channel already has an active sale.")
		}
		return err
	}

	return ephemeral(event, fmt.Sprintf("Sale opened in <#%s>.", channelID))
}

func (h *AuctionHandler) HandleFinalize(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if !isAdmin(event.Member()) {
		return ephemeral(event, "Only administrators can finalize sales.")
	}

	winner := event.SlashCommandInteractionData().User("winner")

	result, err := h.bot.AuctionManager.Finalize(ctx, event.ChannelID(), winner.ID, time.Now())
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return ephemeral(event, "There is no active sale in this channel.")
		}
		return err
	}

	h.cleanupNotification(ctx, result)

	if _, err := h.bot.Surface.Send(ctx, event.ChannelID(), discord.MessageCreate{
		Embeds: []discord.Embed{finalizedEmbed(result)},
	}); err != nil {
		slog.Warn("Failed to post finalization message",
			slog.Int64("auction_id", result.Auction.ID),
			slog.Any("error", err))
	}

	totalPages := len(result.Offers)/offersPerPage + 1
	return h.bot.Paginator.Create(event.Respond, paginator.Pages{
		ID:      event.ID().String(),
		Creator: event.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			offerHistoryPage(result, page, embed)
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func (h *AuctionHandler) HandleOfferButton(event *handler.ComponentEvent) error {
	if !h.bot.AuctionManager.Cached(event.Message.ID) {
		return event.CreateMessage(discord.MessageCreate{
			Content: "This sale is no longer active.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return event.Modal(discord.ModalCreate{
		CustomID: "/offers/modal/" + event.Message.ID.String(),
		Title:    "Place your offer",
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewShortTextInput("amount", "Offer amount").
					WithRequired(true).
					WithPlaceholder("e.g. 25.50"),
			),
		},
	})
}

func (h *AuctionHandler) HandleOfferModal(event *handler.ModalEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	messageID, err := snowflake.Parse(event.Vars["message_id"])
	if err != nil {
		return fmt.Errorf("malformed modal custom id: %w", err)
	}

	rawAmount := event.Data.Text("amount")
	result, err := h.bot.AuctionManager.PlaceBid(ctx, messageID, event.User().ID, event.User().Username, rawAmount, time.Now())
	if err != nil {
		if message := bidErrorMessage(err); message != "" {
			return event.CreateMessage(discord.MessageCreate{
				Content: message,
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		return err
	}

	if err := h.bot.AuctionNotifier.AnnounceBid(ctx, result); err != nil {
		slog.Warn("Failed to announce accepted bid",
			slog.Int64("auction_id", result.AuctionID),
			slog.Any("error", err))
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("Your offer of **%.2f** is now the highest!", result.Amount),
		Flags:   discord.MessageFlagEphemeral,
	})
}

func bidErrorMessage(err error) string {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		return "This sale is no longer active."
	case errors.Is(err, auction.ErrInvalidAmount):
		return "Enter a valid positive number."
	case errors.Is(err, auction.ErrOutOfRange):
		return "Your offer is outside the accepted price range."
	case errors.Is(err, auction.ErrBidTooLow):
		return "Your offer must beat the current highest offer."
	case errors.Is(err, auction.ErrAlreadyHighBidder):
		return "You already hold the highest offer."
	case errors.Is(err, auction.ErrRateLimited):
		return "You're bidding too fast. Wait a moment and try again."
	}
	return ""
}

// salesChannel creates a read-only channel under the configured sales
// category. Errors fall back to the invoking channel.
func (h *AuctionHandler) salesChannel(ctx context.Context, guildID snowflake.ID, minPrice, maxPrice float64) (snowflake.ID, error) {
	cfg, err := h.bot.ServerConfigRepository.Get(ctx, guildID.String())
	if err != nil {
		return 0, fmt.Errorf("no server config: %w", err)
	}
	if cfg.SalesCategoryID == "" {
		return 0, fmt.Errorf("no sales category configured")
	}
	categoryID, err := snowflake.Parse(cfg.SalesCategoryID)
	if err != nil {
		return 0, fmt.Errorf("malformed sales category id: %w", err)
	}

	name := fmt.Sprintf("sale-%d-%d", int64(math.Floor(minPrice)), int64(math.Ceil(maxPrice)))
	channel, err := h.bot.Surface.CreateChannel(ctx, guildID, discord.GuildTextChannelCreate{
		Name:     name,
		ParentID: categoryID,
		PermissionOverwrites: []discord.PermissionOverwrite{
			discord.RolePermissionOverwrite{
				RoleID: guildID,
				Deny:   discord.PermissionSendMessages,
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create sales channel: %w", err)
	}
	return channel.ID(), nil
}

func (h *AuctionHandler) cleanupNotification(ctx context.Context, result *auction.FinalizeResult) {
	if result.Auction.NotificationID == "" {
		return
	}
	channelID, err1 := snowflake.Parse(result.Auction.ChannelID)
	notificationID, err2 := snowflake.Parse(result.Auction.NotificationID)
	if err1 != nil || err2 != nil {
		return
	}
	if err := h.bot.Surface.Delete(ctx, channelID, notificationID); err != nil {
		slog.Warn("Failed to delete bid notification",
			slog.Int64("auction_id", result.Auction.ID),
			slog.Any("error", err))
	}
}

func (h *AuctionHandler) canSell(ctx context.Context, guildID snowflake.ID, member *discord.ResolvedMember) bool {
	if isAdmin(member) {
		return true
	}
	if member == nil {
		return false
	}

	cfg, err := h.bot.ServerConfigRepository.Get(ctx, guildID.String())
	if err != nil || cfg.SellerRoleID == "" {
		return false
	}
	sellerRole, err := snowflake.Parse(cfg.SellerRoleID)
	if err != nil {
		return false
	}
	for _, roleID := range member.RoleIDs {
		if roleID == sellerRole {
			return true
		}
	}
	return false
}

func isAdmin(member *discord.ResolvedMember) bool {
	if member == nil {
		return false
	}
	return member.Permissions.Has(discord.PermissionAdministrator) ||
		member.Permissions.Has(discord.PermissionManageGuild)
}

func ephemeral(event *handler.CommandEvent, content string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}
