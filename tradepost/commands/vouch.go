package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sahilm/fuzzy"

	"github.com/tradepost/tradepost-bot/tradepost"
	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/tradepost/tradepost-bot/tradepost/handlers"
)

var VouchCommand = discord.SlashCommandCreate{
	Name:        "vouch",
	Description: "Rate a seller after a completed sale",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "seller",
			Description: "The seller to vouch for",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "rating",
			Description: "Rating from 1 to 5",
			Required:    true,
			MinValue:    intPtr(1),
			MaxValue:    intPtr(5),
		},
		discord.ApplicationCommandOptionString{
			Name:        "message",
			Description: "A short note about the sale",
		},
	},
}

var SellerStatsCommand = discord.SlashCommandCreate{
	Name:        "sellerstats",
	Description: "Show vouch statistics",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "seller",
			Description: "Seller name to look up (fuzzy matched); omit for global stats",
		},
	},
}

type VouchHandler struct {
	bot *tradepost.Bot
}

func NewVouchHandler(b *tradepost.Bot) *VouchHandler {
	return &VouchHandler{bot: b}
}

func (h *VouchHandler) Register(r handler.Router) {
	r.Command("/vouch", handlers.WrapWithLogging("vouch", h.HandleVouch))
	r.Command("/sellerstats", handlers.WrapWithLogging("sellerstats", h.HandleSellerStats))
}

func (h *VouchHandler) HandleVouch(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	data := event.SlashCommandInteractionData()
	seller := data.User("seller")
	rating := data.Int("rating")
	note, _ := data.OptString("message")

	if seller.ID == event.User().ID {
		return ephemeral(event, "You can't vouch for yourself.")
	}

	vouch := &models.Vouch{
		SellerID:    seller.ID.String(),
		SellerName:  seller.Username,
		VoucherID:   event.User().ID.String(),
		VoucherName: event.User().Username,
		Rating:      float64(rating),
		Message:     note,
		CreatedAt:   time.Now(),
	}
	if err := h.bot.VouchRepository.Create(ctx, vouch); err != nil {
		return err
	}

	h.postToVouchChannel(ctx, event, vouch)

	return ephemeral(event, fmt.Sprintf("Vouch recorded: **%d/5** for %s.", rating, seller.Username))
}

// postToVouchChannel mirrors the vouch into the configured channel. Best
// effort; the vouch row is already durable.
func (h *VouchHandler) postToVouchChannel(ctx context.Context, event *handler.CommandEvent, vouch *models.Vouch) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}
	cfg, err := h.bot.ServerConfigRepository.Get(ctx, guildID.String())
	if err != nil || cfg.VouchChannelID == "" {
		return
	}
	channelID, err := snowflake.Parse(cfg.VouchChannelID)
	if err != nil {
		return
	}

	stars := ""
	for i := 0; i < int(vouch.Rating); i++ {
		stars += "⭐"
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("New Vouch").
		SetDescription(fmt.Sprintf("%s vouched for **%s**\n%s\n%s",
			vouch.VoucherName, vouch.SellerName, stars, vouch.Message)).
		SetColor(colorCelebrate).
		SetTimestamp(vouch.CreatedAt).
		Build()

	if _, err := h.bot.Surface.Send(ctx, channelID, discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	}); err != nil {
		slog.Warn("Failed to post vouch to channel", slog.Any("error", err))
	}
}

func (h *VouchHandler) HandleSellerStats(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query, ok := event.SlashCommandInteractionData().OptString("seller")
	if !ok || query == "" {
		stats, err := h.bot.VouchRepository.GlobalStats(ctx)
		if err != nil {
			return err
		}
		return ephemeral(event, fmt.Sprintf("**%d** vouches recorded, average rating **%.2f/5**.",
			stats.Count, stats.AverageRating))
	}

	sellers, err := h.bot.VouchRepository.ListSellers(ctx)
	if err != nil {
		return err
	}
	matches := fuzzy.Find(query, sellers)
	if len(matches) == 0 {
		return ephemeral(event, fmt.Sprintf("No seller matching `%s` found.", query))
	}
	sellerName := sellers[matches[0].Index]

	stats, err := h.bot.VouchRepository.SellerStats(ctx, sellerName)
	if err != nil {
		return err
	}
	recent, err := h.bot.VouchRepository.GetBySeller(ctx, sellerName, 5)
	if err != nil {
		return err
	}

	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("📊 %s", sellerName)).
		SetDescription(fmt.Sprintf("**%d** vouches, average rating **%.2f/5**", stats.Count, stats.AverageRating)).
		SetColor(colorSale)
	for _, v := range recent {
		title := fmt.Sprintf("%.0f/5 by %s", v.Rating, v.VoucherName)
		body := v.Message
		if body == "" {
			body = "(no message)"
		}
		builder.AddField(title, body, false)
	}

	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{builder.Build()},
		Flags:  discord.MessageFlagEphemeral,
	})
}
