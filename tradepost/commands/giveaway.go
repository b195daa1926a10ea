package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"

	"github.com/tradepost/tradepost-bot/tradepost"
	"github.com/tradepost/tradepost-bot/tradepost/giveaway"
	"github.com/tradepost/tradepost-bot/tradepost/handlers"
	"github.com/tradepost/tradepost-bot/tradepost/surface"
)

const maxPrizeLength = 200

var GiveawayCommand = discord.SlashCommandCreate{
	Name:        "giveaway",
	Description: "Giveaway related commands",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "start",
			Description: "Start a timed giveaway",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "prize",
					Description: "Prize, or comma-separated prizes for multiple winners",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long the giveaway runs, e.g. 30s, 10m, 2h, 1d",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "winners",
					Description: "Number of winners to draw",
					Required:    true,
					MinValue:    intPtr(1),
					MaxValue:    intPtr(10),
				},
				discord.ApplicationCommandOptionChannel{
					Name:        "channel",
					Description: "Channel to host the giveaway in (defaults to here)",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "close",
			Description: "End a giveaway early and draw winners now",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "message_id",
					Description: "Message id of the giveaway to close",
					Required:    true,
				},
			},
		},
	},
}

type GiveawayHandler struct {
	bot *tradepost.Bot
}

func NewGiveawayHandler(b *tradepost.Bot) *GiveawayHandler {
	return &GiveawayHandler{bot: b}
}

func (h *GiveawayHandler) Register(r handler.Router) {
	r.Route("/giveaway", func(r handler.Router) {
		r.Command("/start", handlers.WrapWithLogging("giveaway start", h.HandleStart))
		r.Command("/close", handlers.WrapWithLogging("giveaway close", h.HandleClose))
	})

	r.Component("/giveaway/join", handlers.WrapComponentWithLogging("giveaway join", h.HandleJoin))
	r.Component("/giveaway/leave", handlers.WrapComponentWithLogging("giveaway leave", h.HandleLeave))
}

func (h *GiveawayHandler) HandleStart(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if !isAdmin(event.Member()) {
		return ephemeral(event, "Only administrators can start giveaways.")
	}

	data := event.SlashCommandInteractionData()
	prize := data.String("prize")
	winners := data.Int("winners")

	if len(prize) > maxPrizeLength {
		return ephemeral(event, fmt.Sprintf("The prize description is limited to %d characters.", maxPrizeLength))
	}

	duration, err := giveaway.ParseDuration(data.String("duration"))
	if err != nil {
		return ephemeral(event, "Invalid duration. Use forms like 30s, 10m, 2h or 1d.")
	}

	channelID := event.ChannelID()
	if channel, ok := data.OptChannel("channel"); ok {
		channelID = channel.ID
	}

	now := time.Now()
	preview := giveaway.CreateParams{
		ChannelID:     channelID,
		CreatedBy:     event.User().ID,
		CreatedByName: event.User().Username,
		WinnersCount:  winners,
		Prize:         prize,
		Duration:      duration,
	}

	message, err := h.bot.Surface.Send(ctx, channelID, discord.MessageCreate{
		Embeds:     []discord.Embed{giveawayPreviewEmbed(preview, now)},
		Components: []discord.ContainerComponent{giveawayButtons(0)},
	})
	if err != nil {
		return fmt.Errorf("failed to post giveaway message: %w", err)
	}

	preview.MessageID = message.ID
	if _, err := h.bot.GiveawayManager.Create(ctx, preview, now); err != nil {
		if delErr := h.bot.Surface.Delete(ctx, channelID, message.ID); delErr != nil {
			slog.Warn("Failed to delete orphaned giveaway message", slog.Any("error", delErr))
		}
		return err
	}

	return ephemeral(event, fmt.Sprintf("Giveaway started in <#%s>.", channelID))
}

func (h *GiveawayHandler) HandleClose(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if !isAdmin(event.Member()) {
		return ephemeral(event, "Only administrators can close giveaways.")
	}

	messageID, err := snowflake.Parse(event.SlashCommandInteractionData().String("message_id"))
	if err != nil {
		return ephemeral(event, "That doesn't look like a message id.")
	}

	result, err := h.bot.GiveawayManager.CloseByMessage(ctx, messageID, time.Now())
	if err != nil {
		if errors.Is(err, giveaway.ErrNotFound) {
			return ephemeral(event, "No active giveaway found for that message.")
		}
		return err
	}

	return ephemeral(event, fmt.Sprintf("Giveaway closed with %d winners.", len(result.Winners)))
}

func (h *GiveawayHandler) HandleJoin(event *handler.ComponentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	count, err := h.bot.GiveawayManager.Join(ctx, event.Message.ID, event.User().ID, event.User().Username, time.Now())
	if err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: joinErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return event.UpdateMessage(discord.MessageUpdate{
		Components: &[]discord.ContainerComponent{giveawayButtons(count)},
	})
}

func (h *GiveawayHandler) HandleLeave(event *handler.ComponentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	count, err := h.bot.GiveawayManager.Leave(ctx, event.Message.ID, event.User().ID)
	if err != nil {
		return event.CreateMessage(discord.MessageCreate{
			Content: joinErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return event.UpdateMessage(discord.MessageUpdate{
		Components: &[]discord.ContainerComponent{giveawayButtons(count)},
	})
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, giveaway.ErrNotFound):
		return "This giveaway has already ended."
	case errors.Is(err, giveaway.ErrAlreadyJoined):
		return "You're already in this giveaway."
	case errors.Is(err, giveaway.ErrNotJoined):
		return "You're not in this giveaway."
	}
	return "Something went wrong. Try again in a moment."
}

// giveawayPreviewEmbed renders the giveaway message before the durable row
// exists, so it takes the creation parameters instead of a model.
func giveawayPreviewEmbed(params giveaway.CreateParams, now time.Time) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("🎉 Giveaway").
		SetDescription(fmt.Sprintf("**Prize:** %s\n**Winners:** %d\n**Ends:** <t:%d:R>",
			params.Prize, params.WinnersCount, now.Add(params.Duration).Unix())).
		SetFooterText(fmt.Sprintf("Hosted by %s", params.CreatedByName)).
		SetColor(colorGiveaway).
		SetTimestamp(now.Add(params.Duration)).
		Build()
}

// GiveawayAnnouncer renders closures back onto the channel: the original
// message is rewritten with the winners and its buttons removed, then a
// celebration message pings the winners.
type GiveawayAnnouncer struct {
	surface surface.Surface
}

func NewGiveawayAnnouncer(s surface.Surface) *GiveawayAnnouncer {
	return &GiveawayAnnouncer{surface: s}
}

func (a *GiveawayAnnouncer) AnnounceClosure(ctx context.Context, result *giveaway.ClosureResult) error {
	channelID, err := snowflake.Parse(result.Giveaway.ChannelID)
	if err != nil {
		return fmt.Errorf("malformed channel id %q: %w", result.Giveaway.ChannelID, err)
	}
	messageID, err := snowflake.Parse(result.Giveaway.MessageID)
	if err != nil {
		return fmt.Errorf("malformed message id %q: %w", result.Giveaway.MessageID, err)
	}

	if _, err := a.surface.Edit(ctx, channelID, messageID, discord.MessageUpdate{
		Embeds:     &[]discord.Embed{closureEmbed(result)},
		Components: &[]discord.ContainerComponent{},
	}); err != nil {
		slog.Warn("Failed to rewrite giveaway message",
			slog.Int64("giveaway_id", result.Giveaway.ID),
			slog.Any("error", err))
	}

	celebration, err := a.surface.Send(ctx, channelID, discord.MessageCreate{
		Content: celebrationContent(result),
	})
	if err != nil {
		return fmt.Errorf("failed to send celebration message: %w", err)
	}

	for _, emoji := range []string{"🎉", "👏"} {
		if err := a.surface.React(ctx, channelID, celebration.ID, emoji); err != nil {
			slog.Debug("Failed to react to celebration message", slog.Any("error", err))
		}
	}
	return nil
}
