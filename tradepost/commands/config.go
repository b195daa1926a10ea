package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/tradepost/tradepost-bot/tradepost"
	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/tradepost/tradepost-bot/tradepost/handlers"
)

// Discord snowflakes are 17-19 decimal digits.
var snowflakePattern = regexp.MustCompile(`^\d{17,19}$`)

var SetCommand = discord.SlashCommandCreate{
	Name:        "set",
	Description: "Configure the bot for this server",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "sales_category",
			Description: "Category id where sale channels are created",
		},
		discord.ApplicationCommandOptionString{
			Name:        "seller_role",
			Description: "Role id allowed to open sales",
		},
		discord.ApplicationCommandOptionString{
			Name:        "sold_category",
			Description: "Category id for finished sale channels",
		},
		discord.ApplicationCommandOptionString{
			Name:        "vouch_channel",
			Description: "Channel id where vouches are posted",
		},
	},
}

type ConfigHandler struct {
	bot *tradepost.Bot
}

func NewConfigHandler(b *tradepost.Bot) *ConfigHandler {
	return &ConfigHandler{bot: b}
}

func (h *ConfigHandler) Register(r handler.Router) {
	r.Command("/set", handlers.WrapWithLogging("set", h.HandleSet))
}

func (h *ConfigHandler) HandleSet(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if !isAdmin(event.Member()) {
		return ephemeral(event, "Only administrators can change the configuration.")
	}
	guildID := event.GuildID()
	if guildID == nil {
		return ephemeral(event, "This command only works inside a server.")
	}

	data := event.SlashCommandInteractionData()
	fields := map[string]string{}
	for _, name := range []string{"sales_category", "seller_role", "sold_category", "vouch_channel"} {
		value, ok := data.OptString(name)
		if !ok {
			continue
		}
		if !snowflakePattern.MatchString(value) {
			return ephemeral(event, fmt.Sprintf("`%s` is not a valid id for %s.", value, name))
		}
		fields[name] = value
	}

	if len(fields) == 0 {
		return h.showConfig(ctx, event, guildID.String())
	}

	current, err := h.bot.ServerConfigRepository.Get(ctx, guildID.String())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		current = &models.ServerConfig{GuildID: guildID.String()}
	}

	if v, ok := fields["sales_category"]; ok {
		current.SalesCategoryID = v
	}
	if v, ok := fields["seller_role"]; ok {
		current.SellerRoleID = v
	}
	if v, ok := fields["sold_category"]; ok {
		current.SoldCategoryID = v
	}
	if v, ok := fields["vouch_channel"]; ok {
		current.VouchChannelID = v
	}
	current.UpdatedAt = time.Now()
	current.UpdatedBy = event.User().ID.String()

	if err := h.bot.ServerConfigRepository.Upsert(ctx, current); err != nil {
		return err
	}
	return ephemeral(event, "Configuration updated.")
}

func (h *ConfigHandler) showConfig(ctx context.Context, event *handler.CommandEvent, guildID string) error {
	cfg, err := h.bot.ServerConfigRepository.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ephemeral(event, "Nothing configured yet. Pass at least one option to set it.")
		}
		return err
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("⚙️ Server Configuration").
		AddField("Sales category", orUnset(cfg.SalesCategoryID), true).
		AddField("Seller role", orUnset(cfg.SellerRoleID), true).
		AddField("Sold category", orUnset(cfg.SoldCategoryID), true).
		AddField("Vouch channel", orUnset(cfg.VouchChannelID), true).
		SetFooterText(fmt.Sprintf("Last updated by %s", cfg.UpdatedBy)).
		SetTimestamp(cfg.UpdatedAt).
		Build()

	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{embed},
		Flags:  discord.MessageFlagEphemeral,
	})
}

func orUnset(value string) string {
	if value == "" {
		return "unset"
	}
	return "`" + value + "`"
}
