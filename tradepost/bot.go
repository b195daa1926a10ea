package tradepost

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/tradepost/tradepost-bot/tradepost/auction"
	"github.com/tradepost/tradepost-bot/tradepost/database"
	"github.com/tradepost/tradepost-bot/tradepost/database/repositories"
	"github.com/tradepost/tradepost-bot/tradepost/giveaway"
	"github.com/tradepost/tradepost-bot/tradepost/surface"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	AuctionRepository      repositories.AuctionRepository
	GiveawayRepository     repositories.GiveawayRepository
	ServerConfigRepository repositories.ServerConfigRepository
	VouchRepository        repositories.VouchRepository

	Surface         *surface.Rest
	AuctionManager  *auction.Manager
	AuctionNotifier *auction.Notifier
	GiveawayManager *giveaway.Manager
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	b.Surface.SetClient(client)
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("TradePost bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the marketplace"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
