package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/tradepost/tradepost-bot/tradepost"
	"github.com/tradepost/tradepost-bot/tradepost/auction"
	"github.com/tradepost/tradepost-bot/tradepost/commands"
	"github.com/tradepost/tradepost-bot/tradepost/database"
	"github.com/tradepost/tradepost-bot/tradepost/database/repositories"
	"github.com/tradepost/tradepost-bot/tradepost/giveaway"
	"github.com/tradepost/tradepost-bot/tradepost/logger"
	"github.com/tradepost/tradepost-bot/tradepost/reconcile"
	"github.com/tradepost/tradepost-bot/tradepost/surface"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler()))

	slog.Info("Starting TradePost Discord Bot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := tradepost.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	b := tradepost.New(*cfg, version, commit)
	b.DB = db

	b.AuctionRepository = repositories.NewAuctionRepository(db.BunDB())
	b.GiveawayRepository = repositories.NewGiveawayRepository(db.BunDB())
	b.ServerConfigRepository = repositories.NewServerConfigRepository(db.BunDB())
	b.VouchRepository = repositories.NewVouchRepository(db.BunDB())

	b.Surface = surface.NewRest()
	b.AuctionManager = auction.NewManager(b.AuctionRepository)
	b.AuctionNotifier = auction.NewNotifier(b.Surface, b.AuctionManager)
	b.GiveawayManager = giveaway.NewManager(b.GiveawayRepository)
	b.GiveawayManager.SetAnnouncer(commands.NewGiveawayAnnouncer(b.Surface))
	defer b.GiveawayManager.Shutdown()

	h := handler.New()
	commands.NewAuctionHandler(b).Register(h)
	commands.NewGiveawayHandler(b).Register(h)
	commands.NewConfigHandler(b).Register(h)
	commands.NewVouchHandler(b).Register(h)

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	// Rebuild the auction cache and giveaway timers before the gateway
	// opens so no interaction can observe a half-restored state.
	reconciler := reconcile.New(b.AuctionRepository, b.GiveawayRepository, b.AuctionManager, b.GiveawayManager, b.Surface)
	if err := reconciler.Run(ctx, time.Now()); err != nil {
		slog.Error("Startup reconciliation failed",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
		os.Exit(-1)
	}

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("error_details", fmt.Sprintf("%+v", err)),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
