// Package commands holds the slash command definitions and their handlers.
// Commands are thin: they validate input, call into the engine and render
// the result. All durable state lives behind the managers.
package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	AuctionCommand,
	GiveawayCommand,
	SetCommand,
	VouchCommand,
	SellerStatsCommand,
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
