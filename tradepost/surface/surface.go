// Package surface abstracts the messaging platform behind a small interface
// so the engine, notifier and reconciler never touch the Discord client
// directly.
package surface

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

type Surface interface {
	Channel(ctx context.Context, channelID snowflake.ID) (discord.Channel, error)
	Message(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error)
	Send(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (*discord.Message, error)
	Edit(ctx context.Context, channelID, messageID snowflake.ID, update discord.MessageUpdate) (*discord.Message, error)
	Delete(ctx context.Context, channelID, messageID snowflake.ID) error
	React(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error
	CreateChannel(ctx context.Context, guildID snowflake.ID, create discord.GuildChannelCreate) (discord.GuildChannel, error)
}

// Rest is the disgo-backed Surface. The client is attached after setup
// because the managers are built before the gateway client exists.
type Rest struct {
	mu     sync.RWMutex
	client bot.Client
}

func NewRest() *Rest {
	return &Rest{}
}

func (s *Rest) SetClient(client bot.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

func (s *Rest) rest() (rest.Rest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("discord client not initialized")
	}
	return s.client.Rest(), nil
}

func (s *Rest) Channel(ctx context.Context, channelID snowflake.ID) (discord.Channel, error) {
	r, err := s.rest()
	if err != nil {
		return nil, err
	}
	return r.GetChannel(channelID, rest.WithCtx(ctx))
}

func (s *Rest) Message(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error) {
	r, err := s.rest()
	if err != nil {
		return nil, err
	}
	return r.GetMessage(channelID, messageID, rest.WithCtx(ctx))
}

func (s *Rest) Send(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (*discord.Message, error) {
	r, err := s.rest()
	if err != nil {
		return nil, err
	}
	return r.CreateMessage(channelID, message, rest.WithCtx(ctx))
}

func (s *Rest) Edit(ctx context.Context, channelID, messageID snowflake.ID, update discord.MessageUpdate) (*discord.Message, error) {
	r, err := s.rest()
	if err != nil {
		return nil, err
	}
	return r.UpdateMessage(channelID, messageID, update, rest.WithCtx(ctx))
}

func (s *Rest) Delete(ctx context.Context, channelID, messageID snowflake.ID) error {
	r, err := s.rest()
	if err != nil {
		return err
	}
	return r.DeleteMessage(channelID, messageID, rest.WithCtx(ctx))
}

func (s *Rest) React(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error {
	r, err := s.rest()
	if err != nil {
		return err
	}
	return r.AddReaction(channelID, messageID, emoji, rest.WithCtx(ctx))
}

func (s *Rest) CreateChannel(ctx context.Context, guildID snowflake.ID, create discord.GuildChannelCreate) (discord.GuildChannel, error) {
	r, err := s.rest()
	if err != nil {
		return nil, err
	}
	return r.CreateGuildChannel(guildID, create, rest.WithCtx(ctx))
}
