package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const discordLimit = 2000

type DiscordGateway struct {
	Session *discordgo.Session
}

func NewDiscordGateway(token string) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	return &DiscordGateway{Session: s}, nil
}

func (dg *DiscordGateway) Start(ctx context.Context, h Handler) error {
	remove := dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		log.Printf("[%s] %s", m.Author.Username, m.Content)
		h.Handle(ctx, Message{
			ChatID: m.ChannelID,
			Owner:  "discord:" + m.Author.ID,
			Text:   m.Content,
		})
	})
	defer remove()

	if err := dg.Session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Printf("Connected to Discord as %s", dg.Session.State.User.Username)

	<-ctx.Done()
	return nil
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	for _, part := range chunks(text, discordLimit) {
		if _, err := dg.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
