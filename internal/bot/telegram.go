package bot

import (
	"context"

	"github.com/ashureev/vcsearch/internal/telegram"
)

// TelegramChannel adapts a Bot API client to Channel.
type TelegramChannel struct {
	Client *telegram.Client
}

// Send implements Channel.
func (c TelegramChannel) Send(ctx context.Context, chatID, text string) error {
	return c.Client.SendMessage(ctx, chatID, text)
}

// SetCommands implements Channel.
func (c TelegramChannel) SetCommands(ctx context.Context, commands []Command) error {
	out := make([]telegram.BotCommand, len(commands))
	for i, cmd := range commands {
		out[i] = telegram.BotCommand{Command: cmd.Name, Description: cmd.Description}
	}
	return c.Client.SetCommands(ctx, out)
}
