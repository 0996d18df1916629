package notify

import (
	"context"
	"errors"
	"html"
	"log"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Discord limits message content to 2000 characters.
const discordMaxChars = 2000

var ErrDiscordDisabled = errors.New("discord mirror is not configured")

type channelSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord mirrors alerts into a single Discord channel through the REST API.
type Discord struct {
	sender    channelSender
	channelID string
}

// NewDiscord returns nil when token or channel is empty.
func NewDiscord(token, channelID string) (*Discord, error) {
	token = strings.TrimSpace(token)
	channelID = strings.TrimSpace(channelID)
	if token == "" || channelID == "" {
		return nil, nil
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	log.Printf("Discord mirror enabled for channel %s", channelID)
	return &Discord{sender: dg, channelID: channelID}, nil
}

func (d *Discord) Name() string {
	return "discord"
}

// Send posts an HTML-formatted Telegram message as Discord markdown.
func (d *Discord) Send(ctx context.Context, htmlText string) error {
	if d == nil || d.sender == nil {
		return ErrDiscordDisabled
	}
	_, err := d.sender.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content:         truncate(Markdown(htmlText), discordMaxChars),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return err
}

var (
	markdownReplacer = strings.NewReplacer(
		"<b>", "**", "</b>", "**",
		"<i>", "_", "</i>", "_",
		"<code>", "`", "</code>", "`",
		"<pre>", "```\n", "</pre>", "\n```",
	)
	anyTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// Markdown converts the small HTML subset used by bot messages into Discord markdown.
func Markdown(htmlText string) string {
	out := markdownReplacer.Replace(htmlText)
	out = anyTag.ReplaceAllString(out, "")
	return html.UnescapeString(out)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
