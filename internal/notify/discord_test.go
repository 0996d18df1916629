package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	channel string
	sent    []*discordgo.MessageSend
	err     error
}

func (r *recordingSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.channel = channelID
	r.sent = append(r.sent, data)
	return &discordgo.Message{}, r.err
}

func TestMarkdown(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"bold and code", "🚨 <b>Alert</b>\n<code>HTTP 500</code>", "🚨 **Alert**\n`HTTP 500`"},
		{"pre block", "<b>stdout</b>\n<pre>ok</pre>", "**stdout**\n```\nok\n```"},
		{"escaped entities", "<code>a &lt; b &amp;&amp; c</code>", "`a < b && c`"},
		{"unknown tags dropped", `<a href="x">link</a>`, "link"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Markdown(tc.in))
		})
	}
}

func TestNewDiscord_DisabledWithoutCredentials(t *testing.T) {
	d, err := NewDiscord("", "123")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = NewDiscord("token", " ")
	require.NoError(t, err)
	assert.Nil(t, d)

	var nilMirror *Discord
	assert.ErrorIs(t, nilMirror.Send(context.Background(), "x"), ErrDiscordDisabled)
}

func TestDiscord_Send(t *testing.T) {
	sender := &recordingSender{}
	d := &Discord{sender: sender, channelID: "42"}

	require.NoError(t, d.Send(context.Background(), "✅ <b>BACKEND ВОССТАНОВЛЕН</b>"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "42", sender.channel)
	assert.Equal(t, "✅ **BACKEND ВОССТАНОВЛЕН**", sender.sent[0].Content)
	assert.NotNil(t, sender.sent[0].AllowedMentions)
}

func TestDiscord_SendTruncatesAndReportsErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("rate limited")}
	d := &Discord{sender: sender, channelID: "42"}

	err := d.Send(context.Background(), strings.Repeat("я", 2500))
	assert.EqualError(t, err, "rate limited")
	require.Len(t, sender.sent, 1)
	assert.Len(t, []rune(sender.sent[0].Content), discordMaxChars)
	assert.True(t, strings.HasSuffix(sender.sent[0].Content, "…"))
}
