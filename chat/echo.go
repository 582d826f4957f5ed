package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/contact-bot/markup"
)

// lines splits an outbound text into the messages that are actually posted.
// Neither transport can carry a newline inside one message.
func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// echo builds the self-authored event for a line the bot just posted.
func echo(self User, line string) Event {
	return Posted(Message{
		ID:      uuid.NewString(),
		Author:  self,
		Content: markup.Render(line),
		Sent:    time.Now().UTC(),
	})
}
