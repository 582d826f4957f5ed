package game

import (
	"fmt"
	"strings"

	"github.com/onnwee/contact-bot/command"
)

// Fixed texts posted by the bot, in chat markdown.
const (
	StartPrompt    = "Type `!!start <letter>` to begin"
	ResetPrompt    = "Type `!!start <letter>` to begin, or `!!help` for a list of commands"
	ResettingText  = "Resetting..."
	ShutdownText   = "Shutting down..."
	OnlineNoticeMD = command.OnlineNoticeMarkdown
)

// HelpText is posted for !!help.
const HelpText = "**Defender**:\n" +
	"To start a game, type `!!start <letter>`.\n" +
	"To reveal a letter, type `!!add <letter>`.\n" +
	"To end the game, type `!!reset`.\n" +
	"**Attackers**:\n" +
	"All clues should be in bold. The bot will automatically assign a number to the clue.\n" +
	"**Everyone**:\n" +
	"To unstar a clue, type `!!unstar <number>`.\n" +
	"To disable the bot, type `!!shutdown`.\n" +
	"To see this message again, type `!!help`."

func defendingText(name string, letters []string) string {
	return fmt.Sprintf("%s defending **%s**", name, strings.Join(letters, " "))
}

func clueText(n int, author, clue string) string {
	return fmt.Sprintf("%d (%s): **%s**", n, author, clue)
}
