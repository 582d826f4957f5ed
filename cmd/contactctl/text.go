package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/command"
	"github.com/onnwee/contact-bot/markup"
)

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format [rich text]",
		Short: "Convert rich text (HTML-like tags) to chat markdown",
		Long: `Convert rich text such as "<b>tree</b>" to chat markdown ("**tree**").
With no argument each line of stdin is converted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(cmd, args, markup.Format)
		},
	}
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [markdown]",
		Short: "Convert chat markdown to rich text",
		Long: `Convert chat markdown such as "**tree**" to the rich text the bot
matches commands and clues against. With no argument each line of stdin is
converted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(cmd, args, markup.Render)
		},
	}
}

// eachInput applies conv to the joined args, or to every stdin line when no
// args are given.
func eachInput(cmd *cobra.Command, args []string, conv func(string) string) error {
	out := cmd.OutOrStdout()
	if len(args) > 0 {
		_, err := fmt.Fprintln(out, conv(strings.Join(args, " ")))
		return err
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if _, err := fmt.Fprintln(out, conv(sc.Text())); err != nil {
			return err
		}
	}
	return sc.Err()
}

func newClassifyCmd() *cobra.Command {
	var self, unstarred bool
	cmd := &cobra.Command{
		Use:   "classify <markdown>",
		Short: "Show the intent the referee assigns to a message",
		Example: `  contactctl classify '!!start c'
  contactctl classify --self '1 (bob): **tree**'
  contactctl classify --self --unstarred '2 (alice): **dog**'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := chat.Message{ID: "cli", Content: markup.Render(strings.Join(args, " "))}
			ev := chat.Posted(msg)
			if unstarred {
				ev = chat.StarRemoved(msg)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), describeIntent(command.Classify(ev, self)))
			return err
		},
	}
	cmd.Flags().BoolVar(&self, "self", false, "treat the message as posted by the bot")
	cmd.Flags().BoolVar(&unstarred, "unstarred", false, "classify a star removal on the message instead of a post")
	return cmd
}

func describeIntent(in command.Intent) string {
	parts := []string{in.Kind.String()}
	if in.Letter != "" {
		parts = append(parts, "letter="+in.Letter)
	}
	if in.Number != 0 {
		parts = append(parts, "number="+strconv.Itoa(in.Number))
	}
	if in.Text != "" {
		parts = append(parts, "text="+strconv.Quote(in.Text))
	}
	return strings.Join(parts, " ")
}
