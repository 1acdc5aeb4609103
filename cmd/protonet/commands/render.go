// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/messaging"
)

const timeLayout = "2006-01-02 15:04"

func renderProfile(output *cli.Output, me *messaging.Me, baseURL string) {
	styles := output.Styles
	output.Printf("%s %s\n", styles.Author.Render(me.Name), styles.Muted.Render(fmt.Sprintf("(id %d)", me.ID)))
	if me.Username != "" {
		output.Printf("  username  %s\n", me.Username)
	}
	if me.Email != "" {
		output.Printf("  email     %s\n", me.Email)
	}
	output.Printf("  box       %s\n", styles.Link.Render(baseURL))
	if me.PrivateChatsURL != "" {
		output.Printf("  chats     %s\n", styles.Link.Render(me.PrivateChatsURL))
	}
}

func renderChats(output *cli.Output, chats []messaging.PrivateChat) {
	if len(chats) == 0 {
		output.Printf("%s\n", output.Styles.Muted.Render("No conversations."))
		return
	}
	styles := output.Styles
	writer := tabwriter.NewWriter(output.Writer, 2, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
		styles.Title.Render("ID"), styles.Title.Render("WITH"), styles.Title.Render("LAST"), styles.Title.Render("MEEPS URL"))
	for _, chat := range chats {
		with := "-"
		if chat.OtherUser != nil {
			with = chat.OtherUser.Name
		}
		last := ""
		if chat.LastMeep != nil {
			last = summarize(chat.LastMeep.Message, 40)
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", chat.ID, with, last, chat.MeepsURL)
	}
	writer.Flush()
}

func renderMeeps(output *cli.Output, meeps []messaging.Meep) {
	if len(meeps) == 0 {
		output.Printf("%s\n", output.Styles.Muted.Render("No messages."))
		return
	}
	styles := output.Styles
	for _, meep := range meeps {
		author := "?"
		if meep.User != nil {
			author = meep.User.Name
		}
		output.Printf("%s %s %s\n",
			styles.Muted.Render(formatTime(meep.CreatedAt)),
			styles.Author.Render(author),
			styles.Muted.Render(fmt.Sprintf("#%d", meep.ID)))
		if meep.Message != "" {
			for line := range strings.SplitSeq(meep.Message, "\n") {
				output.Printf("  %s\n", line)
			}
		}
		for _, file := range meep.Files {
			output.Printf("  [%s %s, %d bytes] %s\n", file.Name, file.ContentType, file.Size, styles.Link.Render(file.URL))
		}
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "----------------"
	}
	return value.Local().Format(timeLayout)
}

// summarize returns the first line of text cut to limit runes.
func summarize(text string, limit int) string {
	line, _, _ := strings.Cut(text, "\n")
	runes := []rune(line)
	if len(runes) <= limit {
		return line
	}
	return string(runes[:limit-1]) + "…"
}
