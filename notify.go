package main

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

// Notifier posts one-line review notices to a Slack channel. A nil Notifier
// (or one built without a token) is a no-op, so call sites never guard.
type Notifier struct {
	api       *slack.Client
	channelID string
}

func NewNotifier(cfg Config) *Notifier {
	if cfg.SlackBotToken == "" {
		return nil
	}
	return &Notifier{
		api:       slack.New(cfg.SlackBotToken),
		channelID: cfg.ReportChannelID,
	}
}

func (n *Notifier) post(text string) {
	if n == nil || n.api == nil || n.channelID == "" {
		return
	}
	_, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("notify post error: %v", err)
	}
}

func (n *Notifier) NotifyCompleted(sub Submission, result ReviewResult) {
	n.post(fmt.Sprintf("Review completed: %q [%s] %.1f/10 (%s)", sub.Title, result.Domain, result.Score, result.Decision))
}

func (n *Notifier) NotifyFailed(sub Submission, reason string) {
	n.post(fmt.Sprintf("Review failed: %q (%s)", sub.Title, reason))
}
