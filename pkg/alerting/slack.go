// Package alerting notifies operators of terminal curator workflow
// failures over Slack (spec §7's "failed workflow surfaces as a log record
// and alert" user-visible behavior).
package alerting

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/slack-go/slack"
)

// poster is the subset of *slack.Client the notifier needs, narrowed so
// tests can substitute a fake instead of hitting the Slack API.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts ops alerts for failed workflow runs.
type Notifier struct {
	client  poster
	channel string
	log     logr.Logger
}

// New builds a Notifier that posts to channel using token.
func New(token, channel string, log logr.Logger) *Notifier {
	return &Notifier{client: slack.New(token), channel: channel, log: log}
}

// WorkflowFailed posts an alert for a curator or refinement workflow that
// reached a terminal failed status.
func (n *Notifier) WorkflowFailed(ctx context.Context, kind, key string, cause error) {
	attachment := slack.Attachment{
		Color: "danger",
		Title: fmt.Sprintf("%s workflow failed", kind),
		Text:  cause.Error(),
		Fields: []slack.AttachmentField{
			{Title: "Workflow key", Value: key, Short: true},
		},
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		n.log.Error(err, "failed to post workflow failure alert", "workflow_kind", kind, "workflow_key", key)
	}
}

// FailedSafety posts a lower-severity alert for a curation run that exited
// failed_safety (every proposed action was removed by the safety reviewer),
// which is an operational signal worth watching but not a hard failure.
func (n *Notifier) FailedSafety(ctx context.Context, organizationID string, actionsCount int) {
	attachment := slack.Attachment{
		Color: "warning",
		Title: "Curator run exited failed_safety",
		Text:  fmt.Sprintf("All %d proposed actions were removed by safety review", actionsCount),
		Fields: []slack.AttachmentField{
			{Title: "Organization", Value: organizationID, Short: true},
		},
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		n.log.Error(err, "failed to post failed_safety alert", "organization_id", organizationID)
	}
}
