package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/slack-go/slack"
)

func TestAlerting(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Alerting Suite")
}

type fakePoster struct {
	calls   int
	channel string
	err     error
}

func (f *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	return "", "", f.err
}

var _ = Describe("Notifier", func() {
	It("posts a workflow failure alert to the configured channel", func() {
		poster := &fakePoster{}
		n := &Notifier{client: poster, channel: "#curator-ops", log: logr.Discard()}

		n.WorkflowFailed(context.Background(), "curator", "org-1", errors.New("stager: insert batch: constraint violation"))

		Expect(poster.calls).To(Equal(1))
		Expect(poster.channel).To(Equal("#curator-ops"))
	})

	It("posts a failed_safety alert", func() {
		poster := &fakePoster{}
		n := &Notifier{client: poster, channel: "#curator-ops", log: logr.Discard()}

		n.FailedSafety(context.Background(), "org-1", 4)

		Expect(poster.calls).To(Equal(1))
	})

	It("logs without panicking when the Slack call fails", func() {
		poster := &fakePoster{err: errors.New("rate limited")}
		n := &Notifier{client: poster, channel: "#curator-ops", log: logr.Discard()}

		Expect(func() {
			n.WorkflowFailed(context.Background(), "curator", "org-1", errors.New("boom"))
		}).NotTo(Panic())
	})
})
