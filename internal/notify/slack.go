package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	slackMaxBlocks = 50
	// header, context and failure sections precede the step list in each message
	slackReservedBlocks = 3
	slackMaxSteps       = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts Block Kit run summaries to an incoming webhook.
type SlackNotifier struct {
	logger zerolog.Logger
	poster *poster
}

// NewSlackNotifier returns a Slack notifier, or a noop notifier when webhookURL is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...Option) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured")
	}
	return &SlackNotifier{
		logger: logger,
		poster: newPoster(logger, "slack", webhookURL, opts),
	}
}

// Notify implements Notifier. Summaries with more steps than one message can
// hold are split into numbered parts sent in order.
func (n *SlackNotifier) Notify(ctx context.Context, summary Summary) error {
	messages := buildSlackMessages(summary)
	for i, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		if err := n.poster.post(ctx, payload); err != nil {
			return fmt.Errorf("slack part %d/%d: %w", i+1, len(messages), err)
		}
	}

	n.logger.Debug().
		Str("workflow", summary.Workflow).
		Int("messages", len(messages)).
		Msg("slack summary sent")
	return nil
}

func buildSlackMessages(summary Summary) []slack.WebhookMessage {
	if len(summary.Steps) <= slackMaxSteps {
		return []slack.WebhookMessage{buildSlackMessage(summary, summary.Steps, 1, 1)}
	}
	parts := (len(summary.Steps) + slackMaxSteps - 1) / slackMaxSteps
	messages := make([]slack.WebhookMessage, 0, parts)
	for steps := range slices.Chunk(summary.Steps, slackMaxSteps) {
		messages = append(messages, buildSlackMessage(summary, steps, len(messages)+1, parts))
	}
	return messages
}

func buildSlackMessage(summary Summary, steps []StepLine, part, parts int) slack.WebhookMessage {
	title := fmt.Sprintf("%s %s %s", summary.Project, summary.Workflow, summary.Status())
	if parts > 1 {
		title += fmt.Sprintf(" (part %d/%d)", part, parts)
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false)),
		slack.NewContextBlock("",
			markdown(fmt.Sprintf("Workflow: *%s*", summary.Workflow)),
			markdown(fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Millisecond))),
			markdown(fmt.Sprintf("Steps: %d", len(summary.Steps))),
		),
	}
	if !summary.Succeeded && part == 1 {
		blocks = append(blocks, failureBlock(summary))
	}
	for _, step := range steps {
		blocks = append(blocks, stepBlock(step))
	}

	return slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func failureBlock(summary Summary) slack.Block {
	kind := summary.Kind
	if kind == "" {
		kind = "UNKNOWN"
	}
	var fields []*slack.TextBlockObject
	if summary.Detail != "" {
		fields = append(fields, markdown("*Detail:*\n```"+summary.Detail+"```"))
	}
	return slack.NewSectionBlock(markdown(fmt.Sprintf("*Failed at* `%s` (%s)", summary.FailedStep, kind)), fields, nil)
}

func stepBlock(step StepLine) slack.Block {
	icon := ":x:"
	switch step.Outcome {
	case "success":
		icon = ":white_check_mark:"
	case "skipped":
		icon = ":fast_forward:"
	}
	line := fmt.Sprintf("%s *%s* `%s`", icon, step.Name, step.Outcome)
	if step.Outcome == "skipped" && step.Detail != "" {
		line += " - " + step.Detail
	}
	return slack.NewSectionBlock(markdown(line), nil, nil)
}
