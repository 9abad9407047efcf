package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"project":{{ json .Project }},"workflow":{{ json .Workflow }},"status":{{ json .Status }},"summary":{{ json . }}}`

// WebhookNotifier posts a templated JSON body to a generic webhook. The
// template is executed with the Summary as its data.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *poster
}

// NewWebhookNotifier parses tmpl, or the default body when tmpl is empty.
// It returns nil when webhookURL is empty.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL, tmpl string, opts ...Option) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{"json": jsonValue}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}
	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newPoster(logger, "webhook", webhookURL, opts),
	}, nil
}

func jsonValue(v any) (string, error) {
	encoded, err := json.Marshal(v)
	return string(encoded), err
}

// Notify implements Notifier. A nil notifier does nothing.
func (n *WebhookNotifier) Notify(ctx context.Context, summary Summary) error {
	if n == nil {
		return nil
	}

	var body bytes.Buffer
	if err := n.template.Execute(&body, summary); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}
	if err := n.poster.post(ctx, body.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().Str("workflow", summary.Workflow).Str("status", summary.Status()).Msg("webhook summary sent")
	return nil
}
