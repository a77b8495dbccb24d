// AngelaMos | 2026
// mailer.go

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/carterperez-dev/saas-metrics/internal/config"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const subject = "Your temporary password"

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPMailer posts temporary credentials to a transactional mail API.
type HTTPMailer struct {
	client  *resty.Client
	from    string
	timeout time.Duration
	ttl     time.Duration
}

func NewHTTPMailer(cfg config.NotifierConfig, credentialTTL time.Duration) *HTTPMailer {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPMailer{
		client:  client,
		from:    cfg.From,
		timeout: cfg.Timeout,
		ttl:     credentialTTL,
	}
}

func (m *HTTPMailer) SendTemporaryCredential(
	ctx context.Context,
	toEmail, name, secret string,
) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(message{
			From:    m.from,
			To:      toEmail,
			Subject: subject,
			Text:    body(name, secret, m.ttl),
		}).
		Post("")
	if err != nil {
		return fmt.Errorf("%w: send mail: %w", core.ErrNotifier, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: mail api returned %d", core.ErrNotifier, resp.StatusCode())
	}

	return nil
}

// LogMailer writes the credential to the log instead of sending it. It is
// meant for local development only.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendTemporaryCredential(
	ctx context.Context,
	toEmail, name, secret string,
) error {
	m.logger.InfoContext(ctx, "temporary credential issued",
		"to", toEmail,
		"name", name,
		"secret", secret,
	)
	return nil
}

func body(name, secret string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Hello %s,\n\nYour temporary password is %s. It expires in %s and works once.\n",
		name, secret, ttl,
	)
}
