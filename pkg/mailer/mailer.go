// Package mailer sends participant notifications through the EmailJS REST API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultEndpoint       = "https://api.emailjs.com/api/v1.0/email/send"
	defaultTimeoutSeconds = 30
	maxErrorBody          = 512
)

var (
	ErrNotConfigured = errors.New("mailer is not configured")
	ErrNoRecipient   = errors.New("message has no recipient")
)

// Config holds the EmailJS account parameters.
type Config struct {
	ServiceID   string `yaml:"service_id"`
	TemplateID  string `yaml:"template_id"`
	PublicKey   string `yaml:"public_key"`
	PrivateKey  string `yaml:"private_key"`
	Endpoint    string `yaml:"endpoint"`
	FromName    string `yaml:"from_name"`
	ReplyTo     string `yaml:"reply_to"`
	TimeoutSecs int    `yaml:"timeout_seconds"`
}

// Enabled reports whether the three required EmailJS identifiers are present.
func (c *Config) Enabled() bool {
	return c != nil && c.ServiceID != "" && c.TemplateID != "" && c.PublicKey != ""
}

// Message is one notification to one recipient.
type Message struct {
	ToName     string
	ToEmail    string
	Subject    string
	Body       string
	PackageURL string
	Params     map[string]string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailJS is a Mailer backed by the EmailJS send endpoint.
type EmailJS struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

func NewEmailJS(config Config, logger *slog.Logger) (*EmailJS, error) {
	if !config.Enabled() {
		return nil, ErrNotConfigured
	}

	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}

	timeout := defaultTimeoutSeconds * time.Second
	if config.TimeoutSecs > 0 {
		timeout = time.Duration(config.TimeoutSecs) * time.Second
	}

	return &EmailJS{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("module", "mailer"),
	}, nil
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func (m *EmailJS) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" {
		return ErrNoRecipient
	}

	body, err := json.Marshal(sendRequest{
		ServiceID:      m.config.ServiceID,
		TemplateID:     m.config.TemplateID,
		UserID:         m.config.PublicKey,
		AccessToken:    m.config.PrivateKey,
		TemplateParams: m.templateParams(msg),
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.ToEmail, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			m.logger.WarnContext(ctx, "failed to close email response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &SendError{StatusCode: resp.StatusCode, Detail: string(bytes.TrimSpace(detail))}
	}

	m.logger.DebugContext(ctx, "email sent", "to", msg.ToEmail, "subject", msg.Subject)

	return nil
}

func (m *EmailJS) templateParams(msg Message) map[string]string {
	params := map[string]string{
		"to_name":     msg.ToName,
		"to_email":    msg.ToEmail,
		"subject":     msg.Subject,
		"message":     msg.Body,
		"package_url": msg.PackageURL,
	}

	if m.config.FromName != "" {
		params["from_name"] = m.config.FromName
	}

	if m.config.ReplyTo != "" {
		params["reply_to"] = m.config.ReplyTo
	}

	for k, v := range msg.Params {
		params[k] = v
	}

	return params
}

// SendError is a non-2xx answer of the EmailJS API.
type SendError struct {
	StatusCode int
	Detail     string
}

func (e *SendError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("emailjs returned status %d", e.StatusCode)
	}

	return fmt.Sprintf("emailjs returned status %d: %s", e.StatusCode, e.Detail)
}
