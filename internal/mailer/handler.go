package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazemadel/accounts/internal/event"
	pkgkafka "github.com/hazemadel/accounts/pkg/kafka"
)

// Handler routes incoming account events to email delivery.
type Handler struct {
	sender Sender
	logger *slog.Logger
}

// NewHandler creates an event handler backed by the given sender.
func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *Handler) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	switch evt.EventType {
	case event.TopicEmailOTP:
		return h.handleEmailOTP(ctx, evt)
	case event.TopicUserRegistered:
		return h.handleUserRegistered(ctx, evt)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}
}

func (h *Handler) handleEmailOTP(ctx context.Context, evt *pkgkafka.Event) error {
	var data event.EmailOTPData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return fmt.Errorf("unmarshal email.otp payload: %w", err)
	}
	if data.Email == "" || data.OTP == "" {
		return fmt.Errorf("email.otp payload missing email or code (event %s)", evt.EventID)
	}

	subject := data.Subject
	if subject == "" {
		subject = otpSubject(data.Purpose)
	}

	msg := Message{
		To:       data.Email,
		Subject:  subject,
		TextBody: otpBody(data.Purpose, data.OTP),
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("deliver otp mail: %w", err)
	}

	h.logger.InfoContext(ctx, "otp mail sent",
		slog.String("event_id", evt.EventID),
		slog.String("purpose", data.Purpose),
		slog.String("channel", h.sender.Name()),
	)
	return nil
}

func (h *Handler) handleUserRegistered(ctx context.Context, evt *pkgkafka.Event) error {
	var data event.UserRegisteredData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return fmt.Errorf("unmarshal user.registered payload: %w", err)
	}
	if data.Email == "" {
		return fmt.Errorf("user.registered payload missing email (event %s)", evt.EventID)
	}

	name := data.FirstName
	if name == "" {
		name = "there"
	}
	msg := Message{
		To:      data.Email,
		Subject: "Welcome",
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nYour account has been created. "+
				"Confirm your email with the code we sent you to start signing in.\n", name),
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("deliver welcome mail: %w", err)
	}

	h.logger.InfoContext(ctx, "welcome mail sent",
		slog.String("event_id", evt.EventID),
		slog.String("user_id", data.ID),
	)
	return nil
}

// otpSubject picks a subject line when the event carries none.
func otpSubject(purpose string) string {
	switch purpose {
	case event.PurposeConfirmEmail:
		return "Confirm your email"
	case event.PurposeLogin:
		return "Your sign-in code"
	case event.PurposeTwoStep:
		return "Enable two-step verification"
	case event.PurposePasswordReset:
		return "Reset your password"
	default:
		return "Your verification code"
	}
}

// otpBody composes the plain-text body for a one-time code.
func otpBody(purpose, otp string) string {
	switch purpose {
	case event.PurposeLogin, event.PurposeTwoStep:
		return fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.\n", otp)
	default:
		return fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.\n", otp)
	}
}

// NewConsumers creates Kafka consumers for every topic the mailer subscribes to.
func NewConsumers(brokers []string, groupID string, handler *Handler, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := []string{
		event.TopicEmailOTP,
		event.TopicUserRegistered,
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}
		consumers = append(consumers, pkgkafka.NewConsumer(cfg, handler.Handle, logger))
	}

	return consumers
}
