package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazemadel/accounts/internal/domain"
	pkgkafka "github.com/hazemadel/accounts/pkg/kafka"
)

// Kafka topics for account events. The mailer consumes TopicEmailOTP; other
// services may subscribe to registrations.
const (
	TopicEmailOTP       = "accounts.email.otp"
	TopicUserRegistered = "accounts.user.registered"
)

// OTP delivery purposes, used by the mailer to pick subject and template.
const (
	PurposeConfirmEmail  = "confirm_email"
	PurposeLogin         = "login"
	PurposeTwoStep       = "two_step"
	PurposePasswordReset = "password_reset"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAccounts = "accounts"

// EmailOTPData is the payload for an email.otp delivery event. It carries the
// plaintext code; only the hashed form is ever persisted.
type EmailOTPData struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	OTP     string `json:"otp"`
	Purpose string `json:"purpose"`
}

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Provider  string `json:"provider"`
}

// Producer publishes account events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishEmailOTP publishes an email.otp delivery event. Delivery is fire and
// forget from the caller's perspective; the mailer owns retries.
func (p *Producer) PublishEmailOTP(ctx context.Context, userID string, data EmailOTPData) error {
	event, err := pkgkafka.NewEvent(TopicEmailOTP, userID, AggregateTypeUser, SourceAccounts, data)
	if err != nil {
		return fmt.Errorf("create email.otp event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicEmailOTP, event); err != nil {
		return fmt.Errorf("publish email.otp event: %w", err)
	}

	p.logger.DebugContext(ctx, "published email.otp event",
		slog.String("user_id", userID),
		slog.String("purpose", data.Purpose),
	)

	return nil
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		Provider:  string(user.Provider),
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAccounts, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}
