package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/elitehs/auth-service/pkg/kafka"
)

// Kafka topic constants for auth lifecycle events.
const (
	TopicUserRegistered    = "auth.user.registered"
	TopicUserVerified      = "auth.user.verified"
	TopicUserPasswordReset = "auth.user.password_reset"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for an auth.user.registered event.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// UserVerifiedData is the payload for an auth.user.verified event.
type UserVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserPasswordResetData is the payload for an auth.user.password_reset event.
type UserPasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Producer publishes auth lifecycle events to Kafka. A nil Producer drops
// events silently, so event publication stays optional in development.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes an auth.user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, userID, email, role string) error {
	return p.publish(ctx, TopicUserRegistered, userID, UserRegisteredData{
		UserID: userID,
		Email:  email,
		Role:   role,
	})
}

// PublishUserVerified publishes an auth.user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, userID, email string) error {
	return p.publish(ctx, TopicUserVerified, userID, UserVerifiedData{
		UserID: userID,
		Email:  email,
	})
}

// PublishUserPasswordReset publishes an auth.user.password_reset event.
func (p *Producer) PublishUserPasswordReset(ctx context.Context, userID, email string) error {
	return p.publish(ctx, TopicUserPasswordReset, userID, UserPasswordResetData{
		UserID: userID,
		Email:  email,
	})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	ev, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published lifecycle event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)

	return nil
}
