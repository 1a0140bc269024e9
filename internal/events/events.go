package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

const (
	SubjectPostResultPrefix = "posts.result."
	SubjectReauthRequired   = "accounts.reauth_required"
)

// Publisher emits best-effort notifications. Failures are logged, never
// returned, so publishing outcomes do not depend on the broker.
type Publisher interface {
	PostResult(ctx context.Context, result *models.PostResult)
	ReauthRequired(ctx context.Context, account *models.SocialAccount, reason string)
}

type ReauthRequiredEvent struct {
	AccountID   int64           `json:"accountId"`
	WorkspaceID int64           `json:"workspaceId"`
	Platform    models.Platform `json:"platform"`
	AccountName string          `json:"accountName"`
	Reason      string          `json:"reason"`
	At          time.Time       `json:"at"`
}

type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

type NatsPublisher struct {
	nc  Conn
	log *zap.Logger
}

func NewNatsPublisher(nc Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc, log: logging.WithComponent("events")}
}

func (p *NatsPublisher) PostResult(ctx context.Context, result *models.PostResult) {
	p.publish(ctx, SubjectPostResultPrefix+string(result.Status), result)
}

func (p *NatsPublisher) ReauthRequired(ctx context.Context, account *models.SocialAccount, reason string) {
	p.publish(ctx, SubjectReauthRequired, ReauthRequiredEvent{
		AccountID:   account.ID,
		WorkspaceID: account.WorkspaceID,
		Platform:    account.Platform,
		AccountName: account.AccountName,
		Reason:      reason,
		At:          time.Now(),
	})
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		p.log.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}

type NoopPublisher struct{}

func (NoopPublisher) PostResult(context.Context, *models.PostResult) {}

func (NoopPublisher) ReauthRequired(context.Context, *models.SocialAccount, string) {}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("publish-engine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}
