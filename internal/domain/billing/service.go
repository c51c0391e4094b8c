package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pixelmint/pixelmint-api/internal/domain/credit"
	"github.com/pixelmint/pixelmint-api/internal/pkg/stripe"
)

// dedupTTL bounds the Redis fast-path key; the payment_events table is
// the durable authority.
const dedupTTL = 72 * time.Hour

// CheckoutClient creates hosted checkout sessions
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (*stripe.CheckoutSessionResponse, error)
}

// Service handles checkout and payment webhooks
type Service struct {
	repo          Repository
	checkout      CheckoutClient
	redis         *redis.Client // nil disables the dedup fast path
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewService creates billing service
func NewService(repo Repository, checkout CheckoutClient, redis *redis.Client, webhookSecret, successURL, cancelURL string) *Service {
	return &Service{
		repo:          repo,
		checkout:      checkout,
		redis:         redis,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// CheckoutResult carries the redirect target for a created session
type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateCheckout creates a hosted checkout session for one credit package.
// The metadata round-trips through the webhook and drives crediting.
func (s *Service) CreateCheckout(ctx context.Context, userID uuid.UUID, packageID string) (*CheckoutResult, error) {
	pkg, ok := FindPackage(packageID)
	if !ok {
		return nil, ErrPackageNotFound
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		ProductName: fmt.Sprintf("%s (%d credits)", pkg.Name, pkg.Credits),
		Description: pkg.Description,
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
		Quantity:    1,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
		Metadata: map[string]string{
			"userId":    userID.String(),
			"credits":   strconv.FormatInt(pkg.Credits, 10),
			"packageId": pkg.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// HandleWebhook verifies and processes one raw webhook delivery. Nothing
// is mutated before the signature checks out.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := stripe.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != stripe.EventCheckoutSessionCompleted {
		// acknowledged and dropped
		return nil
	}

	session, err := event.CheckoutSession()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}
	if session.PaymentStatus != "paid" {
		return nil
	}

	return s.handleCheckoutCompleted(ctx, session)
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID, err := uuid.Parse(session.Metadata["userId"])
	if err != nil {
		return fmt.Errorf("%w: bad userId %q", ErrBadMetadata, session.Metadata["userId"])
	}
	credits, err := strconv.ParseInt(session.Metadata["credits"], 10, 64)
	if err != nil || credits <= 0 {
		return fmt.Errorf("%w: bad credits %q", ErrBadMetadata, session.Metadata["credits"])
	}
	packageID := session.Metadata["packageId"]

	// fast path: most replays die here without a DB round trip
	claimed := false
	if ok, err := s.claimSession(ctx, session.ID); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("redis dedup unavailable, relying on db")
	} else if !ok {
		return nil
	} else {
		claimed = true
	}

	// authority: the unique insert and the credit commit together, so a
	// transient failure leaves nothing behind and the retry can credit
	balance, err := s.repo.RecordPurchase(ctx, session.ID, userID, packageID, credits,
		fmt.Sprintf("Purchased %s package", packageID),
		credit.Meta{PackageID: packageID, SessionID: session.ID})
	if err != nil {
		if errors.Is(err, ErrEventProcessed) {
			return nil
		}
		if claimed {
			s.releaseSession(ctx, session.ID)
		}
		return fmt.Errorf("record purchase for session %s: %w", session.ID, err)
	}

	log.Info().
		Str("session_id", session.ID).
		Str("user_id", userID.String()).
		Str("package_id", packageID).
		Int64("credits", credits).
		Int64("balance", balance).
		Msg("checkout completed, credits added")

	return nil
}

// claimSession returns false when another delivery already claimed the id
func (s *Service) claimSession(ctx context.Context, sessionID string) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	return s.redis.SetNX(ctx, "stripe:session:"+sessionID, 1, dedupTTL).Result()
}

// releaseSession frees a claimed id after a failed purchase so the
// sender's retry is not short-circuited by the fast path
func (s *Service) releaseSession(ctx context.Context, sessionID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, "stripe:session:"+sessionID).Err(); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to release dedup claim")
	}
}
