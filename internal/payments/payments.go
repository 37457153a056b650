// Package payments issues transfer requests against the bot's TON wallet and
// verifies them by matching unique comments on incoming transactions.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"tondealbot/internal/models"
	"tondealbot/internal/ton"
)

var ErrNoWallet = errors.New("receiving wallet is not configured")

type Store interface {
	CreatePayment(ctx context.Context, p models.PaymentRequest) error
	PendingPayments(ctx context.Context) ([]models.PaymentRequest, error)
	MarkPaymentPaid(ctx context.Context, id uuid.UUID, txHash string) error
	GetWallet(ctx context.Context) (string, error)
}

type TonAPI interface {
	IncomingTransactions(ctx context.Context, addr string, limit int) ([]ton.Transaction, error)
}

type Notifier interface {
	SendText(userID int64, text string) error
}

type Service struct {
	store    Store
	tonapi   TonAPI
	notifier Notifier
	interval time.Duration
}

func New(store Store, tonapi TonAPI, notifier Notifier, interval time.Duration) *Service {
	return &Service{store: store, tonapi: tonapi, notifier: notifier, interval: interval}
}

// CreateRequest registers a pending payment and returns it together with the
// ton://transfer deep link the user should open.
func (s *Service) CreateRequest(ctx context.Context, userID int64, amountTON float64) (models.PaymentRequest, string, error) {
	if amountTON <= 0 {
		return models.PaymentRequest{}, "", fmt.Errorf("amount must be positive, got %.3f", amountTON)
	}
	wallet, err := s.store.GetWallet(ctx)
	if err != nil {
		return models.PaymentRequest{}, "", err
	}
	if wallet == "" {
		return models.PaymentRequest{}, "", ErrNoWallet
	}

	p := models.NewPaymentRequest(userID, amountTON)
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return models.PaymentRequest{}, "", err
	}
	link := ton.BuildTransferURL(wallet, amountTON, p.Comment)
	return p, link, nil
}

// Watch polls pending payments until the context is cancelled.
func (s *Service) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.CheckPending(ctx); err != nil {
				slog.Warn("Payment check failed", "error", err)
			}
		}
	}
}

// CheckPending fetches recent incoming transactions once and settles every
// pending request whose comment appears with a sufficient amount.
func (s *Service) CheckPending(ctx context.Context) error {
	pending, err := s.store.PendingPayments(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	wallet, err := s.store.GetWallet(ctx)
	if err != nil {
		return err
	}
	if wallet == "" {
		return ErrNoWallet
	}

	txs, err := s.tonapi.IncomingTransactions(ctx, wallet, 50)
	if err != nil {
		return err
	}

	byComment := make(map[string]ton.Transaction, len(txs))
	for _, tx := range txs {
		if c := tx.InMsg.Comment(); c != "" {
			byComment[c] = tx
		}
	}

	for _, p := range pending {
		tx, ok := byComment[p.Comment]
		if !ok {
			continue
		}
		wantNano := int64(math.Round(p.AmountTON * 1e9))
		if tx.InMsg.Value < wantNano {
			slog.Warn("Payment comment matched but amount too low",
				"payment", p.ID, "want_nano", wantNano, "got_nano", tx.InMsg.Value)
			continue
		}
		if err := s.store.MarkPaymentPaid(ctx, p.ID, tx.Hash); err != nil {
			slog.Warn("Failed to mark payment paid", "payment", p.ID, "error", err)
			continue
		}
		slog.Info("Payment confirmed", "payment", p.ID, "user", p.UserID, "tx", tx.Hash)
		if s.notifier != nil {
			text := fmt.Sprintf("✅ Payment of %.3f TON received. Thank you!", p.AmountTON)
			if err := s.notifier.SendText(p.UserID, text); err != nil {
				slog.Warn("Failed to send payment confirmation", "user", p.UserID, "error", err)
			}
		}
	}
	return nil
}
