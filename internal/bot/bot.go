// Package bot is the Telegram command layer for scanner configuration and
// payments.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"tondealbot/internal/models"
	"tondealbot/internal/payments"
	"tondealbot/internal/ton"
)

type Store interface {
	GetOrCreateScannerSettings(ctx context.Context, userID int64) (models.UserScannerSettings, error)
	UpdateScannerSettings(ctx context.Context, settings models.UserScannerSettings) error
	SetScannerEnabled(ctx context.Context, userID int64, enabled bool) error
	SetWallet(ctx context.Context, address string) error
	GetWallet(ctx context.Context) (string, error)
}

type Payments interface {
	CreateRequest(ctx context.Context, userID int64, amountTON float64) (models.PaymentRequest, string, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	store    Store
	payments Payments
	adminID  int64

	limitersMu sync.Mutex
	limiters   map[int64]*rate.Limiter
}

func New(api *tgbotapi.BotAPI, store Store, pay Payments, adminID int64) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		payments: pay,
		adminID:  adminID,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	slog.Info("Telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("Telegram bot stopped")
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			userID := update.Message.Chat.ID
			if !b.limiter(userID).Allow() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// limiter returns the per-user command rate limiter, 3 rps with burst 5.
func (b *Bot) limiter(userID int64) *rate.Limiter {
	b.limitersMu.Lock()
	defer b.limitersMu.Unlock()
	l, ok := b.limiters[userID]
	if !ok {
		l = rate.NewLimiter(3, 5)
		b.limiters[userID] = l
	}
	return l
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	var reply string
	var err error
	switch msg.Command() {
	case "start":
		reply = "TON NFT deal scanner.\n" +
			"/scanner on|off — toggle alerts\n" +
			"/filters — current filters\n" +
			"/set_discount N — minimum discount %\n" +
			"/set_max_price N|off — price ceiling, TON\n" +
			"/set_min_price N|off — price floor, TON\n" +
			"/collections a,b|clear — collection allow-list\n" +
			"/interval N — polling seconds\n" +
			"/pay N — request a payment link"
	case "scanner":
		reply, err = b.cmdScanner(ctx, userID, args)
	case "filters", "status":
		reply, err = b.cmdFilters(ctx, userID)
	case "set_discount":
		reply, err = b.updateSettings(ctx, userID, func(s *models.UserScannerSettings) error {
			v, perr := strconv.ParseFloat(args, 64)
			if perr != nil {
				return fmt.Errorf("usage: /set_discount 25")
			}
			s.MinDiscountPct = v
			return nil
		})
	case "set_max_price":
		reply, err = b.updateSettings(ctx, userID, func(s *models.UserScannerSettings) error {
			return setOptionalPrice(&s.MaxPriceTON, args, "/set_max_price 10.5")
		})
	case "set_min_price":
		reply, err = b.updateSettings(ctx, userID, func(s *models.UserScannerSettings) error {
			return setOptionalPrice(&s.MinPriceTON, args, "/set_min_price 0.5")
		})
	case "collections":
		reply, err = b.updateSettings(ctx, userID, func(s *models.UserScannerSettings) error {
			if args == "" || strings.EqualFold(args, "clear") {
				s.Collections = nil
				return nil
			}
			var cols []string
			for _, c := range strings.Split(args, ",") {
				if c = strings.TrimSpace(c); c != "" {
					cols = append(cols, c)
				}
			}
			s.Collections = cols
			return nil
		})
	case "interval":
		reply, err = b.updateSettings(ctx, userID, func(s *models.UserScannerSettings) error {
			v, perr := strconv.Atoi(args)
			if perr != nil {
				return fmt.Errorf("usage: /interval 60")
			}
			s.PollSeconds = v
			return nil
		})
	case "pay":
		reply, err = b.cmdPay(ctx, userID, args)
	case "wallet":
		reply, err = b.cmdWallet(ctx, userID, args)
	default:
		return
	}

	if err != nil {
		slog.Warn("Command failed", "command", msg.Command(), "user", userID, "error", err)
		reply = "⚠️ " + err.Error()
	}
	if reply == "" {
		return
	}
	out := tgbotapi.NewMessage(userID, reply)
	out.DisableWebPagePreview = true
	if _, err := b.api.Send(out); err != nil {
		slog.Warn("Failed to send reply", "user", userID, "error", err)
	}
}

func (b *Bot) cmdScanner(ctx context.Context, userID int64, args string) (string, error) {
	switch strings.ToLower(args) {
	case "on":
		if _, err := b.store.GetOrCreateScannerSettings(ctx, userID); err != nil {
			return "", err
		}
		if err := b.store.SetScannerEnabled(ctx, userID, true); err != nil {
			return "", err
		}
		return "🔍 Scanner enabled. You will get deal alerts here.", nil
	case "off":
		if err := b.store.SetScannerEnabled(ctx, userID, false); err != nil {
			return "", err
		}
		return "Scanner disabled.", nil
	default:
		return "Usage: /scanner on|off", nil
	}
}

func (b *Bot) cmdFilters(ctx context.Context, userID int64) (string, error) {
	s, err := b.store.GetOrCreateScannerSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	state := "off"
	if s.Enabled {
		state = "on"
	}
	lines := []string{
		fmt.Sprintf("Scanner: %s", state),
		fmt.Sprintf("Min discount: %.1f%%", s.MinDiscountPct),
		fmt.Sprintf("Min price: %s", formatOptionalPrice(s.MinPriceTON)),
		fmt.Sprintf("Max price: %s", formatOptionalPrice(s.MaxPriceTON)),
		fmt.Sprintf("Poll interval: %ds", s.PollSeconds),
	}
	if len(s.Collections) > 0 {
		lines = append(lines, "Collections: "+strings.Join(s.Collections, ", "))
	} else {
		lines = append(lines, "Collections: any")
	}
	return strings.Join(lines, "\n"), nil
}

// updateSettings loads, mutates, validates, and persists one user's settings.
func (b *Bot) updateSettings(ctx context.Context, userID int64, mutate func(*models.UserScannerSettings) error) (string, error) {
	s, err := b.store.GetOrCreateScannerSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := mutate(&s); err != nil {
		return "", err
	}
	if err := b.store.UpdateScannerSettings(ctx, s); err != nil {
		return "", err
	}
	return "Saved. Current filters:\n\n" + mustFilters(ctx, b, userID), nil
}

func mustFilters(ctx context.Context, b *Bot, userID int64) string {
	text, err := b.cmdFilters(ctx, userID)
	if err != nil {
		return "(failed to load filters)"
	}
	return text
}

func (b *Bot) cmdPay(ctx context.Context, userID int64, args string) (string, error) {
	amount, err := strconv.ParseFloat(args, 64)
	if err != nil {
		return "Usage: /pay 1.5 (amount in TON)", nil
	}
	p, link, err := b.payments.CreateRequest(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, payments.ErrNoWallet) {
			return "Payments are not configured yet.", nil
		}
		return "", err
	}
	return fmt.Sprintf(
		"Send %.3f TON with comment:\n%s\n\nTransfer link:\n%s\n\nI will confirm automatically once the transaction lands.",
		p.AmountTON, p.Comment, link), nil
}

func (b *Bot) cmdWallet(ctx context.Context, userID int64, args string) (string, error) {
	if b.adminID == 0 || userID != b.adminID {
		return "", nil
	}
	if args == "" {
		wallet, err := b.store.GetWallet(ctx)
		if err != nil {
			return "", err
		}
		if wallet == "" {
			return "No receiving wallet configured.", nil
		}
		return "Receiving wallet: " + wallet, nil
	}
	if !ton.ValidAddress(args) {
		return "", fmt.Errorf("%q is not a valid TON address", args)
	}
	if err := b.store.SetWallet(ctx, args); err != nil {
		return "", err
	}
	return "Receiving wallet updated.", nil
}

func setOptionalPrice(dst **float64, args, usage string) error {
	if args == "" || strings.EqualFold(args, "off") {
		*dst = nil
		return nil
	}
	v, err := strconv.ParseFloat(args, 64)
	if err != nil {
		return fmt.Errorf("usage: %s", usage)
	}
	*dst = &v
	return nil
}

func formatOptionalPrice(p *float64) string {
	if p == nil {
		return "—"
	}
	return fmt.Sprintf("%.3f TON", *p)
}
