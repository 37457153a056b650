package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentRequest is one outstanding transfer request against the bot's
// wallet, matched to an incoming transaction by its unique comment.
type PaymentRequest struct {
	ID        uuid.UUID
	UserID    int64
	Comment   string
	AmountTON float64
	Status    PaymentStatus
	TxHash    string
	CreatedAt time.Time
}

// NewPaymentRequest creates a pending request with a fresh unique comment.
func NewPaymentRequest(userID int64, amountTON float64) PaymentRequest {
	return PaymentRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Comment:   PaymentComment(),
		AmountTON: amountTON,
		Status:    PaymentPending,
		CreatedAt: time.Now(),
	}
}

// PaymentComment generates the transfer comment users must attach.
func PaymentComment() string {
	hexID := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "nftbot-" + hexID[:12]
}
