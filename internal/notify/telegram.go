// Package notify renders listings into Telegram messages and delivers them.
package notify

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tondealbot/internal/models"
)

// Sender is the slice of the bot API the notifier needs. *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	api Sender
}

func New(api Sender) *Notifier {
	return &Notifier{api: api}
}

// Notify delivers one listing to one user. When an image URL is present it
// tries a photo with the rendered text as caption first; if Telegram rejects
// the photo it falls back to plain text. Only a failed text send is a
// delivery failure.
func (n *Notifier) Notify(userID int64, l models.Listing) error {
	text := RenderListing(l)

	if l.ImageURL != "" {
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(l.ImageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := n.api.Send(photo); err == nil {
			return nil
		}
	}

	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", userID, err)
	}
	return nil
}

// SendText delivers a plain text message, used outside the deal pipeline.
func (n *Notifier) SendText(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", userID, err)
	}
	return nil
}

// RenderListing formats the fixed-structure deal message: name, source,
// collection, price to 3 decimals, floor when known, discount to 1 decimal
// when known and positive, and the viewer link.
func RenderListing(l models.Listing) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🧩 <b>%s</b>\n", html.EscapeString(l.DisplayName()))
	fmt.Fprintf(&b, "🏷 Market: %s\n", l.Source)

	collection := l.Collection
	if collection == "" {
		collection = "—"
	}
	fmt.Fprintf(&b, "📦 Collection: <code>%s</code>\n", html.EscapeString(collection))

	if l.PriceTON != nil {
		fmt.Fprintf(&b, "💰 Price: <b>%.3f TON</b>\n", *l.PriceTON)
	} else {
		b.WriteString("💰 Price: unknown\n")
	}
	if l.FloorTON != nil {
		fmt.Fprintf(&b, "💎 Floor: %.3f TON\n", *l.FloorTON)
	}
	if l.DiscountPct != nil && *l.DiscountPct > 0 {
		fmt.Fprintf(&b, "📉 Discount: <b>%.1f%%</b>\n", *l.DiscountPct)
	}

	if link := l.Link(); link != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Open listing</a>", link)
	}
	return b.String()
}
