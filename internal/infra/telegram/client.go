package telegram

import (
	"fmt"
	"strings"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/notify"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the notify.Dispatcher interface using the
// gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send delivers one rendered reminder. When an image is attached it is sent
// as a photo with caption, falling back to plain text if Telegram rejects
// the remote file.
func (tba *TelebotAdapter) Send(recipientID int64, p notify.Payload) error {
	recipient := &telebot.User{ID: recipientID}
	text := renderReminder(p)

	if p.ImageURL != "" {
		photo := &telebot.Photo{File: telebot.FromURL(p.ImageURL), Caption: text}
		if _, err := tba.bot.Send(recipient, photo); err == nil {
			return nil
		}
	}

	_, err := tba.bot.Send(recipient, text)
	return err
}

var _ notify.Dispatcher = (*TelebotAdapter)(nil)

func renderReminder(p notify.Payload) string {
	info := birthday.DescribeCategory(p.Category)
	var b strings.Builder

	if p.Job == delivery.JobDaily {
		b.WriteString("🎉 Birthday Reminder! 🎂\n\n")
		fmt.Fprintf(&b, "Today is %s's birthday!\n", p.Name)
		if p.Age != nil {
			fmt.Fprintf(&b, "🎈 They are turning %d today\n", *p.Age)
		}
	} else {
		b.WriteString("📅 Upcoming Birthday 🎂\n\n")
		fmt.Fprintf(&b, "%s has a birthday %s", p.Name, describeDaysUntil(p.DaysUntil))
		if p.Age != nil {
			fmt.Fprintf(&b, " (turning %d)", *p.Age)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s Category: %s\n", info.Symbol, info.Label)
	if p.Note != "" {
		fmt.Fprintf(&b, "📝 Notes: %s\n", p.Note)
	}
	b.WriteString("\nDon't forget to wish them a happy birthday! 🎈")
	return b.String()
}

func describeDaysUntil(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
