package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/birthday"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Telegram messages cap at 4096 characters; keep admin listings well below.
const maxListedRecords = 50

// RegisterAdminHandlers wires the superadmin-only commands. Authorization is
// enforced by the service; handlers only translate the error.
func RegisterAdminHandlers(
	ctx context.Context,
	b *telebot.Bot,
	adminSvc *app.AdminService,
	baseLogger *logrus.Entry,
) {
	log := baseLogger.WithField("handler_group", "admin_commands")

	b.Handle("/all_birthdays", func(c telebot.Context) error {
		includeDeleted := strings.TrimSpace(c.Message().Payload) == "all"
		records, err := adminSvc.ListAllBirthdays(ctx, c.Sender().ID, includeDeleted)
		if err != nil {
			return replyAdminError(c, log, err)
		}
		if len(records) == 0 {
			return c.Send("The store is empty.")
		}

		var out strings.Builder
		fmt.Fprintf(&out, "📋 All birthdays (%d):\n\n", len(records))
		for i, or := range records {
			if i >= maxListedRecords {
				fmt.Fprintf(&out, "\n... and %d more. Use /export_csv for the full list.", len(records)-maxListedRecords)
				break
			}
			rec := or.Record
			owner := or.Owner.Username.String
			if owner == "" {
				owner = fmt.Sprintf("id %d", or.Owner.ID)
			}
			line := fmt.Sprintf("• %s (%s) [%s] owner: %s", rec.Name, rec.Birthdate, rec.Category, owner)
			if rec.IsDeleted {
				line += " [deleted]"
			}
			out.WriteString(line + "\n")
		}
		return c.Send(out.String())
	})

	b.Handle("/export_csv", func(c telebot.Context) error {
		includeDeleted := strings.TrimSpace(c.Message().Payload) == "all"
		data, err := adminSvc.ExportCSV(ctx, c.Sender().ID, includeDeleted)
		if err != nil {
			return replyAdminError(c, log, err)
		}

		doc := &telebot.Document{
			File:     telebot.FromReader(bytes.NewReader(data)),
			FileName: fmt.Sprintf("birthdays_%s.csv", time.Now().UTC().Format("2006-01-02")),
			MIME:     "text/csv",
		}
		return c.Send(doc)
	})

	b.Handle("/broadcast", func(c telebot.Context) error {
		msg := strings.TrimSpace(c.Message().Payload)
		if msg == "" {
			return c.Send("Usage: /broadcast <message>")
		}
		users, err := adminSvc.ListActiveUsers(ctx, c.Sender().ID)
		if err != nil {
			return replyAdminError(c, log, err)
		}

		sent, failed := 0, 0
		for _, u := range users {
			if _, err := b.Send(&telebot.User{ID: u.ID}, "📢 "+msg); err != nil {
				log.WithError(err).WithField("recipient", u.ID).Warn("Broadcast delivery failed")
				failed++
				continue
			}
			sent++
		}
		return c.Send(fmt.Sprintf("📢 Broadcast complete: %d delivered, %d failed.", sent, failed))
	})

	b.Handle("/analytics", func(c telebot.Context) error {
		report, err := adminSvc.AnalyticsReport(ctx, c.Sender().ID)
		if err != nil {
			return replyAdminError(c, log, err)
		}

		var out strings.Builder
		out.WriteString("📊 Analytics report:\n\n")
		fmt.Fprintf(&out, "Users: %d\n", report.TotalUsers)
		fmt.Fprintf(&out, "Birthdays: %d total, %d active, %d deleted\n",
			report.TotalBirthdays, report.ActiveBirthdays, report.DeletedBirthdays)
		fmt.Fprintf(&out, "With photo: %d, with notes: %d\n", report.WithImage, report.WithNote)
		if report.AverageAge > 0 {
			fmt.Fprintf(&out, "Ages: %.1f average (from %d to %d)\n", report.AverageAge, report.MinAge, report.MaxAge)
		}

		out.WriteString("\nBy category:\n")
		for _, cat := range birthday.Categories {
			share := report.CategoryBreakdown[cat]
			if share.Count == 0 {
				continue
			}
			info := birthday.DescribeCategory(cat)
			fmt.Fprintf(&out, "%s %s: %d (%.1f%%)\n", info.Symbol, info.Label, share.Count, share.Percentage)
		}

		out.WriteString("\nBy month:\n")
		for m := time.January; m <= time.December; m++ {
			if count := report.MonthlyDistribution[m]; count > 0 {
				fmt.Fprintf(&out, "%s: %d\n", m, count)
			}
		}
		return c.Send(out.String())
	})
}

func replyAdminError(c telebot.Context, log *logrus.Entry, err error) error {
	if errors.Is(err, app.ErrAdminNotAuthorized) {
		return c.Send("This command is available to the superadmin only.")
	}
	log.WithError(err).Error("Admin command failed")
	return c.Send("Something went wrong, please try again later.")
}
