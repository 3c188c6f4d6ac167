package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/user"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands wires the per-user commands. The multi-step /add and
// /update flows are registered separately by FlowHandler.Register.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	birthdaySvc *app.BirthdayService,
	userRepo user.Repository,
	clock app.Clock,
	baseLogger *logrus.Entry,
) {
	log := baseLogger.WithField("handler_group", "user_commands")

	b.Handle("/start", func(c telebot.Context) error {
		sender := c.Sender()
		if _, err := userRepo.Ensure(ctx, sender.ID, sender.Username, sender.FirstName); err != nil {
			log.WithError(err).WithField("sender_id", sender.ID).Error("Failed to register user on /start")
			return c.Send("Something went wrong, please try again later.")
		}
		log.WithField("sender_id", sender.ID).Info("Processing /start command")
		return c.Send(fmt.Sprintf(
			"Hi, %s! 🎂 I remember birthdays for you and remind you in time.\n\nUse /add to save a birthday and /help for all commands.",
			sender.FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		var help strings.Builder
		help.WriteString("Available commands:\n\n")
		help.WriteString("/add - save a birthday step by step\n")
		help.WriteString("/update <name> - change one field of a saved birthday\n")
		help.WriteString("/list - your birthdays ordered by the next occurrence\n")
		help.WriteString("/delete <name> - move a birthday to the trash (restorable)\n")
		help.WriteString("/restore <name> - bring a deleted birthday back\n")
		help.WriteString("/month <1-12> - birthdays in a month\n")
		help.WriteString("/category <name> - birthdays in a category\n")
		help.WriteString("/stats - your birthday statistics\n")
		help.WriteString("/timezone <IANA name> - set your timezone, e.g. Europe/Berlin\n")
		help.WriteString("/cancel - abort the current /add flow\n")
		return c.Send(help.String())
	})

	b.Handle("/list", func(c telebot.Context) error {
		senderID := c.Sender().ID
		records, err := birthdaySvc.ListActive(ctx, senderID)
		if err != nil {
			log.WithError(err).WithField("sender_id", senderID).Error("Failed to list birthdays")
			return c.Send("Could not load your birthdays, please try again later.")
		}
		if len(records) == 0 {
			return c.Send("You have no saved birthdays yet. Use /add to save one.")
		}

		localNow := clock.Now()
		if u, err := userRepo.GetByID(ctx, senderID); err == nil {
			localNow = localNow.In(u.Location())
		}
		sort.SliceStable(records, func(i, j int) bool {
			return birthday.DaysUntil(records[i].Birthdate, localNow) < birthday.DaysUntil(records[j].Birthdate, localNow)
		})

		var out strings.Builder
		out.WriteString("🎂 Your birthdays:\n\n")
		for _, rec := range records {
			out.WriteString(formatRecordLine(rec, localNow))
		}
		return c.Send(out.String())
	})

	b.Handle("/delete", func(c telebot.Context) error {
		senderID := c.Sender().ID
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send("Usage: /delete <name>")
		}

		rec, err := birthdaySvc.SoftDeleteByName(ctx, senderID, name)
		if err != nil {
			return replyResolveError(c, log, err, name)
		}
		return c.Send(fmt.Sprintf("Birthday for %s deleted. Use /restore %s to undo.", rec.Name, rec.Name))
	})

	b.Handle("/restore", func(c telebot.Context) error {
		senderID := c.Sender().ID
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send("Usage: /restore <name>")
		}

		rec, err := birthdaySvc.RestoreByName(ctx, senderID, name)
		if err != nil {
			if errors.Is(err, idb.ErrBirthdayNotFound) {
				return c.Send(fmt.Sprintf("No deleted birthday found for %s.", name))
			}
			return replyResolveError(c, log, err, name)
		}
		return c.Send(fmt.Sprintf("Birthday for %s restored. 🎉", rec.Name))
	})

	b.Handle("/month", func(c telebot.Context) error {
		senderID := c.Sender().ID
		m, err := strconv.Atoi(strings.TrimSpace(c.Message().Payload))
		if err != nil || m < 1 || m > 12 {
			return c.Send("Usage: /month <1-12>")
		}
		records, err := birthdaySvc.ListByMonth(ctx, senderID, time.Month(m))
		if err != nil {
			log.WithError(err).Error("Failed to list birthdays by month")
			return c.Send("Could not load your birthdays, please try again later.")
		}
		if len(records) == 0 {
			return c.Send(fmt.Sprintf("No birthdays in %s.", time.Month(m)))
		}

		var out strings.Builder
		fmt.Fprintf(&out, "🎂 Birthdays in %s:\n\n", time.Month(m))
		for _, rec := range records {
			out.WriteString(formatRecordLine(rec, clock.Now()))
		}
		return c.Send(out.String())
	})

	b.Handle("/category", func(c telebot.Context) error {
		senderID := c.Sender().ID
		raw := strings.TrimSpace(c.Message().Payload)
		if raw == "" {
			return c.Send("Usage: /category <love|family|relative|work|friend|other>")
		}
		records, err := birthdaySvc.ListByCategory(ctx, senderID, raw)
		if err != nil {
			log.WithError(err).Error("Failed to list birthdays by category")
			return c.Send("Could not load your birthdays, please try again later.")
		}
		info := birthday.DescribeCategory(birthday.NormalizeCategory(raw))
		if len(records) == 0 {
			return c.Send(fmt.Sprintf("No birthdays in category %s %s.", info.Symbol, info.Label))
		}

		var out strings.Builder
		fmt.Fprintf(&out, "%s %s birthdays:\n\n", info.Symbol, info.Label)
		for _, rec := range records {
			out.WriteString(formatRecordLine(rec, clock.Now()))
		}
		return c.Send(out.String())
	})

	b.Handle("/stats", func(c telebot.Context) error {
		senderID := c.Sender().ID
		stats, err := birthdaySvc.Stats(ctx, senderID)
		if err != nil {
			log.WithError(err).Error("Failed to compute user stats")
			return c.Send("Could not compute your statistics, please try again later.")
		}
		if stats.TotalBirthdays == 0 {
			return c.Send("You have no saved birthdays yet. Use /add to save one.")
		}

		var out strings.Builder
		out.WriteString("📊 Your birthday statistics:\n\n")
		fmt.Fprintf(&out, "Total: %d\n", stats.TotalBirthdays)
		fmt.Fprintf(&out, "Upcoming this month: %d\n", stats.UpcomingThisMonth)
		if stats.Next != nil {
			fmt.Fprintf(&out, "Next: %s %s\n", stats.Next.Name, describeDaysUntil(stats.Next.DaysUntil))
		}
		if stats.AverageAge > 0 {
			fmt.Fprintf(&out, "Average age: %.1f (from %d to %d)\n", stats.AverageAge, stats.MinAge, stats.MaxAge)
		}
		out.WriteString("\nBy category:\n")
		for _, cat := range birthday.Categories {
			if count := stats.CategoryBreakdown[cat]; count > 0 {
				info := birthday.DescribeCategory(cat)
				fmt.Fprintf(&out, "%s %s: %d\n", info.Symbol, info.Label, count)
			}
		}
		return c.Send(out.String())
	})

	b.Handle("/timezone", func(c telebot.Context) error {
		senderID := c.Sender().ID
		tz := strings.TrimSpace(c.Message().Payload)
		if tz == "" {
			return c.Send("Usage: /timezone <IANA name>, e.g. /timezone Europe/Berlin")
		}
		if err := birthdaySvc.SetTimezone(ctx, senderID, tz); err != nil {
			return c.Send(fmt.Sprintf("Unknown timezone %q. Use an IANA name like Europe/Berlin or America/New_York.", tz))
		}
		return c.Send(fmt.Sprintf("Timezone set to %s. Reminders now follow your local time. 🕘", tz))
	})
}

func formatRecordLine(rec *birthday.Record, localNow time.Time) string {
	info := birthday.DescribeCategory(rec.Category)
	line := fmt.Sprintf("• %s (%s) %s %s", rec.Name, rec.Birthdate, info.Symbol, describeDaysUntil(birthday.DaysUntil(rec.Birthdate, localNow)))
	if age, ok := birthday.Age(rec.Birthdate, birthday.NextOccurrence(rec.Birthdate, localNow)); ok {
		line += fmt.Sprintf(", turning %d", age)
	}
	return line + "\n"
}

// replyResolveError renders lifecycle errors from by-name operations,
// including the disambiguation listing for ambiguous names.
func replyResolveError(c telebot.Context, log *logrus.Entry, err error, name string) error {
	var ambiguous *app.AmbiguousNameError
	if errors.As(err, &ambiguous) {
		var out strings.Builder
		fmt.Fprintf(&out, "Several birthdays match %q:\n", name)
		for _, rec := range ambiguous.Matches {
			fmt.Fprintf(&out, "• %s (%s), id %d\n", rec.Name, rec.Birthdate, rec.ID)
		}
		out.WriteString("\nPlease make the names unique first (e.g. add a last name via /add).")
		return c.Send(out.String())
	}
	if errors.Is(err, idb.ErrBirthdayNotFound) {
		return c.Send(fmt.Sprintf("Birthday for %s not found.", name))
	}
	if errors.Is(err, idb.ErrBirthdayNotDeleted) {
		return c.Send(fmt.Sprintf("Birthday for %s is not deleted.", name))
	}
	log.WithError(err).Error("By-name birthday operation failed")
	return c.Send("Something went wrong, please try again later.")
}
