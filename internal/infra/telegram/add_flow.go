package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/birthday"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

type addState int

const (
	stateAwaitingNameDate addState = iota
	stateAwaitingCategory
	stateAwaitingPhoto
	stateAwaitingNote
	stateConfirm
)

// addSession accumulates one /add conversation. Nothing is persisted until
// the user confirms, at which point a single create call runs.
type addSession struct {
	state    addState
	name     string
	date     string
	category string
	imageURL string
	note     string
}

// FlowHandler owns the per-chat multi-step conversations: the /add creation
// flow and the /update edit flow. A chat has at most one active flow.
type FlowHandler struct {
	svc    *app.BirthdayService
	logger *logrus.Entry

	mu      sync.Mutex
	adds    map[int64]*addSession
	updates map[int64]*updateSession
}

func NewFlowHandler(svc *app.BirthdayService, logger *logrus.Entry) *FlowHandler {
	return &FlowHandler{
		svc:     svc,
		logger:  logger.WithField("handler_group", "flows"),
		adds:    make(map[int64]*addSession),
		updates: make(map[int64]*updateSession),
	}
}

// Register wires /add, /update, /cancel and the free-text step handler.
func (h *FlowHandler) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/add", func(c telebot.Context) error {
		h.mu.Lock()
		delete(h.updates, c.Sender().ID)
		h.adds[c.Sender().ID] = &addSession{state: stateAwaitingNameDate}
		h.mu.Unlock()
		return c.Send("Let's save a birthday! 🎂\n\nSend the name and date separated by a comma:\n\nName, YYYY-MM-DD\n\nIf the year is unknown, use MM-DD (e.g. Anna, 03-12).")
	})

	b.Handle("/update", func(c telebot.Context) error {
		return h.startUpdate(ctx, c)
	})

	b.Handle("/cancel", func(c telebot.Context) error {
		h.mu.Lock()
		_, addActive := h.adds[c.Sender().ID]
		_, updActive := h.updates[c.Sender().ID]
		delete(h.adds, c.Sender().ID)
		delete(h.updates, c.Sender().ID)
		h.mu.Unlock()
		if !addActive && !updActive {
			return c.Send("Nothing to cancel.")
		}
		return c.Send("Cancelled. Nothing was saved.")
	})

	b.Handle(telebot.OnText, func(c telebot.Context) error {
		senderID := c.Sender().ID
		h.mu.Lock()
		add, addOK := h.adds[senderID]
		upd, updOK := h.updates[senderID]
		h.mu.Unlock()
		switch {
		case updOK:
			return h.updateStep(ctx, c, senderID, upd)
		case addOK:
			return h.addStep(ctx, c, senderID, add)
		default:
			return c.Send("I didn't understand that. Use /help for the list of commands.")
		}
	})
}

func (h *FlowHandler) addStep(ctx context.Context, c telebot.Context, senderID int64, session *addSession) error {
	text := strings.TrimSpace(c.Text())

	switch session.state {
	case stateAwaitingNameDate:
		// Split on the last comma so names containing commas survive.
		idx := strings.LastIndex(text, ",")
		if idx < 0 {
			return c.Send("Please send the name and date separated by a comma, e.g. Anna, 1990-03-12.")
		}
		name := strings.TrimSpace(text[:idx])
		date := strings.TrimSpace(text[idx+1:])
		if name == "" {
			return c.Send("The name part is empty. Try again, e.g. Anna, 1990-03-12.")
		}
		if _, err := birthday.ParseDate(date); err != nil {
			return c.Send("I couldn't read that date. Use YYYY-MM-DD, or MM-DD when the year is unknown.")
		}
		session.name = name
		session.date = date
		session.state = stateAwaitingCategory
		return c.Send(categoryPrompt())

	case stateAwaitingCategory:
		session.category = string(birthday.NormalizeCategory(text))
		session.state = stateAwaitingPhoto
		return c.Send("Got it. Now send a photo URL, or \"skip\".")

	case stateAwaitingPhoto:
		if !strings.EqualFold(text, "skip") {
			session.imageURL = text
		}
		session.state = stateAwaitingNote
		return c.Send("Any notes? Send them now, or \"skip\".")

	case stateAwaitingNote:
		if !strings.EqualFold(text, "skip") {
			session.note = text
		}
		session.state = stateConfirm
		return c.Send(confirmPrompt(session))

	case stateConfirm:
		switch strings.ToLower(text) {
		case "yes", "y":
			h.mu.Lock()
			delete(h.adds, senderID)
			h.mu.Unlock()
			return h.finishAdd(ctx, c, senderID, session)
		case "no", "n":
			h.mu.Lock()
			delete(h.adds, senderID)
			h.mu.Unlock()
			return c.Send("Discarded. Nothing was saved.")
		default:
			return c.Send("Please answer yes or no.")
		}
	}
	return nil
}

func (h *FlowHandler) finishAdd(ctx context.Context, c telebot.Context, senderID int64, session *addSession) error {
	rec, err := h.svc.Create(ctx, app.CreateRequest{
		OwnerID:   senderID,
		Name:      session.name,
		Birthdate: session.date,
		Category:  session.category,
		ImageURL:  session.imageURL,
		Note:      session.note,
	})
	if err != nil {
		if msg, ok := describeValidationError(err); ok {
			return c.Send(msg)
		}
		h.logger.WithError(err).WithField("sender_id", senderID).Error("Failed to create birthday record")
		return c.Send("Something went wrong while saving, please try again later.")
	}

	info := birthday.DescribeCategory(rec.Category)
	return c.Send(fmt.Sprintf("Saved! 🎉 %s (%s) %s %s\n\nI'll remind you on the day.", rec.Name, rec.Birthdate, info.Symbol, info.Label))
}

func describeValidationError(err error) (string, bool) {
	switch {
	case errors.Is(err, app.ErrInvalidName):
		return "That name is not valid: it must be non-empty and at most 100 characters.", true
	case errors.Is(err, app.ErrImplausibleYear):
		return "That birth year doesn't look right: it must be 1900 or later and not in the future.", true
	case errors.Is(err, app.ErrInvalidImageURL):
		return "The photo URL must be a valid http(s) link.", true
	case errors.Is(err, birthday.ErrUnparseableDate):
		return "I couldn't read that date. Use YYYY-MM-DD or MM-DD.", true
	}
	return "", false
}

func categoryPrompt() string {
	var b strings.Builder
	b.WriteString("Pick a category:\n\n")
	for _, cat := range birthday.Categories {
		info := birthday.DescribeCategory(cat)
		fmt.Fprintf(&b, "%s %s\n", info.Symbol, cat)
	}
	b.WriteString("\nSend one of the names above (anything else counts as \"other\").")
	return b.String()
}

func confirmPrompt(s *addSession) string {
	info := birthday.DescribeCategory(birthday.NormalizeCategory(s.category))
	var b strings.Builder
	b.WriteString("Please confirm:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", s.name)
	fmt.Fprintf(&b, "Date: %s\n", s.date)
	fmt.Fprintf(&b, "Category: %s %s\n", info.Symbol, info.Label)
	if s.imageURL != "" {
		fmt.Fprintf(&b, "Photo: %s\n", s.imageURL)
	}
	if s.note != "" {
		fmt.Fprintf(&b, "Notes: %s\n", s.note)
	}
	b.WriteString("\nSave it? (yes/no)")
	return b.String()
}
