package telegram

import (
	"context"
	"fmt"
	"strings"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/birthday"

	"gopkg.in/telebot.v3"
)

type updateState int

const (
	stateAwaitingField updateState = iota
	stateAwaitingValue
)

const updateFieldPrompt = "What would you like to change?\n\n" +
	"name / date / category / photo / notes\n\n" +
	"Send one of the field names above, or /cancel."

// updateSession edits one field of an existing record per /update run.
type updateSession struct {
	state      updateState
	birthdayID int64
	name       string
	field      string
}

func (h *FlowHandler) startUpdate(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Send("Usage: /update <name>")
	}

	rec, err := h.svc.GetByName(ctx, senderID, name)
	if err != nil {
		return replyResolveError(c, h.logger, err, name)
	}

	h.mu.Lock()
	delete(h.adds, senderID)
	h.updates[senderID] = &updateSession{state: stateAwaitingField, birthdayID: rec.ID, name: rec.Name}
	h.mu.Unlock()

	info := birthday.DescribeCategory(rec.Category)
	var b strings.Builder
	fmt.Fprintf(&b, "Updating %s:\n\n", rec.Name)
	fmt.Fprintf(&b, "Date: %s\n", rec.Birthdate)
	fmt.Fprintf(&b, "Category: %s %s\n", info.Symbol, info.Label)
	fmt.Fprintf(&b, "Photo: %s\n", yesNo(rec.ImageURL.Valid))
	fmt.Fprintf(&b, "Notes: %s\n\n", yesNo(rec.Note.Valid))
	b.WriteString(updateFieldPrompt)
	return c.Send(b.String())
}

func (h *FlowHandler) updateStep(ctx context.Context, c telebot.Context, senderID int64, session *updateSession) error {
	text := strings.TrimSpace(c.Text())

	switch session.state {
	case stateAwaitingField:
		field := strings.ToLower(text)
		switch field {
		case "name":
			session.field = field
			session.state = stateAwaitingValue
			return c.Send("Send the new name.")
		case "date":
			session.field = field
			session.state = stateAwaitingValue
			return c.Send("Send the new date as YYYY-MM-DD, or MM-DD when the year is unknown.")
		case "category":
			session.field = field
			session.state = stateAwaitingValue
			return c.Send(categoryPrompt())
		case "photo":
			session.field = field
			session.state = stateAwaitingValue
			return c.Send("Send the new photo URL, or \"clear\" to remove it.")
		case "notes":
			session.field = field
			session.state = stateAwaitingValue
			return c.Send("Send the new notes, or \"clear\" to remove them.")
		default:
			return c.Send(updateFieldPrompt)
		}

	case stateAwaitingValue:
		value := text
		// Photo and notes are optional; "clear" maps to the empty-clears patch rule.
		if (session.field == "photo" || session.field == "notes") && strings.EqualFold(value, "clear") {
			value = ""
		}

		patch := app.UpdatePatch{}
		switch session.field {
		case "name":
			patch.Name = &value
		case "date":
			patch.Birthdate = &value
		case "category":
			patch.Category = &value
		case "photo":
			patch.ImageURL = &value
		case "notes":
			patch.Note = &value
		}

		rec, err := h.svc.Update(ctx, session.birthdayID, patch)
		if err != nil {
			// Validation problems keep the session open for another attempt.
			if msg, ok := describeValidationError(err); ok {
				return c.Send(msg + " Try again, or /cancel.")
			}
			h.mu.Lock()
			delete(h.updates, senderID)
			h.mu.Unlock()
			h.logger.WithError(err).WithField("sender_id", senderID).Error("Failed to update birthday record")
			return c.Send("Something went wrong while saving, please try again later.")
		}

		h.mu.Lock()
		delete(h.updates, senderID)
		h.mu.Unlock()
		info := birthday.DescribeCategory(rec.Category)
		return c.Send(fmt.Sprintf("Updated! ✅ %s (%s) %s %s", rec.Name, rec.Birthdate, info.Symbol, info.Label))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
