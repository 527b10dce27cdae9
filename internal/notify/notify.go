// Package notify renders the texts sent to applicants and the application
// card posted to the log channel.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"warden/internal/moderation/models"
	settingsModels "warden/internal/settings/models"
	id "warden/pkg/domain"
)

const (
	Intro     = "Starting verification! Please answer the following questions."
	Submitted = "Your application has been sent for moderation. Please wait for a decision."
	Accepted  = "Your verification has been approved! Welcome to the server."

	// CannotDM is shown to a requester whose private messages are closed.
	CannotDM = "Cannot send you a direct message. Check your privacy settings."

	// KickReason is attached to the membership removal request.
	KickReason = "Verification denied"
	// KickedDenyReason is the reason recorded for a successful kick.
	KickedDenyReason = "User was kicked from the server"

	noAnswer = "*No answer*"
)

// Card colours.
const (
	ColorPending  = 0x5865F2
	ColorAccepted = 0x00FF00
	ColorDenied   = 0xFF0000
)

// Question renders the prompt for question i of n, 1-indexed.
func Question(i, n int, text string) string {
	return fmt.Sprintf("Question %d/%d: %s", i, n, text)
}

// Denied tells the applicant they were denied and when they may re-apply.
func Denied(reason string, cooldown time.Duration) string {
	var b strings.Builder
	b.WriteString("Your verification was denied.")
	if reason != "" {
		b.WriteString("\nReason: ")
		b.WriteString(reason)
	}
	b.WriteString("\n\nYou can re-apply in ")
	b.WriteString(Window(cooldown))
	b.WriteString(".")
	return b.String()
}

// Window renders a cooldown length, e.g. "24 hours".
func Window(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	}
	return d.Round(time.Minute).String()
}

func mention(u id.UserID) string {
	return "<@" + u.String() + ">"
}

func timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:F>", t.Unix())
}

// ApplicationCard renders a completed questionnaire for moderators. The
// admin role is pinged when set, everyone otherwise.
func ApplicationCard(st *settingsModels.Settings, rec *models.Record) models.Card {
	ping := "@everyone"
	if !st.AdminRoleID.IsZero() {
		ping = "<@&" + st.AdminRoleID.String() + ">"
	}

	card := models.Card{
		Content:   ping + " New verification application!",
		Title:     "Verification: " + rec.UserID.String(),
		Color:     ColorPending,
		Footer:    "ID: " + rec.UserID.String(),
		Timestamp: rec.CreatedAt,
	}
	card.Fields = append(card.Fields, models.CardField{
		Name: "User",
		Value: fmt.Sprintf("Member: %s\nUser ID: %s\nSubmitted: <t:%d:R>",
			mention(rec.UserID), rec.UserID, rec.CreatedAt.Unix()),
	})
	for i, answer := range rec.Answers {
		if i >= len(rec.Questions) {
			break
		}
		if answer == "" {
			answer = noAnswer
		}
		card.Fields = append(card.Fields, models.CardField{
			Name:  fmt.Sprintf("%d. %s", i+1, rec.Questions[i]),
			Value: answer,
		})
	}
	return card
}

// ApplyDecision restyles the card for a decided record and sets its status
// field.
func ApplyDecision(card *models.Card, rec *models.Record) {
	var verb, label string
	switch rec.Status {
	case models.StatusAccepted:
		card.Color, verb, label = ColorAccepted, "Verified by ", "VERIFIED"
	case models.StatusKicked:
		card.Color, verb, label = ColorDenied, "Kicked by ", "KICKED"
	default:
		card.Color, verb, label = ColorDenied, "Denied by ", "DENIED"
	}
	card.Title = rec.UserID.String() + " (" + label + ")"

	value := verb + mention(rec.DecidedBy)
	if rec.DecidedAt != nil {
		value += "\n" + timestamp(*rec.DecidedAt)
	}
	if rec.Reason != "" {
		value += "\nReason: " + rec.Reason
	}
	card.SetStatus(value)
}
