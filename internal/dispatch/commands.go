package dispatch

import (
	moderationModels "warden/internal/moderation/models"
	id "warden/pkg/domain"
)

// Kind names a command in the dispatch table and in span names.
type Kind string

const (
	KindStartVerification Kind = "verification.start"
	KindSubmitAnswer      Kind = "verification.answer"
	KindMemberLeft        Kind = "verification.member_left"
	KindDecide            Kind = "moderation.decide"
	KindGetRecord         Kind = "moderation.get_record"
	KindSetChannels       Kind = "settings.set_channels"
	KindSetRoles          Kind = "settings.set_roles"
	KindSetQuestions      Kind = "settings.set_questions"
	KindGetSettings       Kind = "settings.get"
)

// Command is one inbound trigger.
type Command interface {
	Kind() Kind
}

// StartVerification is the "Verify" button press.
type StartVerification struct {
	GuildID id.GuildID
	UserID  id.UserID
}

// SubmitAnswer is a direct message from an applicant.
type SubmitAnswer struct {
	UserID id.UserID
	Text   string
}

// MemberLeft is raised when a member leaves a community.
type MemberLeft struct {
	GuildID id.GuildID
	UserID  id.UserID
}

type Decide struct {
	UserID   id.UserID
	Decision moderationModels.Decision
}

type GetRecord struct {
	UserID id.UserID
}

type SetChannels struct {
	GuildID   id.GuildID
	WelcomeID id.ChannelID
	LogID     id.ChannelID
}

type SetRoles struct {
	GuildID    id.GuildID
	TempID     id.RoleID
	VerifiedID id.RoleID
	AdminID    id.RoleID
}

// SetQuestions carries the raw semicolon-delimited question list.
type SetQuestions struct {
	GuildID id.GuildID
	Raw     string
}

type GetSettings struct {
	GuildID id.GuildID
}

func (StartVerification) Kind() Kind { return KindStartVerification }
func (SubmitAnswer) Kind() Kind      { return KindSubmitAnswer }
func (MemberLeft) Kind() Kind        { return KindMemberLeft }
func (Decide) Kind() Kind            { return KindDecide }
func (GetRecord) Kind() Kind         { return KindGetRecord }
func (SetChannels) Kind() Kind       { return KindSetChannels }
func (SetRoles) Kind() Kind          { return KindSetRoles }
func (SetQuestions) Kind() Kind      { return KindSetQuestions }
func (GetSettings) Kind() Kind       { return KindGetSettings }
