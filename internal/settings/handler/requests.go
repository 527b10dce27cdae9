package handler

import (
	id "warden/pkg/domain"
)

// SetChannelsRequest is the body of PUT /v1/admin/guilds/{guildID}/channels.
type SetChannelsRequest struct {
	WelcomeChannelID string `json:"welcome_channel_id" validate:"required,snowflake"`
	LogChannelID     string `json:"log_channel_id" validate:"required,snowflake"`

	welcome id.ChannelID
	logCh   id.ChannelID
}

func (r *SetChannelsRequest) Prepare() error {
	var err error
	if r.welcome, err = id.ParseChannelID(r.WelcomeChannelID); err != nil {
		return err
	}
	r.logCh, err = id.ParseChannelID(r.LogChannelID)
	return err
}

// SetRolesRequest is the body of PUT /v1/admin/guilds/{guildID}/roles.
type SetRolesRequest struct {
	TempRoleID     string `json:"temp_role_id" validate:"required,snowflake"`
	VerifiedRoleID string `json:"verified_role_id" validate:"required,snowflake"`
	AdminRoleID    string `json:"admin_role_id" validate:"required,snowflake"`

	temp     id.RoleID
	verified id.RoleID
	admin    id.RoleID
}

func (r *SetRolesRequest) Prepare() error {
	var err error
	if r.temp, err = id.ParseRoleID(r.TempRoleID); err != nil {
		return err
	}
	if r.verified, err = id.ParseRoleID(r.VerifiedRoleID); err != nil {
		return err
	}
	r.admin, err = id.ParseRoleID(r.AdminRoleID)
	return err
}

// SetQuestionsRequest carries the semicolon-delimited question list.
type SetQuestionsRequest struct {
	Questions string `json:"questions" validate:"required,max=4000"`
}
