package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "warden/pkg/domain-errors"
)

// Chat platform identities are 64-bit snowflakes rendered as decimal strings.
// Each kind gets its own type so a role id can never be passed where a
// channel id is expected.
type (
	UserID    uint64
	GuildID   uint64
	ChannelID uint64
	RoleID    uint64
	MessageID uint64
)

// RecordID identifies one submitted application.
type RecordID uuid.UUID

// maxSnowflakeLen is the decimal width of the largest uint64.
const maxSnowflakeLen = 20

func parseSnowflake(s, kind string) (uint64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxSnowflakeLen {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, kind+" must be non-zero")
	}
	// Reject non-canonical forms such as leading zeros so keys stay unique.
	if strconv.FormatUint(v, 10) != s {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return v, nil
}

func ParseUserID(s string) (UserID, error) {
	v, err := parseSnowflake(s, "user id")
	return UserID(v), err
}

func ParseGuildID(s string) (GuildID, error) {
	v, err := parseSnowflake(s, "guild id")
	return GuildID(v), err
}

func ParseChannelID(s string) (ChannelID, error) {
	v, err := parseSnowflake(s, "channel id")
	return ChannelID(v), err
}

func ParseRoleID(s string) (RoleID, error) {
	v, err := parseSnowflake(s, "role id")
	return RoleID(v), err
}

func ParseMessageID(s string) (MessageID, error) {
	v, err := parseSnowflake(s, "message id")
	return MessageID(v), err
}

// ParseRecordID parses a record id, rejecting the nil UUID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid record id")
	}
	if u == uuid.Nil {
		return RecordID{}, dErrors.New(dErrors.CodeInvalidInput, "record id must not be nil")
	}
	return RecordID(u), nil
}

// NewRecordID returns a fresh random record id.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

func (id UserID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id GuildID) String() string   { return strconv.FormatUint(uint64(id), 10) }
func (id ChannelID) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id RoleID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id MessageID) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id RecordID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool    { return id == 0 }
func (id GuildID) IsZero() bool   { return id == 0 }
func (id ChannelID) IsZero() bool { return id == 0 }
func (id RoleID) IsZero() bool    { return id == 0 }
func (id MessageID) IsZero() bool { return id == 0 }
func (id RecordID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }

// Snowflakes encode as JSON strings. Their values exceed the 53-bit integer
// range many JSON consumers support, and text encoding lets them key maps.

func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id GuildID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ChannelID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RoleID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id MessageID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	v, err := unmarshalOptional(b, "user id")
	*id = UserID(v)
	return err
}

func (id *GuildID) UnmarshalText(b []byte) error {
	v, err := unmarshalOptional(b, "guild id")
	*id = GuildID(v)
	return err
}

func (id *ChannelID) UnmarshalText(b []byte) error {
	v, err := unmarshalOptional(b, "channel id")
	*id = ChannelID(v)
	return err
}

func (id *RoleID) UnmarshalText(b []byte) error {
	v, err := unmarshalOptional(b, "role id")
	*id = RoleID(v)
	return err
}

func (id *MessageID) UnmarshalText(b []byte) error {
	v, err := unmarshalOptional(b, "message id")
	*id = MessageID(v)
	return err
}

func (id *RecordID) UnmarshalText(b []byte) error {
	if len(b) == 0 || string(b) == uuid.Nil.String() {
		*id = RecordID{}
		return nil
	}
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// unmarshalOptional decodes a snowflake where "" and "0" mean unset, which is
// how absent settings fields are persisted.
func unmarshalOptional(b []byte, kind string) (uint64, error) {
	if len(b) == 0 || string(b) == "0" {
		return 0, nil
	}
	return parseSnowflake(string(b), kind)
}
