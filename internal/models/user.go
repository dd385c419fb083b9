package models

import "time"

// Role is the closed set of account types a chat partner can have.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleSchool     Role = "school"
	RolePartner    Role = "partner"
	RoleUnknown    Role = "unknown"
)

// NormalizeRole maps whatever shape the directory stores for the role
// field (string, or a list where the first recognized tag wins) onto
// the closed Role set. Callers past this boundary never re-check.
func NormalizeRole(raw any) Role {
	switch v := raw.(type) {
	case string:
		return roleFromString(v)
	case []string:
		for _, s := range v {
			if r := roleFromString(s); r != RoleUnknown {
				return r
			}
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if r := roleFromString(s); r != RoleUnknown {
					return r
				}
			}
		}
	}
	return RoleUnknown
}

func roleFromString(s string) Role {
	switch Role(s) {
	case RoleStudent, RoleInstructor, RoleSchool, RolePartner:
		return Role(s)
	}
	return RoleUnknown
}

// PartnerMetadata is the display info for a chat counterparty.
type PartnerMetadata struct {
	ID          string    `bson:"_id" json:"id"`
	DisplayName string    `bson:"display_name" json:"display_name"`
	PhotoURL    string    `bson:"photo_url" json:"photo_url"`
	Role        Role      `bson:"role" json:"role"`
	LastSeen    time.Time `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
}

// PlaceholderMetadata is what a conversation renders with while the
// directory lookup is pending or the partner record is gone.
func PlaceholderMetadata(id string) *PartnerMetadata {
	return &PartnerMetadata{ID: id, DisplayName: "Unknown user", Role: RoleUnknown}
}
