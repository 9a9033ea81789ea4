package governance

import (
	"log/slog"
	"slices"
)

// AccessDecision is the outcome of an access check.
type AccessDecision int

const (
	// AccessGranted: right origin and the caller holds the role.
	AccessGranted AccessDecision = iota
	// AccessIgnored: the command came from another origin. No reply is sent.
	AccessIgnored
	// AccessDenied: right origin but the caller lacks the role.
	AccessDenied
)

func (d AccessDecision) String() string {
	switch d {
	case AccessGranted:
		return "granted"
	case AccessIgnored:
		return "ignored"
	case AccessDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Caller identifies who sent a command and from where.
type Caller struct {
	UserID   string
	OriginID string
	Roles    []string
}

// AccessPolicy admits callers from one origin (a Discord guild or an XMPP
// room/domain) holding one role.
type AccessPolicy struct {
	OriginID string
	RoleID   string
}

func NewAccessPolicy(originID, roleID string) AccessPolicy {
	return AccessPolicy{OriginID: originID, RoleID: roleID}
}

func (p AccessPolicy) Check(c Caller) AccessDecision {
	if c.OriginID != p.OriginID {
		slog.Info("ignoring command from foreign origin", "user_id", c.UserID, "origin_id", c.OriginID)
		return AccessIgnored
	}
	if !slices.Contains(c.Roles, p.RoleID) {
		return AccessDenied
	}
	return AccessGranted
}
