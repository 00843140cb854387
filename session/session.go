// Package session implements the self-contained signed session token and
// its renewal state machine. Tokens live entirely in the cookie; there is
// no server-side session store.
package session

import (
	"strings"
	"time"

	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/members"
)

// Data is the session payload carried in the signed cookie. All timestamps
// are epoch milliseconds. Legacy cookies predate the renewal metadata
// (IssuedAt, LastSeenAt, MembershipCheckedAt, AbsoluteExp); those fields
// decode to zero and are reconstructed on read.
type Data struct {
	Email               string           `json:"email"`
	Name                string           `json:"name,omitempty"`
	Alias               string           `json:"alias,omitempty"`
	Picture             string           `json:"picture,omitempty"`
	Role                members.RoleType `json:"role"`
	Exp                 int64            `json:"exp"`
	IssuedAt            int64            `json:"issuedAt,omitempty"`
	LastSeenAt          int64            `json:"lastSeenAt,omitempty"`
	MembershipCheckedAt int64            `json:"membershipCheckedAt,omitempty"`
	AbsoluteExp         int64            `json:"absoluteExp,omitempty"`
}

// hasMetadata reports whether the raw token carried the full renewal
// metadata, i.e. it is not a legacy token.
func (d Data) hasMetadata() bool {
	return d.IssuedAt > 0 && d.LastSeenAt > 0 && d.MembershipCheckedAt > 0 && d.AbsoluteExp > 0
}

// normalize validates a decoded token and fills in any missing renewal
// metadata. Legacy tokens have IssuedAt inferred from the old fixed 7-day
// expiry convention, falling back to now. Timestamps are clamped into
// [IssuedAt, now] so a tampering-free but skewed token can never claim
// activity from the future.
func (m *Manager) normalize(raw Data, now int64) (*Data, error) {
	email := strings.ToLower(strings.TrimSpace(raw.Email))
	if email == "" {
		return nil, apperrors.ErrInvalidSession
	}
	if !members.ValidRole(raw.Role) {
		return nil, apperrors.ErrInvalidSession
	}

	issuedAt := timestamp(raw.IssuedAt)
	if issuedAt == 0 {
		issuedAt = m.inferLegacyIssuedAt(timestamp(raw.Exp), now)
	}
	if issuedAt == 0 {
		issuedAt = now
	}

	absoluteExp := timestamp(raw.AbsoluteExp)
	if absoluteExp == 0 {
		absoluteExp = issuedAt + m.opts.AbsoluteTTL.Milliseconds()
	}

	lastSeenAt := timestamp(raw.LastSeenAt)
	if lastSeenAt == 0 {
		lastSeenAt = issuedAt
	}
	lastSeenAt = clamp(lastSeenAt, issuedAt, now)

	membershipCheckedAt := timestamp(raw.MembershipCheckedAt)
	if membershipCheckedAt == 0 {
		membershipCheckedAt = issuedAt
	}
	membershipCheckedAt = clamp(membershipCheckedAt, issuedAt, now)

	exp := timestamp(raw.Exp)
	if exp == 0 {
		exp = lastSeenAt + m.opts.IdleTTL.Milliseconds()
	}
	if exp > absoluteExp {
		exp = absoluteExp
	}

	return &Data{
		Email:               email,
		Name:                raw.Name,
		Alias:               raw.Alias,
		Picture:             raw.Picture,
		Role:                raw.Role,
		Exp:                 exp,
		IssuedAt:            issuedAt,
		LastSeenAt:          lastSeenAt,
		MembershipCheckedAt: membershipCheckedAt,
		AbsoluteExp:         absoluteExp,
	}, nil
}

// inferLegacyIssuedAt recovers an issue time from a legacy token's fixed
// 7-day expiry. Returns zero when the result would be nonsensical.
func (m *Manager) inferLegacyIssuedAt(exp, now int64) int64 {
	if exp == 0 {
		return 0
	}
	inferred := exp - m.opts.LegacyTTL.Milliseconds()
	if inferred <= 0 || inferred > now {
		return 0
	}
	return inferred
}

func timestamp(v int64) int64 {
	if v <= 0 {
		return 0
	}
	return v
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func nowMillis(now time.Time) int64 {
	return now.UnixMilli()
}
