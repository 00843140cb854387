package session

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mruedinger/game-club/cookie"
	"github.com/mruedinger/game-club/members"
)

// MembershipLookup re-validates a session's identity against the
// authoritative membership store. members.Repo satisfies it.
type MembershipLookup interface {
	GetActive(email string) (*members.Member, error)
}

// Options configure the session lifetime state machine.
type Options struct {
	CookieName        string
	IdleTTL           time.Duration // inactivity window, extended on touch
	AbsoluteTTL       time.Duration // hard ceiling from IssuedAt, never extended
	MembershipRecheck time.Duration // max staleness of role/active status
	ActivityTouch     time.Duration // min interval between LastSeenAt updates
	LegacyTTL         time.Duration // fixed expiry convention of pre-metadata tokens

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager issues, reads, renews, and invalidates session cookies.
type Manager struct {
	codec   *cookie.Codec
	opts    Options
	members MembershipLookup
	log     zerolog.Logger
}

func NewManager(codec *cookie.Codec, lookup MembershipLookup, opts Options, log zerolog.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{codec: codec, opts: opts, members: lookup, log: log}
}

// Issue normalizes data into a canonical session and returns the signed
// cookie. The cookie max-age is the idle TTL; idle and absolute expiry are
// re-checked from the token's own fields on every read regardless.
func (m *Manager) Issue(data Data, secure bool) (*http.Cookie, error) {
	now := nowMillis(m.opts.Now())
	canonical, err := m.normalize(data, now)
	if err != nil {
		return nil, err
	}
	value, err := m.codec.Encode(canonical)
	if err != nil {
		return nil, err
	}
	return cookie.New(m.opts.CookieName, value, int(m.opts.IdleTTL.Seconds()), secure), nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear(secure bool) *http.Cookie {
	return cookie.Cleared(m.opts.CookieName, secure)
}

// Read runs the session state machine against the request's cookie. It
// returns the validated session, or nil when the request is
// unauthenticated. The second return value is a Set-Cookie the caller must
// attach to the response: a refreshed token after a legacy upgrade, a
// membership recheck, or an activity touch, or a cleared cookie after an
// invariant failure. It is nil when no cookie churn is needed.
//
// Every failure path degrades to "no session"; only a misconfigured codec
// (caught at startup) is fatal.
func (m *Manager) Read(r *http.Request) (*Data, *http.Cookie) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	secure := isSecure(r)

	var raw Data
	if !m.codec.Decode(c.Value, &raw) {
		// Forged or garbage cookie: treat as absent.
		return nil, nil
	}

	now := nowMillis(m.opts.Now())
	data, err := m.normalize(raw, now)
	if err != nil {
		return nil, m.Clear(secure)
	}

	if now > data.Exp || now > data.AbsoluteExp || now-data.LastSeenAt > m.opts.IdleTTL.Milliseconds() {
		return nil, m.Clear(secure)
	}

	reissue := !raw.hasMetadata()

	if now-data.MembershipCheckedAt >= m.opts.MembershipRecheck.Milliseconds() {
		member, err := m.members.GetActive(data.Email)
		if err != nil {
			m.log.Debug().Err(err).Str("email", data.Email).Msg("membership recheck failed, clearing session")
			return nil, m.Clear(secure)
		}
		data.Name = member.Name
		data.Alias = member.Alias
		data.Role = member.Role
		data.MembershipCheckedAt = now
		reissue = true
	}

	if now-data.LastSeenAt >= m.opts.ActivityTouch.Milliseconds() {
		data.LastSeenAt = now
		exp := now + m.opts.IdleTTL.Milliseconds()
		if exp > data.AbsoluteExp {
			exp = data.AbsoluteExp
		}
		data.Exp = exp
		reissue = true
	}

	if !reissue {
		return data, nil
	}

	refreshed, err := m.Issue(*data, secure)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to re-issue session cookie")
		return data, nil
	}
	return data, refreshed
}

// isSecure reports whether the request arrived over TLS, directly or via a
// trusted proxy.
func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
