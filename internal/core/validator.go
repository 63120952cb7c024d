package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Grant reports a successful host validation back to the controller. It
// names the session the validation belongs to so a grant that outlives the
// connection can be recognized as stale.
type Grant struct {
	Room     RoomID
	Occupant OccupantID
	Session  SessionID
}

// HostValidator decides whether an occupant may be promoted to host of a
// room. Cheap disqualifications happen inline; only the oracle round-trip
// leaves the calling goroutine.
type HostValidator struct {
	oracle   EligibilityChecker
	sessions SessionDirectory
	exempt   Exemptions
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewHostValidator creates a validator. timeout bounds each oracle call.
func NewHostValidator(oracle EligibilityChecker, sessions SessionDirectory, exempt Exemptions, timeout time.Duration, logger *zerolog.Logger) *HostValidator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HostValidator{
		oracle:   oracle,
		sessions: sessions,
		exempt:   exempt,
		timeout:  timeout,
		log:      logger,
	}
}

// Check runs the validation pipeline for one occupant. onSuccess is invoked
// at most once, always from a separate goroutine, and only for a positive
// outcome. No room state is mutated here; the controller re-checks the
// room's preconditions when the grant re-enters its loop.
func (v *HostValidator) Check(rs *RoomState, occ Occupant, onSuccess func(Grant)) {
	if v.exempt.ServiceIdentity(occ.ID) {
		return
	}
	if v.exempt.SyntheticRoom(rs.ID) {
		return
	}
	if rs.HasHost {
		return
	}

	sess, ok := v.sessions.Lookup(occ.Session)
	if !ok || sess == nil {
		v.log.Debug().
			Str("room", string(rs.ID)).
			Str("occupant", string(occ.ID)).
			Msg("host check skipped: no resolvable session")
		return
	}

	grant := Grant{Room: rs.ID, Occupant: occ.ID, Session: sess.ID()}

	// A session that already proved eligibility skips the oracle.
	if sess.IsValidHost() {
		go onSuccess(grant)
		return
	}

	if v.oracle == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()

		eligible, err := v.oracle.CheckEligibility(ctx, sess.ID())
		if err != nil {
			v.log.Debug().Err(err).
				Str("room", string(grant.Room)).
				Str("occupant", string(grant.Occupant)).
				Msg("entitlement check failed")
			return
		}
		if !eligible {
			return
		}

		sess.MarkValidHost()
		onSuccess(grant)
	}()
}
