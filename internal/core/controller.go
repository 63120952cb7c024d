package core

import (
	"context"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

// ControllerConfig tunes election and teardown behavior.
type ControllerConfig struct {
	// DestroyDelay is how long a hostless room lives once destruction is
	// scheduled.
	DestroyDelay time.Duration
	// GraceDelay is how long after an occupancy change the controller waits
	// before concluding the room really is hostless.
	GraceDelay time.Duration
	// RecheckInterval bounds the retry cadence for timers that fire ahead
	// of their recorded deadline.
	RecheckInterval time.Duration
	// OracleTimeout bounds each entitlement check.
	OracleTimeout time.Duration
	// DisplayName is the sender name on system-chat announcements.
	DisplayName string
	// Exempt names identities and rooms outside election.
	Exempt Exemptions
	// Clock defaults to the wall clock; tests inject a mock.
	Clock clock.Clock
}

// Decision answers a pre-join check.
type Decision struct {
	Admit       bool
	MembersOnly bool
}

// RoomInfo is a point-in-time view of one tracked room.
type RoomInfo struct {
	ID          RoomID
	HasHost     bool
	Host        OccupantID
	MembersOnly bool
	Occupants   []Occupant
	DestroyAt   *time.Time
}

type commandKind int

const (
	cmdPreJoin commandKind = iota
	cmdJoined
	cmdLeft
	cmdSessionClosed
	cmdRoomClosed
	cmdGrant
	cmdGraceExpired
	cmdDestroyFire
	cmdCancelDestroy
	cmdRevalidate
	cmdSnapshot
	cmdRoomInfo
)

// command is one unit of work for the controller loop. Exactly one of the
// reply channels is set, matching the kind.
type command struct {
	kind     commandKind
	room     RoomID
	occupant Occupant
	session  SessionID
	grant    Grant

	decision chan Decision
	boolRes  chan bool
	errRes   chan error
	infoRes  chan []RoomInfo
}

// Controller owns all room election state and serializes every mutation on
// a single goroutine. Anything that has to wait (oracle answers, timers)
// re-enters the loop as a command and re-checks its preconditions then.
type Controller struct {
	cfg       ControllerConfig
	rooms     RoomServer
	notifier  Notifier
	store     store.Store
	log       *zerolog.Logger
	clk       clock.Clock
	sessions  *SessionTable
	validator *HostValidator
	destroyer *Destroyer

	states   map[RoomID]*RoomState
	commands chan command
	quit     chan struct{}
}

// NewController wires the election controller. rooms, oracle, notifier, and
// st may each be nil, which disables the corresponding side effect; the
// election state machine itself keeps working.
func NewController(cfg ControllerConfig, rooms RoomServer, oracle EligibilityChecker, notifier Notifier, st store.Store, logger *zerolog.Logger) *Controller {
	if cfg.DestroyDelay <= 0 {
		cfg.DestroyDelay = 2 * time.Minute
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = time.Second
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Wiremeet"
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	c := &Controller{
		cfg:      cfg,
		rooms:    rooms,
		notifier: notifier,
		store:    st,
		log:      logger,
		clk:      clk,
		sessions: NewSessionTable(),
		states:   make(map[RoomID]*RoomState),
		commands: make(chan command, 64),
		quit:     make(chan struct{}),
	}
	c.validator = NewHostValidator(oracle, c.sessions, cfg.Exempt, cfg.OracleTimeout, logger)
	c.destroyer = NewDestroyer(clk, cfg.RecheckInterval, c.onDestroyFire, logger)
	return c
}

// Run processes commands until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.quit)
	defer c.destroyer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.commands:
			c.dispatch(ctx, cmd)
		}
	}
}

// ---- public API: room server events ----

// PreJoin decides whether an occupant may enter the room right now and
// whether the room must sit behind the waiting area first.
func (c *Controller) PreJoin(ctx context.Context, room RoomID, occ Occupant) (Decision, error) {
	cmd := command{kind: cmdPreJoin, room: room, occupant: occ, decision: make(chan Decision, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return Decision{}, err
	}
	select {
	case dec := <-cmd.decision:
		return dec, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case <-c.quit:
		return Decision{}, ErrStopped
	}
}

// OccupantJoined records that an occupant entered a room.
func (c *Controller) OccupantJoined(ctx context.Context, room RoomID, occ Occupant) error {
	return c.send(ctx, command{kind: cmdJoined, room: room, occupant: occ})
}

// OccupantLeft records that an occupant left a room.
func (c *Controller) OccupantLeft(ctx context.Context, room RoomID, occ Occupant) error {
	return c.send(ctx, command{kind: cmdLeft, room: room, occupant: occ})
}

// SessionClosed drops a closed connection and its validation cache.
func (c *Controller) SessionClosed(ctx context.Context, session SessionID) error {
	return c.send(ctx, command{kind: cmdSessionClosed, session: session})
}

// RoomClosed records that the room server tore a room down.
func (c *Controller) RoomClosed(ctx context.Context, room RoomID) error {
	return c.send(ctx, command{kind: cmdRoomClosed, room: room})
}

// ---- public API: admin operations ----

// CancelDestruction clears a pending destruction schedule. It reports
// whether one was armed.
func (c *Controller) CancelDestruction(ctx context.Context, room RoomID) (bool, error) {
	cmd := command{kind: cmdCancelDestroy, room: room, boolRes: make(chan bool, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return false, err
	}
	select {
	case cancelled := <-cmd.boolRes:
		return cancelled, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.quit:
		return false, ErrStopped
	}
}

// Revalidate re-runs host validation for every occupant of a hostless room.
func (c *Controller) Revalidate(ctx context.Context, room RoomID) error {
	cmd := command{kind: cmdRevalidate, room: room, errRes: make(chan error, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.errRes:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrStopped
	}
}

// Snapshot returns a consistent view of every tracked room.
func (c *Controller) Snapshot(ctx context.Context) ([]RoomInfo, error) {
	cmd := command{kind: cmdSnapshot, infoRes: make(chan []RoomInfo, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case infos := <-cmd.infoRes:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return nil, ErrStopped
	}
}

// RoomInfo returns the view of a single tracked room.
func (c *Controller) RoomInfo(ctx context.Context, room RoomID) (RoomInfo, error) {
	cmd := command{kind: cmdRoomInfo, room: room, infoRes: make(chan []RoomInfo, 1), errRes: make(chan error, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return RoomInfo{}, err
	}
	select {
	case infos := <-cmd.infoRes:
		return infos[0], nil
	case err := <-cmd.errRes:
		return RoomInfo{}, err
	case <-ctx.Done():
		return RoomInfo{}, ctx.Err()
	case <-c.quit:
		return RoomInfo{}, ErrStopped
	}
}

// ---- plumbing ----

func (c *Controller) send(ctx context.Context, cmd command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrStopped
	}
}

// submit delivers loop re-entries from timer and validator goroutines. It
// must never be called from the controller goroutine itself.
func (c *Controller) submit(cmd command) {
	select {
	case c.commands <- cmd:
	case <-c.quit:
	}
}

func (c *Controller) submitGrant(g Grant) {
	c.submit(command{kind: cmdGrant, grant: g})
}

func (c *Controller) onDestroyFire(room RoomID) {
	c.submit(command{kind: cmdDestroyFire, room: room})
}

func (c *Controller) scheduleGraceCheck(room RoomID) {
	c.clk.AfterFunc(c.cfg.GraceDelay, func() {
		c.submit(command{kind: cmdGraceExpired, room: room})
	})
}

func (c *Controller) dispatch(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdPreJoin:
		c.handlePreJoin(ctx, cmd)
	case cmdJoined:
		c.handleJoined(ctx, cmd)
	case cmdLeft:
		c.handleLeft(ctx, cmd)
	case cmdSessionClosed:
		c.sessions.Remove(cmd.session)
	case cmdRoomClosed:
		c.handleRoomClosed(cmd)
	case cmdGrant:
		c.handleGrant(ctx, cmd.grant)
	case cmdGraceExpired:
		c.handleGraceExpired(ctx, cmd.room)
	case cmdDestroyFire:
		c.handleDestroyFire(ctx, cmd.room)
	case cmdCancelDestroy:
		cmd.boolRes <- c.handleCancelDestroy(ctx, cmd.room, "cancelled by operator")
	case cmdRevalidate:
		cmd.errRes <- c.handleRevalidate(cmd.room)
	case cmdSnapshot:
		cmd.infoRes <- c.snapshotLocked()
	case cmdRoomInfo:
		if st, ok := c.states[cmd.room]; ok {
			cmd.infoRes <- []RoomInfo{c.roomInfoLocked(st)}
		} else {
			cmd.errRes <- ErrRoomNotTracked
		}
	}
}

// ---- event handlers; all run on the controller goroutine ----

func (c *Controller) handlePreJoin(ctx context.Context, cmd command) {
	dec := Decision{Admit: true}
	defer func() { cmd.decision <- dec }()

	if c.cfg.Exempt.SyntheticRoom(cmd.room) || c.cfg.Exempt.ServiceIdentity(cmd.occupant.ID) {
		return
	}

	st, tracked := c.states[cmd.room]
	if tracked && st.HasHost {
		return
	}
	if !tracked {
		st = newRoomState(cmd.room)
		c.states[cmd.room] = st
	}

	// No validated host: gate the room and start working on a candidate.
	st.MembersOnly = true
	dec.MembersOnly = true
	c.sessions.Ensure(cmd.occupant.Session)
	c.validator.Check(st, cmd.occupant, c.submitGrant)
	c.scheduleGraceCheck(cmd.room)
}

func (c *Controller) handleJoined(ctx context.Context, cmd command) {
	if c.cfg.Exempt.SyntheticRoom(cmd.room) || c.cfg.Exempt.ServiceIdentity(cmd.occupant.ID) {
		return
	}

	st := c.ensureRoom(ctx, cmd.room)
	occ := cmd.occupant
	st.Occupants[occ.ID] = occ
	c.sessions.Ensure(occ.Session)

	if st.HasHost {
		return
	}

	if occ.Affiliation == AffiliationOwner {
		// The room server already trusts this occupant as an owner, usually
		// after a warden restart. Adopt instead of re-electing.
		c.adoptHost(ctx, st, occ, "affiliation carried over")
		return
	}

	if !st.MembersOnly {
		c.setMembersOnly(ctx, st, true)
	}
	if c.notifier != nil {
		c.notifier.Notify(st.ID, occ.ID, waitingForHostText(), c.cfg.DisplayName)
	}
	c.validator.Check(st, occ, c.submitGrant)
	c.scheduleGraceCheck(cmd.room)
}

func (c *Controller) handleLeft(ctx context.Context, cmd command) {
	if c.cfg.Exempt.SyntheticRoom(cmd.room) || c.cfg.Exempt.ServiceIdentity(cmd.occupant.ID) {
		return
	}

	st, tracked := c.states[cmd.room]
	if !tracked {
		st = c.ensureRoom(ctx, cmd.room)
	}
	delete(st.Occupants, cmd.occupant.ID)

	if st.HasHost && st.Host == cmd.occupant.ID {
		// The host left. Prefer handing over to another owner already present.
		if heir, ok := c.findHeir(st); ok {
			st.Host = heir.ID
			c.log.Info().
				Str("room", string(st.ID)).
				Str("occupant", string(heir.ID)).
				Msg("host handed over")
			c.audit(ctx, st.ID, heir.ID, store.EventHostHandover, "")
			return
		}

		st.HasHost = false
		st.Host = ""
		c.log.Info().
			Str("room", string(st.ID)).
			Str("occupant", string(cmd.occupant.ID)).
			Msg("host lost")
		c.audit(ctx, st.ID, cmd.occupant.ID, store.EventHostLost, "")

		// Best-effort re-election among whoever stayed.
		for _, occ := range c.sortedOccupants(st) {
			c.validator.Check(st, occ, c.submitGrant)
		}
	}

	if !st.HasHost {
		c.scheduleGraceCheck(st.ID)
	}
}

func (c *Controller) handleRoomClosed(cmd command) {
	c.destroyer.Cancel(cmd.room)
	if _, ok := c.states[cmd.room]; ok {
		delete(c.states, cmd.room)
		c.log.Debug().Str("room", string(cmd.room)).Msg("room closed by server")
	}
}

// handleGrant applies a positive validation outcome. The grant may be stale
// by the time it gets here, so every precondition is checked again.
func (c *Controller) handleGrant(ctx context.Context, g Grant) {
	st, tracked := c.states[g.Room]
	if !tracked {
		c.log.Debug().Str("room", string(g.Room)).Msg("grant discarded: room gone")
		return
	}
	if st.HasHost {
		c.log.Debug().Str("room", string(g.Room)).Str("occupant", string(g.Occupant)).Msg("grant discarded: host already present")
		return
	}
	occ, present := st.Occupants[g.Occupant]
	if !present {
		c.log.Debug().Str("room", string(g.Room)).Str("occupant", string(g.Occupant)).Msg("grant discarded: occupant left")
		return
	}
	if occ.Session != g.Session {
		c.log.Debug().Str("room", string(g.Room)).Str("occupant", string(g.Occupant)).Msg("grant discarded: session changed")
		return
	}

	if c.rooms != nil {
		if err := c.rooms.SetAffiliation(ctx, st.ID, occ.ID, AffiliationOwner); err != nil {
			// The room stays hostless; a pending schedule keeps counting down.
			c.log.Warn().Err(err).
				Str("room", string(st.ID)).
				Str("occupant", string(occ.ID)).
				Msg("promotion failed: set affiliation")
			return
		}
		if err := c.rooms.SetRole(ctx, st.ID, occ.ID, RoleModerator); err != nil {
			c.log.Warn().Err(err).
				Str("room", string(st.ID)).
				Str("occupant", string(occ.ID)).
				Msg("promotion degraded: set role")
		}
	}

	occ.Affiliation = AffiliationOwner
	occ.Role = RoleModerator
	st.Occupants[occ.ID] = occ
	st.HasHost = true
	st.Host = occ.ID

	c.log.Info().
		Str("room", string(st.ID)).
		Str("occupant", string(occ.ID)).
		Msg("host granted")
	c.audit(ctx, st.ID, occ.ID, store.EventHostGranted, "")

	c.handleCancelDestroy(ctx, st.ID, "host validated")

	if st.MembersOnly {
		c.setMembersOnly(ctx, st, false)
		if c.notifier != nil {
			c.notifier.Broadcast(st.ID, hostArrivedText(occ.DisplayName()), c.cfg.DisplayName)
		}
	}
}

// handleGraceExpired arms destruction if the room is still hostless once the
// grace window after an occupancy change has passed.
func (c *Controller) handleGraceExpired(ctx context.Context, room RoomID) {
	st, tracked := c.states[room]
	if !tracked || st.HasHost {
		return
	}

	fireAt, armed := c.destroyer.Arm(room, c.cfg.DestroyDelay)
	if !armed {
		return
	}

	c.log.Info().
		Str("room", string(room)).
		Time("fire_at", fireAt).
		Msg("destruction scheduled")
	c.audit(ctx, room, "", store.EventDestructionScheduled, "fires in "+formatDelay(c.cfg.DestroyDelay))
	if c.notifier != nil {
		c.notifier.Broadcast(room, destructionWarningText(c.cfg.DestroyDelay), c.cfg.DisplayName)
	}
}

// handleDestroyFire performs the teardown a timer asked for, unless the
// world moved on while the command sat in the queue.
func (c *Controller) handleDestroyFire(ctx context.Context, room RoomID) {
	st, tracked := c.states[room]
	if !tracked {
		c.destroyer.Cancel(room)
		return
	}

	deadline, armed := c.destroyer.Deadline(room)
	if !armed {
		return
	}
	if c.clk.Now().Before(deadline) {
		// Re-armed with a later deadline; its own timer owns it now.
		return
	}

	if st.HasHost {
		c.handleCancelDestroy(ctx, room, "host present at deadline")
		return
	}

	if c.rooms != nil {
		if err := c.rooms.DestroyRoom(ctx, room, DestroyReasonNoModerator); err != nil {
			// The room lives on. Drop the spent schedule; the next occupancy
			// change arms a fresh one.
			c.log.Warn().Err(err).Str("room", string(room)).Msg("destroy request failed")
			c.destroyer.Cancel(room)
			return
		}
	}

	c.destroyer.Cancel(room)
	delete(c.states, room)

	c.log.Info().Str("room", string(room)).Str("reason", DestroyReasonNoModerator).Msg("room destroyed")
	c.audit(ctx, room, "", store.EventRoomDestroyed, DestroyReasonNoModerator)
}

func (c *Controller) handleCancelDestroy(ctx context.Context, room RoomID, detail string) bool {
	if !c.destroyer.Cancel(room) {
		return false
	}
	c.audit(ctx, room, "", store.EventDestructionCancelled, detail)
	if c.notifier != nil {
		c.notifier.Broadcast(room, destructionCancelledText(), c.cfg.DisplayName)
	}
	return true
}

func (c *Controller) handleRevalidate(room RoomID) error {
	st, tracked := c.states[room]
	if !tracked {
		return ErrRoomNotTracked
	}
	if st.HasHost {
		return nil
	}
	for _, occ := range c.sortedOccupants(st) {
		c.validator.Check(st, occ, c.submitGrant)
	}
	return nil
}

// ---- helpers; all run on the controller goroutine ----

// ensureRoom returns the tracked state for a room, rebuilding it from the
// room server when an event references a room the warden has never seen
// (typically after a restart).
func (c *Controller) ensureRoom(ctx context.Context, room RoomID) *RoomState {
	if st, ok := c.states[room]; ok {
		return st
	}

	st := newRoomState(room)
	c.states[room] = st

	if c.rooms == nil {
		return st
	}
	occs, err := c.rooms.Occupants(ctx, room)
	if err != nil {
		c.log.Warn().Err(err).Str("room", string(room)).Msg("occupant reconciliation failed")
		return st
	}
	for _, occ := range occs {
		if c.cfg.Exempt.ServiceIdentity(occ.ID) {
			continue
		}
		st.Occupants[occ.ID] = occ
		c.sessions.Ensure(occ.Session)
		if !st.HasHost && occ.Affiliation == AffiliationOwner {
			st.HasHost = true
			st.Host = occ.ID
		}
	}
	if len(occs) > 0 {
		c.log.Info().
			Str("room", string(room)).
			Int("occupants", len(st.Occupants)).
			Bool("has_host", st.HasHost).
			Msg("room state reconciled")
	}
	return st
}

// adoptHost recognizes an occupant the room server already marked as owner.
func (c *Controller) adoptHost(ctx context.Context, st *RoomState, occ Occupant, detail string) {
	st.HasHost = true
	st.Host = occ.ID

	c.log.Info().
		Str("room", string(st.ID)).
		Str("occupant", string(occ.ID)).
		Msg("host adopted")
	c.audit(ctx, st.ID, occ.ID, store.EventHostGranted, detail)

	c.handleCancelDestroy(ctx, st.ID, "host adopted")
	if st.MembersOnly {
		c.setMembersOnly(ctx, st, false)
		if c.notifier != nil {
			c.notifier.Broadcast(st.ID, hostArrivedText(occ.DisplayName()), c.cfg.DisplayName)
		}
	}
}

// findHeir picks the remaining owner-affiliated occupant, lowest id first so
// repeated runs agree.
func (c *Controller) findHeir(st *RoomState) (Occupant, bool) {
	var heir Occupant
	found := false
	for _, occ := range st.Occupants {
		if occ.Affiliation != AffiliationOwner {
			continue
		}
		if !found || occ.ID < heir.ID {
			heir = occ
			found = true
		}
	}
	return heir, found
}

func (c *Controller) setMembersOnly(ctx context.Context, st *RoomState, enabled bool) {
	if c.rooms != nil {
		if err := c.rooms.SetMembersOnly(ctx, st.ID, enabled); err != nil {
			c.log.Warn().Err(err).
				Str("room", string(st.ID)).
				Bool("enabled", enabled).
				Msg("waiting area change failed")
			return
		}
	}
	st.MembersOnly = enabled
}

func (c *Controller) sortedOccupants(st *RoomState) []Occupant {
	occs := make([]Occupant, 0, len(st.Occupants))
	for _, occ := range st.Occupants {
		occs = append(occs, occ)
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].ID < occs[j].ID })
	return occs
}

func (c *Controller) roomInfoLocked(st *RoomState) RoomInfo {
	info := RoomInfo{
		ID:          st.ID,
		HasHost:     st.HasHost,
		Host:        st.Host,
		MembersOnly: st.MembersOnly,
		Occupants:   c.sortedOccupants(st),
	}
	if deadline, ok := c.destroyer.Deadline(st.ID); ok {
		info.DestroyAt = &deadline
	}
	return info
}

func (c *Controller) snapshotLocked() []RoomInfo {
	infos := make([]RoomInfo, 0, len(c.states))
	for _, st := range c.states {
		infos = append(infos, c.roomInfoLocked(st))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (c *Controller) audit(ctx context.Context, room RoomID, occ OccupantID, kind store.RoomEventKind, detail string) {
	if c.store == nil {
		return
	}
	ev := &store.RoomEvent{
		RoomID:     string(room),
		Kind:       kind,
		OccupantID: string(occ),
		Detail:     detail,
	}
	if err := c.store.RecordRoomEvent(ctx, ev); err != nil {
		c.log.Warn().Err(err).Str("room", string(room)).Msg("failed to record audit event")
	}
}
