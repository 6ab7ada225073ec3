// Package injury watches rostered players around kickoff and raises alerts
// when one is ruled out.
package injury

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/notify"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

const (
	DefaultInterval = 2 * time.Minute
	UrgentInterval  = time.Minute
	// UrgentWithin is the time-to-kickoff below which the urgent interval applies.
	UrgentWithin = 30 * time.Minute

	NotificationType = "injury_alert"
)

// DataStore is the slice of the store the monitor reads and writes.
type DataStore interface {
	ListActiveLeagues(ctx context.Context) ([]models.League, error)
	ListRosterSlots(ctx context.Context, leagueID string) ([]models.RosterSlot, error)
	GetPlayers(ctx context.Context, ids []string) (map[string]models.Player, error)
	UpdatePlayerStatus(ctx context.Context, id string, status models.PlayerStatus, injury string) error
	FindProjection(ctx context.Context, playerID string, season, week int) (*models.Projection, error)
	GetUserPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	CreateInjuryAlert(ctx context.Context, alert *models.InjuryAlert) error
	UpdateInjuryAlert(ctx context.Context, alert *models.InjuryAlert) error
}

// StatusFeed supplies live availability.
type StatusFeed interface {
	GetState(ctx context.Context) (*providers.NFLState, error)
	GetPlayerStatuses(ctx context.Context, playerIDs []string) (map[string]models.PlayerStatus, error)
}

type Config struct {
	DefaultInterval time.Duration
	UrgentInterval  time.Duration
	DefaultTimezone string
	StatusCacheSize int
}

// Status is a point-in-time view of the monitor.
type Status struct {
	Running         bool       `json:"running"`
	IntervalSeconds float64    `json:"interval_seconds"`
	LastPollAt      *time.Time `json:"last_poll_at,omitempty"`
	Polls           int64      `json:"polls"`
	AlertsEmitted   int64      `json:"alerts_emitted"`
	TrackedPlayers  int        `json:"tracked_players"`
	NextKickoff     *time.Time `json:"next_kickoff,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

type transition struct {
	from, to models.PlayerStatus
}

type Monitor struct {
	store    DataStore
	feed     StatusFeed
	schedule Schedule
	notifier notify.Dispatcher
	clock    clockwork.Clock
	statuses *StatusCache
	cfg      Config
	loc      *time.Location
	logger   *logrus.Entry

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	interval    time.Duration
	lastPoll    *time.Time
	polls       int64
	alerts      int64
	nextKickoff *time.Time
	lastError   string
}

func NewMonitor(data DataStore, feed StatusFeed, schedule Schedule, notifier notify.Dispatcher, clock clockwork.Clock, cfg Config, log *logrus.Logger) *Monitor {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultInterval
	}
	if cfg.UrgentInterval <= 0 {
		cfg.UrgentInterval = UrgentInterval
	}
	if schedule == nil {
		schedule = NewWindowSchedule()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil || cfg.DefaultTimezone == "" {
		loc = time.UTC
	}
	return &Monitor{
		store:    data,
		feed:     feed,
		schedule: schedule,
		notifier: notifier,
		clock:    clock,
		statuses: NewStatusCache(cfg.StatusCacheSize),
		cfg:      cfg,
		loc:      loc,
		logger:   logger.WithComponent(log, "injury_monitor"),
		interval: cfg.DefaultInterval,
	}
}

// UrgencyFor maps minutes to kickoff onto an alert tier.
func UrgencyFor(minutesToKickoff int) (models.Urgency, bool) {
	switch {
	case minutesToKickoff < 10:
		return models.UrgencyCritical, true
	case minutesToKickoff < 30:
		return models.UrgencyHigh, false
	case minutesToKickoff < 60:
		return models.UrgencyMedium, false
	default:
		return models.UrgencyLow, false
	}
}

// Start launches the polling loop. Calling Start on a running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.logger.Warn("Injury monitor already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.interval = m.cfg.DefaultInterval

	go m.run(runCtx, m.done)
	m.logger.WithField("interval", m.interval).Info("Injury monitor started")
}

// Stop cancels the loop, waits for it to exit and clears the status cache.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	m.running = false
	m.cancel = nil
	m.interval = m.cfg.DefaultInterval
	m.nextKickoff = nil
	m.mu.Unlock()
	m.statuses.Clear()
	m.logger.Info("Injury monitor stopped")
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:         m.running,
		IntervalSeconds: m.interval.Seconds(),
		LastPollAt:      m.lastPoll,
		Polls:           m.polls,
		AlertsEmitted:   m.alerts,
		TrackedPlayers:  m.statuses.Len(),
		NextKickoff:     m.nextKickoff,
		LastError:       m.lastError,
	}
}

func (m *Monitor) currentInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.cycle(ctx)
	timer := m.clock.NewTimer(m.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			m.cycle(ctx)
			timer.Reset(m.currentInterval())
		}
	}
}

// cycle runs one poll and never lets its failure escape the loop.
func (m *Monitor) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.recordError(fmt.Errorf("poll panicked: %v", r))
		}
	}()
	if _, err := m.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.recordError(err)
	}
}

func (m *Monitor) recordError(err error) {
	m.logger.WithError(err).Error("Injury poll failed")
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
}

type monitoredLeague struct {
	league models.League
	loc    *time.Location
	slots  []models.RosterSlot
}

// Poll checks every rostered player of every active league once and returns
// the alerts it created.
func (m *Monitor) Poll(ctx context.Context) ([]*models.InjuryAlert, error) {
	now := m.clock.Now()
	defer m.recordPoll(now)

	leagues, err := m.store.ListActiveLeagues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active leagues: %w", err)
	}
	m.adjustInterval(now, leagues)

	var monitored []monitoredLeague
	seen := make(map[string]bool)
	var ids []string
	for _, league := range leagues {
		loc := m.location(league)
		if !m.schedule.InWindow(now, loc) {
			continue
		}
		slots, err := m.store.ListRosterSlots(ctx, league.ID)
		if err != nil {
			m.logger.WithError(err).WithField("league_id", league.ID).Warn("Failed to load roster")
			continue
		}
		monitored = append(monitored, monitoredLeague{league: league, loc: loc, slots: slots})
		for _, slot := range slots {
			if !seen[slot.PlayerID] {
				seen[slot.PlayerID] = true
				ids = append(ids, slot.PlayerID)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	players, err := m.store.GetPlayers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load rostered players: %w", err)
	}
	fresh, err := m.feed.GetPlayerStatuses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player statuses: %w", err)
	}
	state, err := m.feed.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch league state: %w", err)
	}

	changes := m.detectChanges(ctx, ids, players, fresh)

	var created []*models.InjuryAlert
	for _, ml := range monitored {
		for _, slot := range ml.slots {
			change, ok := changes[slot.PlayerID]
			if !ok || change.to != models.StatusOut {
				continue
			}
			alert, err := m.raiseAlert(ctx, ml, players[slot.PlayerID], change, players, fresh, state.Week, now)
			if err != nil {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"league_id": ml.league.ID,
					"player_id": slot.PlayerID,
				}).Error("Failed to raise injury alert")
				continue
			}
			if alert != nil {
				created = append(created, alert)
			}
		}
	}

	m.mu.Lock()
	m.alerts += int64(len(created))
	m.mu.Unlock()
	return created, nil
}

func (m *Monitor) recordPoll(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	m.lastPoll = &at
}

// detectChanges compares fresh statuses with the last seen ones. A player
// never seen before is compared with the stored status.
func (m *Monitor) detectChanges(ctx context.Context, ids []string, players map[string]models.Player, fresh map[string]models.PlayerStatus) map[string]transition {
	changes := make(map[string]transition)
	for _, id := range ids {
		status, ok := fresh[id]
		if !ok {
			continue
		}
		previous, cached := m.statuses.Get(id)
		if !cached {
			player, known := players[id]
			if !known {
				m.statuses.Set(id, status)
				continue
			}
			previous = player.Status
		}
		m.statuses.Set(id, status)
		if previous == status {
			continue
		}

		changes[id] = transition{from: previous, to: status}
		designation := ""
		if status != models.StatusActive {
			designation = string(status)
		}
		if err := m.store.UpdatePlayerStatus(ctx, id, status, designation); err != nil {
			m.logger.WithError(err).WithField("player_id", id).Warn("Failed to persist status change")
		}
		m.logger.WithFields(logrus.Fields{
			"player_id": id,
			"from":      previous,
			"to":        status,
		}).Info("Player status changed")
	}
	return changes
}

func (m *Monitor) raiseAlert(ctx context.Context, ml monitoredLeague, player models.Player, change transition, players map[string]models.Player, fresh map[string]models.PlayerStatus, week int, now time.Time) (*models.InjuryAlert, error) {
	kickoff, ok := m.schedule.Kickoff(player.Team, now, ml.loc)
	if !ok {
		return nil, nil
	}
	until := kickoff.Sub(now)
	if until < -AlertAfter || until > AlertBefore {
		return nil, nil
	}
	minutes := int(until / time.Minute)
	urgency, isUrgent := UrgencyFor(minutes)

	alert := &models.InjuryAlert{
		ID:               uuid.NewString(),
		LeagueID:         ml.league.ID,
		UserID:           ml.league.OwnerUserID,
		PlayerID:         player.ID,
		PreviousStatus:   change.from,
		NewStatus:        change.to,
		Urgency:          urgency,
		IsUrgent:         isUrgent,
		MinutesToKickoff: minutes,
		Kickoff:          kickoff,
		CreatedAt:        now,
	}

	sub, subPoints := m.findSubstitute(ctx, ml, player, players, fresh, week, now)
	if sub != nil {
		alert.SubstitutePlayerID = &sub.ID
		alert.SubstituteProjection = subPoints
		alert.AutoSubstituted = m.wantsAutoSubstitute(ctx, ml.league.OwnerUserID)
	}

	if err := m.store.CreateInjuryAlert(ctx, alert); err != nil {
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{
		"alert_id":  alert.ID,
		"league_id": alert.LeagueID,
		"player_id": alert.PlayerID,
		"urgency":   alert.Urgency,
		"minutes":   minutes,
	}).Warn("Injury alert raised")

	m.dispatch(ctx, alert, player, sub, now)
	return alert, nil
}

// findSubstitute picks the bench player at the same position with the highest
// projection whose game has not started. Ties go to the later kickoff.
func (m *Monitor) findSubstitute(ctx context.Context, ml monitoredLeague, injured models.Player, players map[string]models.Player, fresh map[string]models.PlayerStatus, week int, now time.Time) (*models.Player, float64) {
	var best *models.Player
	var bestPoints float64
	var bestKickoff time.Time

	for _, slot := range ml.slots {
		if slot.IsStarter || slot.PlayerID == injured.ID {
			continue
		}
		candidate, ok := players[slot.PlayerID]
		if !ok || candidate.Position != injured.Position {
			continue
		}
		status := candidate.Status
		if s, ok := fresh[candidate.ID]; ok {
			status = s
		}
		if status.CannotPlay() {
			continue
		}
		kickoff, ok := m.schedule.Kickoff(candidate.Team, now, ml.loc)
		if !ok || !kickoff.After(now) {
			continue
		}

		points := m.projectedPoints(ctx, candidate.ID, ml.league.Season, week)
		if best == nil || points > bestPoints || (points == bestPoints && kickoff.After(bestKickoff)) {
			c := candidate
			best = &c
			bestPoints = points
			bestKickoff = kickoff
		}
	}
	return best, bestPoints
}

func (m *Monitor) projectedPoints(ctx context.Context, playerID string, season, week int) float64 {
	proj, err := m.store.FindProjection(ctx, playerID, season, week)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.WithError(err).WithField("player_id", playerID).Warn("Failed to load projection")
		}
		return 0
	}
	return proj.ProjectedPoints
}

func (m *Monitor) wantsAutoSubstitute(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	prefs, err := m.store.GetUserPreferences(ctx, userID)
	if err != nil {
		return false
	}
	return prefs.AutoSubstitute
}

func (m *Monitor) dispatch(ctx context.Context, alert *models.InjuryAlert, player models.Player, sub *models.Player, now time.Time) {
	if m.notifier == nil || alert.UserID == "" {
		return
	}

	body := "No healthy bench replacement available."
	if sub != nil {
		verb := "Consider starting"
		if alert.AutoSubstituted {
			verb = "Auto-substituted"
		}
		body = fmt.Sprintf("%s %s (%.1f projected).", verb, sub.FullName, alert.SubstituteProjection)
	}
	n := notify.Notification{
		Type:    NotificationType,
		Title:   fmt.Sprintf("%s (%s) ruled OUT, kickoff in %d min", player.FullName, player.Position, alert.MinutesToKickoff),
		Body:    body,
		Urgency: alert.Urgency,
		AlertID: alert.ID,
		Data:    alert,
	}
	if err := m.notifier.Notify(ctx, alert.UserID, n); err != nil {
		m.logger.WithError(err).WithField("alert_id", alert.ID).Warn("Failed to deliver injury alert")
		return
	}

	alert.NotificationSent = true
	alert.NotifiedAt = &now
	if err := m.store.UpdateInjuryAlert(ctx, alert); err != nil {
		m.logger.WithError(err).WithField("alert_id", alert.ID).Warn("Failed to record alert delivery")
	}
}

// adjustInterval tightens polling when the nearest kickoff is close and
// loosens it again otherwise.
func (m *Monitor) adjustInterval(now time.Time, leagues []models.League) {
	var next time.Time
	found := false
	locs := []*time.Location{m.loc}
	for _, league := range leagues {
		locs = append(locs, m.location(league))
	}
	for _, loc := range locs {
		k, ok := m.schedule.NextKickoff(now, loc)
		if ok && (!found || k.Before(next)) {
			next, found = k, true
		}
	}

	desired := m.cfg.DefaultInterval
	if found && next.Sub(now) <= UrgentWithin {
		desired = m.cfg.UrgentInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if found {
		m.nextKickoff = &next
	} else {
		m.nextKickoff = nil
	}
	if desired != m.interval {
		m.logger.WithFields(logrus.Fields{
			"from": m.interval,
			"to":   desired,
		}).Info("Polling interval changed")
		m.interval = desired
	}
}

func (m *Monitor) location(league models.League) *time.Location {
	if league.Timezone == "" {
		return m.loc
	}
	loc, err := time.LoadLocation(league.Timezone)
	if err != nil {
		return m.loc
	}
	return loc
}
