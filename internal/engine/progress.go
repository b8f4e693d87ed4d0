package engine

import (
	"sync"
	"time"
)

// BackupPhase represents the current phase of a backup operation.
type BackupPhase string

const (
	PhasePlanning   BackupPhase = "planning"
	PhaseCapturing  BackupPhase = "capturing"
	PhaseArchiving  BackupPhase = "archiving"
	PhaseEncrypting BackupPhase = "encrypting"
	PhaseFinalizing BackupPhase = "finalizing"
	PhaseComplete   BackupPhase = "complete"
	PhaseFailed     BackupPhase = "failed"
)

// ItemEvent records a captured or skipped resource for the recent activity log.
type ItemEvent struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Dest   string `json:"dest,omitempty"`
	Status string `json:"status"` // "completed", "skipped", "failed"
	Reason string `json:"reason,omitempty"`
}

// Progress is a snapshot of the current backup state, safe for JSON
// serialization.
type Progress struct {
	Project        string      `json:"project"`
	Phase          BackupPhase `json:"phase"`
	TotalItems     int         `json:"total_items"`
	CompletedItems int         `json:"completed_items"`
	SkippedItems   int         `json:"skipped_items"`
	RecentEvents   []ItemEvent `json:"recent_events,omitempty"`
	StartTime      time.Time   `json:"start_time"`
	Elapsed        string      `json:"elapsed"`
	Message        string      `json:"message,omitempty"`
}

// Tracker accumulates per-item backup progress in a thread-safe manner.
// Observers call Wait() to block until the next update.
type Tracker struct {
	mu sync.Mutex

	project   string
	phase     BackupPhase
	total     int
	completed int
	skipped   int
	startTime time.Time
	message   string

	// Rolling log of recent item events (capped at 20).
	recentEvents []ItemEvent

	// Notification channel: close-and-replace pattern. Listeners grab the
	// current channel via Wait() and block on it; any update closes the
	// old channel and installs a fresh one.
	notify chan struct{}
}

// NewTracker creates a tracker for the given project.
func NewTracker(project string) *Tracker {
	return &Tracker{
		project:   project,
		phase:     PhasePlanning,
		startTime: time.Now(),
		notify:    make(chan struct{}),
	}
}

// Snapshot returns a copy of the current progress state.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := make([]ItemEvent, len(t.recentEvents))
	copy(events, t.recentEvents)

	return Progress{
		Project:        t.project,
		Phase:          t.phase,
		TotalItems:     t.total,
		CompletedItems: t.completed,
		SkippedItems:   t.skipped,
		RecentEvents:   events,
		StartTime:      t.startTime,
		Elapsed:        time.Since(t.startTime).Truncate(time.Second).String(),
		Message:        t.message,
	}
}

// Wait returns a channel that is closed when the next update occurs.
func (t *Tracker) Wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notify
}

// signal closes the current notify channel and replaces it with a new one.
// Must be called with t.mu held.
func (t *Tracker) signal() {
	close(t.notify)
	t.notify = make(chan struct{})
}

// SetPhase updates the current backup phase.
func (t *Tracker) SetPhase(phase BackupPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.signal()
}

// SetTotals sets the planned item count after planning.
func (t *Tracker) SetTotals(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.signal()
}

// SetMessage sets a human-readable status message.
func (t *Tracker) SetMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = msg
	t.signal()
}

// addRecentEvent prepends an event to the rolling log, capping at 20.
// Must be called with t.mu held.
func (t *Tracker) addRecentEvent(ev ItemEvent) {
	t.recentEvents = append([]ItemEvent{ev}, t.recentEvents...)
	if len(t.recentEvents) > 20 {
		t.recentEvents = t.recentEvents[:20]
	}
}

// ItemCompleted marks a plan item as captured.
func (t *Tracker) ItemCompleted(kind, source, dest string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.addRecentEvent(ItemEvent{Kind: kind, Source: source, Dest: dest, Status: "completed"})
	t.signal()
}

// ItemSkipped records a resource excluded from the backup with its reason.
func (t *Tracker) ItemSkipped(source, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped++
	t.addRecentEvent(ItemEvent{Source: source, Status: "skipped", Reason: reason})
	t.signal()
}

// ItemFailed records the item whose capture aborted the backup.
func (t *Tracker) ItemFailed(kind, source, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addRecentEvent(ItemEvent{Kind: kind, Source: source, Status: "failed", Reason: reason})
	t.signal()
}
