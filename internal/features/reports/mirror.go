package reports

import (
	"context"
	"sync"

	"github.com/apex/log"

	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/remote"
)

// Collection is the remote collection name for reports.
const Collection = "reports"

// FilterMode selects the derived view of the mirror.
type FilterMode string

const (
	FilterAll  FilterMode = "all"
	FilterMine FilterMode = "mine"
)

// Update is what the mirror fans out after each feed delivery. Err is set
// for transient subscription failures; the last-good report set stays in
// place when it is.
type Update struct {
	Reports []Report
	Err     error
}

// Mirror keeps a live, ordered local copy of the remote reports feed. It
// is the single source of truth for the map and the lists: creates and
// deletes only become visible through the feed echo, never through
// provisional local edits.
type Mirror struct {
	store    remote.Store
	identity *auth.Identity

	mu      sync.RWMutex
	reports []Report
	mode    FilterMode

	lmu       sync.Mutex
	listeners map[int]chan Update
	nextID    int
}

func NewMirror(store remote.Store, identity *auth.Identity) *Mirror {
	return &Mirror{
		store:     store,
		identity:  identity,
		mode:      FilterAll,
		listeners: make(map[int]chan Update),
	}
}

// Start opens the live subscription and keeps consuming it until ctx is
// cancelled. The feed is ordered by creation time, newest first.
func (m *Mirror) Start(ctx context.Context) error {
	ch, err := m.store.Subscribe(ctx, Collection, "createdAt", true)
	if err != nil {
		return err
	}

	go func() {
		for snap := range ch {
			if snap.Err != nil {
				// Transient: keep the last-known snapshot, surface a notice.
				log.WithError(snap.Err).Warn("reports feed hiccup")
				m.notify(Update{Err: snap.Err})
				continue
			}

			rs := make([]Report, 0, len(snap.Documents))
			for _, doc := range snap.Documents {
				rs = append(rs, decodeReport(doc))
			}

			m.mu.Lock()
			m.reports = rs
			m.mu.Unlock()

			log.WithField("count", len(rs)).Debug("reports mirror updated")
			m.notify(Update{Reports: rs})
		}
	}()

	return nil
}

// Reports returns the full ordered set.
func (m *Mirror) Reports() []Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Report, len(m.reports))
	copy(out, m.reports)
	return out
}

// Get looks a report up by id.
func (m *Mirror) Get(id string) (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reports {
		if r.ID == id {
			return r, true
		}
	}
	return Report{}, false
}

// SetFilter switches the derived view.
func (m *Mirror) SetFilter(mode FilterMode) bool {
	if mode != FilterAll && mode != FilterMine {
		return false
	}
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	return true
}

func (m *Mirror) Filter() FilterMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Filtered returns the active derived view: the whole set for "all", only
// the current user's reports for "mine". Always a subset of Reports.
func (m *Mirror) Filtered() []Report {
	m.mu.RLock()
	mode := m.mode
	rs := make([]Report, len(m.reports))
	copy(rs, m.reports)
	m.mu.RUnlock()

	if mode == FilterAll {
		return rs
	}

	user, ok := m.identity.Current()
	if !ok {
		return []Report{}
	}

	mine := make([]Report, 0, len(rs))
	for _, r := range rs {
		if r.CreatorID == user.ID {
			mine = append(mine, r)
		}
	}
	return mine
}

// Listen registers for mirror updates. The returned func unregisters.
func (m *Mirror) Listen() (<-chan Update, func()) {
	m.lmu.Lock()
	defer m.lmu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Update, 8)
	m.listeners[id] = ch

	return ch, func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		if c, ok := m.listeners[id]; ok {
			delete(m.listeners, id)
			close(c)
		}
	}
}

func (m *Mirror) notify(u Update) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	for _, ch := range m.listeners {
		select {
		case ch <- u:
		default:
			// Slow listener: drop rather than block the feed.
		}
	}
}
