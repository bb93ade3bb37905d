package orgs

import (
	"context"
	"sync"

	"github.com/apex/log"

	"github.com/tlemoine/signalmap/internal/remote"
)

// Collection is the remote collection name for organizations.
const Collection = "organizations"

// Organization is a named entity selectable as the responsible party for
// a report. Read-only on this client.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Mirror keeps the read-only organizations list in sync with the remote
// store.
type Mirror struct {
	store remote.Store

	mu   sync.RWMutex
	orgs []Organization
}

func NewMirror(store remote.Store) *Mirror {
	return &Mirror{store: store}
}

func (m *Mirror) Start(ctx context.Context) error {
	ch, err := m.store.Subscribe(ctx, Collection, "", false)
	if err != nil {
		return err
	}

	go func() {
		for snap := range ch {
			if snap.Err != nil {
				log.WithError(snap.Err).Warn("organizations feed hiccup")
				continue
			}

			orgs := make([]Organization, 0, len(snap.Documents))
			for _, doc := range snap.Documents {
				name, _ := doc.Data["name"].(string)
				orgs = append(orgs, Organization{ID: doc.ID, Name: name})
			}

			m.mu.Lock()
			m.orgs = orgs
			m.mu.Unlock()
		}
	}()

	return nil
}

// Organizations returns the current reference list.
func (m *Mirror) Organizations() []Organization {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Organization, len(m.orgs))
	copy(out, m.orgs)
	return out
}

// Known reports whether name is in the reference list. Empty is legal:
// responsibleOrg may be left unset.
func (m *Mirror) Known(name string) bool {
	if name == "" {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orgs {
		if o.Name == name {
			return true
		}
	}
	return false
}
