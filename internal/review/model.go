// Package review holds the state of a review session: the stored access
// token, the mirrored commit status of the configured context and the
// reviewer's description draft.
//
// All operations are safe for concurrent use. Views observe the model through
// Subscribe and read it through Snapshot.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"reviewgate/internal/config"
	"reviewgate/internal/credential"
	"reviewgate/internal/forge"
	"reviewgate/internal/model"
)

// ErrRemote wraps any failed forge call. The credential has been dropped by
// the time it is returned.
var ErrRemote = errors.New("remote call failed")

// Snapshot is a consistent copy of the observable state.
type Snapshot struct {
	HasToken        bool
	Remote          model.Remote
	Draft           *string
	TokenDialogOpen bool
}

// Description returns the draft if one exists, else the loaded description.
func (s Snapshot) Description() string {
	if s.Draft != nil {
		return *s.Draft
	}
	return s.Remote.Status.Description
}

// Model is the review state container.
type Model struct {
	cfg    config.Review
	open   forge.Opener
	store  credential.Store
	logger *log.Logger

	mu         sync.Mutex
	token      string
	remote     model.Remote
	draft      *string
	dialogOpen bool
	subs       map[chan struct{}]struct{}
}

// New returns a model for cfg, loading the stored token from store.
func New(cfg config.Review, open forge.Opener, store credential.Store, logger *log.Logger) *Model {
	m := &Model{
		cfg:    cfg,
		open:   open,
		store:  store,
		logger: logger.With("context", cfg.Context, "sha", cfg.CommitSHA),
		remote: model.NoData(),
		subs:   make(map[chan struct{}]struct{}),
	}

	token, err := store.Get()
	switch {
	case err == nil:
		m.token = token
	case errors.Is(err, credential.ErrNotFound):
		m.logger.Debug("no stored token", "backend", store.Backend())
	default:
		m.logger.Warn("could not read stored token", "backend", store.Backend(), "err", err)
	}
	m.dialogOpen = m.token == ""
	return m
}

// Config returns the review parameters.
func (m *Model) Config() config.Review { return m.cfg }

// Snapshot returns the current observable state.
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Model) snapshotLocked() Snapshot {
	s := Snapshot{
		HasToken:        m.token != "",
		Remote:          m.remote,
		TokenDialogOpen: m.dialogOpen || m.token == "",
	}
	if m.draft != nil {
		d := *m.draft
		s.Draft = &d
	}
	return s
}

// Subscribe returns a channel signalled after every state change and a func
// that ends the subscription and closes the channel. Signals coalesce: a slow
// reader sees one pending signal, never a backlog.
func (m *Model) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			close(ch)
			m.mu.Unlock()
		})
	}
}

// notifyLocked must be called with mu held.
func (m *Model) notifyLocked() {
	for ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *Model) setRemoteLocked(r model.Remote) {
	m.remote = r
	m.notifyLocked()
}

// Refresh mirrors the status of the configured context. Without a token the
// state becomes NoData. A failed fetch drops the token.
func (m *Model) Refresh(ctx context.Context) error {
	m.mu.Lock()
	token := m.token
	if token == "" {
		m.setRemoteLocked(model.NoData())
		m.mu.Unlock()
		return nil
	}
	m.setRemoteLocked(model.Loading())
	m.mu.Unlock()

	statuses, err := m.fetch(ctx, token)
	if err != nil {
		m.logger.Error("fetch status failed; dropping token", "err", err)
		m.dropToken(token)
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}
	status := forge.FindContext(statuses, m.cfg.Context)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != token {
		// The token changed while the request was in flight; its own refresh
		// owns the state now.
		return nil
	}
	m.setRemoteLocked(model.Loaded(status))
	m.logger.Debug("status loaded", "state", status.State)
	return nil
}

func (m *Model) fetch(ctx context.Context, token string) ([]model.Status, error) {
	f, err := m.open(token)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("fetching status", "forge", f.Kind(), "sha", m.cfg.CommitSHA)
	return f.CombinedStatus(ctx, m.cfg.Target())
}

// dropToken forgets token if it is still the current one.
func (m *Model) dropToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != token {
		return
	}
	if err := m.store.Delete(); err != nil {
		m.logger.Warn("could not delete stored token", "backend", m.store.Backend(), "err", err)
	}
	m.token = ""
	m.dialogOpen = true
	m.setRemoteLocked(model.NoData())
}

// SetCredential stores token, or removes the stored token when token is nil
// or blank, then refreshes. A storage failure is returned after the refresh;
// the token is still used for this session.
func (m *Model) SetCredential(ctx context.Context, token *string) error {
	var value string
	if token != nil {
		value = strings.TrimSpace(*token)
	}

	var storeErr error
	if value == "" {
		storeErr = m.store.Delete()
	} else {
		storeErr = m.store.Set(value)
	}
	if storeErr != nil {
		m.logger.Warn("could not persist token", "backend", m.store.Backend(), "err", storeErr)
	}

	m.mu.Lock()
	m.token = value
	m.dialogOpen = value == ""
	m.notifyLocked()
	m.mu.Unlock()

	if value == "" {
		m.logger.Info("token removed")
	} else {
		m.logger.Info("token saved", "backend", m.store.Backend())
	}

	if err := m.Refresh(ctx); err != nil {
		return err
	}
	return storeErr
}

// SetStatus posts the verdict for the configured context and refreshes.
// It does nothing unless a status is loaded. The loaded target URL is kept;
// when the context has none yet, the subject URL is posted in its place.
// The draft is cleared once the status has been posted; a failed post keeps
// it and drops the token.
func (m *Model) SetStatus(ctx context.Context, kind model.Kind) error {
	m.mu.Lock()
	if m.remote.Phase != model.PhaseLoaded {
		phase := m.remote.Phase
		m.mu.Unlock()
		m.logger.Debug("ignoring status change", "kind", kind, "phase", phase)
		return nil
	}
	token := m.token
	update := model.StatusUpdate{
		State:       kind.State(),
		Description: m.snapshotLocked().Description(),
		TargetURL:   m.remote.Status.TargetURL,
	}
	if update.TargetURL == "" {
		update.TargetURL = m.cfg.SubjectURL
	}
	m.setRemoteLocked(model.Loading())
	m.mu.Unlock()

	if err := m.post(ctx, token, update); err != nil {
		m.logger.Error("post status failed; dropping token", "kind", kind, "err", err)
		m.dropToken(token)
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}
	m.logger.Info("status posted", "kind", kind, "state", update.State)

	err := m.Refresh(ctx)
	m.ClearDescriptionDraft()
	return err
}

func (m *Model) post(ctx context.Context, token string, u model.StatusUpdate) error {
	f, err := m.open(token)
	if err != nil {
		return err
	}
	m.logger.Debug("posting status", "forge", f.Kind(), "context", m.cfg.Context, "state", u.State)
	return f.CreateStatus(ctx, m.cfg.Target(), u)
}

// SetDescriptionDraft replaces the description draft.
func (m *Model) SetDescriptionDraft(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = &text
	m.notifyLocked()
}

// ClearDescriptionDraft discards the description draft.
func (m *Model) ClearDescriptionDraft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return
	}
	m.draft = nil
	m.notifyLocked()
}

// OpenTokenDialog shows the token entry overlay.
func (m *Model) OpenTokenDialog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialogOpen = true
	m.notifyLocked()
}

// CloseTokenDialog hides the token entry overlay. It reports false, leaving
// the overlay open, while no token is stored.
func (m *Model) CloseTokenDialog() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return false
	}
	m.dialogOpen = false
	m.notifyLocked()
	return true
}
