package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/supervisor"
)

// Registry owns the live sessions.
type Registry struct {
	spawner  supervisor.Spawner
	recorder Recorder
	cfg      Config
	log      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions spawn tools with spawner.
func NewRegistry(spawner supervisor.Spawner, recorder Recorder, cfg Config, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		spawner:  spawner,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session on transport. The session is removed from the
// registry once it closes.
func (r *Registry) Open(transport Transport) *Session {
	s := New(uuid.NewString(), transport, r.spawner, r.recorder, r.cfg, r.log)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		s.Run(r.ctx)

		r.mu.Lock()
		delete(r.sessions, s.ID())
		r.mu.Unlock()
	}()

	return s
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return s, nil
}

// List returns snapshots of all live sessions, oldest first.
func (r *Registry) List() []model.SessionInfo {
	r.mu.RLock()
	infos := make([]model.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Terminate closes a session and waits for it to finish closing.
func (r *Registry) Terminate(ctx context.Context, id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.Terminate(TerminatedMessage)

	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes every session and waits for them.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}
