package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/btree"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*sessionRepo)(nil)

type sessionRepo struct{ store *Store }

func NewSessionRepo(store *Store) *sessionRepo {
	return &sessionRepo{store: store}
}

func getSession(st *state, id string) (*model.Session, bool) {
	it := st.sessions.Get(sessionItem{&model.Session{ID: id}})
	if it == nil {
		return nil, false
	}
	return it.(sessionItem).s, true
}

func copySession(s *model.Session) *model.Session {
	cp := *s
	cp.Extensions = nil
	return &cp
}

// Create keeps the mac index unique across active sessions.
func (r *sessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Session) error {
	return r.store.write(tx, func(st *state) error {
		if _, ok := lookupRef(st.activeMAC, s.MAC); ok && s.Active() {
			return domain.ErrDeviceAlreadyActive
		}
		if _, ok := getSession(st, s.ID); ok {
			return domain.ErrAlreadyExists
		}
		st.sessions.ReplaceOrInsert(sessionItem{copySession(s)})
		if s.Active() {
			st.activeMAC.ReplaceOrInsert(ref{key: s.MAC, val: s.ID})
		}
		return nil
	})
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	var out *model.Session
	err := r.store.read(tx, func(st *state) error {
		s, ok := getSession(st, id)
		if !ok {
			return domain.ErrNotFound
		}
		out = copySession(s)
		return nil
	})
	return out, err
}

func (r *sessionRepo) FindActiveByMAC(ctx context.Context, tx repository.Tx, mac string) (*model.Session, error) {
	var out *model.Session
	err := r.store.read(tx, func(st *state) error {
		id, ok := lookupRef(st.activeMAC, mac)
		if !ok {
			return domain.ErrNotFound
		}
		s, _ := getSession(st, id)
		out = copySession(s)
		return nil
	})
	return out, err
}

func (r *sessionRepo) AddExtension(ctx context.Context, tx repository.Tx, e *model.Extension) (bool, error) {
	var done bool
	err := r.store.write(tx, func(st *state) error {
		s, ok := getSession(st, e.SessionID)
		if !ok || !s.Active() {
			return nil
		}
		cp := copySession(s)
		cp.ExtensionSeconds += e.Seconds
		st.sessions.ReplaceOrInsert(sessionItem{cp})
		st.extensions.ReplaceOrInsert(extensionItem{*e})
		done = true
		return nil
	})
	return done, err
}

func (r *sessionRepo) ListExtensions(ctx context.Context, tx repository.Tx, sessionID string) ([]model.Extension, error) {
	var out []model.Extension
	err := r.store.read(tx, func(st *state) error {
		st.extensions.AscendGreaterOrEqual(extensionItem{model.Extension{SessionID: sessionID}}, func(it btree.Item) bool {
			e := it.(extensionItem).e
			if e.SessionID != sessionID {
				return false
			}
			out = append(out, e)
			return true
		})
		return nil
	})
	return out, err
}

func (r *sessionRepo) End(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus, reason string, at time.Time) (bool, error) {
	if status == model.SessionStatusActive {
		return false, domain.ErrInvalidArgument
	}
	var done bool
	err := r.store.write(tx, func(st *state) error {
		s, ok := getSession(st, id)
		if !ok || !s.Active() {
			return nil
		}
		cp := copySession(s)
		cp.Status, cp.EndReason, cp.EndedAt = status, reason, &at
		st.sessions.ReplaceOrInsert(sessionItem{cp})
		st.activeMAC.Delete(ref{key: s.MAC})
		done = true
		return nil
	})
	return done, err
}

func (r *sessionRepo) AddUsage(ctx context.Context, tx repository.Tx, id string, u model.Usage) error {
	return r.store.write(tx, func(st *state) error {
		s, ok := getSession(st, id)
		if !ok {
			return domain.ErrNotFound
		}
		cp := copySession(s)
		cp.BytesIn += u.BytesIn
		cp.BytesOut += u.BytesOut
		cp.ElapsedSeconds = max(cp.ElapsedSeconds, u.ElapsedSeconds)
		if u.At.After(cp.LastActivity) {
			cp.LastActivity = u.At
		}
		st.sessions.ReplaceOrInsert(sessionItem{cp})
		return nil
	})
}

// ListActive walks the mac index; ids are ULIDs so the page order is by start time.
func (r *sessionRepo) ListActive(ctx context.Context, tx repository.Tx, afterID string, limit int) ([]*model.Session, error) {
	var out []*model.Session
	err := r.store.read(tx, func(st *state) error {
		st.activeMAC.Ascend(func(it btree.Item) bool {
			id := it.(ref).val
			if id > afterID {
				s, _ := getSession(st, id)
				out = append(out, copySession(s))
			}
			return true
		})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// List returns newest first.
func (r *sessionRepo) List(ctx context.Context, tx repository.Tx, f model.SessionFilter) ([]*model.Session, error) {
	var out []*model.Session
	skipped := 0
	err := r.store.read(tx, func(st *state) error {
		st.sessions.Descend(func(it btree.Item) bool {
			s := it.(sessionItem).s
			if (f.Status != "" && s.Status != f.Status) || (f.MAC != "" && s.MAC != f.MAC) {
				return true
			}
			if skipped < f.Offset {
				skipped++
				return true
			}
			out = append(out, copySession(s))
			return f.Limit <= 0 || len(out) < f.Limit
		})
		return nil
	})
	return out, err
}

func (r *sessionRepo) Stats(ctx context.Context, tx repository.Tx, dayStart time.Time) (model.SessionStats, error) {
	var st model.SessionStats
	devices := map[string]struct{}{}
	err := r.store.read(tx, func(s *state) error {
		st.Active = int64(s.activeMAC.Len())
		s.sessions.Ascend(func(it btree.Item) bool {
			sess := it.(sessionItem).s
			st.Total++
			st.DataTotal += sess.DataUsed()
			if !sess.StartedAt.Before(dayStart) {
				st.StartedToday++
				st.DataToday += sess.DataUsed()
				devices[sess.MAC] = struct{}{}
			}
			return true
		})
		return nil
	})
	st.DevicesToday = int64(len(devices))
	return st, err
}

func (r *sessionRepo) StartBuckets(ctx context.Context, tx repository.Tx, from time.Time, step time.Duration) ([]model.Bucket, error) {
	acc, err := newBuckets(step)
	if err != nil {
		return nil, err
	}
	err = r.store.read(tx, func(st *state) error {
		st.sessions.Ascend(func(it btree.Item) bool {
			sess := it.(sessionItem).s
			if sess.StartedAt.Before(from) {
				return true
			}
			b := acc.at(sess.StartedAt)
			b.Count++
			b.BytesIn += sess.BytesIn
			b.BytesOut += sess.BytesOut
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc.sorted(), nil
}
