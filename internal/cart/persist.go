package cart

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/hamper-storefront/internal/model"
	"github.com/mmeshcher/hamper-storefront/internal/storage"
)

// snapshotVersion меняется при несовместимом изменении формата снимка.
const snapshotVersion = 1

// snapshot содержит сериализуемую часть состояния корзины.
type snapshot struct {
	Version    int               `json:"version"`
	Generation uint64            `json:"generation"`
	Lines      []model.LineItem  `json:"lines"`
	Total      float64           `json:"total"`
	Removed    []model.Tombstone `json:"removed"`
	OwnerID    string            `json:"owner_id,omitempty"`

	revision uint64
}

func (s *Store) snapshotLocked() snapshot {
	lines := make([]model.LineItem, len(s.lines))
	copy(lines, s.lines)

	snap := snapshot{
		Version:    snapshotVersion,
		Generation: s.generation,
		Lines:      lines,
		Total:      s.total,
		Removed:    s.removedLocked(),
		revision:   s.revision,
	}
	if s.owner != nil {
		snap.OwnerID = s.owner.UserID
	}
	return snap
}

// persist записывает снимок, если он новее уже записанного. Ошибки хранилища не прерывают работу.
func (s *Store) persist(snap snapshot) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if snap.revision <= s.persistedRev {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("encode cart snapshot failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()

	if err := s.storage.Set(ctx, s.opts.StorageKey, data); err != nil {
		s.logger.Warn("persist cart snapshot failed", zap.Error(err))
		return
	}
	s.persistedRev = snap.revision
}

// purge удаляет локальный снимок.
func (s *Store) purge(ctx context.Context, revision uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if revision <= s.persistedRev {
		return
	}

	if err := s.storage.Remove(context.WithoutCancel(ctx), s.opts.StorageKey); err != nil {
		s.logger.Warn("purge cart snapshot failed", zap.Error(err))
		return
	}
	s.persistedRev = revision
}

// Hydrate восстанавливает состояние из локального хранилища.
// Отсутствующий, повреждённый или устаревший снимок игнорируется.
func (s *Store) Hydrate(ctx context.Context) {
	data, err := s.storage.Get(ctx, s.opts.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("load cart snapshot failed", zap.Error(err))
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("decode cart snapshot failed", zap.Error(err))
		return
	}
	if snap.Version != snapshotVersion {
		s.logger.Info("discarding cart snapshot with unknown version", zap.Int("version", snap.Version))
		return
	}

	lines := make([]model.LineItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		if l.Item == nil || l.Quantity < 1 {
			continue
		}
		lines = append(lines, l)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation > snap.Generation {
		s.logger.Info("discarding stale cart snapshot",
			zap.Uint64("snapshot_generation", snap.Generation),
			zap.Uint64("generation", s.generation))
		return
	}

	s.lines = lines
	s.total = model.Total(lines)
	s.removed = make(map[model.Tombstone]struct{}, len(snap.Removed))
	for _, t := range snap.Removed {
		s.removed[t] = struct{}{}
	}
	s.owner = nil
	if snap.OwnerID != "" {
		s.owner = &model.Owner{UserID: snap.OwnerID}
	}
	s.generation = snap.Generation
}
