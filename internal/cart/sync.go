package cart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hamper-storefront/internal/model"
)

// Identity передаёт сигнал внешнего сервиса авторизации.
type Identity struct {
	Authenticated bool
	UserID        string
	Token         string
}

// syncTicket фиксирует состояние корзины на момент начала синхронизации.
type syncTicket struct {
	token      uint64
	owner      model.Owner
	generation uint64
	lines      []model.LineItem
}

// beginSync захватывает блокировку синхронизации. Запрос отбрасывается, если
// владельца нет или синхронизация уже выполняется. Непустой cancel регистрируется
// под той же блокировкой, чтобы ClearCart и Reset могли прервать запрос.
func (s *Store) beginSync(cancel context.CancelFunc) (syncTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote == nil || s.owner == nil || s.syncing || s.closed {
		return syncTicket{}, false
	}

	s.syncing = true
	s.syncToken++
	if cancel != nil {
		s.pushCancel = cancel
	}

	lines := make([]model.LineItem, len(s.lines))
	copy(lines, s.lines)

	return syncTicket{
		token:      s.syncToken,
		owner:      *s.owner,
		generation: s.generation,
		lines:      lines,
	}, true
}

func (s *Store) endSync(t syncTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncToken != t.token {
		return
	}
	s.syncing = false
	s.pushCancel = nil

	if s.pendingPush {
		s.pendingPush = false
		s.armPushLocked()
	}
}

// currentLocked сообщает, что корзина не была сброшена и не сменила владельца с начала синхронизации.
func (s *Store) currentLocked(t syncTicket) bool {
	return s.syncToken == t.token &&
		s.generation == t.generation &&
		s.owner != nil && s.owner.UserID == t.owner.UserID
}

// SyncWithServer отправляет все позиции на сервер с полной заменой.
// Ошибки логируются и не возвращаются.
func (s *Store) SyncWithServer(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	t, ok := s.beginSync(cancel)
	if !ok {
		return
	}
	defer s.endSync(t)

	if err := s.remote.ReplaceCart(ctx, t.owner, t.lines); err != nil {
		s.logger.Warn("cart push failed", zap.Error(err), zap.String("owner", t.owner.UserID))
		return
	}
	s.logger.Debug("cart pushed", zap.String("owner", t.owner.UserID), zap.Int("lines", len(t.lines)))
}

// LoadFromServer загружает удалённую корзину и объединяет её с локальной.
// Ответ, пришедший после сброса корзины или смены владельца, отбрасывается.
func (s *Store) LoadFromServer(ctx context.Context) {
	t, ok := s.beginSync(nil)
	if !ok {
		return
	}
	defer s.endSync(t)

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	remoteLines, err := s.remote.GetCart(ctx, t.owner)
	if err != nil {
		s.logger.Warn("cart pull failed", zap.Error(err), zap.String("owner", t.owner.UserID))
		return
	}

	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale cart pull", zap.String("owner", t.owner.UserID))
		return
	}

	s.lines = mergeLines(s.lines, remoteLines, s.removed)
	s.total = model.Total(s.lines)
	s.revision++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
}

// Flush немедленно выполняет отложенную отправку, если она запланирована.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	scheduled := s.pendingPush
	if s.pushTimer != nil {
		if s.pushTimer.Stop() {
			scheduled = true
		}
		s.pushTimer = nil
	}
	if s.syncing {
		s.pendingPush = scheduled
		s.mu.Unlock()
		return
	}
	s.pendingPush = false
	s.mu.Unlock()

	if scheduled {
		s.SyncWithServer(ctx)
	}
}

// ApplyIdentity обрабатывает изменение авторизации: вход назначает владельца и
// синхронизирует корзину, выход или смена пользователя полностью сбрасывают её.
func (s *Store) ApplyIdentity(ctx context.Context, id Identity) {
	if !id.Authenticated || id.UserID == "" {
		if _, ok := s.Owner(); ok {
			s.logger.Info("identity lost, resetting cart")
			s.Reset(ctx)
		}
		return
	}

	s.mu.Lock()
	switch {
	case s.owner != nil && s.owner.UserID != id.UserID:
		previous := s.owner.UserID
		s.mu.Unlock()
		s.logger.Warn("cart owner mismatch, resetting cart",
			zap.String("previous", previous), zap.String("current", id.UserID))
		s.Reset(ctx)
		s.mu.Lock()
	case s.owner != nil && s.owner.Token != "":
		s.owner.Token = id.Token
		s.mu.Unlock()
		return
	}

	s.owner = &model.Owner{UserID: id.UserID, Token: id.Token}
	s.revision++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)

	s.LoadFromServer(ctx)
	s.SyncWithServer(ctx)
}

// Watch применяет изменения авторизации из канала, пока не закроется канал или контекст.
func (s *Store) Watch(ctx context.Context, identities <-chan Identity) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-identities:
			if !ok {
				return
			}
			s.ApplyIdentity(ctx, id)
		}
	}
}

// schedulePushLocked откладывает отправку на окно Debounce, объединяя серию изменений.
func (s *Store) schedulePushLocked() {
	if s.owner == nil || s.remote == nil || s.closed {
		return
	}
	if s.syncing {
		s.pendingPush = true
		return
	}
	s.armPushLocked()
}

func (s *Store) armPushLocked() {
	if s.closed {
		return
	}
	if s.pushTimer != nil {
		s.pushTimer.Stop()
	}
	s.pushSeq++
	seq := s.pushSeq
	s.pushTimer = time.AfterFunc(s.opts.Debounce, func() { s.runScheduledPush(seq) })
}

// runScheduledPush выполняет отправку таймера с номером seq. Сработавший таймер,
// который успели заменить или отменить, ничего не делает.
func (s *Store) runScheduledPush(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.pushSeq {
		s.mu.Unlock()
		return
	}
	s.pushTimer = nil
	if s.syncing {
		s.pendingPush = true
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.SyncWithServer(context.Background())
}

// cancelPushLocked отменяет запланированную и выполняющуюся отправку.
func (s *Store) cancelPushLocked() {
	if s.pushTimer != nil {
		s.pushTimer.Stop()
		s.pushTimer = nil
	}
	s.pushSeq++
	if s.pushCancel != nil {
		s.pushCancel()
		s.pushCancel = nil
	}
	s.pendingPush = false
}
