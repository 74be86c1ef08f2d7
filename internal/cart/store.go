// Package cart реализует клиентское состояние корзины: локальные изменения,
// сохранение снимка и синхронизацию с удалённым сервисом корзины.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hamper-storefront/internal/model"
	"github.com/mmeshcher/hamper-storefront/internal/storage"
)

var (
	// ErrInvalidQuantity возвращается для количества меньше единицы.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInsufficientStock возвращается, если количество превышает остаток товара.
	ErrInsufficientStock = errors.New("quantity exceeds stock")
	// ErrInvalidItem возвращается для пустого товара или неизвестного типа.
	ErrInvalidItem = errors.New("invalid catalog item")
	// ErrLineNotFound возвращается, если позиция отсутствует в корзине.
	ErrLineNotFound = errors.New("line item not found")
)

const (
	defaultStorageKey     = "cart"
	defaultDebounce       = time.Second
	defaultRequestTimeout = 10 * time.Second
)

// Remote описывает удалённый сервис корзины.
type Remote interface {
	GetCart(ctx context.Context, owner model.Owner) ([]model.LineItem, error)
	ReplaceCart(ctx context.Context, owner model.Owner, lines []model.LineItem) error
	ClearCart(ctx context.Context, owner model.Owner) error
}

// Options задаёт параметры хранилища корзины.
type Options struct {
	// StorageKey задаёт ключ снимка в локальном хранилище.
	StorageKey string
	// Debounce задаёт окно объединения изменений перед отправкой на сервер.
	Debounce time.Duration
	// RequestTimeout ограничивает каждый запрос к удалённому сервису.
	RequestTimeout time.Duration
}

// Store хранит состояние корзины. Все методы безопасны для конкурентного использования.
type Store struct {
	storage storage.Storage
	remote  Remote
	logger  *zap.Logger
	opts    Options

	mu         sync.Mutex
	lines      []model.LineItem
	total      float64
	removed    map[model.Tombstone]struct{}
	owner      *model.Owner
	generation uint64
	revision   uint64

	syncing     bool
	syncToken   uint64
	pendingPush bool
	pushTimer   *time.Timer
	pushSeq     uint64
	pushCancel  context.CancelFunc
	closed      bool
	wg          sync.WaitGroup

	persistMu    sync.Mutex
	persistedRev uint64
}

// NewStore создаёт пустую гостевую корзину. С remote, равным nil, синхронизация не выполняется.
func NewStore(st storage.Storage, remote Remote, logger *zap.Logger, opts Options) *Store {
	if st == nil {
		st = storage.NewMemoryStorage()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StorageKey == "" {
		opts.StorageKey = defaultStorageKey
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	return &Store{
		storage: st,
		remote:  remote,
		logger:  logger,
		opts:    opts,
		removed: make(map[model.Tombstone]struct{}),
	}
}

// AddItem добавляет товар в корзину или увеличивает количество существующей позиции.
// Повторное добавление снимает отметку об удалении.
func (s *Store) AddItem(item model.CatalogItem, quantity int) error {
	if item == nil || !item.Kind().Valid() {
		return ErrInvalidItem
	}
	if quantity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()

	key := model.KeyOf(item)
	idx := s.indexOfKey(key)

	newQty := quantity
	if idx >= 0 {
		newQty += s.lines[idx].Quantity
	}
	if exceedsStock(item, newQty) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", ErrInsufficientStock, newQty, item.Stock())
	}

	if idx >= 0 {
		s.lines[idx] = model.LineItem{Item: item, Quantity: newQty}
	} else {
		s.lines = append(s.lines, model.LineItem{Item: item, Quantity: newQty})
	}
	delete(s.removed, tombstoneOf(item))

	snap := s.changedLocked()
	s.mu.Unlock()

	s.persist(snap)
	return nil
}

// RemoveItem удаляет позицию и запоминает её как удалённую.
// Отсутствующая позиция игнорируется.
func (s *Store) RemoveItem(ref model.ItemRef) {
	s.mu.Lock()

	idx := s.indexOfRef(ref)
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	item := s.lines[idx].Item
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	s.removed[tombstoneOf(item)] = struct{}{}

	snap := s.changedLocked()
	s.mu.Unlock()

	s.persist(snap)
}

// UpdateQuantity устанавливает количество позиции не меньше единицы и не больше остатка.
func (s *Store) UpdateQuantity(ref model.ItemRef, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()

	idx := s.indexOfRef(ref)
	if idx < 0 {
		s.mu.Unlock()
		return ErrLineNotFound
	}

	line := s.lines[idx]
	if exceedsStock(line.Item, quantity) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", ErrInsufficientStock, quantity, line.Item.Stock())
	}
	if line.Quantity == quantity {
		s.mu.Unlock()
		return nil
	}

	s.lines[idx].Quantity = quantity

	snap := s.changedLocked()
	s.mu.Unlock()

	s.persist(snap)
	return nil
}

// ClearCart очищает корзину, помечает все позиции удалёнными и удаляет локальный снимок.
// Для авторизованного владельца удалённая корзина очищается в фоне.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()

	for _, l := range s.lines {
		s.removed[tombstoneOf(l.Item)] = struct{}{}
	}
	s.lines = nil
	s.total = 0
	s.generation++
	s.revision++
	s.cancelPushLocked()

	rev := s.revision
	var owner *model.Owner
	if s.owner != nil {
		o := *s.owner
		owner = &o
	}
	startRemote := owner != nil && s.remote != nil && !s.closed
	if startRemote {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.purge(ctx, rev)

	if startRemote {
		go func() {
			defer s.wg.Done()

			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RequestTimeout)
			defer cancel()

			if err := s.remote.ClearCart(rctx, *owner); err != nil {
				s.logger.Warn("remote cart clear failed", zap.Error(err), zap.String("owner", owner.UserID))
			}
		}()
	}
}

// Reset полностью сбрасывает состояние: позиции, отметки удаления, владельца и статус синхронизации.
// Используется при выходе пользователя.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()

	s.lines = nil
	s.total = 0
	s.removed = make(map[model.Tombstone]struct{})
	s.owner = nil
	s.syncing = false
	s.syncToken++
	s.pendingPush = false
	s.generation++
	s.revision++
	s.cancelPushLocked()

	rev := s.revision
	s.mu.Unlock()

	s.purge(ctx, rev)
}

// Lines возвращает копию позиций корзины в порядке добавления.
func (s *Store) Lines() []model.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.LineItem, len(s.lines))
	copy(out, s.lines)
	return out
}

// Total возвращает сумму корзины.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// IsRemoved сообщает, удалял ли пользователь позицию в текущей сессии.
func (s *Store) IsRemoved(kind model.Kind, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.removed[model.Tombstone{ID: id, Kind: kind}]
	return ok
}

// Removed возвращает отметки удаления, упорядоченные по kind и id.
func (s *Store) Removed() []model.Tombstone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removedLocked()
}

// Owner возвращает идентификатор владельца, если корзина синхронизируется.
func (s *Store) Owner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner == nil {
		return "", false
	}
	return s.owner.UserID, true
}

// Generation возвращает номер поколения корзины.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Syncing сообщает, выполняется ли сейчас синхронизация.
func (s *Store) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Close останавливает отложенную синхронизацию и дожидается фоновых запросов.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelPushLocked()
	s.mu.Unlock()

	s.wg.Wait()
}

// changedLocked пересчитывает сумму, планирует синхронизацию и возвращает снимок для сохранения.
func (s *Store) changedLocked() snapshot {
	s.total = model.Total(s.lines)
	s.revision++
	s.schedulePushLocked()
	return s.snapshotLocked()
}

func (s *Store) indexOfKey(key model.LineKey) int {
	for i, l := range s.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// indexOfRef ищет точное совпадение по (id, kind, name), иначе первое совпадение по (id, kind).
func (s *Store) indexOfRef(ref model.ItemRef) int {
	if ref.Kind == "" {
		ref.Kind = model.KindProduct
	}
	if ref.Name != "" {
		if idx := s.indexOfKey(model.LineKey(ref)); idx >= 0 {
			return idx
		}
	}
	for i, l := range s.lines {
		if l.Item.ItemID() == ref.ID && l.Item.Kind() == ref.Kind {
			return i
		}
	}
	return -1
}

func (s *Store) removedLocked() []model.Tombstone {
	out := make([]model.Tombstone, 0, len(s.removed))
	for t := range s.removed {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// exceedsStock ограничивает количество только положительным остатком:
// нулевой остаток означает, что каталог его не сообщил.
func exceedsStock(item model.CatalogItem, quantity int) bool {
	return item.Stock() > 0 && quantity > item.Stock()
}

func tombstoneOf(item model.CatalogItem) model.Tombstone {
	return model.Tombstone{ID: item.ItemID(), Kind: item.Kind()}
}
