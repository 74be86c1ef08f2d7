package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrDeliveryNotConfirmed возвращается, если зона доставки не подтверждена пользователем.
	ErrDeliveryNotConfirmed = errors.New("delivery zone is not confirmed")
	// ErrNothingToConfirm возвращается при подтверждении без определённого адреса.
	ErrNothingToConfirm = errors.New("no located address to confirm")
	// ErrInvalidZone возвращается при ручном выборе несуществующей зоны.
	ErrInvalidZone = errors.New("invalid delivery zone")
	// ErrInvalidPoint возвращается для координат вне допустимого диапазона.
	ErrInvalidPoint = errors.New("invalid coordinates")
	// ErrAddressNotFound возвращается, если геокодер не нашёл ни одного кандидата.
	ErrAddressNotFound = errors.New("address not found")
)

// State описывает состояние подтверждения адреса доставки.
type State int

const (
	StateNoAddress State = iota
	StateLocated
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateNoAddress:
		return "no_address"
	case StateLocated:
		return "located"
	case StateConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Geocoder описывает внешний сервис геокодирования адресов.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]Point, error)
	Reverse(ctx context.Context, p Point) (string, error)
}

// Session хранит состояние выбора адреса доставки в рамках одного оформления заказа.
type Session struct {
	mu     sync.Mutex
	engine *Engine
	logger *zap.Logger

	state   State
	point   *Point
	address string
	zoneID  int
	quote   *Quote
}

// NewSession создаёт сессию в состоянии NoAddress.
func NewSession(engine *Engine, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{engine: engine, logger: logger}
}

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Locate фиксирует координаты адреса и рассчитывает точную стоимость.
// Предыдущее подтверждение не сохраняется.
func (s *Session) Locate(p Point) (Quote, error) {
	if !p.Valid() {
		return Quote{}, fmt.Errorf("%w: %v,%v", ErrInvalidPoint, p.Lat, p.Lng)
	}

	q := s.engine.Quote(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateLocated
	s.point = &p
	s.address = ""
	s.zoneID = q.ZoneID
	s.quote = &q
	return q, nil
}

// LocateAddress геокодирует адрес и переходит в Located по первому кандидату.
// Ошибка геокодера логируется, состояние сбрасывается в NoAddress.
func (s *Session) LocateAddress(ctx context.Context, geocoder Geocoder, address string) (Quote, error) {
	s.ChangeAddress()

	address = strings.TrimSpace(address)
	candidates, err := geocoder.Geocode(ctx, address)
	if err != nil {
		s.logger.Warn("geocode lookup failed", zap.Error(err), zap.String("address", address))
		return Quote{}, fmt.Errorf("geocode: %w", err)
	}
	if len(candidates) == 0 {
		return Quote{}, ErrAddressNotFound
	}

	q, err := s.Locate(candidates[0])
	if err != nil {
		return Quote{}, err
	}

	s.mu.Lock()
	s.address = address
	s.mu.Unlock()

	return q, nil
}

// LocatePoint обрабатывает выбор точки на карте: считает стоимость и
// пытается получить форматированный адрес обратным геокодированием.
func (s *Session) LocatePoint(ctx context.Context, geocoder Geocoder, p Point) (Quote, error) {
	q, err := s.Locate(p)
	if err != nil {
		return Quote{}, err
	}

	address, err := geocoder.Reverse(ctx, p)
	if err != nil {
		s.logger.Warn("reverse geocode failed", zap.Error(err))
		return q, nil
	}

	s.mu.Lock()
	if s.point != nil && *s.point == p {
		s.address = address
	}
	s.mu.Unlock()

	return q, nil
}

// Address возвращает адрес и координаты, если они определены.
func (s *Session) Address() (string, *Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.point == nil {
		return s.address, nil
	}
	p := *s.point
	return s.address, &p
}

// SelectZone фиксирует зону, выбранную вручную без геокодирования.
// Точной стоимости в этом случае нет, используется тариф зоны.
func (s *Session) SelectZone(zoneID int) error {
	if _, ok := ZoneFee(zoneID); !ok {
		return fmt.Errorf("%w: %d", ErrInvalidZone, zoneID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateLocated
	s.point = nil
	s.quote = nil
	s.zoneID = zoneID
	return nil
}

// Confirm переводит Located в Confirmed по явному действию пользователя.
func (s *Session) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateLocated:
		s.state = StateConfirmed
		return nil
	case StateConfirmed:
		return nil
	default:
		return ErrNothingToConfirm
	}
}

// ChangeAddress сбрасывает адрес, стоимость, зону и подтверждение.
func (s *Session) ChangeAddress() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateNoAddress
	s.point = nil
	s.address = ""
	s.zoneID = 0
	s.quote = nil
}

// Quote возвращает текущий расчёт, если адрес определён по координатам.
func (s *Session) Quote() (Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quote == nil {
		return Quote{}, false
	}
	return *s.quote, true
}

// RequireConfirmed возвращает ErrDeliveryNotConfirmed, если состояние отлично от Confirmed.
func (s *Session) RequireConfirmed() error {
	if s.State() != StateConfirmed {
		return ErrDeliveryNotConfirmed
	}
	return nil
}

// ConfirmedFee возвращает подтверждённую стоимость: точную, если она есть, иначе тариф зоны.
func (s *Session) ConfirmedFee() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfirmed {
		return 0, ErrDeliveryNotConfirmed
	}
	if s.quote != nil {
		return s.quote.Fee, nil
	}
	fee, ok := ZoneFee(s.zoneID)
	if !ok {
		return 0, ErrInvalidZone
	}
	return fee, nil
}

// ConfirmedZoneID возвращает подтверждённую визуальную зону.
func (s *Session) ConfirmedZoneID() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfirmed {
		return 0, ErrDeliveryNotConfirmed
	}
	return s.zoneID, nil
}
