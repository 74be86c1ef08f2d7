// Package service реализует бизнес-логику сервиса корзин.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/mmeshcher/hamper-storefront/internal/delivery"
	"github.com/mmeshcher/hamper-storefront/internal/model"
	"github.com/mmeshcher/hamper-storefront/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCart возвращается, если присланная корзина не проходит проверку.
	ErrInvalidCart = errors.New("invalid cart")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetCart(ctx context.Context, userID int64) ([]model.LineItem, error)
	ReplaceCart(ctx context.Context, userID int64, lines []model.LineItem) error
	ClearCart(ctx context.Context, userID int64) error
}

// Service содержит бизнес-логику сервиса корзин.
type Service struct {
	repo   Repository
	engine *delivery.Engine
}

// NewService создаёт новый сервис с указанным репозиторием и калькулятором доставки.
func NewService(repo Repository, engine *delivery.Engine) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	hashed := hashPassword(login, password)
	if subtle.ConstantTimeCompare(hashed, u.PasswordHash) != 1 {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetCart возвращает сохранённую корзину пользователя.
func (s *Service) GetCart(ctx context.Context, userID int64) ([]model.LineItem, error) {
	return s.repo.GetCart(ctx, userID)
}

// ReplaceCart проверяет и целиком заменяет корзину пользователя.
func (s *Service) ReplaceCart(ctx context.Context, userID int64, lines []model.LineItem) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	return s.repo.ReplaceCart(ctx, userID, lines)
}

// ClearCart очищает корзину пользователя.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

// QuoteDelivery рассчитывает зону и стоимость доставки до точки.
func (s *Service) QuoteDelivery(p delivery.Point) (delivery.Quote, error) {
	if !p.Valid() {
		return delivery.Quote{}, delivery.ErrInvalidPoint
	}
	return s.engine.Quote(p), nil
}

func validateLines(lines []model.LineItem) error {
	seen := make(map[model.LineKey]struct{}, len(lines))
	for i, l := range lines {
		if l.Item == nil || !l.Item.Kind().Valid() {
			return fmt.Errorf("%w: line %d has no known item", ErrInvalidCart, i)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity %d", ErrInvalidCart, i, l.Quantity)
		}

		key := l.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate %s %d %q", ErrInvalidCart, key.Kind, key.ID, key.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
