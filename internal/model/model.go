// Package model содержит доменные сущности витрины: товары, наборы и позиции корзины.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownKind возвращается при разборе позиции с неизвестным типом товара.
var ErrUnknownKind = errors.New("unknown item kind")

// User представляет зарегистрированного покупателя.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Kind различает две каталожные сущности, идентификаторы которых могут совпадать.
type Kind string

const (
	KindProduct Kind = "product"
	KindHamper  Kind = "hamper"
)

// Valid сообщает, является ли значение известным типом товара.
func (k Kind) Valid() bool {
	return k == KindProduct || k == KindHamper
}

// CatalogItem описывает минимальный набор свойств товара, от которых зависит корзина.
type CatalogItem interface {
	ItemID() int64
	ItemName() string
	ItemPrice() float64
	Stock() int
	Kind() Kind
}

// Product представляет обычный товар каталога.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	Category      string  `json:"category,omitempty"`
}

func (p Product) ItemID() int64      { return p.ID }
func (p Product) ItemName() string   { return p.Name }
func (p Product) ItemPrice() float64 { return p.Price }
func (p Product) Stock() int         { return p.StockQuantity }
func (p Product) Kind() Kind         { return KindProduct }

// Hamper представляет подарочный набор.
type Hamper struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	StockQuantity int      `json:"stock_quantity"`
	Contents      []string `json:"contents,omitempty"`
}

func (h Hamper) ItemID() int64      { return h.ID }
func (h Hamper) ItemName() string   { return h.Name }
func (h Hamper) ItemPrice() float64 { return h.Price }
func (h Hamper) Stock() int         { return h.StockQuantity }
func (h Hamper) Kind() Kind         { return KindHamper }

// LineKey задаёт идентичность позиции корзины: (id, kind, name).
type LineKey struct {
	ID   int64
	Kind Kind
	Name string
}

// KeyOf возвращает ключ идентичности для товара.
func KeyOf(item CatalogItem) LineKey {
	return LineKey{ID: item.ItemID(), Kind: item.Kind(), Name: item.ItemName()}
}

// ItemRef адресует позицию по id и kind; Name необязателен и уточняет совпадение.
type ItemRef struct {
	ID   int64
	Kind Kind
	Name string
}

// RefOf возвращает точную ссылку на товар вместе с именем.
func RefOf(item CatalogItem) ItemRef {
	return ItemRef{ID: item.ItemID(), Kind: item.Kind(), Name: item.ItemName()}
}

// Tombstone запоминает явное удаление позиции.
type Tombstone struct {
	ID   int64 `json:"id"`
	Kind Kind  `json:"kind"`
}

// LineItem описывает одну позицию корзины.
type LineItem struct {
	Item     CatalogItem
	Quantity int
}

// Key возвращает ключ идентичности позиции.
func (l LineItem) Key() LineKey {
	return KeyOf(l.Item)
}

// Subtotal возвращает стоимость позиции.
func (l LineItem) Subtotal() float64 {
	return l.Item.ItemPrice() * float64(l.Quantity)
}

// lineRecord используется на проводе и в локальном снимке.
type lineRecord struct {
	Item     json.RawMessage `json:"item"`
	Quantity int             `json:"quantity"`
	Kind     Kind            `json:"kind"`
}

// MarshalJSON кодирует позицию в формате {item, quantity, kind}.
func (l LineItem) MarshalJSON() ([]byte, error) {
	if l.Item == nil {
		return nil, errors.New("line item without item")
	}
	raw, err := json.Marshal(l.Item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return json.Marshal(lineRecord{Item: raw, Quantity: l.Quantity, Kind: l.Item.Kind()})
}

// UnmarshalJSON разбирает позицию, выбирая тип товара по полю kind.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	var rec lineRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	switch rec.Kind {
	case KindProduct, "":
		var p Product
		if err := json.Unmarshal(rec.Item, &p); err != nil {
			return fmt.Errorf("decode product: %w", err)
		}
		l.Item = p
	case KindHamper:
		var h Hamper
		if err := json.Unmarshal(rec.Item, &h); err != nil {
			return fmt.Errorf("decode hamper: %w", err)
		}
		l.Item = h
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, rec.Kind)
	}

	l.Quantity = rec.Quantity
	return nil
}

// Total возвращает сумму price × quantity по всем позициям.
func Total(lines []LineItem) float64 {
	var total float64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}
