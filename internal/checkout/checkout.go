// Package checkout собирает заказ из корзины и подтверждённой доставки.
package checkout

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mmeshcher/hamper-storefront/internal/delivery"
	"github.com/mmeshcher/hamper-storefront/internal/model"
	"github.com/mmeshcher/hamper-storefront/internal/validation"
)

// ErrEmptyCart возвращается при оформлении пустой корзины.
var ErrEmptyCart = errors.New("cart is empty")

// CartView отдаёт состояние корзины, нужное для оформления. Подытог считается
// по тому же снимку позиций, что попадает в заказ.
type CartView interface {
	Lines() []model.LineItem
}

// DeliveryView отдаёт подтверждённую доставку.
type DeliveryView interface {
	RequireConfirmed() error
	ConfirmedFee() (float64, error)
	ConfirmedZoneID() (int, error)
}

// Form содержит поля формы доставки.
type Form struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Street      string `json:"street"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	VoucherCode string `json:"voucher_code,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// ValidationErrors сопоставляет поле формы с сообщением для пользователя.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid checkout form: " + strings.Join(parts, "; ")
}

// Validate проверяет поля формы и возвращает ValidationErrors или nil.
func (f Form) Validate() error {
	errs := ValidationErrors{}

	if strings.TrimSpace(f.FullName) == "" {
		errs["full_name"] = "Please enter the recipient's name."
	}
	if !validation.IsValidPhone(f.Phone) {
		errs["phone"] = "Please enter a valid phone number."
	}
	if strings.TrimSpace(f.Street) == "" {
		errs["street"] = "Please enter a street address."
	}
	if strings.TrimSpace(f.City) == "" {
		errs["city"] = "Please enter a city."
	}
	if !validation.IsValidPostalCode(f.PostalCode) {
		errs["postal_code"] = "Please enter a valid postal code."
	}
	if f.VoucherCode != "" && !validation.IsValidVoucher(f.VoucherCode) {
		errs["voucher_code"] = "This voucher code is not valid."
	}
	if len(f.Notes) > 500 {
		errs["notes"] = "Delivery notes must be at most 500 characters."
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Order содержит данные заказа для внешнего сервиса оформления.
type Order struct {
	Lines       []model.LineItem `json:"lines"`
	Subtotal    float64          `json:"subtotal"`
	DeliveryFee float64          `json:"delivery_fee"`
	ZoneID      int              `json:"zone_id"`
	Total       float64          `json:"total"`
	Form        Form             `json:"delivery"`
}

// BuildOrder проверяет форму и подтверждение доставки и собирает заказ.
// Подтверждение обязательно, даже если стоимость уже рассчитана.
func BuildOrder(cart CartView, d DeliveryView, form Form) (*Order, error) {
	errs := ValidationErrors{}
	if err := form.Validate(); err != nil {
		var fe ValidationErrors
		if errors.As(err, &fe) {
			for k, v := range fe {
				errs[k] = v
			}
		}
	}
	if err := d.RequireConfirmed(); err != nil {
		errs["delivery_zone"] = "Please confirm your delivery zone and fee before placing the order."
	}
	if len(errs) > 0 {
		return nil, errs
	}

	lines := cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	fee, err := d.ConfirmedFee()
	if err != nil {
		return nil, fmt.Errorf("delivery fee: %w", err)
	}
	zone, err := d.ConfirmedZoneID()
	if err != nil {
		return nil, fmt.Errorf("delivery zone: %w", err)
	}

	subtotal := model.Total(lines)

	return &Order{
		Lines:       lines,
		Subtotal:    roundCents(subtotal),
		DeliveryFee: roundCents(fee),
		ZoneID:      zone,
		Total:       roundCents(subtotal + fee),
		Form:        form,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ DeliveryView = (*delivery.Session)(nil)
