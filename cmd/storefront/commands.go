package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mmeshcher/hamper-storefront/internal/cart"
	"github.com/mmeshcher/hamper-storefront/internal/checkout"
	"github.com/mmeshcher/hamper-storefront/internal/delivery"
	"github.com/mmeshcher/hamper-storefront/internal/model"
)

const usage = `usage: storefront <command> [args]

commands:
  show
  add <product|hamper> <id> <name> <price> <stock> [quantity]
  remove <product|hamper> <id> [name]
  update <product|hamper> <id> <quantity> [name]
  clear
  pull
  sync
  quote <lat> <lng>
  locate <address>
  pin <lat> <lng>
  checkout [--confirm] <lat> <lng> <full_name> <phone> <street> <city> <postal_code> [voucher]`

var errUsage = errors.New(usage)

const confirmFlag = "--confirm"

var errNoGeocoder = errors.New("geocoder is not configured, set GEOCODER_ADDRESS")

type app struct {
	store    *cart.Store
	session  *delivery.Session
	geocoder delivery.Geocoder
	out      io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "show":
		a.show()
		return nil
	case "add":
		return a.add(rest)
	case "remove":
		return a.remove(rest)
	case "update":
		return a.update(rest)
	case "clear":
		a.store.ClearCart(ctx)
		a.show()
		return nil
	case "pull":
		a.store.LoadFromServer(ctx)
		a.show()
		return nil
	case "sync":
		a.store.SyncWithServer(ctx)
		a.show()
		return nil
	case "quote":
		return a.quote(rest)
	case "locate":
		return a.locate(ctx, rest)
	case "pin":
		return a.pin(ctx, rest)
	case "checkout":
		return a.checkout(rest)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func (a *app) show() {
	lines := a.store.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(a.out, "%-7s %4d  %-30s %3d x %8.2f = %9.2f\n",
			l.Item.Kind(), l.Item.ItemID(), l.Item.ItemName(), l.Quantity, l.Item.ItemPrice(), l.Subtotal())
	}
	fmt.Fprintf(a.out, "total: %.2f\n", a.store.Total())
}

func (a *app) add(args []string) error {
	if len(args) < 5 || len(args) > 6 {
		return errUsage
	}

	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}
	price, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	stock, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("parse stock: %w", err)
	}
	quantity := 1
	if len(args) == 6 {
		if quantity, err = strconv.Atoi(args[5]); err != nil {
			return fmt.Errorf("parse quantity: %w", err)
		}
	}

	var item model.CatalogItem
	switch model.Kind(args[0]) {
	case model.KindProduct:
		item = model.Product{ID: id, Name: args[2], Price: price, StockQuantity: stock}
	case model.KindHamper:
		item = model.Hamper{ID: id, Name: args[2], Price: price, StockQuantity: stock}
	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownKind, args[0])
	}

	if err := a.store.AddItem(item, quantity); err != nil {
		return err
	}
	a.show()
	return nil
}

func (a *app) remove(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	ref, err := parseRef(args[0], args[1], args[2:])
	if err != nil {
		return err
	}

	a.store.RemoveItem(ref)
	a.show()
	return nil
}

func (a *app) update(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errUsage
	}
	ref, err := parseRef(args[0], args[1], args[3:])
	if err != nil {
		return err
	}
	quantity, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("parse quantity: %w", err)
	}

	if err := a.store.UpdateQuantity(ref, quantity); err != nil {
		return err
	}
	a.show()
	return nil
}

func (a *app) quote(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	p, err := parsePoint(args[0], args[1])
	if err != nil {
		return err
	}

	q, err := a.session.Locate(p)
	if err != nil {
		return err
	}
	a.printQuote(q)
	return nil
}

func (a *app) locate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if a.geocoder == nil {
		return errNoGeocoder
	}

	q, err := a.session.LocateAddress(ctx, a.geocoder, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.printQuote(q)
	return nil
}

func (a *app) pin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if a.geocoder == nil {
		return errNoGeocoder
	}
	p, err := parsePoint(args[0], args[1])
	if err != nil {
		return err
	}

	q, err := a.session.LocatePoint(ctx, a.geocoder, p)
	if err != nil {
		return err
	}
	if address, _ := a.session.Address(); address != "" {
		fmt.Fprintln(a.out, address)
	}
	a.printQuote(q)
	return nil
}

func (a *app) printQuote(q delivery.Quote) {
	fmt.Fprintf(a.out, "zone %d, %.1f km, fee %.2f\n", q.ZoneID, q.DistanceMeters/1000, q.Fee)
}

// checkout рассчитывает доставку и печатает заказ для внешнего сервиса оформления.
// Без флага --confirm доставка остаётся рассчитанной, но не подтверждённой,
// и заказ не собирается.
func (a *app) checkout(args []string) error {
	confirm := len(args) > 0 && args[0] == confirmFlag
	if confirm {
		args = args[1:]
	}
	if len(args) < 7 || len(args) > 8 {
		return errUsage
	}
	p, err := parsePoint(args[0], args[1])
	if err != nil {
		return err
	}
	q, err := a.session.Locate(p)
	if err != nil {
		return err
	}
	if confirm {
		if err := a.session.Confirm(); err != nil {
			return err
		}
	} else {
		a.printQuote(q)
	}

	form := checkout.Form{
		FullName:   args[2],
		Phone:      args[3],
		Street:     args[4],
		City:       args[5],
		PostalCode: args[6],
	}
	if len(args) == 8 {
		form.VoucherCode = args[7]
	}

	order, err := checkout.BuildOrder(a.store, a.session, form)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(order)
}

func parseRef(kind, id string, name []string) (model.ItemRef, error) {
	k := model.Kind(strings.ToLower(kind))
	if !k.Valid() {
		return model.ItemRef{}, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return model.ItemRef{}, fmt.Errorf("parse id: %w", err)
	}

	ref := model.ItemRef{ID: n, Kind: k}
	if len(name) > 0 {
		ref.Name = name[0]
	}
	return ref, nil
}

func parsePoint(lat, lng string) (delivery.Point, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return delivery.Point{}, fmt.Errorf("parse lat: %w", err)
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return delivery.Point{}, fmt.Errorf("parse lng: %w", err)
	}
	return delivery.Point{Lat: la, Lng: lo}, nil
}
