package cart

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/google/uuid"
)

var (
	ErrOutOfStock      = errors.New("not enough stock")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Pricer is satisfied by *pricing.Calculator.
type Pricer interface {
	Calculate(in pricing.Input) (pricing.Prices, error)
}

// Store holds one immutable cart snapshot. Mutators work on a copy and swap it in
// only after recompute succeeds, so a failed mutation leaves the cart unchanged.
type Store struct {
	pricer Pricer
	cart   domain.Cart
	newID  func() string
}

func NewStore(pricer Pricer, initial domain.Cart) *Store {
	return &Store{
		pricer: pricer,
		cart:   initial.Clone(),
		newID:  uuid.NewString,
	}
}

func (s *Store) Snapshot() domain.Cart {
	return s.cart.Clone()
}

// AddItem merges quantity into the matching line or appends a new one and returns
// the line's client id.
func (s *Store) AddItem(item domain.CartItem, quantity int) (string, error) {
	if quantity < 1 {
		return "", ErrInvalidQuantity
	}

	next := s.cart.Clone()
	var clientID string
	if i := next.IndexOf(item); i >= 0 {
		existing := next.Items[i]
		if existing.Quantity+quantity > item.CountInStock {
			return "", fmt.Errorf("%w: %d in stock, %d requested", ErrOutOfStock, item.CountInStock, existing.Quantity+quantity)
		}
		existing.Quantity += quantity
		existing.CountInStock = item.CountInStock
		next.Items[i] = existing
		clientID = existing.ClientID
	} else {
		if quantity > item.CountInStock {
			return "", fmt.Errorf("%w: %d in stock, %d requested", ErrOutOfStock, item.CountInStock, quantity)
		}
		item.Quantity = quantity
		if item.ClientID == "" {
			item.ClientID = s.newID()
		}
		next.Items = append(next.Items, item)
		clientID = item.ClientID
	}

	if err := s.commit(next, pricing.Selection{Name: next.DeliveryDate}); err != nil {
		return "", err
	}
	return clientID, nil
}

// UpdateItem replaces the quantity of the matching line. It is a no-op when the
// line is not in the cart.
func (s *Store) UpdateItem(item domain.CartItem, quantity int) error {
	i := s.cart.IndexOf(item)
	if i < 0 {
		return nil
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	next := s.cart.Clone()
	line := next.Items[i]
	if quantity > line.CountInStock {
		return fmt.Errorf("%w: %d in stock, %d requested", ErrOutOfStock, line.CountInStock, quantity)
	}
	line.Quantity = quantity
	next.Items[i] = line

	return s.commit(next, pricing.Selection{Name: next.DeliveryDate})
}

func (s *Store) RemoveItem(item domain.CartItem) error {
	next := s.cart.Clone()
	kept := next.Items[:0]
	for _, line := range next.Items {
		if !line.SameLine(item) {
			kept = append(kept, line)
		}
	}
	next.Items = kept

	return s.commit(next, pricing.Selection{Name: next.DeliveryDate})
}

func (s *Store) SetShippingAddress(addr domain.ShippingAddress) error {
	next := s.cart.Clone()
	next.ShippingAddress = &addr

	return s.commit(next, pricing.Selection{Name: next.DeliveryDate})
}

func (s *Store) SetPaymentMethod(method string) error {
	next := s.cart.Clone()
	next.PaymentMethod = method

	return s.commit(next, pricing.Selection{Name: next.DeliveryDate})
}

// SetDeliveryDate selects a delivery option by its stable name.
func (s *Store) SetDeliveryDate(name string) error {
	return s.commit(s.cart.Clone(), pricing.Selection{Name: name})
}

// SetDeliveryDateIndex selects a delivery option by position in the current list.
// The index is resolved to a name before it is stored.
func (s *Store) SetDeliveryDateIndex(index int) error {
	return s.commit(s.cart.Clone(), pricing.Selection{Index: &index})
}

// ClearCart empties the items. Address, payment method and delivery choice are kept
// for the next purchase.
func (s *Store) ClearCart() error {
	next := s.cart.Clone()
	next.Items = []domain.CartItem{}

	return s.commit(next, pricing.Selection{Name: next.DeliveryDate})
}

// maxPurchasedOrders bounds how many order ids a cart remembers.
const maxPurchasedOrders = 20

// RemovePurchased takes the bought quantities of an order out of the cart. Units
// added to a line beyond what was bought stay. Applying the same order twice is a
// no-op.
func (s *Store) RemovePurchased(orderID string, lines []domain.OrderLine) error {
	if slices.Contains(s.cart.PurchasedOrders, orderID) {
		return nil
	}

	next := s.cart.Clone()
	for _, bought := range lines {
		i := next.IndexOf(bought.Item())
		if i < 0 {
			continue
		}
		if next.Items[i].Quantity <= bought.Quantity {
			next.Items = slices.Delete(next.Items, i, i+1)
			continue
		}
		next.Items[i].Quantity -= bought.Quantity
	}

	next.PurchasedOrders = append(next.PurchasedOrders, orderID)
	if extra := len(next.PurchasedOrders) - maxPurchasedOrders; extra > 0 {
		next.PurchasedOrders = next.PurchasedOrders[extra:]
	}

	return s.commit(next, pricing.Selection{Name: next.DeliveryDate})
}

func (s *Store) commit(next domain.Cart, sel pricing.Selection) error {
	recomputed, err := s.recompute(next, sel)
	if err != nil {
		return err
	}
	s.cart = recomputed
	return nil
}

// recompute replaces all four derived fields together.
func (s *Store) recompute(c domain.Cart, sel pricing.Selection) (domain.Cart, error) {
	prices, err := s.pricer.Calculate(pricing.Input{
		Items:           c.Items,
		ShippingAddress: c.ShippingAddress,
		Delivery:        sel,
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if prices.DeliveryDate != "" {
		c.DeliveryDate = prices.DeliveryDate
	}
	c.ItemsPrice = prices.ItemsPrice
	c.ShippingPrice = prices.ShippingPrice
	c.TaxPrice = prices.TaxPrice
	c.TotalPrice = prices.TotalPrice
	return c, nil
}

// Recompute reprices the current snapshot, e.g. after settings changed. A stored
// delivery option that no longer exists falls back to the default one.
func (s *Store) Recompute() error {
	err := s.commit(s.cart.Clone(), pricing.Selection{Name: s.cart.DeliveryDate})
	if errors.Is(err, pricing.ErrInvalidDeliveryDate) {
		next := s.cart.Clone()
		next.DeliveryDate = ""
		return s.commit(next, pricing.Selection{})
	}
	return err
}
