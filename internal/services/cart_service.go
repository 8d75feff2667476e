package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/repositories"
)

// Sentinel errors returned by the cart service.
var (
	ErrCartInvalidInput = errors.New("cart: invalid input")
	ErrCartNotFound     = errors.New("cart: not found")
	ErrCartConflict     = errors.New("cart: concurrent update")
)

// maxCartItems bounds a single saved cart; larger drafts point at a client bug.
const maxCartItems = 50

// CartServiceDeps aggregates dependencies for NewCartService.
type CartServiceDeps struct {
	Carts     repositories.CartRepository
	Sanitizer *bluemonday.Policy
	Clock     Clock
	Logger    Logger
}

type cartService struct {
	carts     repositories.CartRepository
	sanitizer *bluemonday.Policy
	clock     Clock
	logger    Logger
}

// NewCartService wires saved-cart persistence with its dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service requires cart repository")
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:     deps.Carts,
		sanitizer: sanitizer,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// SaveCart upserts the customer's draft booking and stamps activity time.
// The document is keyed by customer ID so each customer holds at most one.
func (s *cartService) SaveCart(ctx context.Context, cmd SaveCartCommand) (SavedCart, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return SavedCart{}, fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	if len(cmd.Items) > maxCartItems {
		return SavedCart{}, fmt.Errorf("%w: cart exceeds %d items", ErrCartInvalidInput, maxCartItems)
	}

	now := s.clock()
	items := make([]domain.CartItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		serviceRef := strings.TrimSpace(item.ServiceRef)
		if serviceRef == "" {
			return SavedCart{}, fmt.Errorf("%w: item %d is missing a service reference", ErrCartInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return SavedCart{}, fmt.Errorf("%w: item %d quantity must be positive", ErrCartInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return SavedCart{}, fmt.Errorf("%w: item %d has a negative price", ErrCartInvalidInput, i)
		}
		items = append(items, domain.CartItem{
			ServiceRef:  serviceRef,
			Name:        s.sanitizer.Sanitize(strings.TrimSpace(item.Name)),
			Description: s.sanitizer.Sanitize(strings.TrimSpace(item.Description)),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	cart := domain.SavedCart{
		ID:           customerID,
		CustomerID:   customerID,
		Items:        items,
		BookingStep:  s.sanitizer.Sanitize(strings.TrimSpace(cmd.BookingStep)),
		Metadata:     cloneMap(cmd.Metadata),
		LastActiveAt: now,
	}

	saved, err := s.carts.Upsert(ctx, cart)
	if err != nil {
		return SavedCart{}, s.mapError(err)
	}
	s.logger(ctx, "cart.saved", map[string]any{
		"customerId": customerID,
		"items":      len(saved.Items),
	})
	return saved, nil
}

func (s *cartService) GetCart(ctx context.Context, customerID string) (SavedCart, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return SavedCart{}, fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return SavedCart{}, s.mapError(err)
	}
	return cart, nil
}

// DeleteCart removes the customer's draft. A missing cart is not an error so
// the client can call it after checkout unconditionally.
func (s *cartService) DeleteCart(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, customerID); err != nil && !isRepoNotFound(err) {
		return s.mapError(err)
	}
	s.logger(ctx, "cart.deleted", map[string]any{"customerId": customerID})
	return nil
}

func (s *cartService) mapError(err error) error {
	switch {
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrCartNotFound, err)
	case isRepoConflict(err):
		return fmt.Errorf("%w: %v", ErrCartConflict, err)
	default:
		return err
	}
}

var _ CartService = (*cartService)(nil)
