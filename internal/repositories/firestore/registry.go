package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the shared
// accessor interface used by dependency injection.
type Registry struct {
	provider  *pfirestore.Provider
	orders    *OrderRepository
	items     *OrderItemRepository
	payments  *PaymentRepository
	carts     *CartRepository
	reminders *ReminderRepository
	catalog   *CatalogRepository
	users     *UserRepository
	counters  *CounterRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every Firestore repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}

	reg := &Registry{provider: provider}
	var err error

	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	if reg.items, err = NewOrderItemRepository(provider); err != nil {
		return nil, fmt.Errorf("build order item repository: %w", err)
	}
	if reg.payments, err = NewPaymentRepository(provider); err != nil {
		return nil, fmt.Errorf("build payment repository: %w", err)
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	if reg.reminders, err = NewReminderRepository(provider); err != nil {
		return nil, fmt.Errorf("build reminder repository: %w", err)
	}
	if reg.catalog, err = NewCatalogRepository(provider); err != nil {
		return nil, fmt.Errorf("build catalog repository: %w", err)
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, fmt.Errorf("build user repository: %w", err)
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}
	if reg.health, err = repositories.NewPingHealthRepository(HealthPing(provider)); err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	return reg, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) OrderItems() repositories.OrderItemRepository { return r.items }

func (r *Registry) OrderPayments() repositories.OrderPaymentRepository { return r.payments }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Reminders() repositories.ReminderRepository { return r.reminders }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Users() repositories.UserRepository { return r.users }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
