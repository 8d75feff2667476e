package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seamline/api/internal/payments"
	"github.com/seamline/api/internal/platform/config"
	"github.com/seamline/api/internal/repositories"
	"github.com/seamline/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders   services.OrderService
	Cart     services.CartService
	Catalog  services.CatalogService
	Users    services.UserService
	Recovery services.RecoveryService
	Sweep    services.SweepService
	Webhooks services.PaymentWebhookService
	System   services.SystemService
}

// ContainerDeps carries the externally constructed collaborators the service
// layer cannot build itself: the payment gateway and the Pub/Sub publishers.
type ContainerDeps struct {
	Config       config.Config
	Repositories repositories.Registry
	Gateway      *payments.Manager
	Events       services.OrderEventPublisher
	Mailer       services.ReminderMailer
	Logger       services.Logger
	Clock        services.Clock
	IDGenerator  services.IDGenerator
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore registry and Stripe manager, while tests can supply in-memory fakes.
func NewContainer(_ context.Context, deps ContainerDeps) (*Container, error) {
	if deps.Repositories == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Repositories,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps ContainerDeps) (Services, error) {
	var svc Services
	reg := deps.Repositories
	cfg := deps.Config

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog:     reg.Catalog(),
		Clock:       clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:  reg.Carts(),
		Clock:  clock,
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:  reg.Users(),
		Clock:  clock,
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	var gateway services.PaymentGateway
	if deps.Gateway != nil {
		gateway = deps.Gateway
	}
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		OrderItems:  reg.OrderItems(),
		Payments:    reg.OrderPayments(),
		Carts:       reg.Carts(),
		Reminders:   reg.Reminders(),
		Catalog:     reg.Catalog(),
		Counters:    reg.Counters(),
		Gateway:     gateway,
		Events:      deps.Events,
		Clock:       clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	recoverySvc, err := services.NewRecoveryService(services.RecoveryServiceDeps{
		Reminders: reg.Reminders(),
		Orders:    reg.Orders(),
		Carts:     reg.Carts(),
		Clock:     clock,
		Logger:    deps.Logger,
		TokenTTL:  cfg.Recovery.TokenTTL,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build recovery service: %w", err)
	}
	svc.Recovery = recoverySvc

	if deps.Mailer != nil {
		sweepSvc, err := services.NewSweepService(services.SweepServiceDeps{
			Orders:          reg.Orders(),
			Carts:           reg.Carts(),
			Reminders:       reg.Reminders(),
			Users:           reg.Users(),
			Mailer:          deps.Mailer,
			Clock:           clock,
			IDGenerator:     deps.IDGenerator,
			Logger:          deps.Logger,
			BatchCap:        cfg.Sweep.BatchCap,
			PaymentExpiry:   cfg.Sweep.PaymentExpiry,
			CartRetention:   cfg.Sweep.CartRetention,
			PageSize:        cfg.Sweep.PageSize,
			RecoveryBaseURL: cfg.Recovery.BaseURL,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build sweep service: %w", err)
		}
		svc.Sweep = sweepSvc
	}

	if deps.Gateway != nil {
		webhookSvc, err := services.NewPaymentWebhookService(services.WebhookServiceDeps{
			Parser: deps.Gateway,
			Orders: orderSvc,
			Logger: deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build webhook service: %w", err)
		}
		svc.Webhooks = webhookSvc
	}

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		Health: reg.Health(),
		Clock:  clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
