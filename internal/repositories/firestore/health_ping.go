package firestore

import (
	"context"
	"errors"

	"google.golang.org/api/iterator"

	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/repositories"
)

// HealthPing returns a probe that verifies Firestore connectivity with a
// single-document read against the counters collection. An empty collection
// still proves the round trip, so iterator exhaustion counts as healthy.
func HealthPing(provider *pfirestore.Provider) repositories.PingFunc {
	return func(ctx context.Context) error {
		if provider == nil {
			return errors.New("firestore health: provider not configured")
		}
		client, err := provider.Client(ctx)
		if err != nil {
			return err
		}

		iter := client.Collection(countersCollection).Limit(1).Documents(ctx)
		defer iter.Stop()

		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
