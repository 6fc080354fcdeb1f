package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"go.uber.org/zap"
)

// LoadJWKS fetches the signing keys and keeps them refreshed in the background.
// Call EndBackground on the result during shutdown.
func LoadJWKS(ctx context.Context, url string, attempts int, logger *zap.Logger) (*keyfunc.JWKS, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		jwks *keyfunc.JWKS
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		jwks, err = keyfunc.Get(url, keyfunc.Options{
			Ctx:               ctx,
			RefreshInterval:   5 * time.Minute,
			RefreshRateLimit:  time.Minute,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Error("JWKS refresh error", zap.Error(err))
			},
		})
		if err == nil {
			logger.Info("JWKS loaded", zap.String("jwks_url", url))
			return jwks, nil
		}

		logger.Warn("Waiting for JWKS", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("failed to fetch JWKS after %d attempts: %w", attempts, err)
}
