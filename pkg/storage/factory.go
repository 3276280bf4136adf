package storage

import (
	"context"
	"fmt"

	"storefront/internal/config"
)

// NewFromConfig builds the configured archive store. It returns nil, nil when
// archiving is disabled.
func NewFromConfig(ctx context.Context, cfg *config.StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderLocal:
		return NewLocalStorage(cfg.Local.BasePath)
	case ProviderAWS:
		return NewAWSS3Storage(ctx, cfg.AWS.Region, cfg.AWS.Bucket)
	case ProviderGCP:
		return NewGCPStorage(ctx, cfg.GCP.Bucket, cfg.GCP.CredentialsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
