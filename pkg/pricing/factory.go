package pricing

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"
)

// NewProvider creates a pricing provider based on cloud detection or config
func NewProvider(ctx context.Context, clientset kubernetes.Interface, config *Config) (Provider, error) {
	var provider string
	var region string

	if config.Provider != "" {
		// Use configured provider
		provider = config.Provider
		region = config.Region
	} else if clientset != nil {
		// Auto-detect from cluster
		var err error
		provider, region, err = DetectProvider(ctx, clientset)
		if err != nil {
			// Fallback to default
			provider = "default"
			region = "unknown"
		}
	} else {
		provider = "default"
		region = "unknown"
	}

	switch provider {
	case "azure":
		return NewAzureProvider(region), nil
	case "aws":
		return NewAWSProvider(region), nil
	case "gcp":
		return NewGCPProvider(region), nil
	case "default":
		return NewDefaultProvider(0, 0), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
