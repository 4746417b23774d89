package output

import (
	"context"
	"fmt"
	"io"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// Handler defines the interface for output formatting
type Handler interface {
	DisplayRecommendations(ctx context.Context, recommendations []*models.Recommendation) error
	DisplaySummary(ctx context.Context, totalSavings float64, count int) error
	Format() string
}

// NewHandler returns the handler for a format name, writing to w.
func NewHandler(format string, w io.Writer) (Handler, error) {
	switch format {
	case "text":
		return &TextHandler{w: w}, nil
	case "json":
		return &JSONHandler{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
