package analyzer

import (
	"context"

	"github.com/panbanda/gradelens/pkg/models"
)

// DatasetAnalyzer is implemented by analyzers that consume a whole dataset.
// Implementations must not modify the dataset.
type DatasetAnalyzer[T any] interface {
	// Analyze processes the dataset and returns the analysis result.
	// The context carries cancellation and an optional progress Tracker.
	Analyze(ctx context.Context, ds *models.Dataset) (T, error)
}
