package sweep

import (
	"context"
	"fmt"
	"math"

	"github.com/memberhub/member-records/internal/domain/education"
	"github.com/memberhub/member-records/pkg/timeutil"
)

// CategoryCounter counts records per category without fetching them.
type CategoryCounter interface {
	CountRecordsByCategory(ctx context.Context, category education.Category) (int, error)
}

// DistributionReader produces read-only category distribution snapshots.
// It never writes to the store.
type DistributionReader struct {
	counter CategoryCounter
}

// NewDistributionReader creates a DistributionReader.
func NewDistributionReader(counter CategoryCounter) *DistributionReader {
	return &DistributionReader{counter: counter}
}

// Read counts every category and computes percentage shares.
func (r *DistributionReader) Read(ctx context.Context) (*Distribution, error) {
	dist := &Distribution{LastUpdated: timeutil.Now()}

	for _, category := range education.AllCategories() {
		count, err := r.counter.CountRecordsByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", category, err)
		}

		switch category {
		case education.CategoryStudent:
			dist.Students = count
		case education.CategoryNewGraduated:
			dist.NewGraduated = count
		case education.CategoryGraduated:
			dist.Graduated = count
		}
	}

	dist.Total = dist.Students + dist.NewGraduated + dist.Graduated
	if dist.Total > 0 {
		dist.Percentages = DistributionPercentages{
			Students:     share(dist.Students, dist.Total),
			NewGraduated: share(dist.NewGraduated, dist.Total),
			Graduated:    share(dist.Graduated, dist.Total),
		}
	}

	return dist, nil
}

// share returns count/total as a percentage rounded to one decimal.
func share(count, total int) float64 {
	return math.Round(float64(count)/float64(total)*1000) / 10
}
