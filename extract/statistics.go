package extract

import (
	"math"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Statistics aggregates the extracted reviews. The reported summary is carried along for
// drift detection only. It returns nil when there are no reviews.
func Statistics(reviews []models.Review, variantCount int, reported Summary) *models.Statistics {
	if len(reviews) == 0 {
		return nil
	}

	stats := &models.Statistics{
		ReviewCount:     len(reviews),
		VariantCount:    variantCount,
		RatingHistogram: make(map[int]int, MaxRating),
	}
	for r := MinRating; r <= MaxRating; r++ {
		stats.RatingHistogram[r] = 0
	}

	sum := 0
	for _, rv := range reviews {
		sum += rv.Rating
		stats.RatingHistogram[rv.Rating]++
		stats.HelpfulVoteCount += rv.HelpfulVoteCount
		stats.NotHelpfulVoteCount += rv.NotHelpfulVoteCount
		if rv.IsRecommended != nil && *rv.IsRecommended {
			stats.RecommendedCount++
		}
	}
	stats.AverageRating = math.Round(float64(sum)/float64(len(reviews))*100) / 100

	if reported.AverageRating != nil {
		v := *reported.AverageRating
		stats.ReportedAverageRating = &v
	}
	if reported.ReviewCount != nil {
		v := *reported.ReviewCount
		stats.ReportedReviewCount = &v
	}
	return stats
}
