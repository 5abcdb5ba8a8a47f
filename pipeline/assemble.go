package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/aluiziolira/go-scrape-catalog/extract"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// ratingDriftTolerance is how far the computed average may sit from the site's own
// average before the record is flagged.
const ratingDriftTolerance = 0.25

// Assemble validates an outcome and builds its entry. The record is deep-copied so the
// entry shares no state with the crawler. Category targets and failed targets carry no
// record.
func Assemble(out models.Outcome) models.Entry {
	report := models.CrawlReport{
		Target:     out.Target,
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		DurationMS: out.FinishedAt.Sub(out.StartedAt).Milliseconds(),
	}

	if out.Category != nil {
		report.ProductsDiscovered = out.Category.Discovered
	}
	if out.Err != nil {
		return models.Entry{Report: failed(report, out.Err)}
	}

	if out.Target.Kind == models.KindCategory {
		report.Status = models.StatusSuccess
		if out.Category == nil || !out.Category.Listing.Complete() {
			report.Status = models.StatusPartial
		}
		if out.Category != nil && out.Category.Listing.Error != "" {
			report.Error = out.Category.Listing.Error
		}
		return models.Entry{Report: report}
	}

	if out.Record == nil {
		return models.Entry{Report: failed(report, scraper.ErrMalformedPayload{Err: errors.New("no record produced")})}
	}
	if out.Record.Info.ID == "" {
		return models.Entry{Report: failed(report, scraper.ErrMalformedPayload{Err: extract.ErrMissingID})}
	}

	record := out.Record.Clone()
	record.Partial = !record.ReviewsCrawl.Complete() || !record.QuestionsCrawl.Complete()

	report.Counts = models.Counts{
		Variants:  len(record.Variants),
		Reviews:   len(record.Reviews),
		Questions: len(record.Questions),
	}
	for _, q := range record.Questions {
		report.Counts.Answers += len(q.Answers)
	}
	report.ReviewsPagesFetched = record.ReviewsCrawl.PagesFetched
	report.QuestionsPagesFetched = record.QuestionsCrawl.PagesFetched
	report.QualityFlags = QualityFlags(record)

	report.Status = models.StatusSuccess
	if record.Partial {
		report.Status = models.StatusPartial
		report.Error = partialReason(record)
	}
	return models.Entry{Record: record, Report: report}
}

// QualityFlags checks a record against the data-quality invariants. Flags never change
// the record's status.
func QualityFlags(r *models.ProductRecord) []string {
	var flags []string
	stats := r.Statistics

	switch {
	case stats == nil && len(r.Reviews) > 0,
		stats != nil && stats.ReviewCount != len(r.Reviews):
		flags = append(flags, models.FlagReviewCountMismatch)
	}

	if stats != nil && r.ReviewsCrawl.Complete() && r.ReviewsCrawl.ItemsSkipped == 0 &&
		stats.ReportedReviewCount != nil && *stats.ReportedReviewCount != len(r.Reviews) {
		flags = append(flags, models.FlagReportedReviewCountMismatch)
	}

	if stats != nil && stats.ReportedAverageRating != nil &&
		math.Abs(*stats.ReportedAverageRating-stats.AverageRating) > ratingDriftTolerance {
		flags = append(flags, models.FlagReportedRatingDrift)
	}

	if r.Partial && (unexplained(r.ReviewsCrawl, len(r.Reviews)) || unexplained(r.QuestionsCrawl, len(r.Questions))) {
		flags = append(flags, models.FlagUnexplainedPartial)
	}
	return flags
}

func unexplained(c models.CollectionState, items int) bool {
	return !c.Complete() && c.PagesFetched == 0 && items > 0
}

func failed(report models.CrawlReport, err error) models.CrawlReport {
	report.Status = models.StatusFailed
	report.ErrorClass = scraper.FailureClass(err)
	report.Error = err.Error()
	return report
}

func partialReason(r *models.ProductRecord) string {
	describe := func(kind string, c models.CollectionState) string {
		msg := fmt.Sprintf("%s stopped at %s after %d pages", kind, c.StopReason, c.PagesFetched)
		if c.Error != "" {
			msg += ": " + c.Error
		}
		return msg
	}
	switch {
	case !r.ReviewsCrawl.Complete() && !r.QuestionsCrawl.Complete():
		return describe("reviews", r.ReviewsCrawl) + "; " + describe("questions", r.QuestionsCrawl)
	case !r.ReviewsCrawl.Complete():
		return describe("reviews", r.ReviewsCrawl)
	default:
		return describe("questions", r.QuestionsCrawl)
	}
}
