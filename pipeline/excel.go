package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Workbook sheet names.
const (
	SheetProducts  = "Products"
	SheetReviews   = "Reviews"
	SheetQuestions = "Questions"
	SheetReports   = "Reports"
	SheetSummary   = "Summary"
)

var sheetHeaders = map[string][]string{
	SheetProducts: productHeader,
	SheetReviews: {
		"product_id", "review_id", "rating", "review_title", "review_text", "is_recommended",
		"submitted_at", "helpful_vote_count", "not_helpful_vote_count",
	},
	SheetQuestions: {
		"product_id", "question_id", "question", "submitted_at", "answer_count", "answers",
	},
	SheetReports: {
		"kind", "locator", "status", "error_class", "error", "duration_ms", "reviews",
		"questions", "variants", "reviews_pages", "questions_pages", "products_discovered",
		"quality_flags",
	},
	SheetSummary: {"field", "value"},
}

// ExcelWriter accumulates entries into a workbook that is saved on Close.
type ExcelWriter struct {
	filename string
	file     *excelize.File
	next     map[string]int
	mu       sync.Mutex
}

// NewExcelWriter prepares a workbook with one sheet per entity and a header row each.
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetProducts); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	ew := &ExcelWriter{filename: filename, file: f, next: make(map[string]int)}
	for _, sheet := range []string{SheetProducts, SheetReviews, SheetQuestions, SheetReports, SheetSummary} {
		if sheet != SheetProducts {
			if _, err := f.NewSheet(sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}
		ew.next[sheet] = 1
		if err := ew.appendRow(sheet, toCells(sheetHeaders[sheet])); err != nil {
			f.Close()
			return nil, err
		}
	}
	return ew, nil
}

// Write appends entries to the workbook sheets.
func (ew *ExcelWriter) Write(entries []models.Entry) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	for _, entry := range entries {
		if err := ew.appendRow(SheetReports, reportCells(entry.Report)); err != nil {
			return err
		}
		r := entry.Record
		if r == nil {
			continue
		}
		if err := ew.appendRow(SheetProducts, toCells(productRow(entry))); err != nil {
			return err
		}
		for _, rv := range r.Reviews {
			if err := ew.appendRow(SheetReviews, []any{
				r.Info.ID, rv.ReviewID, rv.Rating, str(rv.ReviewTitle), str(rv.ReviewText),
				boolean(rv.IsRecommended), timestamp(rv.SubmittedAt), rv.HelpfulVoteCount, rv.NotHelpfulVoteCount,
			}); err != nil {
				return err
			}
		}
		for _, q := range r.Questions {
			answers := make([]string, 0, len(q.Answers))
			for _, a := range q.Answers {
				answers = append(answers, a.Answer)
			}
			if err := ew.appendRow(SheetQuestions, []any{
				q.ProductID, q.QuestionID, q.Question, timestamp(q.SubmittedAt), len(q.Answers), strings.Join(answers, "\n"),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSummary fills the Summary sheet.
func (ew *ExcelWriter) WriteSummary(s models.SessionSummary) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	rows := [][]any{
		{"session_id", s.SessionID},
		{"started_at", s.StartedAt.Format(time.RFC3339)},
		{"finished_at", s.FinishedAt.Format(time.RFC3339)},
		{"targets", s.Targets},
		{"success", s.Success},
		{"partial", s.Partial},
		{"failed", s.Failed},
		{"products_emitted", s.ProductsEmitted},
		{"duplicate_targets", s.DuplicateTargets},
		{"reviews", s.Reviews},
		{"questions", s.Questions},
		{"variants", s.Variants},
		{"retries", s.Retries},
	}
	if s.Fatal != "" {
		rows = append(rows, []any{"fatal", s.Fatal})
	}
	for class, samples := range s.ErrorSamples {
		for _, sample := range samples {
			rows = append(rows, []any{"error:" + class, sample})
		}
	}
	for _, row := range rows {
		if err := ew.appendRow(SheetSummary, row); err != nil {
			return err
		}
	}
	return nil
}

// Close saves the workbook.
func (ew *ExcelWriter) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if err := ew.file.SaveAs(ew.filename); err != nil {
		ew.file.Close()
		return fmt.Errorf("save workbook: %w", err)
	}
	return ew.file.Close()
}

// Validate ensures the workbook holds at least one report row.
func (ew *ExcelWriter) Validate() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.next[SheetReports] <= 2 {
		return fmt.Errorf("workbook has no rows")
	}
	return nil
}

func (ew *ExcelWriter) appendRow(sheet string, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, ew.next[sheet])
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := ew.file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row: %w", sheet, err)
	}
	ew.next[sheet]++
	return nil
}

func reportCells(r models.CrawlReport) []any {
	return []any{
		string(r.Target.Kind), r.Target.Locator, string(r.Status), r.ErrorClass, r.Error, r.DurationMS,
		r.Counts.Reviews, r.Counts.Questions, r.Counts.Variants, r.ReviewsPagesFetched,
		r.QuestionsPagesFetched, r.ProductsDiscovered, strings.Join(r.QualityFlags, ","),
	}
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
