package models

import (
	"maps"
	"time"
)

// Info holds the core product fields. Nil pointers mean the value was not present in
// the payload and serialise as JSON null.
type Info struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name"`
	Image       *string  `json:"image"`
	Description *string  `json:"description"`
	IsAvailable *bool    `json:"is_available"`
	Brand       *string  `json:"brand"`
	Price       *string  `json:"price"`
	PriceValue  *float64 `json:"price_value"`
	Currency    *string  `json:"currency"`
	LoveCount   *int64   `json:"love_count"`
	URL         string   `json:"url"`
}

// Variant is a purchasable sub-entity of a product.
type Variant struct {
	VariantID          string  `json:"variant_id"`
	VariantDescription *string `json:"variant_description"`
	IsVariantAvailable *bool   `json:"is_variant_available"`
	VariantName        *string `json:"variant_name"`
	VariantImage       *string `json:"variant_image"`
}

// Statistics are aggregated from the extracted reviews. The Reported* fields carry the
// site's own summary and are only used to detect drift.
type Statistics struct {
	AverageRating         float64     `json:"average_rating"`
	HelpfulVoteCount      int         `json:"helpful_vote_count"`
	NotHelpfulVoteCount   int         `json:"not_helpful_vote_count"`
	ReviewCount           int         `json:"review_count"`
	VariantCount          int         `json:"variant_count"`
	RecommendedCount      int         `json:"recommended_count"`
	RatingHistogram       map[int]int `json:"rating_histogram"`
	ReportedAverageRating *float64    `json:"reported_average_rating"`
	ReportedReviewCount   *int        `json:"reported_review_count"`
}

// Review is a single customer review.
type Review struct {
	ReviewID            string            `json:"review_id"`
	Rating              int               `json:"rating"`
	ReviewText          *string           `json:"review_text"`
	ReviewTitle         *string           `json:"review_title"`
	IsRecommended       *bool             `json:"is_recommended"`
	SubmittedAt         *time.Time        `json:"submitted_at"`
	HelpfulVoteCount    int               `json:"helpful_vote_count"`
	NotHelpfulVoteCount int               `json:"not_helpful_vote_count"`
	ReviewerInfo        map[string]string `json:"reviewer_info,omitempty"`
}

// Answer is a reply attached to a Question.
type Answer struct {
	AnswerID            string     `json:"answer_id"`
	Answer              string     `json:"answer"`
	SubmittedAt         *time.Time `json:"submitted_at"`
	Author              *string    `json:"author"`
	HelpfulVoteCount    int        `json:"helpful_vote_count"`
	NotHelpfulVoteCount int        `json:"not_helpful_vote_count"`
}

// Question is a Q&A entry. Answers is never nil once extracted.
type Question struct {
	QuestionID          string     `json:"question_id"`
	ProductID           string     `json:"product_id"`
	Question            string     `json:"question"`
	SubmittedAt         *time.Time `json:"submitted_at"`
	HelpfulVoteCount    int        `json:"helpful_vote_count"`
	NotHelpfulVoteCount int        `json:"not_helpful_vote_count"`
	Answers             []Answer   `json:"answers"`
}

// StopReason records why a paginated collection stopped.
type StopReason string

const (
	StopExhausted  StopReason = "exhausted"
	StopPageCap    StopReason = "page_cap"
	StopItemCap    StopReason = "item_cap"
	StopFetchError StopReason = "fetch_error"
	StopCanceled   StopReason = "canceled"
)

// CollectionState describes how far a paginated collection got.
type CollectionState struct {
	PagesFetched      int        `json:"pages_fetched"`
	StopReason        StopReason `json:"stop_reason"`
	DuplicatesDropped int        `json:"duplicates_dropped"`
	ItemsSkipped      int        `json:"items_skipped"`
	ReportedTotal     *int       `json:"reported_total"`
	Error             string     `json:"error,omitempty"`
}

// Complete reports whether the collection reached natural exhaustion.
func (c CollectionState) Complete() bool {
	return c.StopReason == StopExhausted
}

// Source records where a record came from.
type Source struct {
	URL            string `json:"url"`
	DiscoveredFrom string `json:"discovered_from,omitempty"`
	Depth          int    `json:"depth"`
}

// ProductRecord is the unit of output.
type ProductRecord struct {
	Info           Info            `json:"info"`
	Variants       []Variant       `json:"product_variants"`
	Statistics     *Statistics     `json:"statistics"`
	Reviews        []Review        `json:"reviews"`
	Questions      []Question      `json:"questions"`
	Partial        bool            `json:"partial"`
	ReviewsCrawl   CollectionState `json:"reviews_crawl"`
	QuestionsCrawl CollectionState `json:"questions_crawl"`
	Source         Source          `json:"source"`
}

// Clone returns a deep copy that shares no mutable state with r.
func (r *ProductRecord) Clone() *ProductRecord {
	if r == nil {
		return nil
	}
	out := &ProductRecord{
		Info:           r.Info.clone(),
		Partial:        r.Partial,
		ReviewsCrawl:   r.ReviewsCrawl.clone(),
		QuestionsCrawl: r.QuestionsCrawl.clone(),
		Source:         r.Source,
	}

	out.Variants = make([]Variant, len(r.Variants))
	for i, v := range r.Variants {
		out.Variants[i] = Variant{
			VariantID:          v.VariantID,
			VariantDescription: clonePtr(v.VariantDescription),
			IsVariantAvailable: clonePtr(v.IsVariantAvailable),
			VariantName:        clonePtr(v.VariantName),
			VariantImage:       clonePtr(v.VariantImage),
		}
	}

	if r.Statistics != nil {
		stats := *r.Statistics
		stats.RatingHistogram = maps.Clone(r.Statistics.RatingHistogram)
		stats.ReportedAverageRating = clonePtr(r.Statistics.ReportedAverageRating)
		stats.ReportedReviewCount = clonePtr(r.Statistics.ReportedReviewCount)
		out.Statistics = &stats
	}

	out.Reviews = make([]Review, len(r.Reviews))
	for i, rv := range r.Reviews {
		rv.ReviewText = clonePtr(rv.ReviewText)
		rv.ReviewTitle = clonePtr(rv.ReviewTitle)
		rv.IsRecommended = clonePtr(rv.IsRecommended)
		rv.SubmittedAt = clonePtr(rv.SubmittedAt)
		rv.ReviewerInfo = maps.Clone(rv.ReviewerInfo)
		out.Reviews[i] = rv
	}

	out.Questions = make([]Question, len(r.Questions))
	for i, q := range r.Questions {
		q.SubmittedAt = clonePtr(q.SubmittedAt)
		answers := make([]Answer, len(q.Answers))
		for j, a := range q.Answers {
			a.SubmittedAt = clonePtr(a.SubmittedAt)
			a.Author = clonePtr(a.Author)
			answers[j] = a
		}
		q.Answers = answers
		out.Questions[i] = q
	}

	return out
}

func (i Info) clone() Info {
	return Info{
		ID:          i.ID,
		Name:        clonePtr(i.Name),
		Image:       clonePtr(i.Image),
		Description: clonePtr(i.Description),
		IsAvailable: clonePtr(i.IsAvailable),
		Brand:       clonePtr(i.Brand),
		Price:       clonePtr(i.Price),
		PriceValue:  clonePtr(i.PriceValue),
		Currency:    clonePtr(i.Currency),
		LoveCount:   clonePtr(i.LoveCount),
		URL:         i.URL,
	}
}

func (c CollectionState) clone() CollectionState {
	c.ReportedTotal = clonePtr(c.ReportedTotal)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
