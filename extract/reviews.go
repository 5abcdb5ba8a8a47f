package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Reviews extracts one page of reviews. JSON pages follow the Results/TotalResults
// layout; HTML pages are read from [data-at=review] containers.
func Reviews(p *parser.Payload) Page[models.Review] {
	if p.Format == parser.FormatHTML {
		return reviewsFromHTML(p)
	}

	var page Page[models.Review]
	page.Total = intPtr(p.Data.First("TotalResults", "totalResults", "total"))
	for i, item := range p.Data.First("Results", "results", "reviews").List() {
		reviewFromNode(item, i, &page)
	}
	return page
}

func reviewFromNode(n parser.Node, i int, page *Page[models.Review]) {
	rv := models.Review{
		ReviewText:          parser.Optional(n.First("ReviewText", "reviewText", "text").String()),
		ReviewTitle:         parser.Optional(n.First("Title", "title").String()),
		HelpfulVoteCount:    count(n.First("TotalPositiveFeedbackCount", "helpfulVoteCount")),
		NotHelpfulVoteCount: count(n.First("TotalNegativeFeedbackCount", "notHelpfulVoteCount")),
	}
	submitted := n.First("SubmissionTime", "submissionTime", "submittedAt").String()
	nickname := n.First("UserNickname", "userNickname").String()
	rv.ReviewID = firstNonEmpty(n.First("Id", "id").String(), stableID(derefOr(rv.ReviewTitle), derefOr(rv.ReviewText), submitted, nickname))

	rawRating := n.First("Rating", "rating")
	if rawRating.IsZero() {
		page.Skipped = append(page.Skipped, &ItemError{Kind: "review", Index: i, ID: rv.ReviewID, Field: "rating", Err: ErrMissingRating})
		return
	}
	rating, ok := rawRating.Int()
	if !ok || rating < MinRating || rating > MaxRating {
		page.Skipped = append(page.Skipped, &ItemError{Kind: "review", Index: i, ID: rv.ReviewID, Field: "rating", Err: ErrRatingScale})
		return
	}
	rv.Rating = int(rating)

	if b, ok := n.Get("IsRecommended").Bool(); ok {
		rv.IsRecommended = boolPtr(b)
	}

	info := make(map[string]string)
	if nickname != "" {
		info["nickname"] = nickname
	}
	if loc := n.Get("UserLocation").String(); loc != "" {
		info["location"] = loc
	}
	for key, ctx := range n.Get("ContextDataValues").Fields() {
		if v := ctx.First("ValueLabel", "Value").String(); v != "" {
			info[key] = v
		}
	}
	if len(info) > 0 {
		rv.ReviewerInfo = info
	}

	if warn := setSubmitted(&rv, submitted, i); warn != nil {
		page.Warnings = append(page.Warnings, warn)
	}
	page.Items = append(page.Items, rv)
}

func reviewsFromHTML(p *parser.Payload) Page[models.Review] {
	var page Page[models.Review]
	if n, ok := parser.ParseCount(p.DataAt("total_reviews").First().Text()); ok {
		total := int(n)
		page.Total = &total
	}

	p.DataAt("review").Each(func(i int, s *goquery.Selection) {
		field := func(names ...string) string {
			for _, name := range names {
				sel := s.Find(`[data-at="` + name + `"]`).First()
				if v := firstNonEmpty(sel.Text(), sel.AttrOr("aria-label", ""), sel.AttrOr("content", "")); v != "" {
					return v
				}
			}
			return ""
		}

		rv := models.Review{
			ReviewTitle: parser.Optional(field("review_title")),
			ReviewText:  parser.Optional(field("review_body", "review_text")),
		}
		submitted := field("review_date")
		author := field("review_author_name")
		rv.ReviewID = firstNonEmpty(s.AttrOr("data-review-id", ""), s.AttrOr("id", ""),
			stableID(derefOr(rv.ReviewTitle), derefOr(rv.ReviewText), submitted, author))

		ratingEl := s.Find(`[data-at="review_rating"]`).First()
		ratingText := firstNonEmpty(ratingEl.AttrOr("aria-label", ""), ratingEl.AttrOr("content", ""), ratingEl.Text())
		if ratingText == "" {
			page.Skipped = append(page.Skipped, &ItemError{Kind: "review", Index: i, ID: rv.ReviewID, Field: "rating", Err: ErrMissingRating})
			return
		}
		rating, ok := parser.ParseRating(ratingText)
		if !ok || rating < MinRating || rating > MaxRating {
			page.Skipped = append(page.Skipped, &ItemError{Kind: "review", Index: i, ID: rv.ReviewID, Field: "rating", Err: ErrRatingScale})
			return
		}
		rv.Rating = rating

		if rec := strings.ToLower(field("review_recommendation")); rec != "" {
			rv.IsRecommended = boolPtr(!containsAny(rec, "not recommend", "doesn't recommend", "does not recommend", "no,"))
		}
		if n, ok := parser.ParseCount(field("review_helpful_count")); ok {
			rv.HelpfulVoteCount = int(n)
		}
		if n, ok := parser.ParseCount(field("review_not_helpful_count")); ok {
			rv.NotHelpfulVoteCount = int(n)
		}
		if author != "" {
			rv.ReviewerInfo = map[string]string{"nickname": author}
		}
		if warn := setSubmitted(&rv, submitted, i); warn != nil {
			page.Warnings = append(page.Warnings, warn)
		}
		page.Items = append(page.Items, rv)
	})
	return page
}

// setSubmitted parses the submission time. Unparseable values leave the field nil and
// return a warning.
func setSubmitted(rv *models.Review, raw string, i int) error {
	if raw == "" {
		return nil
	}
	t, ok := parser.ParseTime(raw)
	if !ok {
		return &ItemError{Kind: "review", Index: i, ID: rv.ReviewID, Field: "submitted_at", Err: ErrUnparsedTime}
	}
	rv.SubmittedAt = &t
	return nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
