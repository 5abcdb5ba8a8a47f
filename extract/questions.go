package extract

import (
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Questions extracts one page of Q&A. Answers are read inline or resolved through
// Includes.Answers by AnswerIds. A question without answers keeps an empty, non-nil
// answer list.
func Questions(p *parser.Payload, productID string) Page[models.Question] {
	var page Page[models.Question]
	page.Total = intPtr(p.Data.First("TotalResults", "totalResults", "total"))
	included := p.Data.Get("Includes.Answers").Fields()

	for i, item := range p.Data.First("Results", "results", "questions").List() {
		text := firstNonEmpty(item.First("QuestionSummary", "QuestionDetails", "questionText", "question").String())
		id := firstNonEmpty(item.First("Id", "id").String())
		if text == "" {
			page.Skipped = append(page.Skipped, &ItemError{Kind: "question", Index: i, ID: id, Field: "question", Err: ErrMissingQuestion})
			continue
		}
		submitted := item.First("SubmissionTime", "submissionTime").String()
		if id == "" {
			id = stableID(text, submitted, item.Get("UserNickname").String())
		}

		q := models.Question{
			QuestionID:          id,
			ProductID:           firstNonEmpty(item.First("ProductId", "productId").String(), productID),
			Question:            text,
			HelpfulVoteCount:    count(item.Get("TotalPositiveFeedbackCount")),
			NotHelpfulVoteCount: count(item.Get("TotalNegativeFeedbackCount")),
			Answers:             make([]models.Answer, 0),
		}
		if submitted != "" {
			if t, ok := parser.ParseTime(submitted); ok {
				q.SubmittedAt = &t
			} else {
				page.Warnings = append(page.Warnings, &ItemError{Kind: "question", Index: i, ID: id, Field: "submitted_at", Err: ErrUnparsedTime})
			}
		}

		answers := item.First("Answers", "answers").List()
		if len(answers) == 0 {
			for _, ref := range item.Get("AnswerIds").List() {
				if a, ok := included[ref.String()]; ok {
					answers = append(answers, a)
				}
			}
		}

		seen := make(map[string]struct{})
		for j, an := range answers {
			a, warn := answerFromNode(an, j)
			if warn != nil {
				page.Warnings = append(page.Warnings, warn)
				if a == nil {
					continue
				}
			}
			if _, dup := seen[a.AnswerID]; dup {
				continue
			}
			seen[a.AnswerID] = struct{}{}
			q.Answers = append(q.Answers, *a)
		}
		page.Items = append(page.Items, q)
	}
	return page
}

func answerFromNode(n parser.Node, i int) (*models.Answer, error) {
	text := firstNonEmpty(n.First("AnswerText", "answerText", "text").String())
	id := firstNonEmpty(n.First("Id", "id").String())
	if text == "" {
		return nil, &ItemError{Kind: "answer", Index: i, ID: id, Field: "answer", Err: ErrMissingAnswer}
	}
	submitted := n.First("SubmissionTime", "submissionTime").String()
	author := n.First("UserNickname", "userNickname").String()
	if id == "" {
		id = stableID(text, submitted, author)
	}

	a := &models.Answer{
		AnswerID:            id,
		Answer:              text,
		Author:              parser.Optional(author),
		HelpfulVoteCount:    count(n.Get("TotalPositiveFeedbackCount")),
		NotHelpfulVoteCount: count(n.Get("TotalNegativeFeedbackCount")),
	}
	if submitted != "" {
		t, ok := parser.ParseTime(submitted)
		if !ok {
			return a, &ItemError{Kind: "answer", Index: i, ID: id, Field: "submitted_at", Err: ErrUnparsedTime}
		}
		a.SubmittedAt = &t
	}
	return a, nil
}
