package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"workshop_backend/internal/model"
	"workshop_backend/internal/util"
)

const (
	questionTextMinLen = 10
	questionTextMaxLen = 1000
	choiceMaxLen       = 500
	choicesMin         = 2
	choicesMax         = 6
	textAnswerMaxLen   = 1000
	pointsMin          = 1
	pointsMax          = 100
	pointsDefault      = 10
	durationMin        = 5
	durationMax        = 300
	durationDefault    = 30
)

// QuestionPayload is the raw create/update input. Nil pointers and nil
// slices mean "not supplied", which matters for partial updates.
type QuestionPayload struct {
	QuestionText    *string  `json:"questionText"`
	QuestionTextAlt *string  `json:"questionTextAlt"`
	Type            *string  `json:"type"`
	Choices         []string `json:"choices"`
	ChoicesAlt      []string `json:"choicesAlt"`
	Answer          []int    `json:"answer"`
	TextAnswer      *string  `json:"textAnswer"`
	Points          *int     `json:"points"`
	Duration        *int     `json:"duration"`
}

// QuestionValidator checks a candidate payload against the structural
// invariants of the question model. It collects every violation it finds
// rather than stopping at the first one.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateCreate normalizes a create payload, applies defaults and returns
// the record it would produce together with all rule violations.
func (v *QuestionValidator) ValidateCreate(payload QuestionPayload) (*model.Question, []util.FieldError) {
	q := &model.Question{
		Points:   pointsDefault,
		Duration: durationDefault,
	}

	errs := v.apply(q, payload)
	errs = append(errs, v.checkRecord(q)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return q, nil
}

// ValidateUpdate merges a partial payload onto a copy of the existing record
// and re-runs the full invariant check: a partial update must never leave an
// invalid whole record behind. An empty payload is a no-op, not a rejection.
func (v *QuestionValidator) ValidateUpdate(existing *model.Question, payload QuestionPayload) (*model.Question, []util.FieldError) {
	merged := *existing
	merged.Choices = append([]string(nil), existing.Choices...)
	merged.ChoicesAlt = append([]string(nil), existing.ChoicesAlt...)
	merged.Answer = append([]int(nil), existing.Answer...)

	errs := v.apply(&merged, payload)
	errs = append(errs, v.checkRecord(&merged)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return &merged, nil
}

// apply copies the supplied payload fields onto q, normalizing as it goes.
// Only the type token can fail here; range rules live in checkRecord.
func (v *QuestionValidator) apply(q *model.Question, payload QuestionPayload) []util.FieldError {
	var errs []util.FieldError

	if payload.QuestionText != nil {
		q.QuestionText = strings.TrimSpace(*payload.QuestionText)
	}
	if payload.QuestionTextAlt != nil {
		q.QuestionTextAlt = strings.TrimSpace(*payload.QuestionTextAlt)
	}
	if payload.Type != nil {
		parsed, ok := model.ParseQuestionType(*payload.Type)
		if !ok {
			errs = append(errs, util.FieldError{
				Field: "type",
				Message: fmt.Sprintf("invalid question type, must be one of: %s, %s, %s, %s",
					model.SingleChoice, model.MultipleChoice, model.Text, model.Code),
			})
		} else {
			q.Type = parsed
		}
	}
	if payload.Choices != nil {
		q.Choices = trimAll(payload.Choices)
	}
	if payload.ChoicesAlt != nil {
		q.ChoicesAlt = trimAll(payload.ChoicesAlt)
	}
	if payload.Answer != nil {
		q.Answer = append([]int(nil), payload.Answer...)
	}
	if payload.TextAnswer != nil {
		q.TextAnswer = strings.TrimSpace(*payload.TextAnswer)
	}
	if payload.Points != nil {
		q.Points = *payload.Points
	}
	if payload.Duration != nil {
		q.Duration = *payload.Duration
	}

	return errs
}

// checkRecord validates a fully merged record against every invariant.
func (v *QuestionValidator) checkRecord(q *model.Question) []util.FieldError {
	var errs []util.FieldError

	// Lengths count characters, not bytes, so Arabic text gets the full range.
	if n := utf8.RuneCountInString(q.QuestionText); n < questionTextMinLen || n > questionTextMaxLen {
		errs = append(errs, util.FieldError{
			Field:   "questionText",
			Message: fmt.Sprintf("question text must be between %d and %d characters", questionTextMinLen, questionTextMaxLen),
		})
	}
	if q.QuestionTextAlt != "" {
		if n := utf8.RuneCountInString(q.QuestionTextAlt); n < questionTextMinLen || n > questionTextMaxLen {
			errs = append(errs, util.FieldError{
				Field:   "questionTextAlt",
				Message: fmt.Sprintf("alternate question text must be between %d and %d characters", questionTextMinLen, questionTextMaxLen),
			})
		}
	}
	if q.Points < pointsMin || q.Points > pointsMax {
		errs = append(errs, util.FieldError{
			Field:   "points",
			Message: fmt.Sprintf("points must be between %d and %d", pointsMin, pointsMax),
		})
	}
	if q.Duration < durationMin || q.Duration > durationMax {
		errs = append(errs, util.FieldError{
			Field:   "duration",
			Message: fmt.Sprintf("duration must be between %d and %d seconds", durationMin, durationMax),
		})
	}

	switch q.Type {
	case model.SingleChoice, model.MultipleChoice:
		errs = append(errs, v.checkChoiceBased(q)...)
	case model.Text, model.Code:
		errs = append(errs, v.checkTextBased(q)...)
	default:
		errs = append(errs, util.FieldError{Field: "type", Message: "question type is required"})
	}

	return errs
}

func (v *QuestionValidator) checkChoiceBased(q *model.Question) []util.FieldError {
	var errs []util.FieldError

	if len(q.Choices) == 0 {
		errs = append(errs, util.FieldError{Field: "choices", Message: "choices are required for choice-based questions"})
	} else if len(q.Choices) < choicesMin || len(q.Choices) > choicesMax {
		errs = append(errs, util.FieldError{
			Field:   "choices",
			Message: fmt.Sprintf("between %d and %d choices are required", choicesMin, choicesMax),
		})
	}
	for i, choice := range q.Choices {
		if choice == "" {
			errs = append(errs, util.FieldError{
				Field:   fmt.Sprintf("choices[%d]", i),
				Message: "choice must not be empty",
			})
		} else if utf8.RuneCountInString(choice) > choiceMaxLen {
			errs = append(errs, util.FieldError{
				Field:   fmt.Sprintf("choices[%d]", i),
				Message: fmt.Sprintf("choice cannot exceed %d characters", choiceMaxLen),
			})
		}
	}

	if len(q.ChoicesAlt) > 0 {
		if len(q.ChoicesAlt) != len(q.Choices) {
			errs = append(errs, util.FieldError{
				Field:   "choicesAlt",
				Message: "alternate choices count must match choices count",
			})
		}
		for i, choice := range q.ChoicesAlt {
			if choice == "" {
				errs = append(errs, util.FieldError{
					Field:   fmt.Sprintf("choicesAlt[%d]", i),
					Message: "choice must not be empty",
				})
			} else if utf8.RuneCountInString(choice) > choiceMaxLen {
				errs = append(errs, util.FieldError{
					Field:   fmt.Sprintf("choicesAlt[%d]", i),
					Message: fmt.Sprintf("choice cannot exceed %d characters", choiceMaxLen),
				})
			}
		}
	}

	if len(q.Answer) == 0 {
		errs = append(errs, util.FieldError{Field: "answer", Message: "answer is required for choice-based questions"})
	} else {
		if q.Type == model.SingleChoice && len(q.Answer) != 1 {
			errs = append(errs, util.FieldError{Field: "answer", Message: "single choice questions take exactly one answer index"})
		}
		seen := make(map[int]bool, len(q.Answer))
		for _, idx := range q.Answer {
			if idx < 0 || idx >= len(q.Choices) {
				errs = append(errs, util.FieldError{Field: "answer", Message: "answer index must be within the choices range"})
				break
			}
		}
		if q.Type == model.MultipleChoice {
			for _, idx := range q.Answer {
				if seen[idx] {
					errs = append(errs, util.FieldError{Field: "answer", Message: "answer indices must be distinct"})
					break
				}
				seen[idx] = true
			}
		}
	}

	if q.TextAnswer != "" {
		errs = append(errs, util.FieldError{Field: "textAnswer", Message: "text answer does not apply to choice-based questions"})
	}

	return errs
}

func (v *QuestionValidator) checkTextBased(q *model.Question) []util.FieldError {
	var errs []util.FieldError

	if q.TextAnswer == "" {
		errs = append(errs, util.FieldError{Field: "textAnswer", Message: "text answer is required for text-based questions"})
	} else if utf8.RuneCountInString(q.TextAnswer) > textAnswerMaxLen {
		errs = append(errs, util.FieldError{
			Field:   "textAnswer",
			Message: fmt.Sprintf("text answer cannot exceed %d characters", textAnswerMaxLen),
		})
	}

	if len(q.Choices) > 0 {
		errs = append(errs, util.FieldError{Field: "choices", Message: "choices do not apply to text-based questions"})
	}
	if len(q.Answer) > 0 {
		errs = append(errs, util.FieldError{Field: "answer", Message: "answer indices do not apply to text-based questions"})
	}

	return errs
}

func trimAll(values []string) []string {
	trimmed := make([]string, len(values))
	for i, v := range values {
		trimmed[i] = strings.TrimSpace(v)
	}
	return trimmed
}
