package model

import (
	"math"
	"sort"
	"strings"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Text           QuestionType = "text"
	Code           QuestionType = "code"
)

// ParseQuestionType normalizes a raw type token (trimmed, lower-cased) into
// one of the four question types.
func ParseQuestionType(token string) (QuestionType, bool) {
	switch QuestionType(strings.ToLower(strings.TrimSpace(token))) {
	case SingleChoice:
		return SingleChoice, true
	case MultipleChoice:
		return MultipleChoice, true
	case Text:
		return Text, true
	case Code:
		return Code, true
	}
	return "", false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a polymorphic assessment item. Which fields apply depends on
// Type: choice types carry Choices/Answer, text and code carry TextAnswer.
type Question struct {
	UUIDBase
	QuestionText    string       `gorm:"type:text;not null" json:"questionText"`
	QuestionTextAlt string       `gorm:"type:text" json:"questionTextAlt,omitempty"`
	Type            QuestionType `gorm:"size:50;not null;index" json:"type"`
	Choices         []string     `gorm:"serializer:json" json:"choices,omitempty"`
	ChoicesAlt      []string     `gorm:"serializer:json" json:"choicesAlt,omitempty"`
	Answer          []int        `gorm:"serializer:json" json:"answer,omitempty"`
	TextAnswer      string       `gorm:"type:text" json:"textAnswer,omitempty"`
	Points          int          `gorm:"default:10" json:"points"`
	Duration        int          `gorm:"default:30" json:"duration"` // seconds
	CreatedBy       string       `gorm:"type:varchar(36);index" json:"createdBy"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) IsSingleChoice() bool {
	return q.Type == SingleChoice
}

func (q *Question) IsMultipleChoice() bool {
	return q.Type == MultipleChoice
}

func (q *Question) IsChoiceBased() bool {
	return q.Type == SingleChoice || q.Type == MultipleChoice
}

func (q *Question) IsTextBased() bool {
	return q.Type == Text || q.Type == Code
}

// GetQuestionText returns the prompt in the requested language, falling back
// to the primary text when no alternate translation exists.
func (q *Question) GetQuestionText(language string) string {
	if language == LanguageAlt && q.QuestionTextAlt != "" {
		return q.QuestionTextAlt
	}
	return q.QuestionText
}

// GetChoices returns the option list in the requested language.
func (q *Question) GetChoices(language string) []string {
	if language == LanguageAlt && len(q.ChoicesAlt) > 0 {
		return q.ChoicesAlt
	}
	return q.Choices
}

const (
	LanguagePrimary = "primary"
	LanguageAlt     = "alt"
)

// SubmittedAnswer is a caller's answer to a question. Indices applies to
// choice types, Text to text and code types.
type SubmittedAnswer struct {
	Indices []int  `json:"indices,omitempty"`
	Text    string `json:"text,omitempty"`
}

// IsCorrectAnswer evaluates a submitted answer against the stored one.
// Text and code answers match case-insensitively after trimming. Single
// choice requires the one stored index. Multiple choice requires exact set
// equality: a superset or subset of the stored indices is incorrect.
func (q *Question) IsCorrectAnswer(submitted SubmittedAnswer) bool {
	if q.IsTextBased() {
		return strings.EqualFold(
			strings.TrimSpace(submitted.Text),
			strings.TrimSpace(q.TextAnswer),
		)
	}

	if q.IsMultipleChoice() {
		if len(submitted.Indices) != len(q.Answer) {
			return false
		}
		got := append([]int(nil), submitted.Indices...)
		want := append([]int(nil), q.Answer...)
		sort.Ints(got)
		sort.Ints(want)
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}

	// Single choice: stored answer holds exactly one index.
	return len(submitted.Indices) == 1 && len(q.Answer) == 1 &&
		submitted.Indices[0] == q.Answer[0]
}

// Difficulty bands a question by the inherited scoring rule
// points/10 + max(0, 10-duration). The duration term reads seconds against a
// threshold of 10, so it only contributes for very short questions; the
// thresholds are kept as-is for compatibility with stored content.
func (q *Question) Difficulty() Difficulty {
	score := float64(q.Points)/10 + math.Max(0, 10-float64(q.Duration))

	switch {
	case score <= 5:
		return DifficultyEasy
	case score <= 10:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

const readingWordsPerMinute = 200

// EstimatedReadingTime estimates how long the prompt (and choices, for
// choice types) takes to read, in seconds, clamped to [5, duration-5].
func (q *Question) EstimatedReadingTime() int {
	words := len(strings.Fields(q.QuestionText))
	if q.IsChoiceBased() {
		words += len(strings.Fields(strings.Join(q.Choices, " ")))
	}

	seconds := int(math.Ceil(float64(words) / readingWordsPerMinute * 60))
	if seconds > q.Duration-5 {
		seconds = q.Duration - 5
	}
	if seconds < 5 {
		seconds = 5
	}
	return seconds
}

// WithoutAnswers returns a copy safe to hand to callers that may not see
// the correct answers.
func (q *Question) WithoutAnswers() *Question {
	redacted := *q
	redacted.Answer = nil
	redacted.TextAnswer = ""
	return &redacted
}

// QuestionFilter narrows a question listing. Zero values mean "no filter".
type QuestionFilter struct {
	Type         QuestionType `json:"type,omitempty"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	MinPoints    int          `json:"minPoints,omitempty"`
	MaxDuration  int          `json:"maxDuration,omitempty"`
	TextContains string       `json:"textContains,omitempty"`
}
