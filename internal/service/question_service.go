package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"workshop_backend/internal/model"
	"workshop_backend/internal/util"
	"workshop_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const (
	bulkMin       = 1
	bulkMax       = 50
	searchTermMin = 2
	searchTermMax = 255
	randomDefault = 10
	randomMax     = 50
)

// QuestionStore is the persistence contract the service consumes. Implemented
// by repository.QuestionRepository; not-found is reported as
// util.ErrQuestionNotFound, any other error is treated as an infrastructure
// failure.
type QuestionStore interface {
	Find(id string) (*model.Question, error)
	Insert(q *model.Question) error
	Replace(q *model.Question) error
	Delete(id string) error
	ListFiltered(filter model.QuestionFilter, page, pageSize int) ([]model.Question, int64, error)
	All() ([]model.Question, error)
	Search(term, language string) ([]model.Question, error)
	ByType(t model.QuestionType) ([]model.Question, error)
	RandomByType(t model.QuestionType, count int) ([]model.Question, error)
	CountGroupedByType() (map[model.QuestionType]int64, error)
	AverageField(field string) (float64, error)
}

// AssignmentLinkChecker guards deletion: a question referenced by any
// assignment must not be removed.
type AssignmentLinkChecker interface {
	IsReferencedByAnyAssignment(questionID string) (bool, error)
}

// BulkItemFailure records why one payload of a bulk create was rejected.
type BulkItemFailure struct {
	Index  int               `json:"index"`
	Errors []util.FieldError `json:"errors"`
}

// BulkCreateResult is the per-item manifest of a bulk create. A failing item
// never aborts the batch and never rolls back earlier items.
type BulkCreateResult struct {
	Created []model.Question  `json:"created"`
	Failed  []BulkItemFailure `json:"failed"`
}

type BulkDeleteFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BulkDeleteResult struct {
	Deleted []string            `json:"deleted"`
	Failed  []BulkDeleteFailure `json:"failed"`
}

// QuestionStatistics is the aggregate report over the question bank.
type QuestionStatistics struct {
	TotalQuestions  int64                        `json:"totalQuestions"`
	ByType          map[model.QuestionType]int64 `json:"byType"`
	AveragePoints   float64                      `json:"averagePoints"`
	AverageDuration float64                      `json:"averageDuration"`
}

// QuestionService orchestrates authorization, validation and persistence for
// the question bank. Every operation takes the acting principal explicitly.
type QuestionService struct {
	store     QuestionStore
	links     AssignmentLinkChecker
	validator *QuestionValidator
	policy    *QuestionPolicy
	log       *zap.Logger
}

func NewQuestionService(store QuestionStore, links AssignmentLinkChecker, log *zap.Logger) *QuestionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuestionService{
		store:     store,
		links:     links,
		validator: NewQuestionValidator(),
		policy:    NewQuestionPolicy(),
		log:       log,
	}
}

// Policy exposes the authorization gate for callers that need standalone
// checks (answer reveal decisions in a display layer).
func (s *QuestionService) Policy() *QuestionPolicy {
	return s.policy
}

// Create validates and persists a new question owned by the principal.
func (s *QuestionService) Create(principal model.Principal, payload QuestionPayload) (*model.Question, error) {
	defer s.observe(OpCreate, time.Now())

	if !s.policy.Authorize(principal, OpCreate, nil) {
		return nil, util.ErrPermissionDenied
	}

	q, ferrs := s.validator.ValidateCreate(payload)
	if len(ferrs) > 0 {
		return nil, &util.ValidationError{Fields: ferrs}
	}

	q.CreatedBy = principal.ID
	if err := s.store.Insert(q); err != nil {
		return nil, s.storeFailure("create", err)
	}
	return q, nil
}

// Get returns a question. Answers are redacted unless the caller asks for
// them and the viewAnswers policy allows it.
func (s *QuestionService) Get(principal model.Principal, id string, includeAnswers bool) (*model.Question, error) {
	defer s.observe(OpView, time.Now())

	q, err := s.store.Find(id)
	if err != nil {
		return nil, s.storeFailure("find", err)
	}
	if !s.policy.Authorize(principal, OpView, q) {
		return nil, util.ErrPermissionDenied
	}

	if !includeAnswers || !s.policy.Authorize(principal, OpViewAnswers, q) {
		return q.WithoutAnswers(), nil
	}
	return q, nil
}

// List returns a filtered page of questions with the total count.
func (s *QuestionService) List(principal model.Principal, filter model.QuestionFilter, page, pageSize int, includeAnswers bool) ([]model.Question, int64, error) {
	defer s.observe(OpViewAny, time.Now())

	if !s.policy.Authorize(principal, OpViewAny, nil) {
		return nil, 0, util.ErrPermissionDenied
	}

	items, total, err := s.store.ListFiltered(filter, page, pageSize)
	if err != nil {
		return nil, 0, s.storeFailure("list", err)
	}

	reveal := includeAnswers && s.policy.Authorize(principal, OpViewAnswers, nil)
	if !reveal {
		for i := range items {
			items[i] = *items[i].WithoutAnswers()
		}
	}
	return items, total, nil
}

// Update merges a partial payload onto the stored record, re-validates the
// whole result and persists it. Ownership is checked against the stored
// record before anything else is touched.
func (s *QuestionService) Update(principal model.Principal, id string, payload QuestionPayload) (*model.Question, error) {
	defer s.observe(OpUpdate, time.Now())

	existing, err := s.store.Find(id)
	if err != nil {
		return nil, s.storeFailure("find", err)
	}
	if !s.policy.Authorize(principal, OpUpdate, existing) {
		return nil, util.ErrPermissionDenied
	}

	merged, ferrs := s.validator.ValidateUpdate(existing, payload)
	if len(ferrs) > 0 {
		return nil, &util.ValidationError{Fields: ferrs}
	}

	// Owner never changes on update.
	merged.CreatedBy = existing.CreatedBy
	if err := s.store.Replace(merged); err != nil {
		return nil, s.storeFailure("update", err)
	}
	return merged, nil
}

// Delete removes a question unless an assignment still references it.
func (s *QuestionService) Delete(principal model.Principal, id string) error {
	defer s.observe(OpDelete, time.Now())

	q, err := s.store.Find(id)
	if err != nil {
		return s.storeFailure("find", err)
	}
	if !s.policy.Authorize(principal, OpDelete, q) {
		return util.ErrPermissionDenied
	}

	referenced, err := s.links.IsReferencedByAnyAssignment(id)
	if err != nil {
		return s.storeFailure("delete", err)
	}
	if referenced {
		return util.ErrQuestionInUse
	}

	if err := s.store.Delete(id); err != nil {
		return s.storeFailure("delete", err)
	}
	return nil
}

const (
	questionCopySuffix    = " (Copy)"
	questionCopySuffixAlt = " (نسخة)"
)

// Duplicate clones a question under a fresh id, marks both text fields as a
// copy and stamps the duplicating principal as the owner.
func (s *QuestionService) Duplicate(principal model.Principal, id string) (*model.Question, error) {
	defer s.observe(OpDuplicate, time.Now())

	original, err := s.store.Find(id)
	if err != nil {
		return nil, s.storeFailure("find", err)
	}
	if !s.policy.Authorize(principal, OpDuplicate, original) {
		return nil, util.ErrPermissionDenied
	}

	clone := *original
	clone.UUIDBase = model.UUIDBase{ID: model.GenerateUUID()}
	clone.Choices = append([]string(nil), original.Choices...)
	clone.ChoicesAlt = append([]string(nil), original.ChoicesAlt...)
	clone.Answer = append([]int(nil), original.Answer...)
	clone.QuestionText = original.QuestionText + questionCopySuffix
	if original.QuestionTextAlt != "" {
		clone.QuestionTextAlt = original.QuestionTextAlt + questionCopySuffixAlt
	}
	clone.CreatedBy = principal.ID

	if err := s.store.Insert(&clone); err != nil {
		return nil, s.storeFailure("duplicate", err)
	}
	return &clone, nil
}

// BulkCreate validates and inserts each payload independently. A failing item
// is reported in the manifest and the remaining items are still attempted.
func (s *QuestionService) BulkCreate(principal model.Principal, payloads []QuestionPayload) (*BulkCreateResult, error) {
	defer s.observe(OpBulkCreate, time.Now())

	if !s.policy.Authorize(principal, OpBulkCreate, nil) {
		return nil, util.ErrPermissionDenied
	}
	if len(payloads) < bulkMin || len(payloads) > bulkMax {
		return nil, &util.ValidationError{Fields: []util.FieldError{{
			Field:   "questions",
			Message: fmt.Sprintf("between %d and %d questions are required", bulkMin, bulkMax),
		}}}
	}

	result := &BulkCreateResult{}
	for i, payload := range payloads {
		q, ferrs := s.validator.ValidateCreate(payload)
		if len(ferrs) > 0 {
			s.log.Warn("bulk create item rejected",
				zap.Int("index", i),
				zap.Int("violations", len(ferrs)))
			result.Failed = append(result.Failed, BulkItemFailure{Index: i, Errors: ferrs})
			continue
		}

		q.CreatedBy = principal.ID
		if err := s.store.Insert(q); err != nil {
			s.log.Warn("bulk create item insert failed",
				zap.Int("index", i),
				zap.Error(err))
			result.Failed = append(result.Failed, BulkItemFailure{Index: i, Errors: []util.FieldError{
				{Field: "questions", Message: util.ErrStoreUnavailable.Error()},
			}})
			continue
		}
		result.Created = append(result.Created, *q)
	}

	return result, nil
}

// BulkDelete removes each id independently, applying the same existence and
// assignment-reference guards as Delete. Per-id failures go into the
// manifest; the batch itself always succeeds.
func (s *QuestionService) BulkDelete(principal model.Principal, ids []string) (*BulkDeleteResult, error) {
	defer s.observe(OpBulkDelete, time.Now())

	if !s.policy.Authorize(principal, OpBulkDelete, nil) {
		return nil, util.ErrPermissionDenied
	}
	if len(ids) < bulkMin || len(ids) > bulkMax {
		return nil, &util.ValidationError{Fields: []util.FieldError{{
			Field:   "ids",
			Message: fmt.Sprintf("between %d and %d ids are required", bulkMin, bulkMax),
		}}}
	}

	result := &BulkDeleteResult{}
	for _, id := range ids {
		if _, err := s.store.Find(id); err != nil {
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Reason: reasonFor(err)})
			continue
		}

		referenced, err := s.links.IsReferencedByAnyAssignment(id)
		if err != nil {
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Reason: reasonFor(err)})
			continue
		}
		if referenced {
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Reason: util.ErrQuestionInUse.Error()})
			continue
		}

		if err := s.store.Delete(id); err != nil {
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Reason: reasonFor(err)})
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	return result, nil
}

// Search matches questions by prompt text in the requested language
// ("alt" searches the alternate text, anything else the primary).
func (s *QuestionService) Search(principal model.Principal, term, language string) ([]model.Question, error) {
	defer s.observe(OpSearch, time.Now())

	if !s.policy.Authorize(principal, OpSearch, nil) {
		return nil, util.ErrPermissionDenied
	}
	if n := len(term); n < searchTermMin || n > searchTermMax {
		return nil, &util.ValidationError{Fields: []util.FieldError{{
			Field:   "term",
			Message: fmt.Sprintf("search term must be between %d and %d characters", searchTermMin, searchTermMax),
		}}}
	}

	items, err := s.store.Search(term, language)
	if err != nil {
		return nil, s.storeFailure("search", err)
	}
	return s.redactUnlessAllowed(principal, items), nil
}

// GetByType lists every question of one type.
func (s *QuestionService) GetByType(principal model.Principal, t model.QuestionType) ([]model.Question, error) {
	defer s.observe(OpViewAny, time.Now())

	if !s.policy.Authorize(principal, OpViewAny, nil) {
		return nil, util.ErrPermissionDenied
	}

	items, err := s.store.ByType(t)
	if err != nil {
		return nil, s.storeFailure("list", err)
	}
	return s.redactUnlessAllowed(principal, items), nil
}

// GetByDifficulty lists the questions in one difficulty band. The band is
// computed from points and duration, so the filter runs after loading.
func (s *QuestionService) GetByDifficulty(principal model.Principal, d model.Difficulty) ([]model.Question, error) {
	defer s.observe(OpViewAny, time.Now())

	if !s.policy.Authorize(principal, OpViewAny, nil) {
		return nil, util.ErrPermissionDenied
	}

	items, err := s.store.All()
	if err != nil {
		return nil, s.storeFailure("list", err)
	}

	var matched []model.Question
	for _, q := range items {
		if q.Difficulty() == d {
			matched = append(matched, q)
		}
	}
	return s.redactUnlessAllowed(principal, matched), nil
}

// RandomByType draws up to count random questions of one type with answers
// redacted; it feeds participant-facing quizzes.
func (s *QuestionService) RandomByType(principal model.Principal, t model.QuestionType, count int) ([]model.Question, error) {
	defer s.observe(OpViewAny, time.Now())

	if !s.policy.Authorize(principal, OpViewAny, nil) {
		return nil, util.ErrPermissionDenied
	}
	if count <= 0 {
		count = randomDefault
	}
	if count > randomMax {
		count = randomMax
	}

	items, err := s.store.RandomByType(t, count)
	if err != nil {
		return nil, s.storeFailure("list", err)
	}
	for i := range items {
		items[i] = *items[i].WithoutAnswers()
	}
	return items, nil
}

// Statistics aggregates counts and averages over the whole question bank.
func (s *QuestionService) Statistics(principal model.Principal) (*QuestionStatistics, error) {
	defer s.observe(OpSearch, time.Now())

	if !s.policy.Authorize(principal, OpSearch, nil) {
		return nil, util.ErrPermissionDenied
	}

	byType, err := s.store.CountGroupedByType()
	if err != nil {
		return nil, s.storeFailure("statistics", err)
	}
	var total int64
	for _, n := range byType {
		total += n
	}

	avgPoints, err := s.store.AverageField("points")
	if err != nil {
		return nil, s.storeFailure("statistics", err)
	}
	avgDuration, err := s.store.AverageField("duration")
	if err != nil {
		return nil, s.storeFailure("statistics", err)
	}

	return &QuestionStatistics{
		TotalQuestions:  total,
		ByType:          byType,
		AveragePoints:   round2(avgPoints),
		AverageDuration: round2(avgDuration),
	}, nil
}

// redactUnlessAllowed strips answers from a listing unless the principal
// holds the untargeted viewAnswers grant.
func (s *QuestionService) redactUnlessAllowed(principal model.Principal, items []model.Question) []model.Question {
	if s.policy.Authorize(principal, OpViewAnswers, nil) {
		return items
	}
	for i := range items {
		items[i] = *items[i].WithoutAnswers()
	}
	return items
}

// storeFailure keeps not-found intact and classifies everything else as an
// infrastructure failure the caller may retry.
func (s *QuestionService) storeFailure(op string, err error) error {
	if errors.Is(err, util.ErrQuestionNotFound) {
		return err
	}
	s.log.Error("question store failure", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
}

func (s *QuestionService) observe(op Operation, start time.Time) {
	monitoring.ObserveQuestionOperation(string(op), time.Since(start))
}

func reasonFor(err error) string {
	if errors.Is(err, util.ErrQuestionNotFound) {
		return util.ErrQuestionNotFound.Error()
	}
	return util.ErrStoreUnavailable.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
