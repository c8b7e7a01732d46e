package service

import (
	"errors"
	"strings"
	"testing"

	"workshop_backend/internal/model"
	"workshop_backend/internal/util"
)

// fakeStore is an in-memory QuestionStore for service tests.
type fakeStore struct {
	records   map[string]*model.Question
	findErr   error
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*model.Question)}
}

func (f *fakeStore) Find(id string) (*model.Question, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	q, ok := f.records[id]
	if !ok {
		return nil, util.ErrQuestionNotFound
	}
	out := *q
	return &out, nil
}

func (f *fakeStore) Insert(q *model.Question) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if q.ID == "" {
		q.ID = model.GenerateUUID()
	}
	stored := *q
	f.records[q.ID] = &stored
	return nil
}

func (f *fakeStore) Replace(q *model.Question) error {
	if _, ok := f.records[q.ID]; !ok {
		return util.ErrQuestionNotFound
	}
	stored := *q
	f.records[q.ID] = &stored
	return nil
}

func (f *fakeStore) Delete(id string) error {
	if _, ok := f.records[id]; !ok {
		return util.ErrQuestionNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeStore) ListFiltered(filter model.QuestionFilter, page, pageSize int) ([]model.Question, int64, error) {
	var items []model.Question
	for _, q := range f.records {
		if filter.Type != "" && q.Type != filter.Type {
			continue
		}
		items = append(items, *q)
	}
	return items, int64(len(items)), nil
}

func (f *fakeStore) All() ([]model.Question, error) {
	var items []model.Question
	for _, q := range f.records {
		items = append(items, *q)
	}
	return items, nil
}

func (f *fakeStore) Search(term, language string) ([]model.Question, error) {
	var items []model.Question
	for _, q := range f.records {
		text := q.QuestionText
		if language == model.LanguageAlt {
			text = q.QuestionTextAlt
		}
		if strings.Contains(text, term) {
			items = append(items, *q)
		}
	}
	return items, nil
}

func (f *fakeStore) ByType(t model.QuestionType) ([]model.Question, error) {
	var items []model.Question
	for _, q := range f.records {
		if q.Type == t {
			items = append(items, *q)
		}
	}
	return items, nil
}

func (f *fakeStore) RandomByType(t model.QuestionType, count int) ([]model.Question, error) {
	items, err := f.ByType(t)
	if err != nil {
		return nil, err
	}
	if len(items) > count {
		items = items[:count]
	}
	return items, nil
}

func (f *fakeStore) CountGroupedByType() (map[model.QuestionType]int64, error) {
	counts := make(map[model.QuestionType]int64)
	for _, q := range f.records {
		counts[q.Type]++
	}
	return counts, nil
}

func (f *fakeStore) AverageField(field string) (float64, error) {
	if len(f.records) == 0 {
		return 0, nil
	}
	var sum int
	for _, q := range f.records {
		if field == "points" {
			sum += q.Points
		} else {
			sum += q.Duration
		}
	}
	return float64(sum) / float64(len(f.records)), nil
}

type fakeLinks struct {
	referenced map[string]bool
	err        error
}

func (f *fakeLinks) IsReferencedByAnyAssignment(questionID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.referenced[questionID], nil
}

var (
	adminP       = model.Principal{ID: "admin-1", Role: model.Admin}
	facilitatorP = model.Principal{ID: "fac-1", Role: model.Facilitator}
	otherFacP    = model.Principal{ID: "fac-2", Role: model.Facilitator}
	participantP = model.Principal{ID: "part-1", Role: model.Participant}
)

func newTestService() (*QuestionService, *fakeStore, *fakeLinks) {
	store := newFakeStore()
	links := &fakeLinks{referenced: make(map[string]bool)}
	return NewQuestionService(store, links, nil), store, links
}

func mustCreate(t *testing.T, svc *QuestionService, principal model.Principal, payload QuestionPayload) *model.Question {
	t.Helper()
	q, err := svc.Create(principal, payload)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return q
}

// TestCreateStampsOwner verifies the acting principal becomes the owner.
func TestCreateStampsOwner(t *testing.T) {
	svc, store, _ := newTestService()

	q := mustCreate(t, svc, facilitatorP, singleChoicePayload())
	if q.CreatedBy != facilitatorP.ID {
		t.Errorf("createdBy: got %q, want %q", q.CreatedBy, facilitatorP.ID)
	}
	if q.ID == "" {
		t.Errorf("expected an id to be assigned")
	}
	if _, ok := store.records[q.ID]; !ok {
		t.Errorf("record not persisted")
	}
}

// TestCreateDenied verifies participants cannot create questions.
func TestCreateDenied(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.Create(participantP, singleChoicePayload())
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("store touched after authorization failure")
	}
}

// TestCreateValidationFailure verifies invalid payloads reach neither the
// owner stamp nor the store.
func TestCreateValidationFailure(t *testing.T) {
	svc, store, _ := newTestService()

	payload := singleChoicePayload()
	payload.Choices = nil

	_, err := svc.Create(adminP, payload)
	if !util.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("store touched after validation failure")
	}
}

// TestUpdateOwnership verifies facilitators may only update their own
// questions while admins may update any.
func TestUpdateOwnership(t *testing.T) {
	svc, _, _ := newTestService()

	q := mustCreate(t, svc, facilitatorP, singleChoicePayload())

	if _, err := svc.Update(otherFacP, q.ID, QuestionPayload{Points: intp(20)}); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("other facilitator: expected permission denied, got %v", err)
	}

	updated, err := svc.Update(facilitatorP, q.ID, QuestionPayload{Points: intp(20)})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Points != 20 {
		t.Errorf("points not applied: got %d", updated.Points)
	}

	updated, err = svc.Update(adminP, q.ID, QuestionPayload{Points: intp(30)})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.CreatedBy != facilitatorP.ID {
		t.Errorf("owner changed on update: got %q", updated.CreatedBy)
	}
}

// TestUpdateNotFound verifies a missing id surfaces as not found.
func TestUpdateNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Update(adminP, "missing", QuestionPayload{Points: intp(20)})
	if !errors.Is(err, util.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// TestUpdateNoop verifies an empty payload round-trips the stored record.
func TestUpdateNoop(t *testing.T) {
	svc, _, _ := newTestService()

	q := mustCreate(t, svc, adminP, singleChoicePayload())

	updated, err := svc.Update(adminP, q.ID, QuestionPayload{})
	if err != nil {
		t.Fatalf("no-op update rejected: %v", err)
	}
	if updated.QuestionText != q.QuestionText || updated.Points != q.Points {
		t.Errorf("no-op update changed the record")
	}
}

// TestDeleteReferenceGuard verifies deletion is blocked while any assignment
// still references the question.
func TestDeleteReferenceGuard(t *testing.T) {
	svc, store, links := newTestService()

	q := mustCreate(t, svc, adminP, singleChoicePayload())
	links.referenced[q.ID] = true

	if err := svc.Delete(adminP, q.ID); !errors.Is(err, util.ErrQuestionInUse) {
		t.Fatalf("expected in-use conflict, got %v", err)
	}
	if _, ok := store.records[q.ID]; !ok {
		t.Errorf("record deleted despite reference guard")
	}

	links.referenced[q.ID] = false
	if err := svc.Delete(adminP, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.records[q.ID]; ok {
		t.Errorf("record survived delete")
	}
}

// TestDeleteOwnership verifies the ownership gate on delete.
func TestDeleteOwnership(t *testing.T) {
	svc, _, _ := newTestService()

	q := mustCreate(t, svc, facilitatorP, singleChoicePayload())

	if err := svc.Delete(otherFacP, q.ID); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}
	if err := svc.Delete(facilitatorP, q.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}

// TestDuplicate verifies the clone contract: fresh id, copy-marked text,
// preserved scoring fields, duplicator as owner.
func TestDuplicate(t *testing.T) {
	svc, _, _ := newTestService()

	payload := singleChoicePayload()
	payload.QuestionTextAlt = strp("ما هي عاصمة فرنسا؟")
	payload.ChoicesAlt = []string{"باريس", "لندن", "برلين"}
	payload.Points = intp(40)
	payload.Duration = intp(90)

	original := mustCreate(t, svc, facilitatorP, payload)

	clone, err := svc.Duplicate(otherFacP, original.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}

	if clone.ID == original.ID || clone.ID == "" {
		t.Errorf("expected a fresh id")
	}
	if !strings.HasSuffix(clone.QuestionText, " (Copy)") {
		t.Errorf("primary text not copy-marked: %q", clone.QuestionText)
	}
	if !strings.HasSuffix(clone.QuestionTextAlt, " (نسخة)") {
		t.Errorf("alternate text not copy-marked: %q", clone.QuestionTextAlt)
	}
	if clone.Points != 40 || clone.Duration != 90 || clone.Type != original.Type {
		t.Errorf("scoring fields not preserved")
	}
	if clone.CreatedBy != otherFacP.ID {
		t.Errorf("duplicator not stamped as owner: got %q", clone.CreatedBy)
	}
}

// TestDuplicateDenied verifies participants cannot duplicate.
func TestDuplicateDenied(t *testing.T) {
	svc, _, _ := newTestService()

	q := mustCreate(t, svc, adminP, singleChoicePayload())
	if _, err := svc.Duplicate(participantP, q.ID); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}
}

// TestBulkCreateManifest verifies the continue-on-error contract: a failing
// item is reported by index and never aborts the batch.
func TestBulkCreateManifest(t *testing.T) {
	svc, store, _ := newTestService()

	broken := singleChoicePayload()
	broken.Choices = nil

	result, err := svc.BulkCreate(adminP, []QuestionPayload{
		singleChoicePayload(),
		broken,
		textPayload(),
	})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}

	if len(result.Created) != 2 {
		t.Errorf("created: got %d, want 2", len(result.Created))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("failed: got %d, want 1", len(result.Failed))
	}
	if result.Failed[0].Index != 1 {
		t.Errorf("failed index: got %d, want 1", result.Failed[0].Index)
	}
	if len(result.Failed[0].Errors) == 0 {
		t.Errorf("expected field errors on the failed item")
	}
	if len(store.records) != 2 {
		t.Errorf("store: got %d records, want 2", len(store.records))
	}
}

// TestBulkCreateAuthorization verifies bulk create is admin-only and checked
// once, before any item is attempted.
func TestBulkCreateAuthorization(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.BulkCreate(facilitatorP, []QuestionPayload{singleChoicePayload()})
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("store touched after authorization failure")
	}
}

// TestBulkCreateBounds verifies the batch size window.
func TestBulkCreateBounds(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.BulkCreate(adminP, nil); !util.IsValidation(err) {
		t.Errorf("empty batch: expected validation error, got %v", err)
	}

	oversized := make([]QuestionPayload, 51)
	for i := range oversized {
		oversized[i] = singleChoicePayload()
	}
	if _, err := svc.BulkCreate(adminP, oversized); !util.IsValidation(err) {
		t.Errorf("oversized batch: expected validation error, got %v", err)
	}
}

// TestBulkDeleteManifest verifies per-id outcomes: deleted, missing and
// referenced ids all land in the right bucket.
func TestBulkDeleteManifest(t *testing.T) {
	svc, store, links := newTestService()

	deletable := mustCreate(t, svc, adminP, singleChoicePayload())
	held := mustCreate(t, svc, adminP, textPayload())
	links.referenced[held.ID] = true

	result, err := svc.BulkDelete(adminP, []string{deletable.ID, "missing", held.ID})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}

	if len(result.Deleted) != 1 || result.Deleted[0] != deletable.ID {
		t.Errorf("deleted: got %v", result.Deleted)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed: got %d, want 2", len(result.Failed))
	}

	reasons := map[string]string{}
	for _, f := range result.Failed {
		reasons[f.ID] = f.Reason
	}
	if reasons["missing"] != util.ErrQuestionNotFound.Error() {
		t.Errorf("missing id reason: got %q", reasons["missing"])
	}
	if reasons[held.ID] != util.ErrQuestionInUse.Error() {
		t.Errorf("referenced id reason: got %q", reasons[held.ID])
	}
	if _, ok := store.records[held.ID]; !ok {
		t.Errorf("referenced record deleted despite guard")
	}
}

// TestGetRedaction verifies answers stay hidden unless the caller both asks
// for them and is allowed to see them.
func TestGetRedaction(t *testing.T) {
	svc, _, _ := newTestService()

	q := mustCreate(t, svc, facilitatorP, singleChoicePayload())

	got, err := svc.Get(participantP, q.ID, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Answer != nil {
		t.Errorf("participant saw answers")
	}

	got, err = svc.Get(adminP, q.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Answer != nil {
		t.Errorf("answers revealed without being requested")
	}

	got, err = svc.Get(adminP, q.ID, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Answer) != 1 {
		t.Errorf("admin did not see answers")
	}

	got, err = svc.Get(otherFacP, q.ID, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Answer != nil {
		t.Errorf("non-owner facilitator saw answers")
	}

	got, err = svc.Get(facilitatorP, q.ID, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Answer) != 1 {
		t.Errorf("owner did not see answers")
	}
}

// TestSearchTermBounds verifies the search term window.
func TestSearchTermBounds(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Search(participantP, "x", model.LanguagePrimary); !util.IsValidation(err) {
		t.Errorf("short term: expected validation error, got %v", err)
	}
	if _, err := svc.Search(participantP, strings.Repeat("x", 256), model.LanguagePrimary); !util.IsValidation(err) {
		t.Errorf("long term: expected validation error, got %v", err)
	}
}

// TestSearchRedaction verifies search results hide answers from participants.
func TestSearchRedaction(t *testing.T) {
	svc, _, _ := newTestService()

	mustCreate(t, svc, adminP, singleChoicePayload())

	items, err := svc.Search(participantP, "capital", model.LanguagePrimary)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one hit, got %d", len(items))
	}
	if items[0].Answer != nil {
		t.Errorf("participant saw answers in search results")
	}

	items, err = svc.Search(adminP, "capital", model.LanguagePrimary)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items[0].Answer) != 1 {
		t.Errorf("admin results redacted")
	}
}

// TestGetByDifficulty verifies listing by the computed difficulty band.
func TestGetByDifficulty(t *testing.T) {
	svc, _, _ := newTestService()

	easy := singleChoicePayload()
	easy.Points = intp(10)
	easy.Duration = intp(30)
	hard := textPayload()
	hard.Points = intp(100)
	hard.Duration = intp(9)

	mustCreate(t, svc, adminP, easy)
	wantHard := mustCreate(t, svc, adminP, hard)

	items, err := svc.GetByDifficulty(adminP, model.DifficultyHard)
	if err != nil {
		t.Fatalf("get by difficulty: %v", err)
	}
	if len(items) != 1 || items[0].ID != wantHard.ID {
		t.Errorf("hard band: got %d items", len(items))
	}

	items, err = svc.GetByDifficulty(participantP, model.DifficultyEasy)
	if err != nil {
		t.Fatalf("get by difficulty: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("easy band: got %d items", len(items))
	}
	if items[0].Answer != nil {
		t.Errorf("participant saw answers in difficulty listing")
	}
}

// TestGetByTypeRedacts verifies type listings hide answers from participants.
func TestGetByTypeRedacts(t *testing.T) {
	svc, _, _ := newTestService()

	mustCreate(t, svc, adminP, singleChoicePayload())

	items, err := svc.GetByType(participantP, model.SingleChoice)
	if err != nil {
		t.Fatalf("get by type: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one question, got %d", len(items))
	}
	if items[0].Answer != nil {
		t.Errorf("participant saw answers in type listing")
	}

	items, err = svc.GetByType(adminP, model.SingleChoice)
	if err != nil {
		t.Fatalf("get by type: %v", err)
	}
	if len(items[0].Answer) != 1 {
		t.Errorf("admin type listing redacted")
	}
}

// TestRandomByTypeRedacts verifies the quiz feed never carries answers.
func TestRandomByTypeRedacts(t *testing.T) {
	svc, _, _ := newTestService()

	mustCreate(t, svc, adminP, singleChoicePayload())

	items, err := svc.RandomByType(adminP, model.SingleChoice, 10)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one question, got %d", len(items))
	}
	if items[0].Answer != nil {
		t.Errorf("random feed carried answers")
	}
}

// TestStatistics verifies aggregate counts and rounded averages.
func TestStatistics(t *testing.T) {
	svc, _, _ := newTestService()

	first := singleChoicePayload()
	first.Points = intp(10)
	first.Duration = intp(30)
	second := textPayload()
	second.Points = intp(25)
	second.Duration = intp(40)
	third := textPayload()
	third.Points = intp(30)
	third.Duration = intp(50)

	mustCreate(t, svc, adminP, first)
	mustCreate(t, svc, adminP, second)
	mustCreate(t, svc, adminP, third)

	stats, err := svc.Statistics(facilitatorP)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalQuestions != 3 {
		t.Errorf("total: got %d, want 3", stats.TotalQuestions)
	}
	if stats.ByType[model.SingleChoice] != 1 || stats.ByType[model.Text] != 2 {
		t.Errorf("by type: got %v", stats.ByType)
	}
	if stats.AveragePoints != 21.67 {
		t.Errorf("average points: got %v, want 21.67", stats.AveragePoints)
	}
	if stats.AverageDuration != 40 {
		t.Errorf("average duration: got %v, want 40", stats.AverageDuration)
	}
}

// TestStoreUnavailable verifies infrastructure failures are classified
// distinctly from domain errors.
func TestStoreUnavailable(t *testing.T) {
	svc, store, _ := newTestService()
	store.findErr = errors.New("connection refused")

	_, err := svc.Get(adminP, "any", false)
	if !errors.Is(err, util.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if errors.Is(err, util.ErrQuestionNotFound) {
		t.Errorf("infrastructure failure misreported as not found")
	}
}

// TestListRedaction verifies listing honors the answer-visibility gate.
func TestListRedaction(t *testing.T) {
	svc, _, _ := newTestService()

	mustCreate(t, svc, adminP, singleChoicePayload())

	items, _, err := svc.List(participantP, model.QuestionFilter{}, 1, 15, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].Answer != nil {
		t.Errorf("participant saw answers in listing")
	}

	items, total, err := svc.List(adminP, model.QuestionFilter{}, 1, 15, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items[0].Answer) != 1 {
		t.Errorf("admin listing redacted or miscounted")
	}
}
