package repository

import (
	"errors"
	"fmt"

	"workshop_backend/internal/model"
	"workshop_backend/internal/util"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Find(id string) (*model.Question, error) {
	var q model.Question
	err := r.DB.First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) Insert(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *QuestionRepository) Replace(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *QuestionRepository) Delete(id string) error {
	res := r.DB.Delete(&model.Question{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepository) ListFiltered(filter model.QuestionFilter, page, pageSize int) ([]model.Question, int64, error) {
	var qs []model.Question
	var total int64

	query := r.DB.Model(&model.Question{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.MinPoints > 0 {
		query = query.Where("points >= ?", filter.MinPoints)
	}
	if filter.MaxDuration > 0 {
		query = query.Where("duration <= ?", filter.MaxDuration)
	}
	if filter.TextContains != "" {
		pattern := "%" + filter.TextContains + "%"
		query = query.Where("question_text LIKE ? OR question_text_alt LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 15
	}
	offset := (page - 1) * pageSize
	err := query.Order("created_at desc").Offset(offset).Limit(pageSize).Find(&qs).Error
	return qs, total, err
}

func (r *QuestionRepository) All() ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Order("created_at desc").Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) Search(term, language string) ([]model.Question, error) {
	var qs []model.Question
	column := "question_text"
	if language == model.LanguageAlt {
		column = "question_text_alt"
	}
	err := r.DB.Where(column+" LIKE ?", "%"+term+"%").Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) ByType(t model.QuestionType) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("type = ?", t).Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) RandomByType(t model.QuestionType, count int) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("type = ?", t).Order("RAND()").Limit(count).Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) CountGroupedByType() (map[model.QuestionType]int64, error) {
	type row struct {
		Type  model.QuestionType
		Count int64
	}
	var rows []row
	err := r.DB.Model(&model.Question{}).
		Select("type, COUNT(*) as count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.QuestionType]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Type] = rw.Count
	}
	return counts, nil
}

func (r *QuestionRepository) AverageField(field string) (float64, error) {
	if field != "points" && field != "duration" {
		return 0, fmt.Errorf("unsupported average field %q", field)
	}

	var avg *float64
	err := r.DB.Model(&model.Question{}).
		Select("AVG(" + field + ")").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *QuestionRepository) IsReferencedByAnyAssignment(questionID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.AssignmentQuestion{}).
		Where("question_id = ?", questionID).
		Count(&count).Error
	return count > 0, err
}
