package repository

import (
	"context"

	"github.com/FatimahAdwan/survey-alignment/internal/model"
	"gorm.io/gorm"
)

type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建问答记录仓储
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) QuestionsBySession(ctx context.Context, sessionID string) ([]model.QuestionRecord, error) {
	var questions []model.QuestionRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("sequence").Find(&questions).Error
	return questions, err
}

func (r *recordRepository) AnswersBySession(ctx context.Context, sessionID string) ([]model.AnswerRecord, error) {
	var answers []model.AnswerRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at, id").Find(&answers).Error
	return answers, err
}
