package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/model"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话仓储
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.SurveySession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*model.SurveySession, error) {
	var session model.SurveySession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Commit 在同一事务中完成版本比较、会话更新与记录追加
func (r *sessionRepository) Commit(ctx context.Context, session *model.SurveySession, expectedVersion int64, records Records) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.SurveySession{}).
			Where("id = ? AND version = ?", session.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":       session.Status,
				"theme_index":  session.ThemeIndex,
				"version":      session.Version,
				"state":        session.State,
				"completed_at": session.CompletedAt,
				"updated_at":   session.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.SurveySession{}).Where("id = ?", session.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return fmt.Errorf("%w: session=%s expected=%d", ErrVersionConflict, session.ID, expectedVersion)
		}

		if len(records.Questions) > 0 {
			if err := tx.Create(&records.Questions).Error; err != nil {
				return err
			}
		}
		if len(records.Answers) > 0 {
			if err := tx.Create(&records.Answers).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *sessionRepository) ListIdle(ctx context.Context, status string, before time.Time) ([]model.SurveySession, error) {
	var sessions []model.SurveySession
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("updated_at").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) ListUnarchived(ctx context.Context, status string) ([]model.SurveySession, error) {
	var sessions []model.SurveySession
	err := r.db.WithContext(ctx).
		Where("status = ? AND archived_at IS NULL", status).
		Order("updated_at").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) MarkArchived(ctx context.Context, id string, exportPath string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.SurveySession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"export_path": exportPath,
			"archived_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
