package survey

import (
	"encoding/json"
	"fmt"

	"github.com/FatimahAdwan/survey-alignment/internal/model"
	"github.com/FatimahAdwan/survey-alignment/internal/service/conversation"
	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
	"github.com/FatimahAdwan/survey-alignment/internal/utils"
)

// toRow 会话快照转为数据库行
func toRow(s conversation.State) (*model.SurveySession, error) {
	data, err := conversation.Encode(s)
	if err != nil {
		return nil, err
	}
	row := &model.SurveySession{
		ID:           s.SessionID,
		FullName:     s.Participant.FullName,
		Email:        s.Participant.Email,
		CompanyName:  s.Participant.CompanyName,
		Role:         s.Participant.Role,
		BusinessArea: s.Participant.BusinessArea,
		Status:       string(s.Status),
		ThemeIndex:   s.ThemeIndex,
		Version:      s.Version,
		State:        string(data),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Status == statemachine.SessionStatusCompleted {
		at := s.UpdatedAt
		row.CompletedAt = &at
	}
	return row, nil
}

// fromRow 数据库行还原为会话快照
func fromRow(row *model.SurveySession) (conversation.State, error) {
	s, err := conversation.Decode([]byte(row.State))
	if err != nil {
		return conversation.State{}, err
	}
	if s.SessionID != row.ID || s.Version != row.Version {
		return conversation.State{}, fmt.Errorf("session %s snapshot does not match row (version %d != %d)", row.ID, s.Version, row.Version)
	}
	return s, nil
}

func questionRow(q ledger.QuestionRecord) model.QuestionRecord {
	options := ""
	if len(q.Options) > 0 {
		options = utils.ToJSON(q.Options)
	}
	return model.QuestionRecord{
		ID:          q.ID,
		SessionID:   q.SessionID,
		Sequence:    q.Sequence,
		Fingerprint: q.Fingerprint,
		ThemeID:     q.ThemeID,
		Text:        q.Text,
		Type:        q.Type,
		Options:     options,
		ParentID:    q.ParentID,
		FollowUp:    q.FollowUp,
		Fallback:    q.Fallback,
		CreatedAt:   q.CreatedAt,
	}
}

func answerRow(sessionID string, a ledger.AnswerRecord) model.AnswerRecord {
	return model.AnswerRecord{
		ID:         a.ID,
		SessionID:  sessionID,
		QuestionID: a.QuestionID,
		Text:       a.Text,
		CreatedAt:  a.CreatedAt,
	}
}

// decodeOptions 解析问题行中的选项
func decodeOptions(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
