// Package exercise はエクササイズトラッカーのドメインロジックを提供する。
package exercise

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
	"github.com/hitoshi/gatehouse/internal/security"
)

// DateLayout は入出力で使う日付の書式。
const DateLayout = "2006-01-02"

// ErrUnknownUser は指定IDの利用者が存在しないことを表す。
var ErrUnknownUser = errors.New("unknown fitness user")

// ValidationError は入力値の不備を表す。Messageはそのままクライアントに返す。
type ValidationError struct {
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return e.Message
}

// AddInput は運動記録追加の入力。フォーム値を文字列のまま受け取る。
type AddInput struct {
	UserID      string
	Description string
	Duration    string
	Date        string // 省略時は当日
}

// LogQuery は運動記録の検索条件。空文字列の項目は指定なし。
type LogQuery struct {
	UserID string
	From   string
	To     string
	Limit  string
}

// Log は利用者と運動記録一覧。
type Log struct {
	User      *model.FitnessUser
	Exercises []*model.Exercise
}

// Service はエクササイズトラッカーのサービス層。
type Service struct {
	repo      repository.ExerciseRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ExerciseRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// CreateUser は利用者を作成する。名前が重複する場合はmodel.ErrDuplicateFitnessUserを返す。
func (s *Service) CreateUser(ctx context.Context, username string) (*model.FitnessUser, error) {
	username = s.sanitizer.Sanitize(username)
	if username == "" {
		return nil, &ValidationError{Message: "Username is required"}
	}

	user := &model.FitnessUser{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("利用者の作成に失敗しました: %w", err)
	}
	return user, nil
}

// ListUsers は全利用者を返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.FitnessUser, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("利用者一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// AddExercise は運動記録を追加し、記録と利用者を返す。
func (s *Service) AddExercise(ctx context.Context, in AddInput) (*model.Exercise, *model.FitnessUser, error) {
	user, err := s.findUser(ctx, in.UserID)
	if err != nil {
		return nil, nil, err
	}

	description := s.sanitizer.Sanitize(in.Description)
	if description == "" {
		return nil, nil, &ValidationError{Message: "Description is required"}
	}

	duration, err := strconv.Atoi(strings.TrimSpace(in.Duration))
	if err != nil || duration <= 0 {
		return nil, nil, &ValidationError{Message: "Duration must be a positive number of minutes"}
	}

	date := s.now().UTC().Truncate(24 * time.Hour)
	if d := strings.TrimSpace(in.Date); d != "" {
		date, err = time.Parse(DateLayout, d)
		if err != nil {
			return nil, nil, &ValidationError{Message: "Date must be formatted as YYYY-MM-DD"}
		}
	}

	e := &model.Exercise{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Description: description,
		Duration:    duration,
		Date:        date,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.AddExercise(ctx, e); err != nil {
		return nil, nil, fmt.Errorf("運動記録の追加に失敗しました: %w", err)
	}
	return e, user, nil
}

// Log は利用者の運動記録を日付昇順で返す。
// fromより後（当日を含まない）、toの当日まで（当日を含む）を対象とする。
func (s *Service) Log(ctx context.Context, q LogQuery) (*Log, error) {
	user, err := s.findUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	var filter model.ExerciseFilter
	if q.From != "" {
		if filter.From, err = time.Parse(DateLayout, q.From); err != nil {
			return nil, &ValidationError{Message: "from must be formatted as YYYY-MM-DD"}
		}
	}
	if q.To != "" {
		if filter.To, err = time.Parse(DateLayout, q.To); err != nil {
			return nil, &ValidationError{Message: "to must be formatted as YYYY-MM-DD"}
		}
	}
	if q.Limit != "" {
		if filter.Limit, err = strconv.Atoi(q.Limit); err != nil || filter.Limit < 0 {
			return nil, &ValidationError{Message: "limit must be a non-negative integer"}
		}
	}

	exercises, err := s.repo.ListExercises(ctx, user.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("運動記録の取得に失敗しました: %w", err)
	}
	return &Log{User: user, Exercises: exercises}, nil
}

func (s *Service) findUser(ctx context.Context, id string) (*model.FitnessUser, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUnknownUser
	}
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("利用者の取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return user, nil
}
