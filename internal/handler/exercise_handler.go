package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatehouse/internal/exercise"
	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/model"
)

// exerciseDateLayout はレスポンスの日付表記（例: "Mon Jan 02 2006"）。
const exerciseDateLayout = "Mon Jan 02 2006"

// ExerciseService はエクササイズトラッカーハンドラーが必要とするサービスインターフェース。
type ExerciseService interface {
	CreateUser(ctx context.Context, username string) (*model.FitnessUser, error)
	ListUsers(ctx context.Context) ([]*model.FitnessUser, error)
	AddExercise(ctx context.Context, in exercise.AddInput) (*model.Exercise, *model.FitnessUser, error)
	Log(ctx context.Context, q exercise.LogQuery) (*exercise.Log, error)
}

// ExerciseHandler はエクササイズトラッカーAPIのハンドラー。
type ExerciseHandler struct {
	service ExerciseService
}

// NewExerciseHandler はExerciseHandlerを生成する。
func NewExerciseHandler(service ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{service: service}
}

type fitnessUserResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

type exerciseResponse struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	Date        string `json:"date"`
	Duration    int    `json:"duration"`
	Description string `json:"description"`
}

type logEntryResponse struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

type logResponse struct {
	ID       string             `json:"_id"`
	Username string             `json:"username"`
	Count    int                `json:"count"`
	Log      []logEntryResponse `json:"log"`
}

// CreateUser は利用者を作成する。
// POST /api/exercise/new-user
func (h *ExerciseHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")

	user, err := h.service.CreateUser(r.Context(), username)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateFitnessUser) {
			writeJSONError(w, http.StatusOK, fmt.Sprintf("User with username '%s' already exists!", username))
			return
		}
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fitnessUserResponse{ID: user.ID, Username: user.Username})
}

// ListUsers は全利用者を返す。
// GET /api/exercise/users
func (h *ExerciseHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	resp := make([]fitnessUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, fitnessUserResponse{ID: u.ID, Username: u.Username})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddExercise は運動記録を追加する。
// POST /api/exercise/add
func (h *ExerciseHandler) AddExercise(w http.ResponseWriter, r *http.Request) {
	e, user, err := h.service.AddExercise(r.Context(), exercise.AddInput{
		UserID:      r.PostFormValue("userId"),
		Description: r.PostFormValue("description"),
		Duration:    r.PostFormValue("duration"),
		Date:        r.PostFormValue("date"),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exerciseResponse{
		ID:          user.ID,
		Username:    user.Username,
		Date:        e.Date.Format(exerciseDateLayout),
		Duration:    e.Duration,
		Description: e.Description,
	})
}

// Log は利用者の運動記録を返す。
// GET /api/exercise/log?userId=&from=&to=&limit=
func (h *ExerciseHandler) Log(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	l, err := h.service.Log(r.Context(), exercise.LogQuery{
		UserID: q.Get("userId"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Limit:  q.Get("limit"),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	entries := make([]logEntryResponse, 0, len(l.Exercises))
	for _, e := range l.Exercises {
		entries = append(entries, logEntryResponse{
			Description: e.Description,
			Duration:    e.Duration,
			Date:        e.Date.Format(exerciseDateLayout),
		})
	}

	writeJSON(w, http.StatusOK, logResponse{
		ID:       l.User.ID,
		Username: l.User.Username,
		Count:    len(entries),
		Log:      entries,
	})
}

// handleError は入力起因のエラーを{"error": ...}に、それ以外を500に変換する。
func (h *ExerciseHandler) handleError(w http.ResponseWriter, err error) {
	var vErr *exercise.ValidationError
	switch {
	case errors.Is(err, exercise.ErrUnknownUser):
		writeJSONError(w, http.StatusOK, "Invalid user id")
	case errors.As(err, &vErr):
		writeJSONError(w, http.StatusOK, vErr.Message)
	default:
		slog.Error("exercise request failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
