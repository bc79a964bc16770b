package shorturl

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// Allocator は短縮コードの採番インターフェース。
type Allocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Status はShortenの結果種別。
type Status int

const (
	// StatusCreated は新しい対応を作成したことを表す。
	StatusCreated Status = iota
	// StatusExisting は保存済みの対応を再利用したことを表す。
	StatusExisting
	// StatusInvalid はURLが文法に合わないことを表す。
	StatusInvalid
)

// Result はShortenの結果。StatusInvalidの場合ShortURLはnil。
type Result struct {
	Status   Status
	ShortURL *model.ShortURL
}

// Service はURLの短縮と展開を行う。
type Service struct {
	repo      repository.ShortURLRepository
	allocator Allocator
	validator *Validator
}

// NewService はServiceを生成する。
func NewService(repo repository.ShortURLRepository, allocator Allocator, validator *Validator) *Service {
	if validator == nil {
		validator = NewValidator()
	}
	return &Service{repo: repo, allocator: allocator, validator: validator}
}

// Shorten はURLに短縮コードを割り当てる。
// 保存済みのURLは既存のコードを返す。不正なURLはシーケンスを消費しない。
func (s *Service) Shorten(ctx context.Context, originalURL string) (Result, error) {
	if !s.validator.Valid(originalURL) {
		return Result{Status: StatusInvalid}, nil
	}

	existing, err := s.repo.FindByURL(ctx, originalURL)
	if err != nil {
		return Result{}, fmt.Errorf("短縮URLの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return Result{Status: StatusExisting, ShortURL: existing}, nil
	}

	code, err := s.allocator.Next(ctx, model.SequenceURL)
	if err != nil {
		return Result{}, err
	}

	saved, err := s.repo.CreateIfAbsent(ctx, &model.ShortURL{
		Code:        code,
		OriginalURL: originalURL,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("短縮URLの保存に失敗しました: %w", err)
	}

	if saved.Code != code {
		// 並行リクエストが先に保存した
		return Result{Status: StatusExisting, ShortURL: saved}, nil
	}

	slog.Info("short url created",
		slog.Int64("code", saved.Code),
		slog.String("original_url", saved.OriginalURL),
	)
	return Result{Status: StatusCreated, ShortURL: saved}, nil
}

// Lookup は短縮コードを元URLに展開する。
// 10進整数として解釈できないコードや未登録のコードはnilを返す。
func (s *Service) Lookup(ctx context.Context, code string) (*model.ShortURL, error) {
	if !isDigits(code) {
		return nil, nil
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil || n <= 0 {
		return nil, nil
	}

	found, err := s.repo.FindByCode(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("短縮URLの展開に失敗しました: %w", err)
	}
	return found, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
