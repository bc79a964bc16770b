// Package sequence は名前付きカウンタから一意な連番を払い出す。
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/gatehouse/internal/repository"
)

// ErrEmptyName はシーケンス名が空であることを表す。
var ErrEmptyName = errors.New("sequence name must not be empty")

// Allocator は並行するリクエストに重複のない連番を払い出す。
// 値の単調増加と一意性はストアの単一ステートメントで保証し、Go側で読み取り→更新は行わない。
type Allocator struct {
	repo repository.SequenceRepository
}

// NewAllocator はAllocatorを生成する。
func NewAllocator(repo repository.SequenceRepository) *Allocator {
	return &Allocator{repo: repo}
}

// Next は指定シーケンスの次の値を返す。初回は1。
// ストア障害時はmodel.ErrStoreUnavailableをラップしたエラーを返す。
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, ErrEmptyName
	}

	v, err := a.repo.Next(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("シーケンス %q の採番に失敗しました: %w", name, err)
	}
	return v, nil
}
