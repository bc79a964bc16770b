package model

import "time"

// SequenceURL は短縮URLコードの採番に使うシーケンス名。
const SequenceURL = "url"

// Sequence は名前付きの単調増加カウンタを表す。
type Sequence struct {
	Name  string
	Value int64
}

// ShortURL は短縮コードと元URLの対応を表す。
type ShortURL struct {
	Code        int64
	OriginalURL string
	CreatedAt   time.Time
}
