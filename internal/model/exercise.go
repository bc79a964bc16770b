package model

import "time"

// FitnessUser はエクササイズトラッカーの利用者を表す。
// ログイン用のUserとは独立した名前空間を持つ。
type FitnessUser struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Exercise は1件の運動記録を表す。
type Exercise struct {
	ID          string
	UserID      string
	Description string
	Duration    int // 分
	Date        time.Time
	CreatedAt   time.Time
}

// ExerciseFilter は運動記録の検索条件。
// From/Toがゼロ値の場合は条件に含めない。Limitが0以下の場合は無制限。
type ExerciseFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}
