package main

import "time"

// Record is one participant row from the dataset.
type Record struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	ProfileURL         string `json:"profileUrl"`
	ProfileStatus      string `json:"profileStatus"`
	AccessCodeRedeemed bool   `json:"accessCodeRedeemed"`
	AllCompleted       bool   `json:"allCompleted"`
	BadgesCount        uint   `json:"badgesCount"`
	BadgeNames         string `json:"badgeNames"`
	GamesCount         uint   `json:"gamesCount"`
	GameNames          string `json:"gameNames"`
	OriginalIndex      uint   `json:"originalIndex"` // 1-based source row order, sort tie-break only
}

// RankedRecord is a Record with its leaderboard position.
// Ranks are dense and purely positional; they are recomputed on every
// reload and never persisted.
type RankedRecord struct {
	Record
	Rank uint `json:"rank"`
}

// CountStats holds sum/average/max style aggregates for a numeric column.
type CountStats struct {
	Total   uint    `json:"total"`
	Average float64 `json:"average"`
	Max     uint    `json:"max"`
}

// BadgeStats aggregates the badge column.
type BadgeStats struct {
	CountStats
	HighUsers uint `json:"highUsers"` // records with BadgesCount >= HighBadgeThreshold
}

// GameStats aggregates the game column.
type GameStats struct {
	CountStats
	UsersWithGames uint `json:"usersWithGames"`
}

// Statistics is the aggregate payload served by the stats action.
type Statistics struct {
	Total             uint       `json:"total"`
	Completed         uint       `json:"completed"`
	CompletedPercent  float64    `json:"completedPercent"`
	Redeemed          uint       `json:"redeemed"`
	RedeemedPercent   float64    `json:"redeemedPercent"`
	InProgress        uint       `json:"inProgress"`
	InProgressPercent float64    `json:"inProgressPercent"`
	Badges            BadgeStats `json:"badges"`
	Games             GameStats  `json:"games"`
}

// DatasetInfo describes the live dataset file.
type DatasetInfo struct {
	Size     int64
	Modified time.Time
	RowCount int
}

// TokenInfo is the persisted state of one bearer token.
type TokenInfo struct {
	Expires int64  `json:"expires"`
	IP      string `json:"ip"`
}

// IssuedToken is returned to the admin client after a successful verify.
type IssuedToken struct {
	Value   string
	Expires int64
}

// APIResponse is the JSON envelope every endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}
