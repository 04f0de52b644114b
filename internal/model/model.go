// Package model holds the persistent and ephemeral entities shared across
// the store, cache, service, and session layers.
package model

import "time"

// GameStatus is the lifecycle state of a game. It monotonically increases:
// LOBBY -> IN_GAME -> FINISHED.
type GameStatus string

const (
	GameStatusLobby   GameStatus = "LOBBY"
	GameStatusInGame  GameStatus = "IN_GAME"
	GameStatusFinished GameStatus = "FINISHED"
)

// GameType distinguishes single-player, random-matched, and team games.
// Only MULTI is produced by matchmaking today; SINGLE/TEAM are modeled so
// the schema and store layer don't need to change when they are wired up.
type GameType string

const (
	GameTypeSingle GameType = "SINGLE"
	GameTypeMulti  GameType = "MULTI"
	GameTypeTeam   GameType = "TEAM"
)

// UserType distinguishes guest accounts (no DB row, no refresh) from
// registered accounts.
type UserType string

const (
	UserTypeGuest      UserType = "GUEST"
	UserTypeRegistered UserType = "REGISTERED"
)

// Game is the source-of-truth row for one race.
type Game struct {
	ID          int64
	CreatedAt   time.Time
	StartAt     *time.Time
	EndAt       *time.Time
	Status      GameStatus
	InviteToken *string
	GameType    GameType
	PlayerCount int
	FinishCount int
}

// User is a registered player, keyed by a namespaced id "<provider>-<uid>".
type User struct {
	ID           string
	Name         string
	RegisteredAt time.Time
	RefreshToken *string
}

// GameResult is one finishing row, written once per finishing registered
// user. Guests contribute to rank but never get a row here.
type GameResult struct {
	GameID     int64
	UserID     string
	Rank       int
	WPMRaw     int
	WPMCorrect int
	Accuracy   float64
	FinishedAt time.Time
}

// LobbyUserInfo is the minimal identity carried through the lobby cache and
// join/leave broadcasts.
type LobbyUserInfo struct {
	ID   string
	Name string
}

// GamePlayer is one entry of the GameCache player map: identity plus the
// result fields filled in as the player finishes.
type GamePlayer struct {
	ID         string
	Name       string
	Finished   *time.Time
	Rank       int
	WPM        int
	WPMRaw     int
	Accuracy   float64
}

// IsFinished reports whether this player has already submitted a result.
func (p GamePlayer) IsFinished() bool {
	return p.Finished != nil
}
