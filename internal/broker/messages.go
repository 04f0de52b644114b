package broker

// Message schemas from spec §6.

// LobbyNotifyType is the notify_type field of LobbyNotify messages.
type LobbyNotifyType string

const (
	LobbyNotifyUserJoined LobbyNotifyType = "USER_JOINED"
	LobbyNotifyUserLeft   LobbyNotifyType = "USER_LEFT"
	LobbyNotifyGetToken   LobbyNotifyType = "GET_TOKEN"
	LobbyNotifyGameStart  LobbyNotifyType = "GAME_START"
)

// LobbyCountdownMsg is dead-lettered to the lobby-countdown queue when its
// wait-queue TTL expires.
type LobbyCountdownMsg struct {
	GameID int64 `json:"game_id"`
}

// LobbyNotifyMsg is fanned out to every instance's lobby-notify queue.
type LobbyNotifyMsg struct {
	NotifyType     LobbyNotifyType `json:"notify_type"`
	GameID         int64           `json:"game_id"`
	UserID         string          `json:"user_id,omitempty"`
	GuestTokenKey  string          `json:"guest_token_key,omitempty"`
}

// GameStartMsg is delivered from the game-start wait queue: the
// "playable-now" tick.
type GameStartMsg struct {
	GameID int64 `json:"game_id"`
}

// GameCleanupMsg is dead-lettered to the game-cleanup queue when its
// wait-queue TTL expires.
type GameCleanupMsg struct {
	GameID int64 `json:"game_id"`
}

// KeystrokeMsg is fanned out to every instance's keystroke queue, with a
// `source` header identifying the publishing instance.
type KeystrokeMsg struct {
	GameID    int64  `json:"game_id"`
	UserID    string `json:"user_id"`
	WordIndex int    `json:"word_index"`
	CharIndex int    `json:"char_index"`
}

// HeaderSource is the AMQP header key carrying the publishing instance's
// server_name (spec §4.5, §9 "Ambiguous source behavior": mandatory here so
// self-echo filtering, if enabled, is reliable).
const HeaderSource = "source"
