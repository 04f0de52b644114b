package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/config"
	"github.com/AlexFangSW/typephoon/internal/model"
	"github.com/AlexFangSW/typephoon/internal/store"
	"github.com/AlexFangSW/typephoon/internal/token"
	"github.com/AlexFangSW/typephoon/internal/words"
)

// QueueInType distinguishes a brand new queue-in from a reconnect attempt
// carrying a remembered game id (spec §4.3 step 1-3).
type QueueInType string

const (
	QueueInNew       QueueInType = "new"
	QueueInReconnect QueueInType = "reconnect"
)

// QueueInService implements the random-matchmaking flow: validate/mint an
// identity, find-or-create a LOBBY game, join it, and promote it to
// IN_GAME once it fills up (spec §4.3, grounded on
// original_source/services/queue_in.py).
type QueueInService struct {
	cfg         config.GameConfig
	games       *store.GameStore
	lobbyCache  *cache.LobbyCache
	gameCache   *cache.GameCache
	tokens      *token.Generator
	validator   *token.Validator
	guestTokens *cache.GuestTokenStore
	broker      *broker.Broker
	wordsGen    words.Generator
}

// NewQueueInService wires the collaborators a QueueInService needs.
func NewQueueInService(
	cfg config.GameConfig,
	games *store.GameStore,
	lobbyCache *cache.LobbyCache,
	gameCache *cache.GameCache,
	tokens *token.Generator,
	validator *token.Validator,
	guestTokens *cache.GuestTokenStore,
	b *broker.Broker,
	wordsGen words.Generator,
) *QueueInService {
	return &QueueInService{
		cfg: cfg, games: games, lobbyCache: lobbyCache, gameCache: gameCache,
		tokens: tokens, validator: validator, guestTokens: guestTokens, broker: b, wordsGen: wordsGen,
	}
}

// Identity is the resolved caller identity for a queue-in attempt, plus the
// one-shot guest token key to hand back over the streaming connection if a
// fresh guest identity was minted.
type Identity struct {
	User          model.LobbyUserInfo
	GuestTokenKey string
}

// ResolveIdentity validates accessToken if present, or mints a fresh guest
// identity and stashes its access token in the one-shot guest-token store
// (spec §4.3 step 1, §8 "guest identity round trip").
func (s *QueueInService) ResolveIdentity(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		info := genGuestUserInfo()
		tok, err := s.tokens.GuestAccessToken(info.ID, info.Name)
		if err != nil {
			return Identity{}, fmt.Errorf("minting guest token: %w", err)
		}
		key, err := s.guestTokens.Store(ctx, tok)
		if err != nil {
			return Identity{}, fmt.Errorf("storing guest token: %w", err)
		}
		return Identity{User: info, GuestTokenKey: key}, nil
	}

	claims, err := s.validator.Validate(accessToken)
	if err != nil {
		return Identity{}, err
	}
	return Identity{User: model.LobbyUserInfo{ID: claims.Subject, Name: claims.Name}}, nil
}

func genGuestUserInfo() model.LobbyUserInfo {
	id := uuid.NewString()
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return model.LobbyUserInfo{ID: "guest-" + id, Name: "guest-" + short}
}

// Enqueue finds or creates a LOBBY game for queueInType/prevGameID, joins
// user to it, and reports whether the join filled the game to capacity.
// Find, create, and join all run inside one transaction, mirroring the
// single committed session the original matchmaking flow used (spec §4.3
// steps 2-4).
func (s *QueueInService) Enqueue(ctx context.Context, user model.LobbyUserInfo, queueInType QueueInType, prevGameID *int64) (gameID int64, full bool, err error) {
	tx, err := s.games.BeginTx(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("beginning enqueue tx: %w", err)
	}
	defer tx.Rollback(ctx)

	game, err := s.findGame(ctx, tx, queueInType, prevGameID, user.ID)
	if err != nil {
		return 0, false, err
	}

	if game == nil {
		game, err = s.createGameLocked(ctx, tx)
		if err != nil {
			return 0, false, err
		}
	}

	full, err = s.joinGame(ctx, tx, game.ID, user)
	if err != nil {
		return 0, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("committing enqueue tx: %w", err)
	}
	return game.ID, full, nil
}

func (s *QueueInService) findGame(ctx context.Context, tx pgx.Tx, queueInType QueueInType, prevGameID *int64, userID string) (*model.Game, error) {
	if queueInType == QueueInReconnect && prevGameID != nil {
		newPlayer, err := s.lobbyCache.IsNewPlayer(ctx, *prevGameID, userID)
		if err != nil {
			return nil, err
		}
		return s.games.IsAvailableForUpdate(ctx, tx, *prevGameID, s.cfg.PlayerLimit, newPlayer)
	}
	return s.games.GetOneAvailableForUpdate(ctx, tx, s.cfg.PlayerLimit)
}

// createGameLocked creates a fresh LOBBY game and schedules its lobby
// countdown wait-queue timer plus its cache start-time (spec §4.3 step 3
// "else", step 3c).
func (s *QueueInService) createGameLocked(ctx context.Context, tx pgx.Tx) (*model.Game, error) {
	game, err := s.games.CreateTx(ctx, tx, model.GameTypeMulti)
	if err != nil {
		return nil, err
	}

	lobbyCountdown := time.Duration(s.cfg.LobbyCountdown) * time.Second
	if err := s.broker.PublishLobbyCountdownWait(ctx, game.ID, lobbyCountdown); err != nil {
		return nil, err
	}
	cleanupCountdown := time.Duration(s.cfg.CleanupCountdown) * time.Second
	if err := s.broker.PublishGameCleanupWait(ctx, game.ID, cleanupCountdown); err != nil {
		return nil, err
	}
	if err := s.lobbyCache.SetStartTime(ctx, game.ID, time.Now().UTC().Add(lobbyCountdown)); err != nil {
		return nil, err
	}
	return game, nil
}

// joinGame adds user to the lobby cache under its advisory lock, then
// increases the game's committed player count if the add was new (spec
// §4.3 step 4).
func (s *QueueInService) joinGame(ctx context.Context, tx pgx.Tx, gameID int64, user model.LobbyUserInfo) (full bool, err error) {
	release, err := s.lobbyCache.Lock(ctx, gameID)
	if err != nil {
		return false, err
	}
	isNew, err := s.lobbyCache.AddPlayer(ctx, gameID, user)
	release()
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, nil
	}

	game, err := s.games.IncreasePlayerCount(ctx, tx, gameID)
	if err != nil {
		return false, err
	}
	return game.PlayerCount >= s.cfg.PlayerLimit, nil
}

// NotifyUserJoined fans a USER_JOINED lobby event out to every instance
// (spec §4.3 step 6).
func (s *QueueInService) NotifyUserJoined(ctx context.Context, gameID int64) error {
	return s.broker.PublishLobbyNotify(ctx, broker.LobbyNotifyMsg{NotifyType: broker.LobbyNotifyUserJoined, GameID: gameID})
}

// PromoteToInGame idempotently transitions gameID to IN_GAME: it marks the
// row started, copies the lobby into the game cache with a fresh word
// list, and fans out GAME_START (spec §4.1, §4.3 "game full" branch).
func (s *QueueInService) PromoteToInGame(ctx context.Context, gameID int64) error {
	if _, err := s.games.StartGame(ctx, gameID); err != nil {
		return err
	}

	words := s.wordsGen.Generate(25)
	startCountdown := time.Duration(s.cfg.StartCountdown) * time.Second
	if err := s.gameCache.Populate(ctx, gameID, s.lobbyCache, startCountdown, words, true); err != nil {
		return err
	}
	if err := s.broker.PublishGameStartWait(ctx, gameID, startCountdown); err != nil {
		return err
	}
	return s.broker.PublishLobbyNotify(ctx, broker.LobbyNotifyMsg{NotifyType: broker.LobbyNotifyGameStart, GameID: gameID})
}
