// Package dispatch routes inbound client frames to the room
// coordinator and turns coordinator errors into per-recipient events.
package dispatch

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/larkwing-games/werewolf-server/internal/game"
	"github.com/larkwing-games/werewolf-server/internal/models"
)

// Sender is the outbound half of the connection registry.
type Sender interface {
	Broadcast(roomID string, msg models.WSMessage)
	SendTo(roomID, playerID string, msg models.WSMessage)
}

// inboundFrame defers payload decoding until the type is known.
type inboundFrame struct {
	Type    models.WSMessageType `json:"type"`
	Payload json.RawMessage      `json:"payload"`
}

type Dispatcher struct {
	manager *game.Manager
	sender  Sender
}

func NewDispatcher(manager *game.Manager, sender Sender) *Dispatcher {
	return &Dispatcher{manager: manager, sender: sender}
}

// HandleConnect catches a fresh connection up: the full redacted
// snapshot, and the running stage with its residual timer when the
// game is mid-stage.
func (d *Dispatcher) HandleConnect(roomID, playerID string) {
	room, ok := d.manager.Room(roomID)
	if !ok {
		return
	}
	view, residual := room.Snapshot()
	d.sender.SendTo(roomID, playerID, models.WSMessage{
		Type:      models.WSTypeGameStateUpdate,
		Payload:   view,
		Timestamp: time.Now(),
	})
	if view.Stage != models.StageWaiting && view.Stage != models.StageGameOver && residual > 0 {
		d.sender.SendTo(roomID, playerID, models.WSMessage{
			Type: models.WSTypeStageChange,
			Payload: models.StageChangePayload{
				Stage:   view.Stage,
				Timer:   residual,
				Day:     view.Day,
				Players: view.Players,
			},
			Timestamp: time.Now(),
		})
	}
}

// HandleDisconnect tells the room. Game state stays untouched; the
// player only stops receiving frames until reconnect.
func (d *Dispatcher) HandleDisconnect(roomID, playerID string) {
	if room, ok := d.manager.Room(roomID); ok {
		room.OnDisconnect(playerID)
	}
}

// HandleFrame parses and routes one inbound frame. Malformed or
// unknown frames are dropped with a log line; coordinator errors go
// back to the sender as a GAME_EVENT.
func (d *Dispatcher) HandleFrame(roomID, playerID string, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("[room %s] dropping malformed frame from %s: %v", roomID, playerID, err)
		return
	}
	var payload models.ActionPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("[room %s] dropping frame %s from %s: bad payload: %v", roomID, frame.Type, playerID, err)
			return
		}
	}

	room, ok := d.manager.Room(roomID)
	if !ok {
		log.Printf("dropping frame %s for unknown room %s", frame.Type, roomID)
		return
	}

	var err error
	switch frame.Type {
	case models.WSTypeReady:
		ready := true
		if payload.Ready != nil {
			ready = *payload.Ready
		}
		err = room.SetReady(playerID, ready)
	case models.WSTypeTakeSeat:
		if payload.Seat == nil {
			log.Printf("[room %s] TAKE_SEAT from %s without a seat", roomID, playerID)
			return
		}
		err = room.TakeSeat(playerID, *payload.Seat)
	case models.WSTypeStartGame:
		err = room.Start(playerID)
	case models.WSTypeWerewolfVote:
		err = room.RecordVote(playerID, payload.TargetPlayerID)
	case models.WSTypeWitchAction:
		err = room.RecordAction(playerID, payload.Action, payload.TargetPlayerID)
	case models.WSTypeSeerCheck:
		err = room.RecordAction(playerID, models.ActionCheck, payload.TargetPlayerID)
	case models.WSTypeGuardAction:
		err = room.RecordAction(playerID, models.ActionGuard, payload.TargetPlayerID)
	case models.WSTypeVotePlayer:
		err = room.RecordVote(playerID, payload.TargetPlayerID)
	case models.WSTypeRunForSheriff:
		err = room.RunForSheriff(playerID)
	case models.WSTypeSheriffVote:
		err = room.RecordVote(playerID, payload.TargetPlayerID)
	case models.WSTypePassTurn:
		err = room.PassSpeakerTurn(playerID)
	case models.WSTypeConfirmAction:
		err = room.ConfirmNoAction(playerID)
	default:
		log.Printf("[room %s] ignoring unknown frame type %q from %s", roomID, frame.Type, playerID)
		return
	}

	if err != nil {
		d.sender.SendTo(roomID, playerID, models.WSMessage{
			Type: models.WSTypeGameEvent,
			Payload: models.GameEventPayload{
				Message: err.Error(),
				Code:    errorCode(err),
			},
			Timestamp: time.Now(),
		})
	}
}

// errorCode maps coordinator sentinels to stable client-facing codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrWrongStage):
		return "WRONG_STAGE"
	case errors.Is(err, game.ErrNotEligible):
		return "NOT_ELIGIBLE"
	case errors.Is(err, game.ErrIllegalTarget):
		return "ILLEGAL_TARGET"
	case errors.Is(err, game.ErrSeatTaken):
		return "SEAT_TAKEN"
	case errors.Is(err, game.ErrNotHost):
		return "NOT_HOST"
	case errors.Is(err, game.ErrBadCount):
		return "BAD_COUNT"
	case errors.Is(err, game.ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, game.ErrGameStarted):
		return "GAME_STARTED"
	case errors.Is(err, game.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, game.ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	}
	return "ERROR"
}
