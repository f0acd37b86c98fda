package network

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/staryears/sleepplus/internal/domain/sleeper"
	"github.com/staryears/sleepplus/internal/engine"
)

// PlayerActions is the part of the game server that websocket players drive.
type PlayerActions interface {
	Join(id sleeper.ParticipantID, name string, world sleeper.WorldID) error
	EnterBed(id sleeper.ParticipantID) (engine.BedResult, error)
	LeaveBed(id sleeper.ParticipantID) error
	Quit(id sleeper.ParticipantID) error
	SetSleepingIgnored(id sleeper.ParticipantID, ignored bool) error
	Teleport(id sleeper.ParticipantID, world sleeper.WorldID) error
}

// PlayerAction represents an incoming command from a client.
type PlayerAction struct {
	Type     string `json:"type"`      // "join", "bed_enter", "bed_leave", "quit", "ignore_sleep", "teleport"
	PlayerID string `json:"player_id"` // join only; empty picks a fresh ID
	Name     string `json:"name"`
	World    string `json:"world"`
	Value    bool   `json:"value"`
}

// Reply answers a PlayerAction on the same connection.
type Reply struct {
	Type     string `json:"type"` // always "result"
	Action   string `json:"action"`
	OK       bool   `json:"ok"`
	PlayerID string `json:"player_id,omitempty"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

var errNotJoined = errors.New("join a world first")

// session binds a connection to the player it joined as.
type session struct {
	playerID sleeper.ParticipantID
	joined   bool
}

// handle applies one action for this session.
func (s *session) handle(actions PlayerActions, a PlayerAction) Reply {
	reply := Reply{Type: "result", Action: a.Type}

	var result engine.BedResult
	err := s.apply(actions, a, &result)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.OK = true
		reply.Result = string(result)
	}
	if s.joined {
		reply.PlayerID = s.playerID.String()
	}
	return reply
}

func (s *session) apply(actions PlayerActions, a PlayerAction, result *engine.BedResult) error {
	if a.Type == "join" {
		return s.join(actions, a)
	}
	if !s.joined {
		return errNotJoined
	}

	switch a.Type {
	case "bed_enter":
		r, err := actions.EnterBed(s.playerID)
		*result = r
		return err
	case "bed_leave":
		return actions.LeaveBed(s.playerID)
	case "quit":
		err := actions.Quit(s.playerID)
		s.joined = false
		return err
	case "ignore_sleep":
		return actions.SetSleepingIgnored(s.playerID, a.Value)
	case "teleport":
		return actions.Teleport(s.playerID, sleeper.WorldID(a.World))
	default:
		return fmt.Errorf("unknown action %q", a.Type)
	}
}

func (s *session) join(actions PlayerActions, a PlayerAction) error {
	if s.joined {
		return errors.New("already joined")
	}
	if a.Name == "" || a.World == "" {
		return errors.New("join needs a name and a world")
	}

	id := uuid.New()
	if a.PlayerID != "" {
		parsed, err := uuid.Parse(a.PlayerID)
		if err != nil {
			return fmt.Errorf("bad player_id: %w", err)
		}
		id = parsed
	}

	if err := actions.Join(id, a.Name, sleeper.WorldID(a.World)); err != nil {
		return err
	}
	s.playerID = id
	s.joined = true
	return nil
}

// disconnect takes the bound player offline, if any.
func (s *session) disconnect(actions PlayerActions) error {
	if !s.joined {
		return nil
	}
	s.joined = false
	return actions.Quit(s.playerID)
}
