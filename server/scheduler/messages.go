package scheduler

import "skirmish/server/application"

// FrameType はサーバーから参加者へ送るフレームの種別です。
type FrameType string

const (
	FrameAccept FrameType = "accept"
	FrameMatch  FrameType = "match"
	FrameState  FrameType = "state"
	FrameResult FrameType = "result"
)

const acceptGreeting = "Accept connection"

// AcceptFrame は接続直後の挨拶です。
type AcceptFrame struct {
	Type         FrameType `json:"type" msgpack:"type"`
	ConnectionID string    `json:"connectionId" msgpack:"connectionId"`
	Message      string    `json:"message" msgpack:"message"`
}

// RosterEntry はマッチ参加者の一覧の1行です。
type RosterEntry struct {
	PlayerID application.PlayerID   `json:"playerId" msgpack:"playerId"`
	Kind     application.PlayerKind `json:"kind" msgpack:"kind"`
	Name     string                 `json:"name,omitempty" msgpack:"name,omitempty"`
}

// MatchFrame はマッチ成立時に各参加者へ送られ、割り当てられたプレイヤーIDを通知します。
type MatchFrame struct {
	Type           FrameType            `json:"type" msgpack:"type"`
	MatchID        string               `json:"matchId" msgpack:"matchId"`
	PlayerID       application.PlayerID `json:"playerId" msgpack:"playerId"`
	Roster         []RosterEntry        `json:"roster" msgpack:"roster"`
	GridSize       uint8                `json:"gridSize" msgpack:"gridSize"`
	ActionsPerTurn int                  `json:"actionsPerTurn" msgpack:"actionsPerTurn"`
	TickIntervalMS int64                `json:"tickIntervalMs" msgpack:"tickIntervalMs"`
}

// StateFrame は非終了状態のティックごとに送られるスナップショットです。
type StateFrame struct {
	Type     FrameType             `json:"type" msgpack:"type"`
	MatchID  string                `json:"matchId" msgpack:"matchId"`
	Snapshot *application.Snapshot `json:"snapshot" msgpack:"snapshot"`
}

// Outcome は参加者から見た終了結果です。
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomeDraw    Outcome = "draw"
	OutcomeTimeout Outcome = "timeout"
)

// Reason は終了の理由です。
type Reason string

const (
	ReasonElimination Reason = "elimination"
	ReasonTimeout     Reason = "timeout"
)

// ResultFrame はセッション終了時に1度だけ送られる通知です。
type ResultFrame struct {
	Type    FrameType              `json:"type" msgpack:"type"`
	MatchID string                 `json:"matchId" msgpack:"matchId"`
	Outcome Outcome                `json:"outcome" msgpack:"outcome"`
	Reason  Reason                 `json:"reason" msgpack:"reason"`
	Winners []application.PlayerID `json:"winners" msgpack:"winners"`
}

// ActionBatch は参加者から送られる1ターン分のアクションです。
type ActionBatch struct {
	Actions []application.Action `json:"actions" msgpack:"actions"`
}

// NewResultFrame は終了状態から id の参加者向けの通知を作ります。
// 時間切れの場合、生存者は timeout、脱落者は lose になります。
func NewResultFrame(matchID string, id application.PlayerID, state application.State) ResultFrame {
	frame := ResultFrame{
		Type:    FrameResult,
		MatchID: matchID,
		Winners: state.Winners,
	}
	if frame.Winners == nil {
		frame.Winners = []application.PlayerID{}
	}
	switch state.Phase {
	case application.PhaseTimeIsOver:
		frame.Reason = ReasonTimeout
		frame.Outcome = OutcomeLose
		if state.Won(id) {
			frame.Outcome = OutcomeTimeout
		}
	default:
		frame.Reason = ReasonElimination
		switch {
		case state.Draw():
			frame.Outcome = OutcomeDraw
		case state.Won(id):
			frame.Outcome = OutcomeWin
		default:
			frame.Outcome = OutcomeLose
		}
	}
	return frame
}
