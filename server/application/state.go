package application

import "fmt"

// Phase はゲームのライフサイクル段階です。
type Phase uint8

const (
	// PhaseEmpty は生成前のみの値です。
	PhaseEmpty Phase = iota
	PhaseNotStarted
	PhaseContinue
	PhaseEnd
	PhaseTimeIsOver
)

var phaseNames = [...]string{
	PhaseEmpty:      "empty",
	PhaseNotStarted: "not_started",
	PhaseContinue:   "continue",
	PhaseEnd:        "end",
	PhaseTimeIsOver: "time_is_over",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Terminal は End と TimeIsOver で true です。
func (p Phase) Terminal() bool {
	return p == PhaseEnd || p == PhaseTimeIsOver
}

// State はゲームの状態です。
// NotStarted と Continue は Snapshot を、End と TimeIsOver は Winners を持ちます。
type State struct {
	Phase    Phase
	Snapshot *Snapshot
	Winners  []PlayerID
}

func (s State) Terminal() bool {
	return s.Phase.Terminal()
}

// Draw は全員が同時に脱落した終了状態で true です。
func (s State) Draw() bool {
	return s.Phase == PhaseEnd && len(s.Winners) == 0
}

// Won は id が勝者集合に含まれるかを返します。
func (s State) Won(id PlayerID) bool {
	for _, w := range s.Winners {
		if w == id {
			return true
		}
	}
	return false
}
