package application

// BotController はボットの意思決定インターフェースです。
// 観測できる情報はプレイヤーと同じスナップショットのみです。
type BotController interface {
	Decide(self PlayerID, snapshot *Snapshot, actionsPerTurn int) []Action
}

// BotControllerFunc は関数を BotController として扱います。
type BotControllerFunc func(self PlayerID, snapshot *Snapshot, actionsPerTurn int) []Action

func (f BotControllerFunc) Decide(self PlayerID, snapshot *Snapshot, actionsPerTurn int) []Action {
	return f(self, snapshot, actionsPerTurn)
}
