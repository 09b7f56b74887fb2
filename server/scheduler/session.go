package scheduler

import (
	"time"

	"skirmish/server/application"
)

// seat はセッション内の1席です。participant と bot のどちらか一方だけが設定されます。
type seat struct {
	id          application.PlayerID
	kind        application.PlayerKind
	participant Participant
	bot         application.BotController
}

// session は進行中のマッチです。次のティックの期限を自身で保持します。
type session struct {
	id       string
	seats    []seat
	game     *application.Game
	deadline time.Time
}

func (s *session) humans() []seat {
	out := make([]seat, 0, len(s.seats))
	for _, st := range s.seats {
		if st.participant != nil {
			out = append(out, st)
		}
	}
	return out
}

// abandoned は人間の参加者が全員切断しているかを返します。
func (s *session) abandoned() bool {
	for _, st := range s.humans() {
		if !st.participant.Closed() {
			return false
		}
	}
	return true
}

func (s *session) roster() []RosterEntry {
	roster := make([]RosterEntry, 0, len(s.seats))
	for _, st := range s.seats {
		entry := RosterEntry{PlayerID: st.id, Kind: st.kind}
		if named, ok := st.participant.(interface{ Name() string }); ok {
			entry.Name = named.Name()
		}
		roster = append(roster, entry)
	}
	return roster
}
