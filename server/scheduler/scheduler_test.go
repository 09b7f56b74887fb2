package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"skirmish/server/application"
)

// --- test doubles ---

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time                  { return f.now }
func (f *fakeClock) Since(t time.Time) time.Duration { return f.now.Sub(t) }
func (f *fakeClock) Advance(d time.Duration)         { f.now = f.now.Add(d) }

type fakeParticipant struct {
	id          string
	sent        []any
	inbox       []any // ActionBatch または error
	closed      bool
	closeReason string
	sendErr     error
}

func (p *fakeParticipant) ID() string { return p.id }

func (p *fakeParticipant) Send(ctx context.Context, v any) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, v)
	return nil
}

func (p *fakeParticipant) Poll(ctx context.Context, v any) (bool, error) {
	if len(p.inbox) == 0 {
		return false, nil
	}
	item := p.inbox[0]
	p.inbox = p.inbox[1:]
	if err, ok := item.(error); ok {
		return false, err
	}
	*v.(*ActionBatch) = item.(ActionBatch)
	return true, nil
}

func (p *fakeParticipant) Closed() bool { return p.closed }

func (p *fakeParticipant) Close(reason string) {
	if p.closed {
		return
	}
	p.closed = true
	p.closeReason = reason
}

func (p *fakeParticipant) frames(t FrameType) []any {
	var out []any
	for _, f := range p.sent {
		switch v := f.(type) {
		case AcceptFrame:
			if v.Type == t {
				out = append(out, v)
			}
		case MatchFrame:
			if v.Type == t {
				out = append(out, v)
			}
		case StateFrame:
			if v.Type == t {
				out = append(out, v)
			}
		case ResultFrame:
			if v.Type == t {
				out = append(out, v)
			}
		}
	}
	return out
}

func (p *fakeParticipant) lastState(t *testing.T) StateFrame {
	t.Helper()
	states := p.frames(FrameState)
	if len(states) == 0 {
		t.Fatalf("participant %s received no state", p.id)
	}
	return states[len(states)-1].(StateFrame)
}

type queueAcceptor struct {
	queue []Participant
}

func (a *queueAcceptor) TryAccept(ctx context.Context) (Participant, bool) {
	if len(a.queue) == 0 {
		return nil, false
	}
	p := a.queue[0]
	a.queue = a.queue[1:]
	return p, true
}

func (a *queueAcceptor) push(ps ...*fakeParticipant) {
	for _, p := range ps {
		a.queue = append(a.queue, p)
	}
}

func testConfig() Config {
	return Config{
		MatchSize:    2,
		TickInterval: 2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		Game:         application.DefaultGameConfig(),
		Map:          application.MapOptions{Size: 5, Layout: application.LayoutEmpty},
		Loadout:      application.DefaultLoadout(),
	}
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *queueAcceptor, *fakeClock) {
	t.Helper()
	acceptor := &queueAcceptor{}
	clock := newFakeClock()
	s, err := New(cfg, acceptor, clock, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, acceptor, clock
}

func participants(n int) []*fakeParticipant {
	out := make([]*fakeParticipant, n)
	for i := range out {
		out[i] = &fakeParticipant{id: string(rune('a' + i))}
	}
	return out
}

// --- tests ---

func TestNew_Invalid(t *testing.T) {
	acceptor := &queueAcceptor{}
	rng := rand.New(rand.NewPCG(1, 2))

	cfg := testConfig()
	cfg.BotSeats = 2
	if _, err := New(cfg, acceptor, newFakeClock(), rng); !errors.Is(err, ErrInvalidMatchSize) {
		t.Errorf("err = %v, want %v", err, ErrInvalidMatchSize)
	}

	cfg = testConfig()
	cfg.TickInterval = 0
	if _, err := New(cfg, acceptor, newFakeClock(), rng); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("err = %v, want %v", err, ErrInvalidInterval)
	}

	cfg = testConfig()
	cfg.MatchSize = 40
	if _, err := New(cfg, acceptor, newFakeClock(), rng); !errors.Is(err, application.ErrTooManyPlayers) {
		t.Errorf("err = %v, want %v", err, application.ErrTooManyPlayers)
	}

	if _, err := New(testConfig(), nil, newFakeClock(), rng); err == nil {
		t.Error("New accepted a nil acceptor")
	}
}

func TestScheduler_Pass_GreetsAndMatches(t *testing.T) {
	s, acceptor, _ := newTestScheduler(t, testConfig())
	ps := participants(3)
	acceptor.push(ps...)
	ctx := context.Background()

	s.Pass(ctx)

	for _, p := range ps {
		accepts := p.frames(FrameAccept)
		if len(accepts) != 1 {
			t.Fatalf("participant %s accept frames = %d, want 1", p.id, len(accepts))
		}
		if got := accepts[0].(AcceptFrame); got.Message != "Accept connection" || got.ConnectionID != p.id {
			t.Errorf("accept frame = %+v", got)
		}
	}
	for i, p := range ps[:2] {
		matches := p.frames(FrameMatch)
		if len(matches) != 1 {
			t.Fatalf("participant %s match frames = %d, want 1", p.id, len(matches))
		}
		m := matches[0].(MatchFrame)
		if m.PlayerID != application.PlayerID(i) {
			t.Errorf("participant %s PlayerID = %d, want %d", p.id, m.PlayerID, i)
		}
		if m.ActionsPerTurn != 2 || m.GridSize != 5 || m.TickIntervalMS != 2000 {
			t.Errorf("match frame = %+v", m)
		}
		if len(m.Roster) != 2 {
			t.Errorf("roster = %+v, want 2 entries", m.Roster)
		}
	}
	if n := len(ps[2].frames(FrameMatch)); n != 0 {
		t.Errorf("third participant match frames = %d, want 0", n)
	}

	stats := s.Stats()
	if stats.Waiting != 1 || stats.Active != 1 {
		t.Errorf("Stats = %+v, want waiting 1 active 1", stats)
	}
}

func TestScheduler_Pass_PrunesDisconnected(t *testing.T) {
	s, acceptor, _ := newTestScheduler(t, testConfig())
	ps := participants(3)
	acceptor.push(ps[0])
	ctx := context.Background()

	s.Pass(ctx)
	ps[0].closed = true
	acceptor.push(ps[1], ps[2])
	s.Pass(ctx)

	if n := len(ps[0].frames(FrameMatch)); n != 0 {
		t.Errorf("disconnected participant was matched")
	}
	for _, p := range ps[1:] {
		if n := len(p.frames(FrameMatch)); n != 1 {
			t.Errorf("participant %s match frames = %d, want 1", p.id, n)
		}
	}
	if stats := s.Stats(); stats.Waiting != 0 || stats.Active != 1 {
		t.Errorf("Stats = %+v, want waiting 0 active 1", stats)
	}
}

func TestScheduler_Pass_WaitsForDeadline(t *testing.T) {
	s, acceptor, clock := newTestScheduler(t, testConfig())
	ps := participants(2)
	acceptor.push(ps...)
	ctx := context.Background()

	s.Pass(ctx)
	clock.Advance(time.Second)
	s.Pass(ctx)

	if n := len(ps[0].frames(FrameState)); n != 0 {
		t.Fatalf("state frames before deadline = %d, want 0", n)
	}
	if tick := s.sessions[0].game.Tick(); tick != 0 {
		t.Fatalf("tick before deadline = %d, want 0", tick)
	}

	clock.Advance(time.Second)
	s.Pass(ctx)

	for _, p := range ps {
		if n := len(p.frames(FrameState)); n != 1 {
			t.Errorf("participant %s state frames = %d, want 1", p.id, n)
		}
	}
	sess := s.sessions[0]
	if tick := sess.game.Tick(); tick != 1 {
		t.Errorf("tick = %d, want 1", tick)
	}
	if want := clock.Now().Add(2 * time.Second); !sess.deadline.Equal(want) {
		t.Errorf("deadline = %s, want %s", sess.deadline, want)
	}
}

func TestScheduler_Pass_CollectsActions(t *testing.T) {
	s, acceptor, clock := newTestScheduler(t, testConfig())
	ps := participants(2)
	acceptor.push(ps...)
	ctx := context.Background()
	s.Pass(ctx)

	ps[0].inbox = append(ps[0].inbox, ActionBatch{Actions: []application.Action{application.Move(application.DirectionUp, 1)}})
	ps[1].inbox = append(ps[1].inbox, errors.New("malformed"))

	clock.Advance(2 * time.Second)
	s.Pass(ctx)
	clock.Advance(2 * time.Second)
	s.Pass(ctx)

	snap := ps[0].lastState(t).Snapshot
	if snap.Tick != 1 {
		t.Fatalf("snapshot tick = %d, want 1", snap.Tick)
	}
	p0, _ := snap.Player(0)
	if p0.Position == nil || *p0.Position != (application.Position{X: 0, Y: 1}) {
		t.Errorf("player0 position = %v, want (0, 1)", p0.Position)
	}
	p1, _ := snap.Player(1)
	if p1.Position == nil || *p1.Position != (application.Position{X: 4, Y: 4}) {
		t.Errorf("player1 position = %v, want (4, 4)", p1.Position)
	}
}

func TestScheduler_Pass_TerminalNotice(t *testing.T) {
	cfg := testConfig()
	cfg.Game.TickBudget = 1
	s, acceptor, clock := newTestScheduler(t, cfg)
	ps := participants(2)
	acceptor.push(ps...)
	ctx := context.Background()
	s.Pass(ctx)

	clock.Advance(2 * time.Second)
	s.Pass(ctx)
	if n := len(ps[0].frames(FrameResult)); n != 0 {
		t.Fatalf("result sent before the terminal state was observed")
	}

	clock.Advance(2 * time.Second)
	s.Pass(ctx)

	for _, p := range ps {
		results := p.frames(FrameResult)
		if len(results) != 1 {
			t.Fatalf("participant %s result frames = %d, want 1", p.id, len(results))
		}
		r := results[0].(ResultFrame)
		if r.Outcome != OutcomeTimeout || r.Reason != ReasonTimeout {
			t.Errorf("result = %+v, want timeout", r)
		}
		if !slices.Equal(r.Winners, []application.PlayerID{0, 1}) {
			t.Errorf("winners = %v, want [0 1]", r.Winners)
		}
		if !p.closed || p.closeReason != reasonGameOver {
			t.Errorf("participant %s closed = %v (%q)", p.id, p.closed, p.closeReason)
		}
	}
	stats := s.Stats()
	if stats.Active != 0 || stats.Completed != 1 {
		t.Errorf("Stats = %+v, want active 0 completed 1", stats)
	}

	// 終了したセッションには以後何も送らない
	sent := len(ps[0].sent)
	clock.Advance(2 * time.Second)
	s.Pass(ctx)
	if len(ps[0].sent) != sent {
		t.Error("frames sent after the terminal notice")
	}
}

func TestScheduler_Pass_DiscardsAbandoned(t *testing.T) {
	s, acceptor, clock := newTestScheduler(t, testConfig())
	ps := participants(2)
	acceptor.push(ps...)
	ctx := context.Background()
	s.Pass(ctx)

	ps[0].closed = true
	ps[1].closed = true
	clock.Advance(2 * time.Second)
	s.Pass(ctx)

	if stats := s.Stats(); stats.Active != 0 || stats.Completed != 1 {
		t.Errorf("Stats = %+v, want active 0 completed 1", stats)
	}
	for _, p := range ps {
		if n := len(p.frames(FrameState)); n != 0 {
			t.Errorf("participant %s received %d state frames", p.id, n)
		}
	}
}

func TestScheduler_Pass_DisconnectedPlayerActsNothing(t *testing.T) {
	s, acceptor, clock := newTestScheduler(t, testConfig())
	ps := participants(2)
	acceptor.push(ps...)
	ctx := context.Background()
	s.Pass(ctx)

	ps[1].closed = true
	ps[1].inbox = append(ps[1].inbox, ActionBatch{Actions: []application.Action{application.Move(application.DirectionDown, 1)}})
	clock.Advance(2 * time.Second)
	s.Pass(ctx)

	if stats := s.Stats(); stats.Active != 1 {
		t.Fatalf("Stats = %+v, want the session to continue", stats)
	}
	if n := len(ps[1].frames(FrameState)); n != 0 {
		t.Errorf("closed participant received %d state frames", n)
	}
	p, _ := s.sessions[0].game.Player(1)
	if p.Position() != (application.Position{X: 4, Y: 4}) {
		t.Errorf("disconnected player moved to %s", p.Position())
	}
}

func TestScheduler_Pass_BotSeats(t *testing.T) {
	cfg := testConfig()
	cfg.BotSeats = 1
	s, acceptor, clock := newTestScheduler(t, cfg)
	ps := participants(1)
	acceptor.push(ps...)
	ctx := context.Background()

	s.Pass(ctx)

	matches := ps[0].frames(FrameMatch)
	if len(matches) != 1 {
		t.Fatalf("match frames = %d, want 1", len(matches))
	}
	roster := matches[0].(MatchFrame).Roster
	want := []RosterEntry{
		{PlayerID: 0, Kind: application.KindHuman},
		{PlayerID: 1, Kind: application.KindBot},
	}
	if !slices.Equal(roster, want) {
		t.Errorf("roster = %+v, want %+v", roster, want)
	}

	for range 3 {
		clock.Advance(2 * time.Second)
		s.Pass(ctx)
	}
	if tick := s.sessions[0].game.Tick(); tick != 3 {
		t.Errorf("tick = %d, want 3", tick)
	}
}

func TestScheduler_Pass_PreservesSessionOrder(t *testing.T) {
	s, acceptor, clock := newTestScheduler(t, testConfig())
	ctx := context.Background()

	first := participants(2)
	acceptor.push(first...)
	s.Pass(ctx)
	clock.Advance(time.Second)
	second := participants(2)
	acceptor.push(second...)
	s.Pass(ctx)

	ids := func() []string {
		var out []string
		for _, sess := range s.sessions {
			out = append(out, sess.id)
		}
		return out
	}
	before := ids()

	// 1つ目だけ期限が来ている
	clock.Advance(time.Second)
	s.Pass(ctx)

	if after := ids(); !slices.Equal(after, before) {
		t.Errorf("session order = %v, want %v", after, before)
	}
	if n := len(first[0].frames(FrameState)); n != 1 {
		t.Errorf("due session state frames = %d, want 1", n)
	}
	if n := len(second[0].frames(FrameState)); n != 0 {
		t.Errorf("session not yet due was advanced")
	}
}

func TestScheduler_Run_ShutdownClosesEveryone(t *testing.T) {
	s, acceptor, _ := newTestScheduler(t, testConfig())
	ps := participants(3)
	acceptor.push(ps...)
	s.Pass(context.Background())
	late := &fakeParticipant{id: "late"}
	acceptor.push(late)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	for _, p := range append(ps, late) {
		if !p.closed || p.closeReason != reasonShutdown {
			t.Errorf("participant %s closed = %v (%q), want shutdown", p.id, p.closed, p.closeReason)
		}
	}
	if stats := s.Stats(); stats.Waiting != 0 || stats.Active != 0 {
		t.Errorf("Stats = %+v, want empty", stats)
	}
}

func TestNewResultFrame(t *testing.T) {
	tests := []struct {
		name    string
		state   application.State
		id      application.PlayerID
		outcome Outcome
		reason  Reason
	}{
		{"winner", application.State{Phase: application.PhaseEnd, Winners: []application.PlayerID{1}}, 1, OutcomeWin, ReasonElimination},
		{"loser", application.State{Phase: application.PhaseEnd, Winners: []application.PlayerID{1}}, 0, OutcomeLose, ReasonElimination},
		{"draw", application.State{Phase: application.PhaseEnd}, 0, OutcomeDraw, ReasonElimination},
		{"survivor", application.State{Phase: application.PhaseTimeIsOver, Winners: []application.PlayerID{0, 2}}, 2, OutcomeTimeout, ReasonTimeout},
		{"eliminated", application.State{Phase: application.PhaseTimeIsOver, Winners: []application.PlayerID{0, 2}}, 1, OutcomeLose, ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewResultFrame("m", tt.id, tt.state)
			if f.Outcome != tt.outcome || f.Reason != tt.reason {
				t.Errorf("frame = %+v, want %s/%s", f, tt.outcome, tt.reason)
			}
			if f.Winners == nil {
				t.Error("Winners is nil, want an empty list")
			}
		})
	}
}
