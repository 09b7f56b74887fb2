package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"skirmish/server/application"
)

var (
	ErrInvalidMatchSize = errors.New("scheduler: match needs at least one human seat")
	ErrInvalidInterval  = errors.New("scheduler: intervals must be positive")
)

const (
	reasonShutdown = "server shutting down"
	reasonGameOver = "game over"
)

// Config はスケジューラ生成時に固定される設定です。
type Config struct {
	// MatchSize は1マッチの参加人数（ボット席を含む）です。
	MatchSize int
	// BotSeats はマッチごとにサーバー内のボットが埋める席の数です。
	BotSeats     int
	TickInterval time.Duration
	PollInterval time.Duration
	Game         application.GameConfig
	Map          application.MapOptions
	Loadout      application.Loadout
}

func (c Config) humanSeats() int {
	return c.MatchSize - c.BotSeats
}

// Stats はヘルスチェック用の集計値です。
type Stats struct {
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed uint64 `json:"completed"`
}

// Scheduler はマッチメイキングと進行中セッションの駆動を単一のループで行います。
// Pass と Run は同時に1つのgoroutineからのみ呼んでください。Stats はどこからでも呼べます。
type Scheduler struct {
	cfg      Config
	acceptor Acceptor
	clock    Clock
	rng      *rand.Rand
	tracer   trace.Tracer

	newBot func() application.BotController

	waiting  []Participant
	sessions []*session

	waitingCount   atomic.Int64
	activeCount    atomic.Int64
	completedCount atomic.Uint64
}

func New(cfg Config, acceptor Acceptor, clock Clock, rng *rand.Rand) (*Scheduler, error) {
	if acceptor == nil || clock == nil || rng == nil {
		return nil, fmt.Errorf("scheduler: missing dependencies: acceptor=%v clock=%v rng=%v", acceptor, clock, rng)
	}
	if cfg.BotSeats < 0 || cfg.humanSeats() < 1 {
		return nil, fmt.Errorf("%w: size=%d bots=%d", ErrInvalidMatchSize, cfg.MatchSize, cfg.BotSeats)
	}
	if cfg.TickInterval <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: tick=%s poll=%s", ErrInvalidInterval, cfg.TickInterval, cfg.PollInterval)
	}
	if _, err := application.SpawnPoints(cfg.Map.Size, cfg.MatchSize); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	s := &Scheduler{
		cfg:      cfg,
		acceptor: acceptor,
		clock:    clock,
		rng:      rng,
		tracer:   otel.Tracer("skirmish/server/scheduler"),
	}
	s.newBot = func() application.BotController {
		return application.NewRuleBotController(rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64())))
	}
	return s, nil
}

// Run は PollInterval ごとに Pass を実行します。
// ctx が終了すると全参加者を切断して nil を返します。
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "scheduler started",
		"matchSize", s.cfg.MatchSize,
		"botSeats", s.cfg.BotSeats,
		"tickInterval", s.cfg.TickInterval,
	)
	for {
		select {
		case <-ctx.Done():
			s.shutdown(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			s.Pass(ctx)
		}
	}
}

// Pass は1回分のスケジューリングを行います。
// 受付 → 待機列の整理 → マッチ成立 → 期限の来たセッションの進行 の順に処理します。
func (s *Scheduler) Pass(ctx context.Context) {
	s.acceptPending(ctx)
	s.pruneWaiting(ctx)
	s.formMatches(ctx)
	s.advanceSessions(ctx)

	s.waitingCount.Store(int64(len(s.waiting)))
	s.activeCount.Store(int64(len(s.sessions)))
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Waiting:   int(s.waitingCount.Load()),
		Active:    int(s.activeCount.Load()),
		Completed: s.completedCount.Load(),
	}
}

func (s *Scheduler) acceptPending(ctx context.Context) {
	for {
		p, ok := s.acceptor.TryAccept(ctx)
		if !ok {
			return
		}
		err := p.Send(ctx, AcceptFrame{
			Type:         FrameAccept,
			ConnectionID: p.ID(),
			Message:      acceptGreeting,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to greet participant", "sessionID", p.ID(), "err", err)
			p.Close("greeting failed")
			continue
		}
		slog.DebugContext(ctx, "participant waiting", "sessionID", p.ID())
		s.waiting = append(s.waiting, p)
	}
}

// pruneWaiting は待機中に切断した参加者を待機列から除きます。
func (s *Scheduler) pruneWaiting(ctx context.Context) {
	kept := s.waiting[:0]
	for _, p := range s.waiting {
		if p.Closed() {
			slog.DebugContext(ctx, "participant left before match", "sessionID", p.ID())
			continue
		}
		kept = append(kept, p)
	}
	clear(s.waiting[len(kept):])
	s.waiting = kept
}

func (s *Scheduler) formMatches(ctx context.Context) {
	humans := s.cfg.humanSeats()
	for len(s.waiting) >= humans {
		group := make([]Participant, humans)
		copy(group, s.waiting)
		clear(s.waiting[:humans])
		s.waiting = s.waiting[humans:]

		sess, err := s.startSession(ctx, group)
		if err != nil {
			slog.ErrorContext(ctx, "failed to start session", "err", err)
			for _, p := range group {
				p.Close("match failed")
			}
			continue
		}
		s.sessions = append(s.sessions, sess)
	}
}

func (s *Scheduler) startSession(ctx context.Context, group []Participant) (*session, error) {
	spawns, err := application.SpawnPoints(s.cfg.Map.Size, s.cfg.MatchSize)
	if err != nil {
		return nil, err
	}
	grid, err := application.GenerateGrid(s.cfg.Map, s.rng, spawns)
	if err != nil {
		return nil, err
	}

	seats := make([]seat, 0, s.cfg.MatchSize)
	players := make([]application.Player, 0, s.cfg.MatchSize)
	for i := range s.cfg.MatchSize {
		id := application.PlayerID(i)
		st := seat{id: id, kind: application.KindHuman}
		if i < len(group) {
			st.participant = group[i]
		} else {
			st.kind = application.KindBot
			st.bot = s.newBot()
		}
		seats = append(seats, st)
		players = append(players, application.NewPlayer(id, st.kind, s.cfg.Loadout.Character(spawns[i])))
	}

	game, err := application.NewGame(grid, players, s.cfg.Game)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:       uuid.NewString(),
		seats:    seats,
		game:     game,
		deadline: s.clock.Now().Add(s.cfg.TickInterval),
	}

	roster := sess.roster()
	for _, st := range sess.humans() {
		err := st.participant.Send(ctx, MatchFrame{
			Type:           FrameMatch,
			MatchID:        sess.id,
			PlayerID:       st.id,
			Roster:         roster,
			GridSize:       grid.Size(),
			ActionsPerTurn: game.ActionsPerTurn(),
			TickIntervalMS: s.cfg.TickInterval.Milliseconds(),
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to send match notice", "matchID", sess.id, "sessionID", st.participant.ID(), "err", err)
		}
	}
	slog.InfoContext(ctx, "match started", "matchID", sess.id, "players", len(seats), "bots", s.cfg.BotSeats)
	return sess, nil
}

// advanceSessions は期限の来たセッションを1ティック進めます。
// 期限前のセッションは順序を保ったまま列に戻します。
func (s *Scheduler) advanceSessions(ctx context.Context) {
	pending := len(s.sessions)
	for range pending {
		sess := s.sessions[0]
		s.sessions[0] = nil
		s.sessions = s.sessions[1:]

		if s.clock.Now().Before(sess.deadline) {
			s.sessions = append(s.sessions, sess)
			continue
		}
		if s.step(ctx, sess) {
			s.sessions = append(s.sessions, sess)
		}
	}
}

// step は期限の来たセッションを処理し、継続するなら true を返します。
func (s *Scheduler) step(ctx context.Context, sess *session) bool {
	ctx, span := s.tracer.Start(ctx, "scheduler.step", trace.WithAttributes(
		attribute.String("match.id", sess.id),
		attribute.Int64("match.tick", int64(sess.game.Tick())),
	))
	defer span.End()

	state := sess.game.State()
	if state.Terminal() {
		s.finish(ctx, sess, state)
		return false
	}
	if sess.abandoned() {
		slog.InfoContext(ctx, "session abandoned", "matchID", sess.id, "tick", sess.game.Tick())
		s.completedCount.Add(1)
		return false
	}

	frame := StateFrame{Type: FrameState, MatchID: sess.id, Snapshot: state.Snapshot}
	for _, st := range sess.humans() {
		if st.participant.Closed() {
			continue
		}
		if err := st.participant.Send(ctx, frame); err != nil {
			slog.DebugContext(ctx, "failed to send state", "matchID", sess.id, "sessionID", st.participant.ID(), "err", err)
		}
	}

	batches := make(map[application.PlayerID][]application.Action, len(sess.seats))
	for _, st := range sess.seats {
		batches[st.id] = s.collect(ctx, sess, st, state.Snapshot)
	}

	next := sess.game.Update(batches)
	sess.deadline = s.clock.Now().Add(s.cfg.TickInterval)
	span.SetAttributes(attribute.String("match.phase", next.Phase.String()))
	return true
}

// collect は1席分のアクションを1度だけ取得します。
// 取得できない場合や不正な場合は nil（全て Nothing）になります。
func (s *Scheduler) collect(ctx context.Context, sess *session, st seat, snapshot *application.Snapshot) []application.Action {
	if st.bot != nil {
		return st.bot.Decide(st.id, snapshot, sess.game.ActionsPerTurn())
	}
	if st.participant.Closed() {
		return nil
	}
	var batch ActionBatch
	ok, err := st.participant.Poll(ctx, &batch)
	if err != nil {
		slog.DebugContext(ctx, "malformed action batch", "matchID", sess.id, "sessionID", st.participant.ID(), "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return batch.Actions
}

func (s *Scheduler) finish(ctx context.Context, sess *session, state application.State) {
	for _, st := range sess.humans() {
		if st.participant.Closed() {
			continue
		}
		frame := NewResultFrame(sess.id, st.id, state)
		if err := st.participant.Send(ctx, frame); err != nil {
			slog.WarnContext(ctx, "failed to send result", "matchID", sess.id, "sessionID", st.participant.ID(), "err", err)
		}
		st.participant.Close(reasonGameOver)
	}
	s.completedCount.Add(1)
	slog.InfoContext(ctx, "match finished",
		"matchID", sess.id,
		"phase", state.Phase.String(),
		"winners", state.Winners,
		"ticks", sess.game.Tick(),
	)
}

func (s *Scheduler) shutdown(ctx context.Context) {
	for {
		p, ok := s.acceptor.TryAccept(ctx)
		if !ok {
			break
		}
		p.Close(reasonShutdown)
	}
	for _, p := range s.waiting {
		p.Close(reasonShutdown)
	}
	for _, sess := range s.sessions {
		for _, st := range sess.humans() {
			st.participant.Close(reasonShutdown)
		}
	}
	slog.InfoContext(ctx, "scheduler stopped", "waiting", len(s.waiting), "active", len(s.sessions))
	s.waiting = nil
	s.sessions = nil
	s.waitingCount.Store(0)
	s.activeCount.Store(0)
}
