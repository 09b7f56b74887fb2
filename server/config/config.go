package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"skirmish/server/application"
	"skirmish/server/scheduler"
	"skirmish/utils"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config はサーバープロセス全体の設定です。
type Config struct {
	Addr string
	Port string

	Scheduler scheduler.Config
	// MapSeed が0なら起動時刻から決めます。
	MapSeed uint64

	LobbyCapacity     int
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration

	// JWTSecret が空なら認証しません。
	JWTSecret string

	OTelEnabled bool
	LogLevel    slog.Level
}

func (c Config) ListenAddr() string {
	return c.Addr + ":" + c.Port
}

// LoadDotEnv は .env があれば環境変数に読み込みます。既に設定されている値は上書きしません。
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load は環境変数から設定を読み込み、検証します。
func Load() (Config, error) {
	var (
		cfg  Config
		errs []error
	)
	read := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	readUint8 := func(key string, def uint8) uint8 {
		v, err := utils.GetEnvUint(key, uint64(def), 8)
		read(err)
		return uint8(v)
	}

	cfg.Addr = utils.GetEnvDefault("ADDR", "localhost")
	cfg.Port = utils.GetEnvDefault("PORT", "8080")

	sc := &cfg.Scheduler
	sc.Map.Size = readUint8("GRID_SIZE", 5)
	budget, err := utils.GetEnvUint("TICK_BUDGET", 1000, 16)
	read(err)
	sc.Game.TickBudget = uint16(budget)
	sc.Game.ActionsPerTurn, err = utils.GetEnvInt("ACTIONS_PER_TURN", 2)
	read(err)
	sc.MatchSize, err = utils.GetEnvInt("MATCH_SIZE", 2)
	read(err)
	sc.BotSeats, err = utils.GetEnvInt("BOT_SEATS", 0)
	read(err)
	sc.TickInterval, err = utils.GetEnvDuration("TICK_INTERVAL", 2*time.Second)
	read(err)
	sc.PollInterval, err = utils.GetEnvDuration("POLL_INTERVAL", 10*time.Millisecond)
	read(err)

	sc.Game.ReloadPolicy, err = application.ParseReloadPolicy(utils.GetEnvDefault("RELOAD_POLICY", "manual"))
	read(err)
	sc.Map.Layout, err = application.ParseMapLayout(utils.GetEnvDefault("MAP_LAYOUT", "empty"))
	read(err)
	cfg.MapSeed, err = utils.GetEnvUint("MAP_SEED", 0, 64)
	read(err)
	sc.Map.WallDensity, err = utils.GetEnvFloat("WALL_DENSITY", 0.1)
	read(err)
	sc.Map.BushDensity, err = utils.GetEnvFloat("BUSH_DENSITY", 0.15)
	read(err)

	def := application.DefaultLoadout()
	sc.Loadout = application.Loadout{
		Speed:        readUint8("PLAYER_SPEED", def.Speed),
		Health:       readUint8("PLAYER_HEALTH", def.Health),
		ReloadTime:   readUint8("RELOAD_TIME", def.ReloadTime),
		BulletRange:  readUint8("BULLET_RANGE", def.BulletRange),
		BulletDamage: readUint8("BULLET_DAMAGE", def.BulletDamage),
	}

	cfg.LobbyCapacity, err = utils.GetEnvInt("LOBBY_CAPACITY", 64)
	read(err)
	cfg.HeartbeatInterval, err = utils.GetEnvDuration("HEARTBEAT_INTERVAL", 15*time.Second)
	read(err)
	cfg.IdleTimeout, err = utils.GetEnvDuration("IDLE_TIMEOUT", 60*time.Second)
	read(err)
	cfg.JWTSecret = utils.GetEnvDefault("JWT_SECRET", "")
	cfg.OTelEnabled, err = utils.GetEnvBool("OTEL_ENABLED", false)
	read(err)
	cfg.LogLevel, err = parseLevel(utils.GetEnvDefault("LOG_LEVEL", "info"))
	read(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は値の範囲と組み合わせを検証します。
func (c Config) Validate() error {
	sc := c.Scheduler
	var errs []error
	check := func(ok bool, key string, value any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s=%v", key, value))
		}
	}
	check(sc.Map.Size > 0, "GRID_SIZE", sc.Map.Size)
	check(sc.Game.TickBudget > 0, "TICK_BUDGET", sc.Game.TickBudget)
	check(sc.Game.ActionsPerTurn > 0, "ACTIONS_PER_TURN", sc.Game.ActionsPerTurn)
	check(sc.MatchSize > 0 && sc.MatchSize <= math.MaxUint8, "MATCH_SIZE", sc.MatchSize)
	check(sc.BotSeats >= 0 && sc.BotSeats < sc.MatchSize, "BOT_SEATS", sc.BotSeats)
	check(sc.TickInterval > 0, "TICK_INTERVAL", sc.TickInterval)
	check(sc.PollInterval > 0, "POLL_INTERVAL", sc.PollInterval)
	check(sc.Map.WallDensity >= 0 && sc.Map.WallDensity <= 1, "WALL_DENSITY", sc.Map.WallDensity)
	check(sc.Map.BushDensity >= 0 && sc.Map.WallDensity+sc.Map.BushDensity <= 1, "BUSH_DENSITY", sc.Map.BushDensity)
	check(sc.Loadout.Health > 0, "PLAYER_HEALTH", sc.Loadout.Health)
	check(c.LobbyCapacity > 0, "LOBBY_CAPACITY", c.LobbyCapacity)
	if sc.Map.Size > 0 && sc.MatchSize > 0 {
		if _, err := application.SpawnPoints(sc.Map.Size, sc.MatchSize); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
