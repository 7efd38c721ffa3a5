package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-room-server/internal/obslog"
)

const resultTTL = 24 * time.Hour

// Result is the write-only record of one finished epoch. The coordinator
// never reads these back; live room state stays in process memory.
type Result struct {
	Room       string            `json:"room"`
	Reason     string            `json:"reason"`
	Winner     string            `json:"winner,omitempty"`
	Loser      string            `json:"loser,omitempty"`
	Names      map[string]string `json:"names,omitempty"`
	Moves      []string          `json:"moves"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Archive stores finished-game records in Redis with a TTL.
type Archive struct {
	rdb *redis.Client
}

// New connects to redisURL and pings before returning.
func New(redisURL string) (*Archive, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for result archive")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Archive{rdb: rdb}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.rdb == nil {
		return nil
	}
	return a.rdb.Close()
}

// SaveResult records one finished game. Failures are logged and returned but
// never block or fail the room.
func (a *Archive) SaveResult(ctx context.Context, r *Result) error {
	if a == nil || a.rdb == nil || r == nil {
		return nil
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	key := resultKey(r.Room, r.FinishedAt)
	if err := a.rdb.Set(ctx, key, raw, resultTTL).Err(); err != nil {
		obslog.L().Error("archive_save_error", zap.String("room", r.Room), zap.Error(err))
		return err
	}
	idx := idxRoomKey(r.Room)
	if err := a.rdb.SAdd(ctx, idx, key).Err(); err != nil {
		return err
	}
	_ = a.rdb.Expire(ctx, idx, resultTTL).Err()
	obslog.L().Info("archive_save",
		zap.String("room", r.Room),
		zap.String("reason", r.Reason),
		zap.Int("moves", len(r.Moves)),
	)
	return nil
}

// ResultsByRoom lists archived results for a room, oldest first. Offered for
// ops tooling; the relay itself never calls it.
func (a *Archive) ResultsByRoom(ctx context.Context, room string) ([]*Result, error) {
	if a == nil || a.rdb == nil {
		return nil, nil
	}
	keys, err := a.rdb.SMembers(ctx, idxRoomKey(room)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Result, 0, len(keys))
	for _, k := range keys {
		raw, err := a.rdb.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var r Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	sortResults(out)
	return out, nil
}

func sortResults(rs []*Result) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].FinishedAt.Before(rs[j-1].FinishedAt); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

func resultKey(room string, at time.Time) string {
	return fmt.Sprintf("relay:result:%s:%d", strings.TrimSpace(room), at.UnixNano())
}

func idxRoomKey(room string) string { return "relay:index:room:" + strings.TrimSpace(room) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
