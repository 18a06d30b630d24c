package sharedstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis returns shared state kept in Redis so that truck processes and the
// controller see the same bay. Every bay step is one Lua script, which Redis
// runs atomically; signals are lists consumed with BLPOP.
func NewRedis(client *redis.Client, prefix string) *State {
	k := redisKeys{prefix: prefix}
	return &State{
		Bay:     &RedisBay{client: client, keys: k},
		Signals: &RedisSignals{client: client, keys: k, block: time.Second},
		Roster:  &RedisRoster{client: client, keys: k},
	}
}

type redisKeys struct {
	prefix string
}

func (k redisKeys) bay() string            { return k.prefix + ":bay" }
func (k redisKeys) dock(i int) string      { return fmt.Sprintf("%s:dock:%d", k.prefix, i) }
func (k redisKeys) signal(n string) string { return k.prefix + ":sig:" + n }
func (k redisKeys) done(i int) string      { return fmt.Sprintf("%s:sig:done:%d", k.prefix, i) }
func (k redisKeys) robots() string         { return k.prefix + ":robots" }

// claimScript marks the lowest-index waiting dock as assigned.
// KEYS[1] is the bay hash, KEYS[2..] the dock hashes in index order.
// Returns the index, -1 when every dock is taken, -2 without the init marker.
var claimScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'marker') == false then
	return -2
end
for i = 2, #KEYS do
	local phase = redis.call('HGET', KEYS[i], 'phase')
	if phase == false or phase == 'waiting_for_arrival' then
		redis.call('HSET', KEYS[i], 'phase', 'awaiting_assignment', 'occupied', '1',
			'kind', '', 'load_complete', '0', 'cargo', '[]')
		return i - 2
	end
end
return -1
`)

// transitionScript moves one dock from ARGV[1] to ARGV[2] and sets the field
// pairs in ARGV[3..]. Returns "OK" or the phase the dock was found in.
var transitionScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'marker') == false then
	return 'uninitialized'
end
local cur = redis.call('HGET', KEYS[2], 'phase')
if cur == false then
	cur = 'waiting_for_arrival'
end
if cur ~= ARGV[1] then
	return cur
end
redis.call('HSET', KEYS[2], 'phase', ARGV[2])
for i = 3, #ARGV, 2 do
	redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 1])
end
return 'OK'
`)

// abortScript flags an assigned or docking dock done. Returns "OK" or the
// phase the dock was found in.
var abortScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'marker') == false then
	return 'uninitialized'
end
local cur = redis.call('HGET', KEYS[2], 'phase')
if cur == false then
	cur = 'waiting_for_arrival'
end
if cur ~= 'awaiting_assignment' and cur ~= 'docking' then
	return cur
end
redis.call('HSET', KEYS[2], 'phase', 'done', 'load_complete', '1')
return 'OK'
`)

// RedisBay implements Bay on Redis hashes.
type RedisBay struct {
	client *redis.Client
	keys   redisKeys
}

func (b *RedisBay) Init(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("init bay: %d docks: %w", n, ErrBadIndex)
	}
	old, _ := b.client.HGet(ctx, b.keys.bay(), "docks").Int()

	pipe := b.client.TxPipeline()
	for i := 0; i < max(old, n); i++ {
		pipe.Del(ctx, b.keys.dock(i))
	}
	for i := 0; i < n; i++ {
		pipe.HSet(ctx, b.keys.dock(i), "phase", string(PhaseWaiting), "occupied", "0",
			"kind", "", "load_complete", "0", "cargo", "[]")
	}
	pipe.HSet(ctx, b.keys.bay(), "docks", n, "quit", "0", "marker", initMarker)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBay) Initialized(ctx context.Context) (bool, error) {
	v, err := b.client.HGet(ctx, b.keys.bay(), "marker").Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == initMarker, nil
}

func (b *RedisBay) Size(ctx context.Context) (int, error) {
	vals, err := b.client.HMGet(ctx, b.keys.bay(), "marker", "docks").Result()
	if err != nil {
		return 0, err
	}
	if vals[0] == nil {
		return 0, ErrNotInitialized
	}
	s, _ := vals[1].(string)
	return strconv.Atoi(s)
}

func (b *RedisBay) Claim(ctx context.Context) (int, error) {
	n, err := b.Size(ctx)
	if err != nil {
		return -1, err
	}
	keys := make([]string, 0, n+1)
	keys = append(keys, b.keys.bay())
	for i := 0; i < n; i++ {
		keys = append(keys, b.keys.dock(i))
	}
	idx, err := claimScript.Run(ctx, b.client, keys).Int()
	if err != nil {
		return -1, fmt.Errorf("claim dock: %w", err)
	}
	switch idx {
	case -1:
		return -1, ErrNoFreeDock
	case -2:
		return -1, ErrNotInitialized
	}
	return idx, nil
}

func (b *RedisBay) transition(ctx context.Context, index int, from, to Phase, fields ...any) error {
	n, err := b.Size(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return fmt.Errorf("dock %d: %w", index, ErrBadIndex)
	}
	args := append([]any{string(from), string(to)}, fields...)
	res, err := transitionScript.Run(ctx, b.client, []string{b.keys.bay(), b.keys.dock(index)}, args...).Text()
	if err != nil {
		return fmt.Errorf("dock %d %s -> %s: %w", index, from, to, err)
	}
	switch res {
	case "OK":
		return nil
	case "uninitialized":
		return ErrNotInitialized
	}
	return &PhaseError{Index: index, Current: Phase(res), Wanted: from}
}

func (b *RedisBay) SetKind(ctx context.Context, index int, kind Kind, cargo []CargoItem) error {
	data, err := encodeCargo(cargo)
	if err != nil {
		return err
	}
	return b.transition(ctx, index, PhaseAssigned, PhaseDocking, "kind", string(kind), "cargo", data)
}

func (b *RedisBay) BeginLoading(ctx context.Context, index int) (Dock, error) {
	if err := b.transition(ctx, index, PhaseDocking, PhaseLoading); err != nil {
		return Dock{}, err
	}
	return b.Dock(ctx, index)
}

func (b *RedisBay) SetDone(ctx context.Context, index int, cargo []CargoItem) error {
	fields := []any{"load_complete", "1"}
	if cargo != nil {
		data, err := encodeCargo(cargo)
		if err != nil {
			return err
		}
		fields = append(fields, "cargo", data)
	}
	return b.transition(ctx, index, PhaseLoading, PhaseDone, fields...)
}

func (b *RedisBay) Abort(ctx context.Context, index int) (Dock, error) {
	n, err := b.Size(ctx)
	if err != nil {
		return Dock{}, err
	}
	if index < 0 || index >= n {
		return Dock{}, fmt.Errorf("dock %d: %w", index, ErrBadIndex)
	}
	res, err := abortScript.Run(ctx, b.client, []string{b.keys.bay(), b.keys.dock(index)}).Text()
	if err != nil {
		return Dock{}, fmt.Errorf("abort dock %d: %w", index, err)
	}
	switch res {
	case "OK":
		return b.Dock(ctx, index)
	case "uninitialized":
		return Dock{}, ErrNotInitialized
	}
	return Dock{}, &PhaseError{Index: index, Current: Phase(res), Wanted: PhaseAssigned}
}

func (b *RedisBay) Release(ctx context.Context, index int) (Dock, error) {
	// only the departing truck touches a done dock, so the read cannot race
	before, err := b.Dock(ctx, index)
	if err != nil {
		return Dock{}, err
	}
	err = b.transition(ctx, index, PhaseDone, PhaseWaiting,
		"occupied", "0", "kind", "", "load_complete", "0", "cargo", "[]")
	if err != nil {
		return Dock{}, err
	}
	return before, nil
}

func (b *RedisBay) Dock(ctx context.Context, index int) (Dock, error) {
	n, err := b.Size(ctx)
	if err != nil {
		return Dock{}, err
	}
	if index < 0 || index >= n {
		return Dock{}, fmt.Errorf("dock %d: %w", index, ErrBadIndex)
	}
	m, err := b.client.HGetAll(ctx, b.keys.dock(index)).Result()
	if err != nil {
		return Dock{}, err
	}
	return decodeDock(index, m)
}

func (b *RedisBay) Snapshot(ctx context.Context) ([]Dock, error) {
	n, err := b.Size(ctx)
	if err != nil {
		return nil, err
	}
	pipe := b.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, n)
	for i := 0; i < n; i++ {
		cmds[i] = pipe.HGetAll(ctx, b.keys.dock(i))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	out := make([]Dock, n)
	for i, c := range cmds {
		d, err := decodeDock(i, c.Val())
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func (b *RedisBay) SetQuit(ctx context.Context) error {
	return b.client.HSet(ctx, b.keys.bay(), "quit", "1").Err()
}

func (b *RedisBay) Quit(ctx context.Context) (bool, error) {
	v, err := b.client.HGet(ctx, b.keys.bay(), "quit").Result()
	if err == redis.Nil {
		// no bay at all: nothing to wait for
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (b *RedisBay) Teardown(ctx context.Context) error {
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.keys.bay(), "quit", "1")
	pipe.HDel(ctx, b.keys.bay(), "marker")
	_, err := pipe.Exec(ctx)
	return err
}

func encodeCargo(cargo []CargoItem) (string, error) {
	if cargo == nil {
		cargo = []CargoItem{}
	}
	data, err := json.Marshal(cargo)
	if err != nil {
		return "", fmt.Errorf("encode cargo: %w", err)
	}
	return string(data), nil
}

func decodeDock(index int, m map[string]string) (Dock, error) {
	d := Dock{
		Index:        index,
		Phase:        Phase(m["phase"]),
		Kind:         Kind(m["kind"]),
		Occupied:     m["occupied"] == "1",
		LoadComplete: m["load_complete"] == "1",
	}
	if d.Phase == "" {
		d.Phase = PhaseWaiting
	}
	if c := m["cargo"]; c != "" && c != "[]" {
		if err := json.Unmarshal([]byte(c), &d.Cargo); err != nil {
			return Dock{}, fmt.Errorf("dock %d cargo: %w", index, err)
		}
	}
	return d, nil
}

// RedisSignals implements Signals as Redis lists.
type RedisSignals struct {
	client *redis.Client
	keys   redisKeys
	block  time.Duration
}

func (s *RedisSignals) raise(ctx context.Context, key string, v int) error {
	return s.client.RPush(ctx, key, v).Err()
}

// await pops one token, re-issuing BLPOP every s.block so ctx is honoured.
func (s *RedisSignals) await(ctx context.Context, key string) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res, err := s.client.BLPop(ctx, s.block, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, err
		}
		return strconv.Atoi(res[1])
	}
}

func (s *RedisSignals) Arrive(ctx context.Context) error {
	return s.raise(ctx, s.keys.signal("arrival"), 1)
}

func (s *RedisSignals) AwaitArrival(ctx context.Context) error {
	_, err := s.await(ctx, s.keys.signal("arrival"))
	return err
}

func (s *RedisSignals) OfferDock(ctx context.Context, index int) error {
	return s.raise(ctx, s.keys.signal("available"), index)
}

func (s *RedisSignals) AwaitDock(ctx context.Context) (int, error) {
	return s.await(ctx, s.keys.signal("available"))
}

func (s *RedisSignals) Docked(ctx context.Context, index int) error {
	return s.raise(ctx, s.keys.signal("docked"), index)
}

func (s *RedisSignals) AwaitDocked(ctx context.Context) (int, error) {
	return s.await(ctx, s.keys.signal("docked"))
}

func (s *RedisSignals) Finish(ctx context.Context, index int) error {
	return s.raise(ctx, s.keys.done(index), index)
}

func (s *RedisSignals) AwaitFinish(ctx context.Context, index int) error {
	_, err := s.await(ctx, s.keys.done(index))
	return err
}

// Freed raises the release token. Only a wake-up matters to a waiting
// monitor, so the list is trimmed to the latest token.
func (s *RedisSignals) Freed(ctx context.Context, index int) error {
	key := s.keys.signal("freed")
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, index)
	pipe.LTrim(ctx, key, -1, -1)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSignals) AwaitFreed(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout < time.Second {
		timeout = time.Second
	}
	_, err := s.client.BLPop(ctx, timeout, s.keys.signal("freed")).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	return true, nil
}

func (s *RedisSignals) Reset(ctx context.Context) error {
	keys := []string{
		s.keys.signal("arrival"),
		s.keys.signal("available"),
		s.keys.signal("docked"),
		s.keys.signal("freed"),
	}
	done, err := s.client.Keys(ctx, s.keys.signal("done:*")).Result()
	if err != nil {
		return err
	}
	return s.client.Del(ctx, append(keys, done...)...).Err()
}

// Pending returns the number of unconsumed arrival tokens.
func (s *RedisSignals) Pending(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.keys.signal("arrival")).Result()
}

// RedisRoster implements Roster as one Redis hash of JSON records.
type RedisRoster struct {
	client *redis.Client
	keys   redisKeys
}

func (r *RedisRoster) put(ctx context.Context, rb Robot) error {
	data, err := json.Marshal(rb)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.keys.robots(), strconv.Itoa(rb.ID), data).Err()
}

func (r *RedisRoster) Register(ctx context.Context, id int, position string) error {
	return r.put(ctx, Robot{ID: id, Position: position, UpdatedAt: time.Now()})
}

// moveScript overwrites a roster record only if the robot is still
// registered. KEYS[1] is the roster hash; returns 1 on write, 0 otherwise.
var moveScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

func (r *RedisRoster) Move(ctx context.Context, id int, position string, busy bool) error {
	data, err := json.Marshal(Robot{ID: id, Position: position, Busy: busy, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	n, err := moveScript.Run(ctx, r.client, []string{r.keys.robots()}, strconv.Itoa(id), data).Int()
	if err != nil {
		return fmt.Errorf("move robot %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("robot %d: %w", id, ErrNotRegistered)
	}
	return nil
}

func (r *RedisRoster) Remove(ctx context.Context, id int) error {
	return r.client.HDel(ctx, r.keys.robots(), strconv.Itoa(id)).Err()
}

func (r *RedisRoster) Robots(ctx context.Context) ([]Robot, error) {
	m, err := r.client.HGetAll(ctx, r.keys.robots()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Robot, 0, len(m))
	for _, v := range m {
		var rb Robot
		if err := json.Unmarshal([]byte(v), &rb); err != nil {
			return nil, fmt.Errorf("decode robot: %w", err)
		}
		out = append(out, rb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
