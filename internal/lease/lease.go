package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another instance owns the interview.
var ErrHeld = errors.New("lease held by another instance")

const keyPrefix = "interview-agent:lease:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Manager grants one instance exclusive ownership of an interview id.
type Manager struct {
	rdb   *redis.Client
	owner string
	ttl   time.Duration
}

func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Manager{rdb: rdb, owner: uuid.NewString(), ttl: ttl}
}

func (m *Manager) Owner() string {
	return m.owner
}

// Acquire takes the lease, or renews it when this instance already holds it.
func (m *Manager) Acquire(ctx context.Context, interviewID string) error {
	key := keyPrefix + interviewID

	ok, err := m.rdb.SetNX(ctx, key, m.owner, m.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", interviewID, err)
	}
	if ok {
		return nil
	}

	renewed, err := m.refresh(ctx, key)
	if err != nil {
		return err
	}
	if !renewed {
		return fmt.Errorf("acquire lease %s: %w", interviewID, ErrHeld)
	}
	return nil
}

func (m *Manager) Refresh(ctx context.Context, interviewID string) error {
	renewed, err := m.refresh(ctx, keyPrefix+interviewID)
	if err != nil {
		return err
	}
	if !renewed {
		return fmt.Errorf("refresh lease %s: %w", interviewID, ErrHeld)
	}
	return nil
}

func (m *Manager) Release(ctx context.Context, interviewID string) error {
	if err := releaseScript.Run(ctx, m.rdb, []string{keyPrefix + interviewID}, m.owner).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", interviewID, err)
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, key string) (bool, error) {
	n, err := refreshScript.Run(ctx, m.rdb, []string{key}, m.owner, m.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh lease %s: %w", key, err)
	}
	return n == 1, nil
}
