package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/retry"
	"intake/pkg/platform/sentinel"
)

const keyPrefix = "registration:session:"

// appendPolicy retries AppendDocument when a concurrent upload to another
// step of the same session wins the WATCH race.
var appendPolicy = retry.Policy{
	MaxRetries:      5,
	InitialInterval: 5 * time.Millisecond,
	MaxInterval:     50 * time.Millisecond,
}

// RedisStore keeps sessions as JSON values whose TTL is the session expiry.
// Updates use WATCH/MULTI so concurrent writers across instances never lose
// a staged document.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

type RedisOption func(*RedisStore)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(sessionID id.SessionID) string {
	return keyPrefix + sessionID.String()
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("registration session already expired: %w", sentinel.ErrExpired)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("registration session exists: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Execute applies validate and mutate inside a WATCH transaction. If another
// writer touches the key first the error wraps both redis.TxFailedErr and
// sentinel.ErrConflict. The key's TTL is preserved.
func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	k := key(sessionID)
	var result *models.Session
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return errNotFound()
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		session, err := decode(data)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err
		}
		mutate(session)
		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = session
		return nil
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrConflict, redis.TxFailedErr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AppendDocument stages doc, retrying lost WATCH races. A duplicate step is
// never retried.
func (s *RedisStore) AppendDocument(ctx context.Context, sessionID id.SessionID, doc models.StagedDocument) (*models.Session, error) {
	var result *models.Session
	err := retry.Do(ctx, appendPolicy,
		func(err error) bool { return errors.Is(err, redis.TxFailedErr) },
		func(ctx context.Context) error {
			session, err := s.Execute(ctx, sessionID,
				func(session *models.Session) error { return canAppend(session, doc.Step) },
				func(session *models.Session) { session.ApplyStaged(doc) },
			)
			if err != nil {
				return err
			}
			result = session
			return nil
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
