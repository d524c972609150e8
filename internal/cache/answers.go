// Package cache holds Redis-backed helpers for quiz sessions.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// AnsweredKeyPrefix namespaces answered-question markers.
	AnsweredKeyPrefix = "quizzer:answered"

	// DefaultAnsweredTTL bounds how long a marker outlives its attempt.
	DefaultAnsweredTTL = 24 * time.Hour
)

// RedisGuard records graded questions in Redis so a question cannot be graded
// twice within one attempt, even across processes sharing the same database.
// Markers are scoped by a namespace so databases sharing one Redis server do
// not collide. It satisfies quiz.AnswerGuard.
type RedisGuard struct {
	client    *redis.Client
	ctx       context.Context
	namespace string
	ttl       time.Duration
}

// NewRedisGuard creates a guard on an existing client. namespace identifies
// the database the attempts live in; see Namespace. ttl <= 0 selects
// DefaultAnsweredTTL.
func NewRedisGuard(client *redis.Client, namespace string, ttl time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultAnsweredTTL
	}
	return &RedisGuard{
		client:    client,
		ctx:       context.Background(),
		namespace: namespace,
		ttl:       ttl,
	}, nil
}

// Dial connects to addr and pings it before returning the guard.
func Dial(ctx context.Context, addr, namespace string, ttl time.Duration) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedisGuard(client, namespace, ttl)
}

// Namespace derives a short stable namespace from a database identity such as
// driver and DSN.
func Namespace(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// MarkAnswered returns true the first time the pair is seen.
func (g *RedisGuard) MarkAnswered(attemptID, questionID int64) (bool, error) {
	ok, err := g.client.SetNX(g.ctx, AnsweredKey(g.namespace, attemptID, questionID), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark answered: %w", err)
	}
	return ok, nil
}

// Unmark removes the marker of one question.
func (g *RedisGuard) Unmark(attemptID, questionID int64) error {
	if err := g.client.Del(g.ctx, AnsweredKey(g.namespace, attemptID, questionID)).Err(); err != nil {
		return fmt.Errorf("unmark answered: %w", err)
	}
	return nil
}

// Forget drops every marker of an attempt.
func (g *RedisGuard) Forget(attemptID int64) error {
	iter := g.client.Scan(g.ctx, 0, attemptPattern(g.namespace, attemptID), 100).Iterator()
	var keys []string
	for iter.Next(g.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan answered: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return g.client.Del(g.ctx, keys...).Err()
}

// Close closes the underlying client.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// AnsweredKey is the Redis key marking questionID as graded in attemptID.
func AnsweredKey(namespace string, attemptID, questionID int64) string {
	return fmt.Sprintf("%s:%d", attemptKey(namespace, attemptID), questionID)
}

func attemptKey(namespace string, attemptID int64) string {
	if namespace == "" {
		return fmt.Sprintf("%s:%d", AnsweredKeyPrefix, attemptID)
	}
	return fmt.Sprintf("%s:%s:%d", AnsweredKeyPrefix, namespace, attemptID)
}

func attemptPattern(namespace string, attemptID int64) string {
	return attemptKey(namespace, attemptID) + ":*"
}
