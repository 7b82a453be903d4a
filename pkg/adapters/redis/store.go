package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "flowstate:"

// farFuture is the index score of instances without TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.InstanceStore using Redis.
// Each instance is a JSON string; a sorted set per workflow indexes its entities.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.InstanceStore = (*Store)(nil)

type Option func(*Store)

// WithTTL sets the expiration of instances. Every save renews it.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Key parts are query-escaped so ':' inside a name cannot shift the separator.
func (s *Store) key(workflowName, entityID string) string {
	return s.prefix + "instance:" + url.QueryEscape(workflowName) + ":" + url.QueryEscape(entityID)
}

func (s *Store) indexKey(workflowName string) string {
	return s.prefix + "index:" + url.QueryEscape(workflowName)
}

// Save persists the instance and refreshes its index entry.
func (s *Store) Save(ctx context.Context, inst *domain.WorkflowInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(inst.WorkflowName, inst.EntityID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(inst.WorkflowName), backend.Z{
		Score:  score,
		Member: inst.EntityID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the instance or domain.ErrInstanceNotFound.
func (s *Store) Load(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	val, err := s.client.Get(ctx, s.key(workflowName, entityID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var inst domain.WorkflowInstance
	if err := json.Unmarshal(val, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &inst, nil
}

// Delete removes the instance and its index entry.
func (s *Store) Delete(ctx context.Context, workflowName, entityID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(workflowName, entityID))
	pipe.ZRem(ctx, s.indexKey(workflowName), entityID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the workflow's instances sorted by entity ID.
// Expired index entries are pruned lazily.
func (s *Store) List(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(workflowName), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired instances: %w", err)
	}

	entities, err := s.client.ZRange(ctx, s.indexKey(workflowName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	if len(entities) == 0 {
		return []*domain.WorkflowInstance{}, nil
	}

	keys := make([]string, len(entities))
	for i, id := range entities {
		keys[i] = s.key(workflowName, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instances: %w", err)
	}

	out := make([]*domain.WorkflowInstance, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key expired between ZRANGE and MGET.
			continue
		}
		var inst domain.WorkflowInstance
		if err := json.Unmarshal([]byte(raw), &inst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance %s: %w", entities[i], err)
		}
		out = append(out, &inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
