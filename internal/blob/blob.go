// Package blob stores attachment bytes keyed by opaque id. The server never
// serves a file under its user-supplied name; metadata travels next to the
// bytes so downloads carry the original content type.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campustransit/transit-server/internal/apperrors"
)

// Object is a stored attachment: raw bytes plus serving metadata.
type Object struct {
	Data     []byte
	MimeType string
	Name     string // sanitized; safe for Content-Disposition
}

// Store is the byte-store collaborator for attachments.
type Store interface {
	Put(ctx context.Context, id uuid.UUID, obj *Object) error
	Get(ctx context.Context, id uuid.UUID) (*Object, error)
}

// Redis stores blobs in redis under att:<id> with a JSON metadata sibling.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed blob store from a redis URL.
func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

type redisMeta struct {
	MimeType string `json:"mimeType"`
	Name     string `json:"name"`
}

func dataKey(id uuid.UUID) string { return "att:" + id.String() }
func metaKey(id uuid.UUID) string { return "att:" + id.String() + ":meta" }

func (s *Redis) Put(ctx context.Context, id uuid.UUID, obj *Object) error {
	meta, err := json.Marshal(redisMeta{MimeType: obj.MimeType, Name: obj.Name})
	if err != nil {
		return apperrors.StoreFailure("encode attachment meta", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dataKey(id), obj.Data, 0)
	pipe.Set(ctx, metaKey(id), meta, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.StoreFailure("store attachment", err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id uuid.UUID) (*Object, error) {
	data, err := s.client.Get(ctx, dataKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.StoreFailure("fetch attachment", err)
	}
	raw, err := s.client.Get(ctx, metaKey(id)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.StoreFailure("fetch attachment meta", err)
	}
	var meta redisMeta
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, apperrors.StoreFailure("decode attachment meta", err)
		}
	}
	return &Object{Data: data, MimeType: meta.MimeType, Name: meta.Name}, nil
}

// Memory is an in-process blob store for tests and development.
type Memory struct {
	mu   sync.RWMutex
	objs map[uuid.UUID]*Object
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{objs: make(map[uuid.UUID]*Object)}
}

func (s *Memory) Put(ctx context.Context, id uuid.UUID, obj *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *obj
	c.Data = append([]byte(nil), obj.Data...)
	s.objs[id] = &c
	return nil
}

func (s *Memory) Get(ctx context.Context, id uuid.UUID) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *obj
	c.Data = append([]byte(nil), obj.Data...)
	return &c, nil
}
