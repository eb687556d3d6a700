// Package tokenstore persists the remote service's OAuth token.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	redis "github.com/go-redis/redis/v8"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Load when nothing has been saved yet.
var ErrNoToken = errors.New("no stored token")

// Store loads, saves and clears a single OAuth token.
type Store interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	Clear(ctx context.Context) error
}

// FileStore keeps the token as JSON in a file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (fs *FileStore) Load(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(fs.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	return decode(data)
}

func (fs *FileStore) Save(_ context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.Path), 0o755); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	tmp := fs.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return os.Rename(tmp, fs.Path)
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (fs *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(fs.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DefaultRedisKey is where RedisStore keeps the token.
const DefaultRedisKey = "strava_auth_token"

// RedisStore keeps the token as a JSON string under one Redis key.
type RedisStore struct {
	conn *redis.Client
	key  string
}

// NewRedisStore connects to addr, a redis:// URL, and pings it.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{conn: client, key: DefaultRedisKey}, nil
}

func (rs *RedisStore) Load(ctx context.Context) (*oauth2.Token, error) {
	value, err := rs.conn.Get(ctx, rs.key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && value == "") {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token from redis: %w", err)
	}
	return decode([]byte(value))
}

func (rs *RedisStore) Save(ctx context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	return rs.conn.Set(ctx, rs.key, string(data), 0).Err()
}

func (rs *RedisStore) Clear(ctx context.Context) error {
	return rs.conn.Del(ctx, rs.key).Err()
}

// Close releases the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.conn.Close()
}

func decode(data []byte) (*oauth2.Token, error) {
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("unmarshaling token: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return token, nil
}
