package login

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"lyricdesk/pkg/fileutil"
)

// FileStore 凭据保存在本地文件，权限 0600
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load 文件不存在时返回空字符串
func (f *FileStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileStore) Save(ctx context.Context, credential string) error {
	return fileutil.WriteFileAtomic(f.path, []byte(credential), 0600)
}

func (f *FileStore) Clear(ctx context.Context) error {
	return fileutil.RemoveIfExists(f.path)
}

// KV RedisStore 需要的最小接口，由 pkg/redis.Client 实现
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

// RedisStore 凭据保存在 Redis，多台机器共享登录状态
type RedisStore struct {
	kv  KV
	key string
}

func NewRedisStore(kv KV, key string) *RedisStore {
	return &RedisStore{kv: kv, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (string, error) {
	v, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return v, nil
}

func (r *RedisStore) Save(ctx context.Context, credential string) error {
	if err := r.kv.Set(ctx, r.key, credential); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if _, err := r.kv.Del(ctx, r.key); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}
