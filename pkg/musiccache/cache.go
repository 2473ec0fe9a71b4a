package musiccache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	kvSep    = " => "
	kvFormat = "%s" + kvSep + "%s\n"
)

// ErrNotFound 缓存未命中
var ErrNotFound = errors.New("not found")

// Cache 媒体标题到解析结果的映射，追加写入一个文本文件
type Cache struct {
	path    string
	entries sync.Map
	fileMu  sync.Mutex
}

// DefaultPath ~/.cache/lyrics/music_cache.list
func DefaultPath(cacheDir string) string {
	return filepath.Join(cacheDir, "music_cache.list")
}

// Open 从文件加载缓存，文件不存在时创建
func Open(path string) (*Cache, error) {
	c := &Cache{path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), kvSep)
		if !ok || key == "" {
			continue
		}
		c.entries.Store(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}
	return c, nil
}

// Add 已存在的key不会覆盖
func (c *Cache) Add(key, value string) error {
	if strings.ContainsAny(key, "\n") || strings.ContainsAny(value, "\n") {
		return fmt.Errorf("cache entry must be single line")
	}
	if _, loaded := c.entries.LoadOrStore(key, value); loaded {
		return nil
	}

	c.fileMu.Lock()
	defer c.fileMu.Unlock()

	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, kvFormat, key, value)
	return err
}

// Get 查询缓存
func (c *Cache) Get(key string) (string, error) {
	v, ok := c.entries.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}
