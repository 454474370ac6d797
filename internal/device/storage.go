package device

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/blues/fundgate/internal/logger"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("device storage: key not found")

// Storage 设备级键值存储，语义等同浏览器 localStorage
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys 返回以 prefix 开头的全部键
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryStorage 内存实现，单节点和测试使用
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// namespaced 为某个设备加上键前缀
type namespaced struct {
	base   Storage
	prefix string
}

// Namespace 返回只读写 deviceID 名下键的存储
func Namespace(base Storage, deviceID string) Storage {
	return &namespaced{base: base, prefix: "device:" + deviceID + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.base.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.base.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.base.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, n.prefix)
	}
	return keys, nil
}

// ReadJSON 读取并解码一个键。键不存在、存储失败或内容损坏都返回 false，错误只记日志。
func ReadJSON(ctx context.Context, s Storage, key string, v interface{}) bool {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("Device storage read %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		logger.Warn("Device storage value %s is corrupt: %v", key, err)
		return false
	}
	return true
}

// WriteJSON 编码并写入一个键，失败只记日志
func WriteJSON(ctx context.Context, s Storage, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Failed to encode %s: %v", key, err)
		return
	}
	if err := s.Set(ctx, key, string(raw)); err != nil {
		logger.Warn("Device storage write %s failed: %v", key, err)
	}
}
