package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blues/fundgate/internal/logger"
)

// Length 指纹长度（十六进制字符）
const Length = 16

const (
	maxUserAgent = 100
	maxCanvas    = 50
	maxWebGL     = 50
	maxPlugins   = 10
)

// ProbeError 单个探针失败
type ProbeError struct {
	Probe string
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("fingerprint probe %s unavailable", e.Probe)
}

func errProbe(name string) error { return &ProbeError{Probe: name} }

// features 参与哈希的特征向量，字段顺序固定
type features struct {
	Screen    string   `json:"screen"`
	Timezone  string   `json:"timezone"`
	Language  string   `json:"language"`
	Platform  string   `json:"platform"`
	UserAgent string   `json:"userAgent"`
	Canvas    string   `json:"canvas"`
	WebGL     string   `json:"webgl"`
	Fonts     []string `json:"fonts"`
	Plugins   []string `json:"plugins"`
}

// DigestFunc 强哈希函数，返回十六进制摘要
type DigestFunc func(data []byte) (string, error)

// Generator 设备指纹生成器。
// 指纹只是概率性的设备标识，不同设备可能碰撞，同一设备也可能漂移。
type Generator struct {
	digest DigestFunc
}

// Option 生成器选项
type Option func(*Generator)

// WithDigest 替换强哈希函数
func WithDigest(fn DigestFunc) Option {
	return func(g *Generator) { g.digest = fn }
}

// NewGenerator 创建指纹生成器，默认使用 SHA-256
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{digest: sha256Hex}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 计算指纹，任何探针失败都不会中断生成
func (g *Generator) Generate(s Signal) string {
	f := collect(s)
	data, err := json.Marshal(f)
	if err != nil {
		// features 只含字符串，不会走到这里
		data = []byte(fmt.Sprintf("%v", f))
	}

	if g.digest != nil {
		sum, err := g.digest(data)
		if err == nil && len(sum) >= Length {
			return sum[:Length]
		}
		logger.Warn("Fingerprint digest unavailable, falling back to rolling hash: %v", err)
	}
	return rollingHash(data)
}

func collect(s Signal) features {
	f := features{
		Screen:    probe(s.Screen, SentinelUnknown),
		Timezone:  probe(s.Timezone, SentinelUnknown),
		Language:  probe(s.Language, SentinelUnknown),
		Platform:  probe(s.Platform, SentinelUnknown),
		UserAgent: truncate(probe(s.UserAgent, SentinelUnknown), maxUserAgent),
		Canvas:    tail(probe(s.Canvas, SentinelCanvas), maxCanvas),
		WebGL:     truncate(probe(s.WebGL, SentinelWebGL), maxWebGL),
		Fonts:     probeList(s.Fonts),
		Plugins:   probeList(s.Plugins),
	}
	if len(f.Plugins) > maxPlugins {
		f.Plugins = f.Plugins[:maxPlugins]
	}
	return f
}

func probe(fn func() (string, error), sentinel string) (v string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Fingerprint probe panicked: %v", r)
			v = sentinel
		}
	}()
	v, err := fn()
	if err != nil {
		logger.Debug("Fingerprint probe failed: %v", err)
		return sentinel
	}
	return v
}

func probeList(fn func() ([]string, error)) (v []string) {
	defer func() {
		if r := recover(); r != nil {
			v = []string{}
		}
	}()
	v, err := fn()
	if err != nil || v == nil {
		return []string{}
	}
	return v
}

func sha256Hex(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// rollingHash 32 位滚动哈希 h = h*31 + c
func rollingHash(data []byte) string {
	var h int32
	for _, r := range string(data) {
		h = (h << 5) - h + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return fmt.Sprintf("%016x", v)
}

func formatScreen(w, h, depth int) string {
	return fmt.Sprintf("%dx%dx%d", w, h, depth)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
