package device

import (
	"context"
	"strings"
	"time"
)

// 设备存储中的键
const (
	KeyDeviceWallets  = "device_wallets"
	KeyWalletSessions = "wallet_sessions"
)

// DefaultSessionRetention 会话日志保留时长
const DefaultSessionRetention = 24 * time.Hour

// Session 一次钱包连接记录
type Session struct {
	Wallet    string `json:"wallet"`
	Timestamp int64  `json:"timestamp"` // 毫秒
}

// Time 返回会话时间
func (s Session) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// NormalizeWallet 钱包地址比较统一使用小写
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// Tracker 记录设备上出现过的钱包和最近的会话。
// 存储失败只记日志，不会返回给调用方。
type Tracker struct {
	storage   Storage
	now       func() time.Time
	retention time.Duration
}

// TrackerOption Tracker 选项
type TrackerOption func(*Tracker)

// WithClock 注入时钟
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithRetention 设置会话日志保留时长
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// NewTracker 创建设备会话跟踪器，storage 应已按设备隔离
func NewTracker(storage Storage, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		storage:   storage,
		now:       time.Now,
		retention: DefaultSessionRetention,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordSession 记录一次钱包会话，并把钱包加入设备历史集合
func (t *Tracker) RecordSession(ctx context.Context, wallet string) {
	wallet = NormalizeWallet(wallet)
	if wallet == "" {
		return
	}

	wallets := t.DeviceWallets(ctx)
	if !Contains(wallets, wallet) {
		wallets = append(wallets, wallet)
		t.write(ctx, KeyDeviceWallets, wallets)
	}

	sessions := t.readSessions(ctx)
	sessions = append(sessions, Session{Wallet: wallet, Timestamp: t.now().UnixMilli()})
	t.write(ctx, KeyWalletSessions, sessions)
}

// DeviceWallets 返回设备上出现过的全部钱包
func (t *Tracker) DeviceWallets(ctx context.Context) []string {
	var wallets []string
	if !t.read(ctx, KeyDeviceWallets, &wallets) {
		return []string{}
	}
	return wallets
}

// RecentSessions 返回 window 内的会话
func (t *Tracker) RecentSessions(ctx context.Context, window time.Duration) []Session {
	cutoff := t.now().Add(-window).UnixMilli()
	recent := make([]Session, 0)
	for _, s := range t.readSessions(ctx) {
		if s.Timestamp > cutoff {
			recent = append(recent, s)
		}
	}
	return recent
}

// RecentWallets 返回 window 内出现过的钱包（去重）
func (t *Tracker) RecentWallets(ctx context.Context, window time.Duration) []string {
	wallets := make([]string, 0)
	for _, s := range t.RecentSessions(ctx, window) {
		if !Contains(wallets, s.Wallet) {
			wallets = append(wallets, s.Wallet)
		}
	}
	return wallets
}

// readSessions 读取会话日志，每次读取都裁剪掉超出保留期的记录
func (t *Tracker) readSessions(ctx context.Context) []Session {
	var sessions []Session
	if !t.read(ctx, KeyWalletSessions, &sessions) {
		return []Session{}
	}

	cutoff := t.now().Add(-t.retention).UnixMilli()
	kept := sessions[:0]
	for _, s := range sessions {
		if s.Timestamp > cutoff {
			kept = append(kept, s)
		}
	}
	if len(kept) != len(sessions) {
		t.write(ctx, KeyWalletSessions, kept)
	}
	return kept
}

func (t *Tracker) read(ctx context.Context, key string, v interface{}) bool {
	return ReadJSON(ctx, t.storage, key, v)
}

func (t *Tracker) write(ctx context.Context, key string, v interface{}) {
	WriteJSON(ctx, t.storage, key, v)
}

// Contains 判断钱包是否在列表中
func Contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
