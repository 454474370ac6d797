package fraud

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/blues/fundgate/internal/device"
	"github.com/blues/fundgate/internal/fingerprint"
	"github.com/blues/fundgate/internal/logger"
)

// 设备存储中的反欺诈键
const (
	KeyCampaignOwners  = "campaign_owners"
	KeyLastFingerprint = "last_fingerprint"
	KeyAttemptsPrefix  = "contribution_attempts:"
)

// 拒绝原因
const (
	ReasonSelfContribution   = "Cannot contribute to your own campaign (self-contribution)"
	ReasonSharedDevice       = "Suspicious activity detected: campaign owner wallet has been used on this device"
	ReasonWalletSwitching    = "Suspicious activity detected: recent wallet switching on this device"
	ReasonSameDevice         = "Suspicious activity detected: same device as campaign owner"
	ReasonMultipleIndicators = "Multiple fraud indicators detected. Please contact support if this is an error."
	ReasonRapidAttempts      = "Unusually frequent contribution attempts from this wallet"
)

// 默认检测参数
const (
	DefaultSessionWindow   = 30 * time.Minute
	DefaultTimingWindow    = time.Minute
	DefaultTimingThreshold = 2
	DefaultAttemptHistory  = 10
)

// OwnerRecord 活动创建者记录
type OwnerRecord struct {
	Wallet         string   `json:"wallet"`
	Timestamp      int64    `json:"timestamp"`
	Fingerprint    string   `json:"fingerprint,omitempty"`
	DeviceWallets  []string `json:"device_wallets"`
	SessionWallets []string `json:"session_wallets"`
}

// Attempt 一次贡献尝试
type Attempt struct {
	CampaignID int64 `json:"campaign_id"`
	Timestamp  int64 `json:"timestamp"`
}

// Detector 反欺诈检测器，按设备派生 Gate
type Detector struct {
	storage         device.Storage
	generator       *fingerprint.Generator
	now             func() time.Time
	sessionWindow   time.Duration
	retention       time.Duration
	timingWindow    time.Duration
	timingThreshold int
	attemptHistory  int
}

// Option Detector 选项
type Option func(*Detector)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithSessionWindow 最近会话窗口
func WithSessionWindow(window time.Duration) Option {
	return func(d *Detector) {
		if window > 0 {
			d.sessionWindow = window
		}
	}
}

// WithSessionRetention 会话日志保留时长
func WithSessionRetention(retention time.Duration) Option {
	return func(d *Detector) {
		if retention > 0 {
			d.retention = retention
		}
	}
}

// WithTimingRule 频率检测：window 内尝试次数超过 threshold 视为异常
func WithTimingRule(window time.Duration, threshold int) Option {
	return func(d *Detector) {
		if window > 0 {
			d.timingWindow = window
		}
		if threshold > 0 {
			d.timingThreshold = threshold
		}
	}
}

// WithAttemptHistory 每个钱包保留的尝试记录条数
func WithAttemptHistory(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.attemptHistory = n
		}
	}
}

// NewDetector 创建检测器。generator 为空时使用默认生成器。
func NewDetector(storage device.Storage, generator *fingerprint.Generator, opts ...Option) *Detector {
	if generator == nil {
		generator = fingerprint.NewGenerator()
	}
	d := &Detector{
		storage:         storage,
		generator:       generator,
		now:             time.Now,
		sessionWindow:   DefaultSessionWindow,
		retention:       device.DefaultSessionRetention,
		timingWindow:    DefaultTimingWindow,
		timingThreshold: DefaultTimingThreshold,
		attemptHistory:  DefaultAttemptHistory,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fingerprint 计算设备指纹，signal 为空时返回空串
func (d *Detector) Fingerprint(signal fingerprint.Signal) string {
	if signal == nil {
		return ""
	}
	return d.generator.Generate(signal)
}

// ForDevice 返回某个设备的检测门。signal 可以为空，此时跳过指纹检测。
func (d *Detector) ForDevice(deviceID string, signal fingerprint.Signal) *Gate {
	store := device.Namespace(d.storage, deviceID)
	return &Gate{
		detector: d,
		deviceID: deviceID,
		store:    store,
		tracker:  device.NewTracker(store, device.WithClock(d.now), device.WithRetention(d.retention)),
		signal:   signal,
	}
}

// Gate 单个设备上的贡献检测门
type Gate struct {
	detector *Detector
	deviceID string
	store    device.Storage
	tracker  *device.Tracker
	signal   fingerprint.Signal
}

// DeviceID 设备标识
func (g *Gate) DeviceID() string {
	return g.deviceID
}

// Tracker 设备会话跟踪器
func (g *Gate) Tracker() *device.Tracker {
	return g.tracker
}

// RecordSession 记录钱包连接
func (g *Gate) RecordSession(ctx context.Context, wallet string) {
	g.tracker.RecordSession(ctx, wallet)
}

// Fingerprint 当前设备指纹
func (g *Gate) Fingerprint() string {
	return g.detector.Fingerprint(g.signal)
}

// Evaluate 判断 contributor 能否向 owner 的活动贡献。
// 无论结果如何都会先记录贡献者会话和本次尝试，再执行各项检测。不会返回错误。
func (g *Gate) Evaluate(ctx context.Context, campaignID int64, contributorWallet, ownerWallet string) RiskAssessment {
	contributor := device.NormalizeWallet(contributorWallet)
	owner := device.NormalizeWallet(ownerWallet)
	now := g.detector.now()

	g.tracker.RecordSession(ctx, contributor)
	attempts := g.recordAttempt(ctx, campaignID, contributor, now)

	result := g.assess(ctx, campaignID, contributor, owner, signals{
		deviceWallets: g.tracker.DeviceWallets(ctx),
		recentWallets: g.tracker.RecentWallets(ctx, g.detector.sessionWindow),
		attempts:      attempts,
		now:           now,
	})
	if !result.IsAllowed {
		logger.Warn("Contribution blocked: campaign=%d contributor=%s device=%s risk=%s reason=%s",
			campaignID, contributor, g.deviceID, result.RiskLevel, result.Reason)
	}
	return result
}

// Preview 给出与 Evaluate 相同的判定，但不写入会话和尝试记录。
// 贡献者按本次已连接、本次尝试已发生计算。
func (g *Gate) Preview(ctx context.Context, campaignID int64, contributorWallet, ownerWallet string) RiskAssessment {
	contributor := device.NormalizeWallet(contributorWallet)
	owner := device.NormalizeWallet(ownerWallet)
	now := g.detector.now()

	return g.assess(ctx, campaignID, contributor, owner, signals{
		deviceWallets: withWallet(g.tracker.DeviceWallets(ctx), contributor),
		recentWallets: withWallet(g.tracker.RecentWallets(ctx, g.detector.sessionWindow), contributor),
		attempts:      g.appendAttempt(g.Attempts(ctx, contributor), campaignID, now),
		now:           now,
	})
}

type signals struct {
	deviceWallets []string
	recentWallets []string
	attempts      []Attempt
	now           time.Time
}

func (g *Gate) assess(ctx context.Context, campaignID int64, contributor, owner string, in signals) RiskAssessment {
	result := RiskAssessment{IsAllowed: true, RiskLevel: RiskLow}

	if contributor == owner {
		result.Checks.WalletMatch = true
		result.reject(ReasonSelfContribution)
		return result
	}

	if device.Contains(in.deviceWallets, owner) && device.Contains(in.deviceWallets, contributor) {
		result.Checks.DeviceHistory = true
		result.reject(ReasonSharedDevice)
	}

	if device.Contains(in.recentWallets, owner) && device.Contains(in.recentWallets, contributor) {
		result.Checks.DeviceHistory = true
		result.reject(ReasonWalletSwitching)
	}

	owners := g.owners(ctx)
	if current := g.Fingerprint(); current != "" {
		if rec, ok := owners[campaignKey(campaignID)]; ok && rec.Fingerprint == current {
			result.Checks.FingerprintMatch = true
			result.reject(ReasonSameDevice)
		} else if last := g.lastFingerprint(ctx); last == current {
			result.Checks.FingerprintMatch = true
			result.escalate(RiskMedium)
		}
	}

	for id, rec := range owners {
		if id != campaignKey(campaignID) && device.NormalizeWallet(rec.Wallet) == contributor {
			result.Checks.DeviceHistory = true
			result.escalate(RiskMedium)
			break
		}
	}

	if countSince(in.attempts, in.now.Add(-g.detector.timingWindow)) > g.detector.timingThreshold {
		result.Checks.TimingAnomaly = true
		result.escalate(RiskMedium)
	}

	if result.RiskLevel == RiskMedium {
		if result.Checks.FingerprintMatch || result.Checks.DeviceHistory {
			result.reject(ReasonMultipleIndicators)
		} else if result.Checks.TimingAnomaly {
			result.Reason = ReasonRapidAttempts
		}
	}
	return result
}

// RecordCampaignOwner 记录活动创建者，已有记录时不覆盖
func (g *Gate) RecordCampaignOwner(ctx context.Context, campaignID int64, wallet string) {
	owners := g.owners(ctx)
	key := campaignKey(campaignID)
	if _, ok := owners[key]; ok {
		return
	}
	owners[key] = OwnerRecord{
		Wallet:         device.NormalizeWallet(wallet),
		Timestamp:      g.detector.now().UnixMilli(),
		DeviceWallets:  g.tracker.DeviceWallets(ctx),
		SessionWallets: g.tracker.RecentWallets(ctx, g.detector.sessionWindow),
	}
	device.WriteJSON(ctx, g.store, KeyCampaignOwners, owners)
}

// RecordOwnerFingerprint 用当前设备指纹补全创建者记录
func (g *Gate) RecordOwnerFingerprint(ctx context.Context, campaignID int64) {
	g.SetOwnerFingerprint(ctx, campaignID, g.Fingerprint())
}

// SetOwnerFingerprint 写入创建者指纹（只写一次），同时更新全局最近指纹
func (g *Gate) SetOwnerFingerprint(ctx context.Context, campaignID int64, fp string) {
	if fp == "" {
		return
	}
	owners := g.owners(ctx)
	key := campaignKey(campaignID)
	if rec, ok := owners[key]; ok && rec.Fingerprint == "" {
		rec.Fingerprint = fp
		owners[key] = rec
		device.WriteJSON(ctx, g.store, KeyCampaignOwners, owners)
	}
	device.WriteJSON(ctx, g.store, KeyLastFingerprint, fp)
}

// OwnerRecords 返回设备上的创建者记录
func (g *Gate) OwnerRecords(ctx context.Context) map[int64]OwnerRecord {
	records := make(map[int64]OwnerRecord)
	for k, rec := range g.owners(ctx) {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		records[id] = rec
	}
	return records
}

// Attempts 返回钱包的贡献尝试记录
func (g *Gate) Attempts(ctx context.Context, wallet string) []Attempt {
	var attempts []Attempt
	if !device.ReadJSON(ctx, g.store, attemptKey(wallet), &attempts) {
		return []Attempt{}
	}
	return attempts
}

// ClearFraudData 清除创建者记录、指纹和尝试记录，设备会话不受影响
func (g *Gate) ClearFraudData(ctx context.Context) {
	keys := []string{KeyCampaignOwners, KeyLastFingerprint}
	attemptKeys, err := g.store.Keys(ctx, KeyAttemptsPrefix)
	if err != nil {
		logger.Warn("Failed to list attempt history for device %s: %v", g.deviceID, err)
	}
	keys = append(keys, attemptKeys...)

	for _, key := range keys {
		if err := g.store.Delete(ctx, key); err != nil {
			logger.Warn("Failed to clear %s for device %s: %v", key, g.deviceID, err)
		}
	}
}

func (g *Gate) recordAttempt(ctx context.Context, campaignID int64, wallet string, now time.Time) []Attempt {
	attempts := g.appendAttempt(g.Attempts(ctx, wallet), campaignID, now)
	device.WriteJSON(ctx, g.store, attemptKey(wallet), attempts)
	return attempts
}

func (g *Gate) appendAttempt(attempts []Attempt, campaignID int64, now time.Time) []Attempt {
	attempts = append(attempts, Attempt{CampaignID: campaignID, Timestamp: now.UnixMilli()})
	if n := g.detector.attemptHistory; len(attempts) > n {
		attempts = attempts[len(attempts)-n:]
	}
	return attempts
}

func withWallet(wallets []string, wallet string) []string {
	if device.Contains(wallets, wallet) {
		return wallets
	}
	return append(wallets, wallet)
}

func (g *Gate) owners(ctx context.Context) map[string]OwnerRecord {
	owners := make(map[string]OwnerRecord)
	if !device.ReadJSON(ctx, g.store, KeyCampaignOwners, &owners) || owners == nil {
		return make(map[string]OwnerRecord)
	}
	return owners
}

func (g *Gate) lastFingerprint(ctx context.Context) string {
	var fp string
	device.ReadJSON(ctx, g.store, KeyLastFingerprint, &fp)
	return fp
}

func countSince(attempts []Attempt, cutoff time.Time) int {
	n := 0
	for _, a := range attempts {
		if a.Timestamp > cutoff.UnixMilli() {
			n++
		}
	}
	return n
}

func campaignKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func attemptKey(wallet string) string {
	return KeyAttemptsPrefix + strings.ToLower(strings.TrimSpace(wallet))
}
