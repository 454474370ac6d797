package fraud

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blues/fundgate/internal/device"
	"github.com/blues/fundgate/internal/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerA  = "0xAaAa000000000000000000000000000000000001"
	walletB = "0xbbbb000000000000000000000000000000000002"
	walletC = "0xcccc000000000000000000000000000000000003"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newDetector(storage device.Storage) (*Detector, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return NewDetector(storage, fingerprint.NewGenerator(), WithClock(clock.Now)), clock
}

func report(tz string) *fingerprint.ClientReport {
	return &fingerprint.ClientReport{
		ScreenWidth: 2560, ScreenHeight: 1440, ColorDepth: 30,
		TimezoneName: tz, LanguageTag: "de-DE", PlatformName: "Linux x86_64",
		Agent: "Mozilla/5.0 (X11; Linux x86_64)", CanvasData: "canvas-data",
		WebGLVendor: "Mesa", WebGLRender: "llvmpipe",
		FontList: []string{"Arial"}, PluginList: []string{},
	}
}

type brokenStorage struct{}

var errDisabled = errors.New("storage disabled")

func (brokenStorage) Get(context.Context, string) (string, error)    { return "", errDisabled }
func (brokenStorage) Set(context.Context, string, string) error      { return errDisabled }
func (brokenStorage) Delete(context.Context, string) error           { return errDisabled }
func (brokenStorage) Keys(context.Context, string) ([]string, error) { return nil, errDisabled }

func TestRiskLevel_MaxNeverRegresses(t *testing.T) {
	levels := []RiskLevel{RiskLow, RiskMedium, RiskHigh}
	for _, a := range levels {
		for _, b := range levels {
			m := a.Max(b)
			assert.GreaterOrEqual(t, m, a)
			assert.GreaterOrEqual(t, m, b)
		}
	}
	assert.Equal(t, RiskHigh, RiskHigh.Max(RiskLow))
}

func TestRiskLevel_JSON(t *testing.T) {
	data, err := RiskMedium.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"medium"`, string(data))

	var lvl RiskLevel
	require.NoError(t, lvl.UnmarshalJSON([]byte(`"high"`)))
	assert.Equal(t, RiskHigh, lvl)
	assert.Error(t, lvl.UnmarshalJSON([]byte(`"severe"`)))
}

func TestEvaluate_SelfContributionAlwaysRejected(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	for _, c := range []string{ownerA, strings.ToLower(ownerA), strings.ToUpper(ownerA), "  " + ownerA} {
		a := d.ForDevice("dev-1", nil).Evaluate(ctx, 1, c, ownerA)
		assert.False(t, a.IsAllowed)
		assert.Equal(t, RiskHigh, a.RiskLevel)
		assert.True(t, a.Checks.WalletMatch)
		assert.Contains(t, a.Reason, "self-contribution")
	}
}

func TestEvaluate_UnrelatedContributorAllowed(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()

	a := d.ForDevice("contributor-device", report("Europe/Paris")).Evaluate(ctx, 1, walletB, ownerA)
	assert.True(t, a.IsAllowed)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.Empty(t, a.Reason)
	assert.Equal(t, Checks{}, a.Checks)
}

func TestEvaluate_RecentWalletSwitching(t *testing.T) {
	d, clock := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("shared", nil)

	gate.RecordSession(ctx, walletB)
	clock.Advance(5 * time.Minute)
	gate.RecordSession(ctx, ownerA)
	clock.Advance(5 * time.Minute)

	a := gate.Evaluate(ctx, 1, walletB, ownerA)
	assert.False(t, a.IsAllowed)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.True(t, a.Checks.DeviceHistory)
	assert.Contains(t, a.Reason, "recent wallet switching")
}

func TestEvaluate_DeviceHistoryOutsideSessionWindow(t *testing.T) {
	d, clock := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("shared", nil)

	gate.RecordSession(ctx, ownerA)
	clock.Advance(48 * time.Hour)

	a := gate.Evaluate(ctx, 1, walletB, ownerA)
	assert.False(t, a.IsAllowed)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.Equal(t, ReasonSharedDevice, a.Reason)
}

func TestEvaluate_OwnerFingerprintMatch(t *testing.T) {
	storage := device.NewMemoryStorage()
	d, _ := newDetector(storage)
	ctx := context.Background()

	owner := d.ForDevice("dev-x", report("UTC"))
	owner.RecordCampaignOwner(ctx, 7, ownerA)
	owner.RecordOwnerFingerprint(ctx, 7)

	// 同一设备清除了钱包历史，但指纹不变
	require.NoError(t, storage.Delete(ctx, "device:dev-x:"+device.KeyDeviceWallets))
	require.NoError(t, storage.Delete(ctx, "device:dev-x:"+device.KeyWalletSessions))

	a := d.ForDevice("dev-x", report("UTC")).Evaluate(ctx, 7, walletB, ownerA)
	assert.False(t, a.IsAllowed)
	assert.True(t, a.Checks.FingerprintMatch)
	assert.Equal(t, ReasonSameDevice, a.Reason)
}

func TestEvaluate_GlobalFingerprintEscalatesToBlock(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()

	owner := d.ForDevice("dev-x", report("UTC"))
	owner.RecordCampaignOwner(ctx, 7, walletC)
	owner.RecordOwnerFingerprint(ctx, 7)

	// 另一个活动，只命中全局指纹
	a := d.ForDevice("dev-x", report("UTC")).Evaluate(ctx, 9, walletB, ownerA)
	assert.False(t, a.IsAllowed)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.True(t, a.Checks.FingerprintMatch)
	assert.Equal(t, ReasonMultipleIndicators, a.Reason)
}

func TestEvaluate_CrossCampaignOwnerEscalatesToBlock(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()

	gate := d.ForDevice("dev-y", nil)
	gate.RecordCampaignOwner(ctx, 3, walletB)

	a := gate.Evaluate(ctx, 4, walletB, ownerA)
	assert.False(t, a.IsAllowed)
	assert.True(t, a.Checks.DeviceHistory)
	assert.Equal(t, ReasonMultipleIndicators, a.Reason)

	// 同一个活动的记录不算跨活动
	other := d.ForDevice("dev-z", nil)
	other.RecordCampaignOwner(ctx, 4, walletB)
	a = other.Evaluate(ctx, 4, walletB, ownerA)
	assert.True(t, a.IsAllowed)
	assert.Equal(t, RiskLow, a.RiskLevel)
}

func TestEvaluate_TimingAloneIsAllowedMedium(t *testing.T) {
	d, clock := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-e", nil)

	first := gate.Evaluate(ctx, 1, walletB, ownerA)
	clock.Advance(10 * time.Second)
	second := gate.Evaluate(ctx, 2, walletB, walletC)
	clock.Advance(10 * time.Second)
	third := gate.Evaluate(ctx, 3, walletB, "0xdddd000000000000000000000000000000000004")

	assert.Equal(t, RiskLow, first.RiskLevel)
	assert.Equal(t, RiskLow, second.RiskLevel)
	assert.True(t, third.IsAllowed)
	assert.Equal(t, RiskMedium, third.RiskLevel)
	assert.True(t, third.Checks.TimingAnomaly)
	assert.Equal(t, ReasonRapidAttempts, third.Reason)

	clock.Advance(2 * time.Minute)
	fourth := gate.Evaluate(ctx, 4, walletB, ownerA)
	assert.Equal(t, RiskLow, fourth.RiskLevel)
}

func TestEvaluate_TimingWithOtherSignalBlocks(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-f", nil)
	gate.RecordCampaignOwner(ctx, 100, walletB)

	for i := 0; i < 3; i++ {
		gate.Evaluate(ctx, int64(i+1), walletB, ownerA)
	}
	a := gate.Evaluate(ctx, 5, walletB, ownerA)
	assert.False(t, a.IsAllowed)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.True(t, a.Checks.TimingAnomaly)
	assert.True(t, a.Checks.DeviceHistory)
}

func TestEvaluate_SideEffectsRecordedOnRejection(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-g", nil)

	gate.Evaluate(ctx, 1, ownerA, ownerA)
	assert.Contains(t, gate.Tracker().DeviceWallets(ctx), strings.ToLower(ownerA))
	assert.Len(t, gate.Attempts(ctx, ownerA), 1)
}

func TestPreview_NoSideEffects(t *testing.T) {
	d, clock := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-p", nil)

	for i := 0; i < 5; i++ {
		a := gate.Preview(ctx, 1, walletB, ownerA)
		assert.True(t, a.IsAllowed)
		assert.Equal(t, RiskLow, a.RiskLevel)
		clock.Advance(time.Second)
	}
	assert.Empty(t, gate.Attempts(ctx, walletB))
	assert.Empty(t, gate.Tracker().DeviceWallets(ctx))

	assert.Equal(t, RiskLow, gate.Evaluate(ctx, 1, walletB, ownerA).RiskLevel)
	assert.Len(t, gate.Attempts(ctx, walletB), 1)
}

func TestPreview_MatchesEvaluate(t *testing.T) {
	d, clock := newDetector(device.NewMemoryStorage())
	ctx := context.Background()

	// 创建者刚在这台设备上连接过，预检就应看到钱包切换
	shared := d.ForDevice("shared", nil)
	shared.RecordSession(ctx, ownerA)
	clock.Advance(time.Minute)
	preview := shared.Preview(ctx, 1, walletB, ownerA)
	assert.Equal(t, shared.Evaluate(ctx, 1, walletB, ownerA), preview)
	assert.False(t, preview.IsAllowed)
	assert.Equal(t, ReasonWalletSwitching, preview.Reason)

	// 预检把本次尝试计入频率窗口
	gate := d.ForDevice("dev-q", nil)
	gate.Evaluate(ctx, 1, walletB, ownerA)
	gate.Evaluate(ctx, 2, walletB, walletC)
	preview = gate.Preview(ctx, 3, walletB, ownerA)
	assert.True(t, preview.Checks.TimingAnomaly)
	assert.Equal(t, ReasonRapidAttempts, preview.Reason)
	assert.Len(t, gate.Attempts(ctx, walletB), 2)
	assert.Equal(t, gate.Evaluate(ctx, 3, walletB, ownerA), preview)
}

func TestEvaluate_AttemptHistoryBounded(t *testing.T) {
	d, clock := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-h", nil)

	for i := 0; i < 15; i++ {
		gate.Evaluate(ctx, int64(i), walletB, ownerA)
		clock.Advance(time.Hour)
	}
	attempts := gate.Attempts(ctx, walletB)
	require.Len(t, attempts, DefaultAttemptHistory)
	assert.Equal(t, int64(5), attempts[0].CampaignID)
}

func TestEvaluate_StorageFailureMeansNoSignal(t *testing.T) {
	d, _ := newDetector(brokenStorage{})
	ctx := context.Background()

	var a RiskAssessment
	assert.NotPanics(t, func() {
		a = d.ForDevice("dev-broken", report("UTC")).Evaluate(ctx, 1, walletB, ownerA)
	})
	assert.True(t, a.IsAllowed)
	assert.Equal(t, RiskLow, a.RiskLevel)

	a = d.ForDevice("dev-broken", nil).Evaluate(ctx, 1, ownerA, ownerA)
	assert.False(t, a.IsAllowed)
}

func TestRecordCampaignOwner_FirstWriteWins(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-i", report("UTC"))
	gate.RecordSession(ctx, ownerA)

	gate.RecordCampaignOwner(ctx, 1, ownerA)
	gate.RecordCampaignOwner(ctx, 1, walletB)
	gate.SetOwnerFingerprint(ctx, 1, "aaaaaaaaaaaaaaaa")
	gate.SetOwnerFingerprint(ctx, 1, "bbbbbbbbbbbbbbbb")

	rec := gate.OwnerRecords(ctx)[1]
	assert.Equal(t, strings.ToLower(ownerA), rec.Wallet)
	assert.Equal(t, "aaaaaaaaaaaaaaaa", rec.Fingerprint)
	assert.Equal(t, []string{strings.ToLower(ownerA)}, rec.DeviceWallets)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", gate.lastFingerprint(ctx))
}

func TestClearFraudData(t *testing.T) {
	d, _ := newDetector(device.NewMemoryStorage())
	ctx := context.Background()
	gate := d.ForDevice("dev-j", report("UTC"))

	gate.RecordCampaignOwner(ctx, 1, ownerA)
	gate.RecordOwnerFingerprint(ctx, 1)
	gate.Evaluate(ctx, 2, walletB, walletC)

	gate.ClearFraudData(ctx)
	assert.Empty(t, gate.OwnerRecords(ctx))
	assert.Empty(t, gate.Attempts(ctx, walletB))
	assert.Empty(t, gate.lastFingerprint(ctx))
	assert.NotEmpty(t, gate.Tracker().DeviceWallets(ctx))
}
