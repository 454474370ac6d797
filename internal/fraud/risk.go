package fraud

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskLevel 风险等级，low < medium < high
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "low"
	}
}

// Max 风险只升不降
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other > r {
		return other
	}
	return r
}

// ParseRiskLevel 解析风险等级字符串
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	lvl, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}

// Checks 各项检测是否命中
type Checks struct {
	WalletMatch      bool `json:"wallet_match"`
	DeviceHistory    bool `json:"device_history"`
	FingerprintMatch bool `json:"fingerprint_match"`
	TimingAnomaly    bool `json:"timing_anomaly"`
}

// RiskAssessment 一次贡献尝试的评估结果
type RiskAssessment struct {
	IsAllowed bool      `json:"is_allowed"`
	RiskLevel RiskLevel `json:"risk_level"`
	Reason    string    `json:"reason,omitempty"`
	Checks    Checks    `json:"checks"`
}

func (a *RiskAssessment) escalate(level RiskLevel) {
	a.RiskLevel = a.RiskLevel.Max(level)
}

func (a *RiskAssessment) reject(reason string) {
	a.IsAllowed = false
	a.Reason = reason
	a.escalate(RiskHigh)
}
