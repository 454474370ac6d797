package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 活动时长范围（月）
const (
	MinMonths = 1
	MaxMonths = 12
)

// Currency 结算币种
type Currency string

const (
	CurrencyNative Currency = "native"
	CurrencyStable Currency = "stable"
)

var (
	ErrInvalidMonths   = errors.New("活动时长必须在1到12个月之间")
	ErrInvalidRate     = errors.New("每月单价必须大于0")
	ErrUnknownCurrency = errors.New("不支持的结算币种")
	ErrInvalidTarget   = errors.New("目标月份格式应为 YYYY-MM")
)

// ParseCurrency 解析币种，空值视为原生代币
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToLower(strings.TrimSpace(s))) {
	case CurrencyNative, "":
		return CurrencyNative, nil
	case CurrencyStable:
		return CurrencyStable, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, s)
}

// ValidateMonths 校验月数，超出范围直接报错，不做截断
func ValidateMonths(months int) error {
	if months < MinMonths || months > MaxMonths {
		return fmt.Errorf("%w: %d", ErrInvalidMonths, months)
	}
	return nil
}

// Cost 活动时长费用 = 每月单价 * 月数
func Cost(months int, basePerMonth decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateMonths(months); err != nil {
		return decimal.Zero, err
	}
	if !basePerMonth.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return basePerMonth.Mul(decimal.NewFromInt(int64(months))), nil
}

// Option 价目表中的一项
type Option struct {
	Months   int             `json:"months"`
	Cost     decimal.Decimal `json:"cost"`
	Currency Currency        `json:"currency"`
}

// Calculator 持有两种币种的每月单价
type Calculator struct {
	rates map[Currency]decimal.Decimal
}

// NewCalculator 创建计价器，单价来自配置
func NewCalculator(nativeRate, stableRate decimal.Decimal) (*Calculator, error) {
	if !nativeRate.IsPositive() || !stableRate.IsPositive() {
		return nil, ErrInvalidRate
	}
	return &Calculator{rates: map[Currency]decimal.Decimal{
		CurrencyNative: nativeRate,
		CurrencyStable: stableRate,
	}}, nil
}

// NewCalculatorFromStrings 从配置字符串创建计价器
func NewCalculatorFromStrings(nativeRate, stableRate string) (*Calculator, error) {
	n, err := decimal.NewFromString(nativeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid native rate %q: %w", nativeRate, err)
	}
	s, err := decimal.NewFromString(stableRate)
	if err != nil {
		return nil, fmt.Errorf("invalid stable rate %q: %w", stableRate, err)
	}
	return NewCalculator(n, s)
}

// Rate 返回币种的每月单价
func (c *Calculator) Rate(currency Currency) (decimal.Decimal, error) {
	rate, ok := c.rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return rate, nil
}

// Quote 计算某币种 months 个月的费用
func (c *Calculator) Quote(months int, currency Currency) (decimal.Decimal, error) {
	rate, err := c.Rate(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return Cost(months, rate)
}

// Breakdown 返回 1 到 12 个月的价目表
func (c *Calculator) Breakdown(currency Currency) ([]Option, error) {
	rate, err := c.Rate(currency)
	if err != nil {
		return nil, err
	}
	options := make([]Option, 0, MaxMonths)
	for m := MinMonths; m <= MaxMonths; m++ {
		cost, _ := Cost(m, rate)
		options = append(options, Option{Months: m, Cost: cost, Currency: currency})
	}
	return options, nil
}

// MonthsUntil 计算从 now 所在月到目标月 (YYYY-MM) 的月数，当月计为 1，最少 1
func MonthsUntil(target string, now time.Time) (int, error) {
	parts := strings.Split(strings.TrimSpace(target), "-")
	if len(parts) != 2 {
		return 0, ErrInvalidTarget
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ErrInvalidTarget
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, ErrInvalidTarget
	}

	months := (year-now.Year())*12 + (month - int(now.Month())) + 1
	if months < 1 {
		months = 1
	}
	return months, nil
}
