package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/blues/fundgate/internal/pricing"
	"github.com/gin-gonic/gin"
)

// PricingHandler 上架/延期费报价
type PricingHandler struct {
	calc *pricing.Calculator
	now  func() time.Time
}

// NewPricingHandler 创建报价接口
func NewPricingHandler(calc *pricing.Calculator) *PricingHandler {
	return &PricingHandler{calc: calc, now: time.Now}
}

// GetQuote 按月数或目标月份（YYYY-MM）报价
func (h *PricingHandler) GetQuote(c *gin.Context) {
	currency, err := pricing.ParseCurrency(c.Query("currency"))
	if err != nil {
		HandleError(c, err)
		return
	}

	var months int
	if target := c.Query("until"); target != "" {
		months, err = pricing.MonthsUntil(target, h.now())
	} else {
		months, err = strconv.Atoi(c.DefaultQuery("months", "1"))
		if err != nil {
			err = pricing.ErrInvalidMonths
		}
	}
	if err != nil {
		HandleError(c, err)
		return
	}

	cost, err := h.calc.Quote(months, currency)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", pricing.Option{Months: months, Cost: cost, Currency: currency})
}

// GetBreakdown 1 到 12 个月的报价表
func (h *PricingHandler) GetBreakdown(c *gin.Context) {
	currency, err := pricing.ParseCurrency(c.Query("currency"))
	if err != nil {
		HandleError(c, err)
		return
	}
	options, err := h.calc.Breakdown(currency)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", options)
}
