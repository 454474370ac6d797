package handler

import (
	"errors"
	"net/http"

	"github.com/blues/fundgate/internal/chain"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/logic"
	"github.com/blues/fundgate/internal/pricing"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	ErrorDataResponse(c, statusCode, message, nil)
}

// ErrorDataResponse 带数据的错误响应，如反欺诈评估结果
func ErrorDataResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    data,
	})
}

// HandleError 把业务错误映射为 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	var ve *logic.ValidationError
	if errors.As(err, &ve) {
		ErrorDataResponse(c, http.StatusBadRequest, err.Error(), gin.H{"field": ve.Field})
		return
	}
	if pe, ok := chain.AsPaymentError(err); ok {
		status := http.StatusPaymentRequired
		if pe.Reconnect() {
			status = http.StatusConflict
		}
		ErrorDataResponse(c, status, pe.Message, gin.H{
			"code":      pe.Code,
			"expected":  pe.Expected,
			"actual":    pe.Actual,
			"reconnect": pe.Reconnect(),
		})
		return
	}

	ErrorResponse(c, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, logic.ErrValidation),
		errors.Is(err, pricing.ErrInvalidMonths),
		errors.Is(err, pricing.ErrUnknownCurrency),
		errors.Is(err, pricing.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, logic.ErrCampaignNotFound),
		errors.Is(err, logic.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrNotOwner),
		errors.Is(err, logic.ErrFraudRejected):
		return http.StatusForbidden
	case errors.Is(err, logic.ErrCampaignExpired):
		return http.StatusGone
	case errors.Is(err, logic.ErrActiveCampaignExists),
		errors.Is(err, logic.ErrDuplicateTx),
		errors.Is(err, logic.ErrTxAlreadyAttached),
		errors.Is(err, logic.ErrPaymentClosed),
		errors.Is(err, logic.ErrCampaignFunded),
		errors.Is(err, logic.ErrCampaignInactive):
		return http.StatusConflict
	}
	logger.Error("Unhandled error: %v", err)
	return http.StatusInternalServerError
}
