package handler

import (
	"errors"
	"net/http"

	"github.com/blues/fundgate/internal/logic"
	"github.com/gin-gonic/gin"
)

// PaymentHandler 待确认支付接口
type PaymentHandler struct {
	paymentLogic *logic.PaymentLogic
}

// NewPaymentHandler 创建支付接口
func NewPaymentHandler(paymentLogic *logic.PaymentLogic) *PaymentHandler {
	return &PaymentHandler{paymentLogic: paymentLogic}
}

// AttachTransaction 绑定交易哈希，重复提交同一哈希返回原记录
func (h *PaymentHandler) AttachTransaction(c *gin.Context) {
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	var req AttachTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.paymentLogic.AttachTransaction(c.Request.Context(), c.Param("id"), wallet, req.TxHash)
	if errors.Is(err, logic.ErrPaymentClosed) {
		ErrorDataResponse(c, http.StatusConflict, err.Error(), payment)
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "交易已提交，等待确认", payment)
}

// GetPayment 查询支付状态，前端刷新后用它恢复等待
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentLogic.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", payment)
}

// GetPayments 钱包的支付记录
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet == "" {
		wallet = callerWallet(c)
	}
	payments, err := h.paymentLogic.ListPayments(c.Request.Context(), wallet)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", payments)
}
