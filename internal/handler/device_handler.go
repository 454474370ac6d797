package handler

import (
	"net/http"

	"github.com/blues/fundgate/internal/logic"
	"github.com/gin-gonic/gin"
)

// DeviceHandler 设备会话接口
type DeviceHandler struct {
	contributionLogic *logic.ContributionLogic
}

// NewDeviceHandler 创建设备接口
func NewDeviceHandler(contributionLogic *logic.ContributionLogic) *DeviceHandler {
	return &DeviceHandler{contributionLogic: contributionLogic}
}

// RecordSession 钱包连接时调用
func (h *DeviceHandler) RecordSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	id := deviceID(c)
	if err := h.contributionLogic.RecordSession(c.Request.Context(), id, req.Wallet); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", gin.H{"device_id": id})
}

// ClearFraudData 清除当前设备的反欺诈记录
func (h *DeviceHandler) ClearFraudData(c *gin.Context) {
	h.contributionLogic.ClearFraudData(c.Request.Context(), deviceID(c))
	SuccessResponse(c, http.StatusOK, "ok", nil)
}
