package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/blues/fundgate/internal/fingerprint"
	"github.com/gin-gonic/gin"
)

// parseID 解析路径中的活动 ID，失败时直接写 400
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的活动ID")
		return 0, false
	}
	return id, true
}

// callerWallet 调用方钱包
func callerWallet(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderWallet))
}

// requireWallet 缺少钱包头时写 401
func requireWallet(c *gin.Context) (string, bool) {
	wallet := callerWallet(c)
	if wallet == "" {
		ErrorResponse(c, http.StatusUnauthorized, "缺少钱包地址")
		return "", false
	}
	return wallet, true
}

// deviceID 由设备中间件写入
func deviceID(c *gin.Context) string {
	if id := c.GetString(ContextDeviceKey); id != "" {
		return id
	}
	return strings.TrimSpace(c.GetHeader(HeaderDevice))
}

// signalOf 没有上报指纹时返回 nil，跳过指纹检测
func signalOf(report *fingerprint.ClientReport) fingerprint.Signal {
	if report == nil {
		return nil
	}
	return report
}
