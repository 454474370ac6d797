package handler

import (
	"errors"
	"net/http"

	"github.com/blues/fundgate/internal/logic"
	"github.com/gin-gonic/gin"
)

// ContributionHandler 贡献接口
type ContributionHandler struct {
	contributionLogic *logic.ContributionLogic
	campaignLogic     *logic.CampaignLogic
}

// NewContributionHandler 创建贡献接口
func NewContributionHandler(contributionLogic *logic.ContributionLogic, campaignLogic *logic.CampaignLogic) *ContributionHandler {
	return &ContributionHandler{
		contributionLogic: contributionLogic,
		campaignLogic:     campaignLogic,
	}
}

func (h *ContributionHandler) input(c *gin.Context) (logic.ContributeInput, bool) {
	id, ok := parseID(c)
	if !ok {
		return logic.ContributeInput{}, false
	}
	wallet, ok := requireWallet(c)
	if !ok {
		return logic.ContributeInput{}, false
	}
	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return logic.ContributeInput{}, false
	}
	return logic.ContributeInput{
		CampaignId:  id,
		Wallet:      wallet,
		Amount:      req.Amount,
		Message:     req.Message,
		IsAnonymous: req.IsAnonymous,
		DeviceId:    deviceID(c),
		Signal:      signalOf(req.Fingerprint),
	}, true
}

// CheckContribution 只做反欺诈检测，不创建支付
func (h *ContributionHandler) CheckContribution(c *gin.Context) {
	in, ok := h.input(c)
	if !ok {
		return
	}
	assessment, campaign, err := h.contributionLogic.CheckContribution(c.Request.Context(), in)
	if err != nil {
		HandleError(c, err)
		return
	}
	view := newCampaignResponse(campaign, h.campaignLogic.Now())
	SuccessResponse(c, http.StatusOK, assessment.Reason, ContributionIntentResponse{
		Assessment: assessment,
		Campaign:   &view,
	})
}

// Contribute 反欺诈通过后返回贡献的待支付标记，被拒绝时返回 403 和评估结果
func (h *ContributionHandler) Contribute(c *gin.Context) {
	in, ok := h.input(c)
	if !ok {
		return
	}
	payment, assessment, err := h.contributionLogic.PrepareContribution(c.Request.Context(), in)
	if errors.Is(err, logic.ErrFraudRejected) {
		ErrorDataResponse(c, http.StatusForbidden, assessment.Reason, ContributionIntentResponse{Assessment: assessment})
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "请完成链上支付", ContributionIntentResponse{
		Payment:    payment,
		Assessment: assessment,
	})
}
