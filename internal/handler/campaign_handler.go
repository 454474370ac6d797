package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/fundgate/internal/logic"
	"github.com/gin-gonic/gin"
)

// CampaignHandler 活动接口
type CampaignHandler struct {
	campaignLogic     *logic.CampaignLogic
	contributionLogic *logic.ContributionLogic
}

// NewCampaignHandler 创建活动接口
func NewCampaignHandler(campaignLogic *logic.CampaignLogic, contributionLogic *logic.ContributionLogic) *CampaignHandler {
	return &CampaignHandler{
		campaignLogic:     campaignLogic,
		contributionLogic: contributionLogic,
	}
}

// CreateCampaign 创建活动：返回上架费报价和待支付标记，链上确认后活动才会出现
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	owner, ok := requireWallet(c)
	if !ok {
		return
	}
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	fundingWallet := req.FundingWallet
	if fundingWallet == "" {
		fundingWallet = owner
	}

	payment, quote, err := h.campaignLogic.PrepareCreation(c.Request.Context(), logic.CreateCampaignInput{
		OwnerWallet:   owner,
		ProjectId:     req.ProjectId,
		FundingWallet: fundingWallet,
		FundingGoal:   req.FundingGoal,
		Purpose:       req.Purpose,
		Months:        req.Months,
		Currency:      req.Currency,
		DeviceId:      deviceID(c),
		Signal:        signalOf(req.Fingerprint),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "请支付上架费", PaymentIntentResponse{Payment: payment, Quote: quote})
}

// GetCampaigns 获取进行中的活动，带 owner 参数时返回该钱包的全部活动
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.campaignLogic.Now()

	if owner := c.Query("owner"); owner != "" {
		campaigns, err := h.campaignLogic.ListCampaignsByOwner(ctx, owner)
		if err != nil {
			HandleError(c, err)
			return
		}
		SuccessResponse(c, http.StatusOK, "ok", CampaignListResponse{Campaigns: newCampaignResponses(campaigns, now)})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	campaigns, total, err := h.campaignLogic.ListActiveCampaigns(ctx, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", CampaignListResponse{
		Campaigns: newCampaignResponses(campaigns, now),
		Pagination: &Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

// GetCampaign 获取活动详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	campaign, err := h.campaignLogic.GetCampaign(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newCampaignResponse(campaign, h.campaignLogic.Now()))
}

// UpdateCampaign 创建者暂停/恢复活动或修改目标
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	campaign, err := h.campaignLogic.UpdateCampaign(c.Request.Context(), id, wallet, logic.UpdateCampaignInput{
		IsActive:    req.IsActive,
		FundingGoal: req.FundingGoal,
		Purpose:     req.Purpose,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动已更新", newCampaignResponse(campaign, h.campaignLogic.Now()))
}

// DeleteCampaign 创建者删除活动
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	if err := h.campaignLogic.DeleteCampaign(c.Request.Context(), id, wallet); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动已删除", nil)
}

// ExtendCampaign 延期：返回延期费报价和待支付标记
func (h *CampaignHandler) ExtendCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	wallet, ok := requireWallet(c)
	if !ok {
		return
	}
	var req ExtendCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	payment, quote, err := h.campaignLogic.PrepareExtension(c.Request.Context(), logic.ExtendCampaignInput{
		CampaignId: id,
		Wallet:     wallet,
		Months:     req.Months,
		Currency:   req.Currency,
		DeviceId:   deviceID(c),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "请支付延期费", PaymentIntentResponse{Payment: payment, Quote: quote})
}

// GetContributions 活动的贡献列表
func (h *CampaignHandler) GetContributions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	contributions, err := h.contributionLogic.ListContributions(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", contributions)
}

// GetContributors 按贡献者汇总
func (h *CampaignHandler) GetContributors(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	summaries, err := h.contributionLogic.ContributorSummaries(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", summaries)
}

// GetStats 活动汇总
func (h *CampaignHandler) GetStats(c *gin.Context) {
	stats, err := h.campaignLogic.GetStats(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", stats)
}
