package payment

import (
	"context"

	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/model"
)

// CampaignCreator 上架费确认后创建活动
type CampaignCreator interface {
	CreateCampaign(ctx context.Context, payment *model.PaymentModel) (*model.CampaignModel, error)
}

// CampaignExtender 延期费确认后顺延活动，同一笔延期费只生效一次
type CampaignExtender interface {
	ExtendCampaign(ctx context.Context, payment *model.PaymentModel) (*model.CampaignModel, error)
}

// ContributionApplier 贡献确认后写入
type ContributionApplier interface {
	ApplyContribution(ctx context.Context, payment *model.PaymentModel) (*model.CampaignModel, error)
}

// CreateProcessor 上架费处理器
type CreateProcessor struct {
	creator CampaignCreator
}

// NewCreateProcessor 创建上架费处理器
func NewCreateProcessor(creator CampaignCreator) *CreateProcessor {
	return &CreateProcessor{creator: creator}
}

func (p *CreateProcessor) GetKind() model.PaymentKind {
	return model.PaymentKindCreate
}

func (p *CreateProcessor) Process(ctx context.Context, payment *model.PaymentModel) error {
	campaign, err := p.creator.CreateCampaign(ctx, payment)
	if err != nil {
		return err
	}
	payment.CampaignId = campaign.Id
	logger.Info("Processed listing payment %s, campaign %d created", payment.Id, campaign.Id)
	return nil
}

// ExtendProcessor 延期费处理器
type ExtendProcessor struct {
	extender CampaignExtender
}

// NewExtendProcessor 创建延期费处理器
func NewExtendProcessor(extender CampaignExtender) *ExtendProcessor {
	return &ExtendProcessor{extender: extender}
}

func (p *ExtendProcessor) GetKind() model.PaymentKind {
	return model.PaymentKindExtend
}

func (p *ExtendProcessor) Process(ctx context.Context, payment *model.PaymentModel) error {
	campaign, err := p.extender.ExtendCampaign(ctx, payment)
	if err != nil {
		return err
	}
	logger.Info("Processed extension payment %s, campaign %d runs until %s", payment.Id, campaign.Id, campaign.Deadline)
	return nil
}

// ContributeProcessor 贡献处理器
type ContributeProcessor struct {
	applier ContributionApplier
}

// NewContributeProcessor 创建贡献处理器
func NewContributeProcessor(applier ContributionApplier) *ContributeProcessor {
	return &ContributeProcessor{applier: applier}
}

func (p *ContributeProcessor) GetKind() model.PaymentKind {
	return model.PaymentKindContribute
}

func (p *ContributeProcessor) Process(ctx context.Context, payment *model.PaymentModel) error {
	_, err := p.applier.ApplyContribution(ctx, payment)
	return err
}
