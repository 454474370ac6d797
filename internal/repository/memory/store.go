package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blues/fundgate/internal/model"
	"github.com/blues/fundgate/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store 内存实现，单节点开发和测试使用。返回值都是副本。
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	nextCampaign  int64
	nextContrib   int64
	nextExtension int64
	campaigns     map[int64]*model.CampaignModel
	contributions []*model.ContributionModel
	extensions    []*model.ExtensionModel
	payments      map[string]*model.PaymentModel
}

var (
	_ repository.CampaignRepository = (*Store)(nil)
	_ repository.PaymentRepository  = (*Store)(nil)
)

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		now:       time.Now,
		campaigns: make(map[int64]*model.CampaignModel),
		payments:  make(map[string]*model.PaymentModel),
	}
}

// WithClock 设置写入时间戳使用的时钟
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) CreateCampaign(_ context.Context, campaign *model.CampaignModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCampaign++
	campaign.Id = s.nextCampaign
	campaign.CreatedAt = s.now()
	campaign.UpdatedAt = campaign.CreatedAt
	c := *campaign
	s.campaigns[c.Id] = &c
	return nil
}

func (s *Store) GetCampaign(_ context.Context, id int64) (*model.CampaignModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok || c.DeletedAt.Valid {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) SaveCampaign(_ context.Context, campaign *model.CampaignModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaign.Id]
	if !ok || c.DeletedAt.Valid {
		return repository.ErrNotFound
	}
	c.FundingGoal = campaign.FundingGoal
	c.Deadline = campaign.Deadline
	c.IsActive = campaign.IsActive
	c.Purpose = campaign.Purpose
	c.FundingWallet = campaign.FundingWallet
	c.RecomputeFunded()
	c.UpdatedAt = s.now()
	*campaign = *c
	return nil
}

func (s *Store) DeleteCampaign(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok || c.DeletedAt.Valid {
		return repository.ErrNotFound
	}
	c.DeletedAt = gorm.DeletedAt{Time: s.now(), Valid: true}
	return nil
}

func (s *Store) ListActiveCampaigns(_ context.Context, now time.Time, limit, offset int) ([]model.CampaignModel, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.CampaignModel
	for _, c := range s.campaigns {
		if !c.DeletedAt.Valid && c.IsActiveAt(now) {
			matched = append(matched, *c)
		}
	}
	sortNewestFirst(matched)

	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.CampaignModel{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *Store) ListCampaignsByOwner(_ context.Context, owner string) ([]model.CampaignModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaigns := make([]model.CampaignModel, 0)
	for _, c := range s.campaigns {
		if !c.DeletedAt.Valid && c.OwnerWallet == owner {
			campaigns = append(campaigns, *c)
		}
	}
	sortNewestFirst(campaigns)
	return campaigns, nil
}

func (s *Store) FindActiveByOwner(_ context.Context, owner string, now time.Time, excludeId int64) (*model.CampaignModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.campaigns {
		if c.Id != excludeId && !c.DeletedAt.Valid && c.OwnerWallet == owner && c.IsActiveAt(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ApplyContribution(_ context.Context, contribution *model.ContributionModel) (*model.CampaignModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.contributions {
		if existing.TxHash == contribution.TxHash {
			return nil, repository.ErrDuplicateTx
		}
	}
	c, ok := s.campaigns[contribution.CampaignId]
	if !ok || c.DeletedAt.Valid {
		return nil, repository.ErrNotFound
	}

	s.nextContrib++
	contribution.Id = s.nextContrib
	contribution.CreatedAt = s.now()
	rec := *contribution
	s.contributions = append(s.contributions, &rec)

	c.CurrentFunding = c.CurrentFunding.Add(contribution.Amount)
	c.ContributionCount++
	c.RecomputeFunded()
	c.UpdatedAt = s.now()

	cp := *c
	return &cp, nil
}

func (s *Store) ListContributions(_ context.Context, campaignId int64) ([]model.ContributionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contributions := make([]model.ContributionModel, 0)
	for i := len(s.contributions) - 1; i >= 0; i-- {
		if s.contributions[i].CampaignId == campaignId {
			contributions = append(contributions, *s.contributions[i])
		}
	}
	return contributions, nil
}

func (s *Store) GetContributionByTxHash(_ context.Context, txHash string) (*model.ContributionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contributions {
		if c.TxHash == txHash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ExtendCampaign(_ context.Context, extension *model.ExtensionModel, apply func(*model.CampaignModel)) (*model.CampaignModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.extensions {
		if existing.TxHash == extension.TxHash {
			return nil, repository.ErrDuplicateTx
		}
	}
	c, ok := s.campaigns[extension.CampaignId]
	if !ok || c.DeletedAt.Valid {
		return nil, repository.ErrNotFound
	}

	apply(c)
	c.UpdatedAt = s.now()

	s.nextExtension++
	extension.Id = s.nextExtension
	extension.CreatedAt = s.now()
	extension.Deadline = c.Deadline
	rec := *extension
	s.extensions = append(s.extensions, &rec)

	cp := *c
	return &cp, nil
}

func (s *Store) GetExtensionByTxHash(_ context.Context, txHash string) (*model.ExtensionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.extensions {
		if e.TxHash == txHash {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Stats(_ context.Context, now time.Time) (*repository.CampaignStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &repository.CampaignStats{
		TotalContributions: int64(len(s.contributions)),
		Raised:             make(map[string]decimal.Decimal),
	}
	for _, c := range s.campaigns {
		if c.DeletedAt.Valid {
			continue
		}
		stats.TotalCampaigns++
		switch {
		case c.IsFunded:
			stats.FundedCampaigns++
		case c.IsExpired(now):
			stats.ExpiredCampaigns++
		case c.IsActive:
			stats.ActiveCampaigns++
		}
		stats.Raised[c.Currency] = stats.Raised[c.Currency].Add(c.CurrentFunding)
	}
	return stats, nil
}

func (s *Store) CreatePayment(_ context.Context, payment *model.PaymentModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.TxHash != nil && s.hashTaken(*payment.TxHash, payment.Id) {
		return repository.ErrDuplicateTx
	}
	payment.CreatedAt = s.now()
	payment.UpdatedAt = payment.CreatedAt
	s.payments[payment.Id] = clonePayment(payment)
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*model.PaymentModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePayment(p), nil
}

func (s *Store) GetPaymentByTxHash(_ context.Context, txHash string) (*model.PaymentModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.TxHash != nil && *p.TxHash == txHash {
			return clonePayment(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) SavePayment(_ context.Context, payment *model.PaymentModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.TxHash != nil && s.hashTaken(*payment.TxHash, payment.Id) {
		return repository.ErrDuplicateTx
	}
	payment.UpdatedAt = s.now()
	s.payments[payment.Id] = clonePayment(payment)
	return nil
}

func (s *Store) ListPaymentsByWallet(_ context.Context, wallet string) ([]model.PaymentModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]model.PaymentModel, 0)
	for _, p := range s.payments {
		if p.Wallet == wallet {
			payments = append(payments, *clonePayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (s *Store) ListPendingPayments(_ context.Context, limit int) ([]model.PaymentModel, error) {
	return s.listPayments(limit, func(p *model.PaymentModel) bool {
		return p.Status == model.PaymentStatusPending
	})
}

func (s *Store) ListAwaitingPayments(_ context.Context, before time.Time, limit int) ([]model.PaymentModel, error) {
	return s.listPayments(limit, func(p *model.PaymentModel) bool {
		return p.Status == model.PaymentStatusAwaiting && p.CreatedAt.Before(before)
	})
}

func (s *Store) listPayments(limit int, match func(*model.PaymentModel) bool) ([]model.PaymentModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]model.PaymentModel, 0)
	for _, p := range s.payments {
		if match(p) {
			payments = append(payments, *clonePayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (s *Store) hashTaken(hash, id string) bool {
	for _, p := range s.payments {
		if p.Id != id && p.TxHash != nil && *p.TxHash == hash {
			return true
		}
	}
	return false
}

func clonePayment(p *model.PaymentModel) *model.PaymentModel {
	cp := *p
	if p.TxHash != nil {
		h := *p.TxHash
		cp.TxHash = &h
	}
	if p.Payload != nil {
		cp.Payload = append([]byte(nil), p.Payload...)
	}
	return &cp
}

func sortNewestFirst(campaigns []model.CampaignModel) {
	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].CreatedAt.Equal(campaigns[j].CreatedAt) {
			return campaigns[i].Id > campaigns[j].Id
		}
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
}
