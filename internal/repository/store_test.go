package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blues/fundgate/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCampaign(owner string, deadline time.Time) *model.CampaignModel {
	return &model.CampaignModel{
		ProjectId:      "project-1",
		OwnerWallet:    owner,
		FundingWallet:  owner,
		Purpose:        "audit",
		FundingGoal:    decimal.NewFromInt(100),
		CurrentFunding: decimal.Zero,
		Currency:       "native",
		Deadline:       deadline,
		IsActive:       true,
	}
}

func TestStore_Postgres(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	campaign := newCampaign("0xowner", now.Add(30*24*time.Hour))
	require.NoError(t, store.CreateCampaign(ctx, campaign))
	require.NotZero(t, campaign.Id)

	t.Run("active lookup", func(t *testing.T) {
		found, err := store.FindActiveByOwner(ctx, "0xowner", now, 0)
		require.NoError(t, err)
		assert.Equal(t, campaign.Id, found.Id)

		_, err = store.FindActiveByOwner(ctx, "0xowner", now, campaign.Id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("apply contribution", func(t *testing.T) {
		updated, err := store.ApplyContribution(ctx, &model.ContributionModel{
			CampaignId:        campaign.Id,
			ContributorWallet: "0xb",
			Amount:            decimal.NewFromInt(40),
			TxHash:            "0xtx-1",
			RiskLevel:         "low",
		})
		require.NoError(t, err)
		assert.True(t, updated.CurrentFunding.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, int64(1), updated.ContributionCount)
		assert.False(t, updated.IsFunded)

		_, err = store.ApplyContribution(ctx, &model.ContributionModel{
			CampaignId: campaign.Id, ContributorWallet: "0xb",
			Amount: decimal.NewFromInt(40), TxHash: "0xtx-1",
		})
		assert.ErrorIs(t, err, ErrDuplicateTx)

		reloaded, err := store.GetCampaign(ctx, campaign.Id)
		require.NoError(t, err)
		assert.True(t, reloaded.CurrentFunding.Equal(decimal.NewFromInt(40)))
	})

	t.Run("concurrent increments", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.ApplyContribution(ctx, &model.ContributionModel{
					CampaignId:        campaign.Id,
					ContributorWallet: "0xc",
					Amount:            decimal.NewFromInt(6),
					TxHash:            fmt.Sprintf("0xtx-c-%d", i),
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		reloaded, err := store.GetCampaign(ctx, campaign.Id)
		require.NoError(t, err)
		assert.True(t, reloaded.CurrentFunding.Equal(decimal.NewFromInt(100)), reloaded.CurrentFunding.String())
		assert.True(t, reloaded.IsFunded)
		assert.Equal(t, int64(11), reloaded.ContributionCount)
	})

	t.Run("save keeps funded state", func(t *testing.T) {
		stale := *campaign
		stale.Purpose = "audit v2"
		require.NoError(t, store.SaveCampaign(ctx, &stale))
		assert.True(t, stale.IsFunded)
		assert.True(t, stale.CurrentFunding.Equal(decimal.NewFromInt(100)))

		reloaded, err := store.GetCampaign(ctx, campaign.Id)
		require.NoError(t, err)
		assert.True(t, reloaded.IsFunded)
		assert.Equal(t, "audit v2", reloaded.Purpose)

		// 调高目标后按已筹金额重新判断
		stale.FundingGoal = decimal.NewFromInt(150)
		require.NoError(t, store.SaveCampaign(ctx, &stale))
		assert.False(t, stale.IsFunded)

		stale.FundingGoal = decimal.NewFromInt(100)
		require.NoError(t, store.SaveCampaign(ctx, &stale))
		assert.True(t, stale.IsFunded)
	})

	t.Run("extension applied once", func(t *testing.T) {
		before, err := store.GetCampaign(ctx, campaign.Id)
		require.NoError(t, err)
		apply := func(c *model.CampaignModel) {
			c.Deadline = c.Deadline.AddDate(0, 1, 0)
			c.IsActive = true
		}

		ext := &model.ExtensionModel{CampaignId: campaign.Id, PaymentId: "pay-ext-1", TxHash: "0xext-1", Months: 1}
		extended, err := store.ExtendCampaign(ctx, ext, apply)
		require.NoError(t, err)
		assert.NotZero(t, ext.Id)
		assert.WithinDuration(t, before.Deadline.AddDate(0, 1, 0), extended.Deadline, time.Millisecond)

		_, err = store.ExtendCampaign(ctx, &model.ExtensionModel{
			CampaignId: campaign.Id, PaymentId: "pay-ext-1", TxHash: "0xext-1", Months: 1,
		}, apply)
		assert.ErrorIs(t, err, ErrDuplicateTx)

		reloaded, err := store.GetCampaign(ctx, campaign.Id)
		require.NoError(t, err)
		assert.WithinDuration(t, extended.Deadline, reloaded.Deadline, time.Millisecond)

		recorded, err := store.GetExtensionByTxHash(ctx, "0xext-1")
		require.NoError(t, err)
		assert.Equal(t, campaign.Id, recorded.CampaignId)

		_, err = store.ExtendCampaign(ctx, &model.ExtensionModel{CampaignId: -1, TxHash: "0xext-2", Months: 1}, apply)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("payments", func(t *testing.T) {
		hash := "0xpay-1"
		p := &model.PaymentModel{
			Id:        uuid.NewString(),
			Kind:      model.PaymentKindContribute,
			Status:    model.PaymentStatusPending,
			Wallet:    "0xb",
			Amount:    decimal.NewFromInt(5),
			Currency:  "native",
			Recipient: "0xowner",
			TxHash:    &hash,
		}
		require.NoError(t, store.CreatePayment(ctx, p))

		got, err := store.GetPaymentByTxHash(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, p.Id, got.Id)

		pending, err := store.ListPendingPayments(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		dup := &model.PaymentModel{Id: uuid.NewString(), Kind: model.PaymentKindContribute,
			Status: model.PaymentStatusPending, Wallet: "0xd", Amount: decimal.NewFromInt(1),
			Currency: "native", Recipient: "0xowner", TxHash: &hash}
		assert.ErrorIs(t, store.CreatePayment(ctx, dup), ErrDuplicateTx)
	})

	t.Run("soft delete", func(t *testing.T) {
		require.NoError(t, store.DeleteCampaign(ctx, campaign.Id))
		_, err := store.GetCampaign(ctx, campaign.Id)
		assert.ErrorIs(t, err, ErrNotFound)

		stats, err := store.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalCampaigns)
	})
}
