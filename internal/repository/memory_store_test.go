package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-budget/internal/domain"
)

func seedPilotWithExtra(t *testing.T, store *MemoryStore) (pilot, extra *domain.Budget, content *domain.BudgetContent) {
	t.Helper()
	ctx := context.Background()
	err := store.WithTx(ctx, func(tx Tx) error {
		pilot = &domain.Budget{Name: "P1", PhaseID: "EVT", BudgetType: domain.BudgetTypePilot, CreatedBy: "u1"}
		if err := tx.Budgets().CreateBudget(ctx, pilot); err != nil {
			return err
		}
		extra = &domain.Budget{
			Name: "E1", PhaseID: "EVT", BudgetType: domain.BudgetTypeExtra,
			PilotBudgetID: sql.NullString{String: pilot.BudgetID, Valid: true}, CreatedBy: "u1",
		}
		if err := tx.Budgets().CreateBudget(ctx, extra); err != nil {
			return err
		}
		content = &domain.BudgetContent{PartnumberID: "pn-1", BudgetID: extra.BudgetID, UnitPriceCurrency: "USD"}
		if err := tx.Contents().CreateContent(ctx, content); err != nil {
			return err
		}
		return tx.Demands().CreateDemand(ctx, &domain.BudgetDemand{Function: "QA", DemandQty: 3, ContentID: content.ContentID})
	})
	require.NoError(t, err)
	return pilot, extra, content
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	var id string
	err := store.WithTx(ctx, func(tx Tx) error {
		b := &domain.Budget{Name: "A1", PhaseID: "EVT", BudgetType: domain.BudgetTypeAdditional}
		require.NoError(t, tx.Budgets().CreateBudget(ctx, b))
		id = b.BudgetID

		// visible inside the transaction
		_, err := tx.Budgets().GetBudget(ctx, id)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.Budgets().GetBudget(ctx, id)
		return err
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryStore_DuplicateBudgetKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.Budgets().CreateBudget(ctx, &domain.Budget{Name: "A", PhaseID: "EVT", BudgetType: domain.BudgetTypeAdditional}); err != nil {
			return err
		}
		// same name and phase with another type is fine
		if err := tx.Budgets().CreateBudget(ctx, &domain.Budget{Name: "A", PhaseID: "EVT", BudgetType: domain.BudgetTypePilot}); err != nil {
			return err
		}
		return tx.Budgets().CreateBudget(ctx, &domain.Budget{Name: "A", PhaseID: "EVT", BudgetType: domain.BudgetTypeAdditional})
	})
	assert.True(t, domain.IsValidation(err))
}

func TestMemoryStore_DeletePilotCascades(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	pilot, extra, content := seedPilotWithExtra(t, store)

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		return tx.Budgets().DeleteBudget(ctx, pilot.BudgetID)
	}))

	_ = store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.Budgets().GetBudget(ctx, extra.BudgetID)
		assert.True(t, domain.IsNotFound(err))
		_, err = tx.Contents().GetContent(ctx, content.ContentID)
		assert.True(t, domain.IsNotFound(err))
		demands, err := tx.Demands().ListDemands(ctx, content.ContentID)
		require.NoError(t, err)
		assert.Empty(t, demands)
		return nil
	})
}

func TestMemoryStore_SetExtraBudgetsLock(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	pilot, extra, _ := seedPilotWithExtra(t, store)

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		n, err := tx.Budgets().SetExtraBudgetsLock(ctx, pilot.BudgetID, true, "u2")
		assert.Equal(t, int64(1), n)
		return err
	}))

	_ = store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.Budgets().GetBudget(ctx, extra.BudgetID)
		require.NoError(t, err)
		assert.True(t, b.IsLock)
		assert.Equal(t, "u2", b.UpdatedBy)
		return nil
	})
}

func TestMemoryStore_ReturnedRowsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, extra, _ := seedPilotWithExtra(t, store)

	_ = store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.Budgets().GetBudget(ctx, extra.BudgetID)
		require.NoError(t, err)
		b.Name = "mutated"
		again, err := tx.Budgets().GetBudget(ctx, extra.BudgetID)
		require.NoError(t, err)
		assert.Equal(t, "E1", again.Name)
		return nil
	})
}

func TestMemoryStore_ContentAndDemandUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, extra, content := seedPilotWithExtra(t, store)

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.Contents().CreateContent(ctx, &domain.BudgetContent{PartnumberID: "pn-1", BudgetID: extra.BudgetID})
	})
	assert.True(t, domain.IsValidation(err))

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.Demands().CreateDemand(ctx, &domain.BudgetDemand{Function: "QA", DemandQty: 1, ContentID: content.ContentID})
	})
	assert.True(t, domain.IsValidation(err))
}

func TestMemoryStore_DeleteByKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, extra, content := seedPilotWithExtra(t, store)

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		n, err := tx.Demands().DeleteDemandsByFunctions(ctx, content.ContentID, []string{"QA", "RD"})
		assert.Equal(t, int64(1), n)
		if err != nil {
			return err
		}
		n, err = tx.Contents().DeleteContentsByPartnumbers(ctx, extra.BudgetID, []string{"pn-1"})
		assert.Equal(t, int64(1), n)
		return err
	}))

	_ = store.WithTx(ctx, func(tx Tx) error {
		contents, err := tx.Contents().ListContents(ctx, extra.BudgetID)
		require.NoError(t, err)
		assert.Empty(t, contents)
		return nil
	})
}

func TestMemoryStore_ListDemandsByBudget(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, extra, content := seedPilotWithExtra(t, store)

	_ = store.WithTx(ctx, func(tx Tx) error {
		grouped, err := tx.Demands().ListDemandsByBudget(ctx, extra.BudgetID)
		require.NoError(t, err)
		require.Len(t, grouped[content.ContentID], 1)
		assert.Equal(t, 3, grouped[content.ContentID][0].DemandQty)
		return nil
	})
}
