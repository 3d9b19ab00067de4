package repository

import (
	"context"
	"testing"

	"packsync/feature/packs/differ"
	"packsync/feature/packs/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creationOf(id string, origin models.PackState, sources ...string) differ.Creation {
	return differ.Creation{
		Pack: &models.SeatPack{
			PackID:     id,
			SeatKeys:   models.StringList{"A-1", "A-2"},
			PackSize:   2,
			PackStatus: models.PackStatusActive,
		},
		Origin:        origin,
		SourcePackIDs: sources,
	}
}

func TestExecuteCreations(t *testing.T) {
	repo, mock := setupMockDB(t)

	// One insert per pack, so a bad insert is isolated
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `seat_packs`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	cmp := &differ.Comparison{
		Creations: []differ.Creation{
			creationOf("tm_pk_new", models.PackStateCreate),
			creationOf("tm_pk_shrunk", models.PackStateShrink, "tm_pk_old"),
		},
	}

	result, err := repo.Execute(context.Background(), cmp, ExecuteOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Errors)

	// Origin classification lands on the stored pack
	assert.Equal(t, models.PackStateShrink, cmp.Creations[1].Pack.PackState)
	assert.Equal(t, models.StringList{"tm_pk_old"}, cmp.Creations[1].Pack.SourcePackIDs)
	assert.Equal(t, models.POSStatusPending, cmp.Creations[1].Pack.POSStatus)
	assert.False(t, cmp.Creations[1].Pack.SyncedToPOS)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRevivesVanishedPack(t *testing.T) {
	repo, mock := setupMockDB(t)

	// Deterministic ids: the reappeared seat set collides with its own
	// inactive row instead of inserting.
	delistedRow := sqlmock.NewRows([]string{
		"pack_id", "performance_id", "pack_status", "pos_status", "pack_state",
		"delist_reason", "manually_delisted", "seat_keys", "source_pack_ids",
		"pack_size", "version",
	}).AddRow("tm_pk_back", "perf-1", "inactive", "inactive", "delist",
		"vanished", false, `["A-1","A-2"]`, `[]`, 2, 3)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `seat_packs`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT \\* FROM `seat_packs` WHERE pack_id = \\?").
		WillReturnRows(delistedRow)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `seat_packs` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The removal later in the same cycle still goes through
	mock.ExpectQuery("SELECT \\* FROM `seat_packs` WHERE pack_id = \\?").
		WillReturnRows(packRows("tm_pk_gone"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `seat_packs` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cmp := &differ.Comparison{
		Creations: []differ.Creation{creationOf("tm_pk_back", models.PackStateCreate)},
		Removals: []differ.Removal{{
			Pack:   &models.SeatPack{PackID: "tm_pk_gone"},
			Reason: models.DelistReasonVanished,
		}},
	}

	result, err := repo.Execute(context.Background(), cmp, ExecuteOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Delisted)
	assert.Empty(t, result.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteDoesNotReviveManualDelist(t *testing.T) {
	repo, mock := setupMockDB(t)

	manualRow := sqlmock.NewRows([]string{
		"pack_id", "pack_status", "pack_state", "manually_delisted",
		"seat_keys", "pack_size", "version",
	}).AddRow("tm_pk_manual", "inactive", "delist", true, `["A-1","A-2"]`, 2, 2)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `seat_packs`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT \\* FROM `seat_packs` WHERE pack_id = \\?").
		WillReturnRows(manualRow)

	result, err := repo.Execute(context.Background(), &differ.Comparison{
		Creations: []differ.Creation{creationOf("tm_pk_manual", models.PackStateCreate)},
	}, ExecuteOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "manually delisted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRejectsInvalidCreation(t *testing.T) {
	repo, _ := setupMockDB(t)

	bad := creationOf("tm_pk_bad", models.PackStateCreate)
	bad.Pack.PackSize = 9 // does not match seat count

	result, err := repo.Execute(context.Background(), &differ.Comparison{
		Creations: []differ.Creation{bad},
	}, ExecuteOptions{})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "does not match")
}

func TestExecuteInitialScrapeSkipsDelists(t *testing.T) {
	repo, mock := setupMockDB(t)

	cmp := &differ.Comparison{
		Removals: []differ.Removal{{
			Pack:   &models.SeatPack{PackID: "tm_pk_old"},
			Reason: models.DelistReasonVanished,
		}},
	}

	result, err := repo.Execute(context.Background(), cmp, ExecuteOptions{InitialScrape: true})
	assert.NoError(t, err)
	assert.Equal(t, 0, result.Delisted)
	assert.NoError(t, mock.ExpectationsWereMet(), "no statements expected")
}

func TestApplyDelistTransition(t *testing.T) {
	base := func() *models.SeatPack {
		return &models.SeatPack{
			PackID:     "tm_pk_1",
			SeatKeys:   models.StringList{"A-1", "A-2"},
			PackSize:   2,
			PackStatus: models.PackStatusActive,
			PackState:  models.PackStateCreate,
		}
	}

	t.Run("ListedPackOwesDelete", func(t *testing.T) {
		p := base()
		p.POSStatus = models.POSStatusActive
		p.POSListingID = "L-1"

		require.NoError(t, ApplyDelistTransition(p, models.DelistReasonVanished))
		assert.Equal(t, models.PackStatusInactive, p.PackStatus)
		assert.Equal(t, models.PackStateDelist, p.PackState)
		assert.Equal(t, models.POSStatusInactive, p.POSStatus)
		assert.False(t, p.SyncedToPOS, "external delete still owed")
		assert.NotNil(t, p.DelistedAt)
	})

	t.Run("PendingPackHasNothingToTakeDown", func(t *testing.T) {
		p := base()
		p.POSStatus = models.POSStatusPending

		require.NoError(t, ApplyDelistTransition(p, models.DelistReasonVanished))
		assert.True(t, p.SyncedToPOS)
	})

	t.Run("TransformedReason", func(t *testing.T) {
		p := base()
		p.POSStatus = models.POSStatusPending

		require.NoError(t, ApplyDelistTransition(p, models.DelistReasonTransformed))
		assert.Equal(t, models.PackStateTransformed, p.PackState)
		assert.Equal(t, models.DelistReasonTransformed, p.DelistReason)
	})

	t.Run("TerminalStateRefuses", func(t *testing.T) {
		p := base()
		p.PackState = models.PackStateTransformed
		p.PackStatus = models.PackStatusInactive
		p.DelistReason = models.DelistReasonTransformed

		err := ApplyDelistTransition(p, models.DelistReasonVanished)
		assert.ErrorContains(t, err, "illegal transition")
	})

	t.Run("InvariantsHoldAfterTransition", func(t *testing.T) {
		p := base()
		p.POSStatus = models.POSStatusActive
		p.POSListingID = "L-2"

		require.NoError(t, ApplyDelistTransition(p, models.DelistReasonTransformed))
		assert.NoError(t, p.Validate())
	})
}
