package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	csvtypes "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	jobtypes "github.com/yungbote/dataimport-backend/internal/domain/jobs"
)

func SeedContributor(tb testing.TB, ctx context.Context, tx *gorm.DB, admin bool) *csvtypes.Contributor {
	tb.Helper()
	c := &csvtypes.Contributor{
		ID:          uuid.New(),
		DisplayName: "contributor",
		IsAdmin:     admin,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed contributor: %v", err)
	}
	return c
}

func SeedCSV(tb testing.TB, ctx context.Context, tx *gorm.DB, createdBy uuid.UUID, data string) *csvtypes.CSV {
	tb.Helper()
	c := &csvtypes.CSV{
		ID:        uuid.New(),
		Name:      "papers.csv",
		Type:      csvtypes.TypePaper,
		Format:    csvtypes.FormatDefault,
		State:     csvtypes.StateUploaded,
		Data:      data,
		DataHash:  csvtypes.HashData(data),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed csv: %v", err)
	}
	return c
}

func SeedJobRun(tb testing.TB, ctx context.Context, tx *gorm.DB, owner uuid.UUID, status string, createdAt time.Time) *jobtypes.JobRun {
	tb.Helper()
	j := &jobtypes.JobRun{
		ID:            uuid.New(),
		ContributorID: owner,
		JobType:       "test_job",
		InstanceKey:   uuid.NewString(),
		Status:        status,
		Stage:         status,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job run: %v", err)
	}
	return j
}
