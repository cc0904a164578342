package csvimport

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

func TestCSVRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCSVRepo(db, testutil.Logger(t))

	owner := uuid.New()
	data := "paper:title\n" + uuid.NewString()
	csv := &types.CSV{
		Name:      "papers.csv",
		Type:      types.TypePaper,
		Format:    types.FormatDefault,
		State:     types.StateUploaded,
		Data:      data,
		DataHash:  types.HashData(data),
		CreatedBy: owner,
	}
	if err := repo.Create(dbc, csv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if csv.ID == uuid.Nil || csv.CreatedAt.IsZero() {
		t.Fatalf("Create should fill id and created_at")
	}

	exists, err := repo.ExistsByDataHash(dbc, csv.DataHash)
	if err != nil || !exists {
		t.Fatalf("ExistsByDataHash: exists=%v err=%v", exists, err)
	}

	dup := *csv
	dup.ID = uuid.Nil
	if err := repo.Create(dbc, &dup); !errors.Is(err, ErrDuplicateData) {
		t.Fatalf("duplicate Create: want=ErrDuplicateData got=%v", err)
	}
}

func TestCSVRepoListAndUpdate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCSVRepo(db, testutil.Logger(t))

	owner := uuid.New()
	a := testutil.SeedCSV(t, ctx, tx, owner, "a,"+uuid.NewString())
	testutil.SeedCSV(t, ctx, tx, owner, "b,"+uuid.NewString())
	testutil.SeedCSV(t, ctx, tx, uuid.New(), "c,"+uuid.NewString())

	rows, total, err := repo.List(dbc, &owner, Page{Number: 0, Size: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(rows) != 1 {
		t.Fatalf("List: total=%d len=%d", total, len(rows))
	}
	if rows[0].Data != "" {
		t.Fatalf("List should not load data")
	}

	jobID := uuid.New()
	if err := repo.UpdateFields(dbc, a.ID, map[string]interface{}{
		"state":             types.StateValidationQueued,
		"validation_job_id": jobID,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByID(dbc, a.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != types.StateValidationQueued || got.ValidationJobID == nil || *got.ValidationJobID != jobID {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}

	if err := repo.Delete(dbc, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repo.GetByID(dbc, a.ID); got != nil {
		t.Fatalf("GetByID after delete: want=nil got=%v", got.ID)
	}
}

func TestStagingRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	typed := NewTypedRecordRepo(db, log)
	papers := NewPaperRecordRepo(db, log)
	results := NewImportResultRepo(db, log)

	csvID := uuid.New()
	title := "A"
	var batch []*types.TypedCSVRecord
	for i := int64(1); i <= 5; i++ {
		batch = append(batch, &types.TypedCSVRecord{
			CSVID:      csvID,
			ItemNumber: i,
			LineNumber: i + 1,
			Values:     []types.TypedValue{{Value: &title, Type: types.ClassString}},
		})
	}
	if err := typed.CreateBatch(dbc, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	page, err := typed.ListAfter(dbc, csvID, 2, 2)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	if len(page) != 2 || page[0].ItemNumber != 3 || page[1].ItemNumber != 4 {
		t.Fatalf("ListAfter: got=%v", page)
	}
	if page[0].Values[0].StringValue() != "A" {
		t.Fatalf("values round trip: got=%q", page[0].Values[0].StringValue())
	}
	if n, _ := typed.Count(dbc, csvID); n != 5 {
		t.Fatalf("Count: want=5 got=%d", n)
	}
	if n, err := typed.DeleteByCSV(dbc, csvID); err != nil || n != 5 {
		t.Fatalf("DeleteByCSV: n=%d err=%v", n, err)
	}

	rec := &types.PaperCSVRecord{
		CSVID:            csvID,
		ItemNumber:       1,
		LineNumber:       2,
		Title:            "Paper",
		ResearchFieldID:  "R12",
		ExtractionMethod: types.ExtractionUnknown,
		Authors:          []types.Author{{Name: "Ada"}},
	}
	if err := papers.CreateBatch(dbc, []*types.PaperCSVRecord{rec}); err != nil {
		t.Fatalf("paper CreateBatch: %v", err)
	}
	stored, err := papers.ListAfter(dbc, csvID, 0, 10)
	if err != nil || len(stored) != 1 || stored[0].Authors[0].Name != "Ada" {
		t.Fatalf("paper ListAfter: err=%v got=%v", err, stored)
	}

	item := int64(1)
	err = results.CreateBatch(dbc, []*types.PaperCSVRecordImportResult{
		{CSVID: csvID, ImportedEntityID: "P1", ImportedEntityType: types.ImportedPredicate},
		{CSVID: csvID, ImportedEntityID: "R1", ImportedEntityType: types.ImportedPaper, ItemNumber: &item},
		{CSVID: csvID, ImportedEntityID: "R2", ImportedEntityType: types.ImportedPaper, ItemNumber: &item},
	})
	if err != nil {
		t.Fatalf("results CreateBatch: %v", err)
	}
	counts, err := results.CountByType(dbc, csvID)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if counts[types.ImportedPaper] != 2 || counts[types.ImportedPredicate] != 1 {
		t.Fatalf("CountByType: got=%v", counts)
	}
	rows, total, err := results.ListByCSV(dbc, csvID, Page{Size: 2})
	if err != nil || total != 3 || len(rows) != 2 {
		t.Fatalf("ListByCSV: total=%d len=%d err=%v", total, len(rows), err)
	}
}

func TestRowErrorAndContributorRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	rowErrs := NewRowErrorRepo(db, log)
	contributors := NewContributorRepo(db, log)

	jobID, csvID := uuid.New(), uuid.New()
	col := 3
	err := rowErrs.CreateBatch(dbc, []*types.RowError{
		{JobID: jobID, CSVID: csvID, Step: "parse_papers", ItemNumber: 2, LineNumber: 3, Column: &col, Code: "x", Message: "b"},
		{JobID: jobID, CSVID: csvID, Step: "parse_papers", ItemNumber: 1, LineNumber: 2, Code: "x", Message: "a"},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	rows, total, err := rowErrs.ListByJob(dbc, jobID, Page{})
	if err != nil || total != 2 {
		t.Fatalf("ListByJob: total=%d err=%v", total, err)
	}
	if rows[0].Message != "a" {
		t.Fatalf("ListByJob order: want first=a got=%s", rows[0].Message)
	}

	c := &types.Contributor{ID: uuid.New(), DisplayName: "Ada"}
	if err := contributors.Upsert(dbc, c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	c.IsAdmin = true
	if err := contributors.Upsert(dbc, c); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	got, err := contributors.GetByID(dbc, c.ID)
	if err != nil || got == nil || !got.IsAdmin {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
}
