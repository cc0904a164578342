// Package repostest provides in-memory CSV import repositories for tests.
package repostest

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/data/repos/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/jobstest"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

// Memory bundles one of each fake.
type Memory struct {
	CSVs         *CSVs
	TypedRecords *TypedRecords
	PaperRecords *PaperRecords
	Results      *Results
	RowErrors    *RowErrors
	Contributors *Contributors
	JobRuns      *jobstest.JobRuns
	JobEvents    *jobstest.JobEvents
}

func NewMemory() *Memory {
	return &Memory{
		CSVs:         &CSVs{rows: map[uuid.UUID]*types.CSV{}},
		TypedRecords: &TypedRecords{},
		PaperRecords: &PaperRecords{},
		Results:      &Results{},
		RowErrors:    &RowErrors{},
		Contributors: &Contributors{rows: map[uuid.UUID]*types.Contributor{}},
		JobRuns:      jobstest.NewJobRuns(),
		JobEvents:    &jobstest.JobEvents{},
	}
}

func (m *Memory) Set() repos.Set {
	return repos.Set{
		CSV:          m.CSVs,
		TypedRecords: m.TypedRecords,
		PaperRecords: m.PaperRecords,
		Results:      m.Results,
		RowErrors:    m.RowErrors,
		Contributors: m.Contributors,
		JobRuns:      m.JobRuns,
		JobEvents:    m.JobEvents,
	}
}

type CSVs struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*types.CSV
	Calls int
}

func (f *CSVs) Create(_ dbctx.Context, csv *types.CSV) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	for _, c := range f.rows {
		if c.DataHash == csv.DataHash {
			return csvimport.ErrDuplicateData
		}
	}
	if csv.ID == uuid.Nil {
		csv.ID = uuid.New()
	}
	cp := *csv
	f.rows[csv.ID] = &cp
	return nil
}

func (f *CSVs) GetByID(_ dbctx.Context, id uuid.UUID) (*types.CSV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *CSVs) ExistsByDataHash(_ dbctx.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	for _, c := range f.rows {
		if c.DataHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (f *CSVs) List(_ dbctx.Context, createdBy *uuid.UUID, page repos.Page) ([]*types.CSV, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	var all []*types.CSV
	for _, c := range f.rows {
		if createdBy == nil || c.CreatedBy == *createdBy {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return pageOf(all, page), int64(len(all)), nil
}

func (f *CSVs) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	c, ok := f.rows[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "name":
			c.Name = v.(string)
		case "data":
			c.Data = v.(string)
		case "data_hash":
			c.DataHash = v.(string)
		case "revision":
			c.Revision = v.(int)
		case "format":
			c.Format = v.(types.Format)
		case "type":
			c.Type = v.(types.Type)
		case "state":
			c.State = v.(types.State)
		case "validation_job_id":
			c.ValidationJobID = uuidPtr(v)
		case "import_job_id":
			c.ImportJobID = uuidPtr(v)
		}
	}
	return nil
}

func (f *CSVs) Delete(_ dbctx.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	delete(f.rows, id)
	return nil
}

// Put stores csv without counting a call.
func (f *CSVs) Put(csv *types.CSV) *types.CSV {
	f.mu.Lock()
	defer f.mu.Unlock()
	if csv.ID == uuid.Nil {
		csv.ID = uuid.New()
	}
	if csv.DataHash == "" {
		csv.DataHash = types.HashData(csv.Data)
	}
	cp := *csv
	f.rows[csv.ID] = &cp
	return csv
}

// Get returns the stored row without counting a call.
func (f *CSVs) Get(id uuid.UUID) *types.CSV {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func uuidPtr(v interface{}) *uuid.UUID {
	switch id := v.(type) {
	case uuid.UUID:
		return &id
	case *uuid.UUID:
		return id
	}
	return nil
}

// staged is the shared store behind the two staging fakes.
type staged[T any] struct {
	mu   sync.Mutex
	rows []T
	csv  func(T) uuid.UUID
	item func(T) int64
}

func (s *staged[T]) create(rows []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		dup := false
		for _, have := range s.rows {
			if s.csv(have) == s.csv(r) && s.item(have) == s.item(r) {
				dup = true
				break
			}
		}
		if !dup {
			s.rows = append(s.rows, r)
		}
	}
}

func (s *staged[T]) listAfter(csvID uuid.UUID, after int64, limit int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []T
	for _, r := range s.rows {
		if s.csv(r) == csvID && s.item(r) > after {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.item(out[i]) < s.item(out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *staged[T]) count(csvID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if s.csv(r) == csvID {
			n++
		}
	}
	return n
}

func (s *staged[T]) deleteByCSV(csvID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	var n int64
	for _, r := range s.rows {
		if s.csv(r) == csvID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return n
}

type TypedRecords struct {
	once sync.Once
	s    staged[*types.TypedCSVRecord]
}

func (f *TypedRecords) store() *staged[*types.TypedCSVRecord] {
	f.once.Do(func() {
		f.s.csv = func(r *types.TypedCSVRecord) uuid.UUID { return r.CSVID }
		f.s.item = func(r *types.TypedCSVRecord) int64 { return r.ItemNumber }
	})
	return &f.s
}

func (f *TypedRecords) CreateBatch(_ dbctx.Context, records []*types.TypedCSVRecord) error {
	f.store().create(records)
	return nil
}

func (f *TypedRecords) ListAfter(_ dbctx.Context, csvID uuid.UUID, afterItem int64, limit int) ([]*types.TypedCSVRecord, error) {
	return f.store().listAfter(csvID, afterItem, limit), nil
}

func (f *TypedRecords) Count(_ dbctx.Context, csvID uuid.UUID) (int64, error) {
	return f.store().count(csvID), nil
}

func (f *TypedRecords) DeleteByCSV(_ dbctx.Context, csvID uuid.UUID) (int64, error) {
	return f.store().deleteByCSV(csvID), nil
}

type PaperRecords struct {
	once sync.Once
	s    staged[*types.PaperCSVRecord]
}

func (f *PaperRecords) store() *staged[*types.PaperCSVRecord] {
	f.once.Do(func() {
		f.s.csv = func(r *types.PaperCSVRecord) uuid.UUID { return r.CSVID }
		f.s.item = func(r *types.PaperCSVRecord) int64 { return r.ItemNumber }
	})
	return &f.s
}

func (f *PaperRecords) CreateBatch(_ dbctx.Context, records []*types.PaperCSVRecord) error {
	f.store().create(records)
	return nil
}

func (f *PaperRecords) ListAfter(_ dbctx.Context, csvID uuid.UUID, afterItem int64, limit int) ([]*types.PaperCSVRecord, error) {
	return f.store().listAfter(csvID, afterItem, limit), nil
}

func (f *PaperRecords) Count(_ dbctx.Context, csvID uuid.UUID) (int64, error) {
	return f.store().count(csvID), nil
}

func (f *PaperRecords) DeleteByCSV(_ dbctx.Context, csvID uuid.UUID) (int64, error) {
	return f.store().deleteByCSV(csvID), nil
}

type Results struct {
	mu   sync.Mutex
	Rows []*types.PaperCSVRecordImportResult
}

func (f *Results) CreateBatch(_ dbctx.Context, results []*types.PaperCSVRecordImportResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
	}
	f.Rows = append(f.Rows, results...)
	return nil
}

func (f *Results) ListByCSV(_ dbctx.Context, csvID uuid.UUID, page repos.Page) ([]*types.PaperCSVRecordImportResult, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*types.PaperCSVRecordImportResult
	for _, r := range f.Rows {
		if r.CSVID == csvID {
			all = append(all, r)
		}
	}
	return pageOf(all, page), int64(len(all)), nil
}

func (f *Results) CountByType(_ dbctx.Context, csvID uuid.UUID) (map[types.ImportedEntityType]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[types.ImportedEntityType]int64{}
	for _, r := range f.Rows {
		if r.CSVID == csvID {
			out[r.ImportedEntityType]++
		}
	}
	return out, nil
}

func (f *Results) DeleteByCSV(_ dbctx.Context, csvID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.Rows[:0]
	var n int64
	for _, r := range f.Rows {
		if r.CSVID == csvID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.Rows = kept
	return n, nil
}

type RowErrors struct {
	mu   sync.Mutex
	Rows []*types.RowError
}

func (f *RowErrors) CreateBatch(_ dbctx.Context, rows []*types.RowError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
	}
	f.Rows = append(f.Rows, rows...)
	return nil
}

func (f *RowErrors) ListByJob(_ dbctx.Context, jobID uuid.UUID, page repos.Page) ([]*types.RowError, int64, error) {
	all := f.ForJob(jobID)
	return pageOf(all, page), int64(len(all)), nil
}

func (f *RowErrors) CountByJob(_ dbctx.Context, jobID uuid.UUID) (int64, error) {
	return int64(len(f.ForJob(jobID))), nil
}

func (f *RowErrors) DeleteByCSV(_ dbctx.Context, csvID uuid.UUID) (int64, error) {
	return f.deleteWhere(func(r *types.RowError) bool { return r.CSVID == csvID }), nil
}

func (f *RowErrors) DeleteOlderThan(_ dbctx.Context, cutoff time.Time) (int64, error) {
	return f.deleteWhere(func(r *types.RowError) bool { return r.CreatedAt.Before(cutoff) }), nil
}

// ForJob returns the job's row errors ordered by item number.
func (f *RowErrors) ForJob(jobID uuid.UUID) []*types.RowError {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.RowError
	for _, r := range f.Rows {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ItemNumber < out[j].ItemNumber })
	return out
}

func (f *RowErrors) deleteWhere(match func(*types.RowError) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.Rows[:0]
	var n int64
	for _, r := range f.Rows {
		if match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.Rows = kept
	return n
}

type Contributors struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Contributor
}

func (f *Contributors) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Contributor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *Contributors) Upsert(_ dbctx.Context, c *types.Contributor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func pageOf[T any](all []T, page repos.Page) []T {
	from := page.Offset()
	if from >= len(all) {
		return nil
	}
	to := from + page.Limit()
	if to > len(all) {
		to = len(all)
	}
	return all[from:to]
}
