package load

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icuts/internal/adapter"
	"icuts/internal/catalog"
	"icuts/internal/domain"
)

const loaderDoc = `
creatinine:
  label: Creatinine
  units: mg/dL
  db_settings:
    - database: mimiciv
      schemas:
        mimiciv_hosp:
          chartevents:
            item_ids: [50912]
bun:
  label: Blood urea nitrogen
  units: mg/dL
  db_settings:
    - database: mimiciv
      schemas:
        mimiciv_hosp:
          chartevents:
            item_ids: [51006]
heart_rate:
  label: Heart rate
  units: bpm
  db_settings:
    - database: mimiciv
      schemas:
        mimiciv_icu:
          vitals:
            item_ids: [220045]
`

// fakeAdapter serves canned rows per qualified table and records calls.
type fakeAdapter struct {
	mu       sync.Mutex
	calls    []string
	rows     map[string][]domain.Row
	failures map[string]error
	blocking bool
}

func (f *fakeAdapter) Execute(ctx context.Context, d domain.QueryDescriptor) ([]domain.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, d.QualifiedTable())
	f.mu.Unlock()

	if f.blocking {
		<-ctx.Done()
		return nil, domain.ErrAdapterQuery(d.Database, d.Schema, d.Table, ctx.Err())
	}
	if err, ok := f.failures[d.QualifiedTable()]; ok {
		return nil, domain.ErrAdapterQuery(d.Database, d.Schema, d.Table, err)
	}
	return f.rows[d.QualifiedTable()], nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newLoader(t *testing.T, fake *fakeAdapter) *Service {
	t.Helper()
	cat, err := catalog.LoadBytes([]byte(loaderDoc))
	require.NoError(t, err)

	registry := adapter.NewRegistry()
	require.NoError(t, registry.Register(domain.DatabaseProfile{Name: "mimiciv"}, fake))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(cat, registry, logger)
}

func TestLoad_MergesRowsBackToConcepts(t *testing.T) {
	fake := &fakeAdapter{rows: map[string][]domain.Row{
		"mimiciv_hosp.chartevents": {
			{"entity_id": int64(101), "obs_time": "2180-03-02 06:00:00", "code": int64(50912), "value": 1.2, "unit": "mg/dL"},
			{"entity_id": int64(101), "obs_time": "2180-03-02 06:00:00", "code": int64(51006), "value": 28.0, "unit": "mg/dL"},
			{"entity_id": int64(102), "obs_time": "2180-03-05 12:00:00", "code": int64(50912), "value": 0.9, "unit": "mg/dL"},
		},
	}}
	svc := newLoader(t, fake)

	result, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine", "bun"},
		Database: "mimiciv",
		Scope:    domain.Entities(101, 102),
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	assert.Empty(t, result.Unsupported)

	// Concepts sharing a table produce exactly one dispatch.
	assert.Equal(t, 1, fake.callCount())

	assert.Equal(t, "creatinine", result.Rows[0].Concept)
	assert.Equal(t, "bun", result.Rows[1].Concept)
	assert.Equal(t, "creatinine", result.Rows[2].Concept)
	assert.Equal(t, int64(101), result.Rows[0].EntityID)
	assert.Equal(t, 1.2, result.Rows[0].Value)
	assert.Equal(t, "mg/dL", result.Rows[0].Unit)
	assert.Equal(t, "mimiciv_hosp.chartevents", result.Rows[0].SourceTable)
	assert.Equal(t, time.Date(2180, 3, 2, 6, 0, 0, 0, time.UTC), result.Rows[0].Timestamp)
}

func TestLoad_UnsupportedConceptReportedNotFailed(t *testing.T) {
	fake := &fakeAdapter{rows: map[string][]domain.Row{}}
	cat, err := catalog.LoadBytes([]byte(loaderDoc))
	require.NoError(t, err)

	registry := adapter.NewRegistry()
	require.NoError(t, registry.Register(domain.DatabaseProfile{Name: "eicu"}, fake))
	svc := NewService(cat, registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	result, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine"},
		Database: "eicu",
		Scope:    domain.Entities(3001),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, []string{"creatinine"}, result.Unsupported)
	assert.Zero(t, fake.callCount(), "unsupported concepts must not reach the adapter")
}

func TestLoad_EmptyScopeMakesNoAdapterCalls(t *testing.T) {
	fake := &fakeAdapter{}
	svc := newLoader(t, fake)

	result, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine"},
		Database: "mimiciv",
		Scope:    domain.EntityScope{},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Zero(t, fake.callCount())
}

func TestLoad_PartialFailureIsAllOrNothing(t *testing.T) {
	fake := &fakeAdapter{
		rows: map[string][]domain.Row{
			"mimiciv_hosp.chartevents": {
				{"entity_id": int64(101), "obs_time": "2180-03-02 06:00:00", "code": int64(50912), "value": 1.2, "unit": "mg/dL"},
			},
		},
		failures: map[string]error{
			"mimiciv_icu.vitals": errors.New("connection reset"),
		},
	}
	svc := newLoader(t, fake)

	result, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine", "heart_rate"},
		Database: "mimiciv",
		Scope:    domain.Entities(101),
	})
	require.Error(t, err)
	assert.Nil(t, result, "no partial rows under the all-or-nothing policy")

	var qerr *domain.AdapterQueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "vitals", qerr.Table)
	assert.Equal(t, "mimiciv_icu", qerr.Schema)
}

func TestLoad_AdapterNotRegistered(t *testing.T) {
	svc := newLoader(t, &fakeAdapter{})

	_, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine"},
		Database: "aumc",
		Scope:    domain.Entities(1),
	})
	var notFound *domain.AdapterNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "aumc", notFound.Database)
}

func TestLoad_UnknownConceptFailsFast(t *testing.T) {
	fake := &fakeAdapter{}
	svc := newLoader(t, fake)

	_, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine", "lactate"},
		Database: "mimiciv",
		Scope:    domain.Entities(1),
	})
	var unknown *domain.UnknownConceptError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "lactate", unknown.Identifier)
	assert.Zero(t, fake.callCount())
}

func TestLoad_UnknownCodeInRowsSurfaces(t *testing.T) {
	fake := &fakeAdapter{rows: map[string][]domain.Row{
		"mimiciv_hosp.chartevents": {
			{"entity_id": int64(101), "obs_time": "2180-03-02 06:00:00", "code": int64(99999), "value": 1.0, "unit": ""},
		},
	}}
	svc := newLoader(t, fake)

	_, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine"},
		Database: "mimiciv",
		Scope:    domain.Entities(101),
	})
	var unknown *domain.UnknownCodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "99999", unknown.Code)
}

func TestLoad_Cancellation(t *testing.T) {
	fake := &fakeAdapter{blocking: true}
	svc := newLoader(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx, domain.LoadRequest{
			Concepts: []string{"creatinine", "heart_rate"},
			Database: "mimiciv",
			Scope:    domain.Entities(101),
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("load did not return after cancellation")
	}
}

func TestLoad_NonNumericValuesKeptAsText(t *testing.T) {
	fake := &fakeAdapter{rows: map[string][]domain.Row{
		"mimiciv_hosp.chartevents": {
			{"entity_id": int64(101), "obs_time": "2180-03-02 06:00:00", "code": int64(50912), "value": "TNTC", "unit": ""},
		},
	}}
	svc := newLoader(t, fake)

	result, err := svc.Load(context.Background(), domain.LoadRequest{
		Concepts: []string{"creatinine"},
		Database: "mimiciv",
		Scope:    domain.Entities(101),
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Zero(t, result.Rows[0].Value)
	assert.Equal(t, "TNTC", result.Rows[0].ValueText)
}
