package explore_test

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/chart"
	"github.com/magpierre/dsb-eda/internal/config"
	"github.com/magpierre/dsb-eda/internal/explore"
	"github.com/magpierre/dsb-eda/internal/export"
	"github.com/magpierre/dsb-eda/internal/filter"
	"github.com/magpierre/dsb-eda/internal/loader"
	"github.com/magpierre/dsb-eda/internal/sample"
)

var irisNumeric = []string{"sepal length (cm)", "sepal width (cm)", "petal length (cm)", "petal width (cm)"}

func irisSession(t *testing.T, opts ...explore.Option) *explore.Session {
	t.Helper()
	s, err := explore.New(opts...)
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background(), loader.Sample(sample.Iris)))
	return s
}

func TestSession_NotLoaded(t *testing.T) {
	s, err := explore.New()
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	_, err = s.Schema()
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)
	_, err = s.Filter(nil)
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)
	_, err = s.View(explore.ViewRequest{})
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)
}

func TestSession_IrisScenario(t *testing.T) {
	s := irisSession(t)

	sch, err := s.Schema()
	require.NoError(t, err)
	assert.Equal(t, irisNumeric, sch.Numeric())
	assert.Equal(t, []string{"species"}, sch.Categorical())

	species, err := s.Distinct("species")
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, species)

	v, err := s.View(explore.ViewRequest{
		Filter: &filter.Spec{Column: "species", Values: []string{"setosa", "versicolor"}},
		Stats:  true,
		Charts: []chart.Request{
			{Kind: chart.Scatter, X: "sepal length (cm)", Y: "petal length (cm)", Color: "species"},
			{Kind: chart.Heatmap},
			{Kind: chart.Bar, X: "sepal length (cm)"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 150, v.SourceRows)
	assert.Equal(t, 100, v.Rows)

	require.NotNil(t, v.Summary)
	require.Len(t, v.Summary.Columns, 4)
	assert.Equal(t, 100, v.Summary.Columns[0].Count)

	require.NotNil(t, v.Correlation)
	assert.Equal(t, irisNumeric, v.Correlation.Columns)
	for _, c := range irisNumeric {
		r, ok := v.Correlation.At(c, c)
		require.True(t, ok)
		assert.Equal(t, 1.0, r)
	}

	require.Len(t, v.Charts, 3)
	require.NoError(t, v.Charts[0].Err)
	assert.Equal(t, 100, v.Charts[0].Spec.Rows)
	require.NoError(t, v.Charts[1].Err)
	assert.Same(t, v.Correlation, v.Charts[1].Spec.Matrix)
	assert.ErrorIs(t, v.Charts[2].Err, datatable.ErrUnsupportedRequest)
	assert.NotEmpty(t, v.Charts[2].Error)
}

func TestSession_FilterMemoized(t *testing.T) {
	s := irisSession(t)

	a, err := s.Filter(&filter.Spec{Column: "species", Values: []string{"virginica", "setosa"}})
	require.NoError(t, err)
	b, err := s.Filter(&filter.Spec{Column: "species", Values: []string{"setosa", "virginica", "setosa"}})
	require.NoError(t, err)
	assert.Same(t, a, b)

	st := s.CacheStats()
	assert.Equal(t, 1, st.Misses)
	assert.Equal(t, 1, st.Hits)

	_, err = s.Filter(&filter.Spec{Column: "sepal length (cm)", Values: []string{"5.1"}})
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
}

func TestSession_ConcurrentFilterComputesOnce(t *testing.T) {
	s := irisSession(t)
	spec := &filter.Spec{Column: "species", Values: []string{"versicolor"}}

	var wg sync.WaitGroup
	results := make([]*datatable.Dataset, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := s.Filter(spec)
			assert.NoError(t, err)
			results[i] = ds
		}(i)
	}
	wg.Wait()

	for _, ds := range results {
		assert.Same(t, results[0], ds)
	}
	assert.Equal(t, 1, s.CacheStats().Misses)
}

func TestSession_LoadResetsCache(t *testing.T) {
	s := irisSession(t)
	_, err := s.Describe(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CacheStats().Entries)

	require.NoError(t, s.Load(context.Background(), loader.CSV([]byte("a,b\n1,x\n2,y\n"))))
	assert.Equal(t, 0, s.CacheStats().Entries)

	sch, err := s.Schema()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sch.Numeric())

	err = s.Load(context.Background(), loader.CSV([]byte("a,b\n")))
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)
	ds, err := s.Dataset()
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount(), "failed load keeps the previous dataset")
}

func TestSession_ProfileAndPreview(t *testing.T) {
	p := config.Default().Profiles[config.Explorer]
	p.PreviewRows = 5

	var logs bytes.Buffer
	s := irisSession(t, explore.WithProfile(p), explore.WithLogger(log.New(&logs, "", 0)))
	assert.Contains(t, logs.String(), s.ID())

	preview, err := s.Preview(0)
	require.NoError(t, err)
	assert.Equal(t, 5, preview.RowCount())
	preview, err = s.Preview(12)
	require.NoError(t, err)
	assert.Equal(t, 12, preview.RowCount())

	_, err = s.Dispatch(nil, chart.Request{Kind: chart.Box, Y: "sepal width (cm)"})
	assert.ErrorIs(t, err, datatable.ErrUnsupportedRequest)

	spec, err := s.Dispatch(nil, chart.Request{Kind: chart.Line, X: chart.RowIndex, Y: "sepal width (cm)"})
	require.NoError(t, err)
	assert.Equal(t, datatable.SortAscending, spec.Sort)
}

func TestSession_SearchDeriveExport(t *testing.T) {
	s := irisSession(t)

	ds, err := s.Search(nil, "species = virginica AND petal width (cm) > 2")
	require.NoError(t, err)
	assert.Positive(t, ds.RowCount())
	assert.Less(t, ds.RowCount(), 50)

	_, err = s.Search(nil, "colour = red")
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)

	require.NoError(t, s.Derive("petal ratio", `row["petal length (cm)"] / row["petal width (cm)"]`))
	sch, err := s.Schema()
	require.NoError(t, err)
	assert.Contains(t, sch.Numeric(), "petal ratio")

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf, nil, export.FormatCSV))
	assert.Contains(t, buf.String(), "petal ratio")
}

func TestSession_SelectCombinesFilters(t *testing.T) {
	s := irisSession(t)

	chained, err := s.Filter(&filter.Spec{Column: "species", Values: []string{"setosa", "virginica"}})
	require.NoError(t, err)
	chained, err = s.Search(chained, "petal width (cm) > 1")
	require.NoError(t, err)

	misses := s.CacheStats().Misses
	specs := []filter.Spec{{Column: "species", Values: []string{"virginica", "setosa"}}}
	selected, err := s.Select(specs, "petal width (cm) > 1")
	require.NoError(t, err)
	assert.Equal(t, chained.RowCount(), selected.RowCount())
	assert.Equal(t, 50, selected.RowCount())

	again, err := s.Select([]filter.Spec{{Column: "species", Values: []string{"setosa", "virginica", "setosa"}}}, "petal width (cm) > 1")
	require.NoError(t, err)
	assert.Same(t, selected, again)
	assert.Equal(t, misses+1, s.CacheStats().Misses)

	none, err := s.Select([]filter.Spec{
		{Column: "species", Values: []string{"setosa"}},
		{Column: "species", Values: []string{"virginica"}},
	}, "")
	require.NoError(t, err)
	assert.Zero(t, none.RowCount())

	all, err := s.Select(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 150, all.RowCount())

	_, err = s.Select([]filter.Spec{{Column: "petal width (cm)", Values: []string{"1"}}}, "")
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
	_, err = s.Select([]filter.Spec{{Column: "colour", Values: []string{"red"}}}, "")
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
}

func TestSession_ViewFiltersAndQuery(t *testing.T) {
	s := irisSession(t)

	v, err := s.View(explore.ViewRequest{
		Filter:  &filter.Spec{Column: "species", Values: []string{"versicolor", "virginica"}},
		Filters: []filter.Spec{{Column: "species", Values: []string{"virginica", "setosa"}}},
		Query:   "sepal length (cm) >= 7",
	})
	require.NoError(t, err)
	assert.Equal(t, 150, v.SourceRows)

	vals, err := v.Data.Values("species")
	require.NoError(t, err)
	require.NotEmpty(t, vals)
	for _, val := range vals {
		assert.Equal(t, "virginica", val.Formatted)
	}
	lengths, err := v.Data.Float64s("sepal length (cm)")
	require.NoError(t, err)
	for _, l := range lengths {
		assert.GreaterOrEqual(t, l, 7.0)
	}
	assert.Equal(t, len(vals), v.Rows)
}

func TestSession_ViewDuringLoad(t *testing.T) {
	s := irisSession(t)
	other := loader.CSV([]byte("species,w\nsetosa,1\nsetosa,2\nvirginica,3\n"))

	req := explore.ViewRequest{
		Filter: &filter.Spec{Column: "species", Values: []string{"setosa"}},
		Query:  "species ~ set",
		Stats:  true,
		Charts: []chart.Request{{Kind: chart.Heatmap}},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			src := loader.Source(loader.Sample(sample.Iris))
			if i%2 == 0 {
				src = other
			}
			assert.NoError(t, s.Load(context.Background(), src))
		}
	}()

	for i := 0; i < 200; i++ {
		v, err := s.View(req)
		require.NoError(t, err)
		switch v.SourceRows {
		case 150:
			assert.Equal(t, 50, v.Rows)
		case 3:
			assert.Equal(t, 2, v.Rows)
		default:
			t.Fatalf("unexpected source rows %d", v.SourceRows)
		}
		require.NotNil(t, v.Summary)
		assert.Equal(t, v.Rows, v.Summary.Columns[0].Count)
	}
	wg.Wait()
}
