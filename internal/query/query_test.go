package query

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companydir/internal/apperror"
	"companydir/internal/model"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(10, 100)

	tests := []struct {
		name   string
		params Params
		want   Query
	}{
		{
			name:   "defaults",
			params: Params{},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name: "all parameters",
			params: Params{
				Page: "3", Limit: "25", SortBy: "employees", SortOrder: "desc",
				Name: "corp", Location: "SF", Industry: "tech", Search: "cloud",
			},
			want: Query{
				Filter: Filter{Name: "corp", Location: "SF", Industry: "tech", Search: "cloud"},
				Sort:   Sort{Field: FieldEmployees, Order: Desc},
				Window: Window{Page: 3, Limit: 25},
			},
		},
		{
			name:   "empty strings behave like omitted parameters",
			params: Params{Page: "", Limit: "", SortBy: "", SortOrder: "", Name: "", Search: ""},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name:   "whitespace-only filters are ignored",
			params: Params{Name: "  ", Search: "\t"},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name:   "sortOrder is case sensitive and fails open to ascending",
			params: Params{SortOrder: "DESC"},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name:   "unknown sortOrder is ascending",
			params: Params{SortBy: "founded", SortOrder: "sideways"},
			want: Query{
				Sort:   Sort{Field: FieldFounded, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name:   "page below one is clamped",
			params: Params{Page: "0"},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name:   "negative page is clamped",
			params: Params{Page: "-4"},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 10},
			},
		},
		{
			name:   "limit above maximum is clamped",
			params: Params{Limit: "1000"},
			want: Query{
				Sort:   Sort{Field: FieldName, Order: Asc},
				Window: Window{Page: 1, Limit: 100},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilder_Build_ValidationErrors(t *testing.T) {
	b := NewBuilder(10, 100)

	tests := []struct {
		name       string
		params     Params
		wantFields []string
	}{
		{name: "non-numeric page", params: Params{Page: "abc"}, wantFields: []string{"page"}},
		{name: "non-numeric limit", params: Params{Limit: "ten"}, wantFields: []string{"limit"}},
		{name: "zero limit", params: Params{Limit: "0"}, wantFields: []string{"limit"}},
		{name: "negative limit", params: Params{Limit: "-1"}, wantFields: []string{"limit"}},
		{name: "unknown sort field", params: Params{SortBy: "description"}, wantFields: []string{"sortBy"}},
		{name: "sort field injection", params: Params{SortBy: "$where"}, wantFields: []string{"sortBy"}},
		{name: "page whose offset overflows", params: Params{Page: "4611686018427387904", Limit: "4"}, wantFields: []string{"page"}},
		{name: "page beyond int range", params: Params{Page: "99999999999999999999"}, wantFields: []string{"page"}},
		{
			name:       "multiple failures are reported together",
			params:     Params{Page: "x", Limit: "y", SortBy: "z"},
			wantFields: []string{"sortBy", "page", "limit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)

			var verr *apperror.ValidationError
			require.True(t, errors.As(err, &verr))
			got := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestBuilder_Build_LargePage(t *testing.T) {
	q, err := NewBuilder(10, 100).Build(Params{Page: "1000000", Limit: "100"})
	require.NoError(t, err)
	assert.Equal(t, 1000000, q.Window.Page)
	assert.Equal(t, 99999900, q.Window.Offset())

	// The largest page whose offset still fits.
	maxPage := math.MaxInt/100 + 1
	q, err = NewBuilder(10, 100).Build(Params{Page: strconv.Itoa(maxPage), Limit: "100"})
	require.NoError(t, err)
	assert.Positive(t, q.Window.Offset())

	_, err = NewBuilder(10, 100).Build(Params{Page: strconv.Itoa(maxPage + 1), Limit: "100"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(0, 0)
	assert.Equal(t, DefaultLimit, b.DefaultLimit)
	assert.Equal(t, MaxLimit, b.MaxLimit)

	b = NewBuilder(50, 20)
	assert.Equal(t, 20, b.DefaultLimit)

	q, err := Builder{}.Build(Params{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, q.Window.Limit)
}

func TestWindow_Offset(t *testing.T) {
	assert.Equal(t, 0, Window{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 10, Window{Page: 2, Limit: 10}.Offset())
	assert.Equal(t, 50, Window{Page: 3, Limit: 25}.Offset())
	assert.Equal(t, 0, Window{Page: 0, Limit: 25}.Offset())
}

func TestPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{15, 10, 2},
		{100, 100, 1},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pages(tt.total, tt.limit), "total=%d limit=%d", tt.total, tt.limit)
	}
}

func TestFilter_Matches(t *testing.T) {
	techCorp := model.Company{Name: "TechCorp", Location: "SF", Industry: "Tech", Description: "Enterprise software"}
	healthCo := model.Company{Name: "HealthCo", Location: "Boston", Industry: "Health", Description: "Clinics"}
	eduCo := model.Company{Name: "EduCo", Location: "Seattle", Industry: "Education", Description: "Learning technology"}

	tests := []struct {
		name    string
		filter  Filter
		company model.Company
		want    bool
	}{
		{"empty filter matches everything", Filter{}, healthCo, true},
		{"name substring case-insensitive", Filter{Name: "techc"}, techCorp, true},
		{"name mismatch", Filter{Name: "health"}, techCorp, false},
		{"location", Filter{Location: "bos"}, healthCo, true},
		{"industry", Filter{Industry: "EDU"}, eduCo, true},
		{"search hits name", Filter{Search: "tech"}, techCorp, true},
		{"search hits description", Filter{Search: "tech"}, eduCo, true},
		{"search misses every field", Filter{Search: "tech"}, healthCo, false},
		{"search and field filter both hold", Filter{Location: "seattle", Search: "learning"}, eduCo, true},
		{"field filter fails while search holds", Filter{Location: "boston", Search: "learning"}, eduCo, false},
		{"pattern is literal, not a regex", Filter{Name: "T.ch"}, techCorp, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.company))
		})
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{Search: "x"}.IsEmpty())
}
