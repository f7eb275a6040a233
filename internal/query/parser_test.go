package query

import (
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tabular-gateway/internal/apperror"
	"tabular-gateway/internal/model"
)

func testProfile() *model.Profile {
	return &model.Profile{
		ResourceID: uuid.MustParse("aaaaaaaa-1111-bbbb-2222-cccccccccccc"),
		Columns: []model.ProfileColumn{
			{Name: "id", SemanticType: model.TypeString},
			{Name: "score", SemanticType: model.TypeFloat},
			{Name: "decompte", SemanticType: model.TypeInt},
			{Name: "is_true", SemanticType: model.TypeBool},
			{Name: "birth", SemanticType: model.TypeDate},
			{Name: "liste", SemanticType: model.TypeString},
		},
	}
}

func testConfig() Config {
	return Config{PageSizeDefault: 50, PageSizeMax: 200}
}

func TestParse_ScalarFilterAndDefaults(t *testing.T) {
	values := url.Values{"score__greater": {"0.9"}, "decompte__exact": {"13"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, 1, plan.Page)
	require.Equal(t, 50, plan.PageSize)
	require.Len(t, plan.Filters, 2)
}

func TestParse_PageAndPageSize(t *testing.T) {
	values := url.Values{"page": {"2"}, "page_size": {"30"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, 2, plan.Page)
	require.Equal(t, 30, plan.PageSize)
}

func TestParse_PageSizeAboveMaxRejected(t *testing.T) {
	values := url.Values{"page_size": {"9999"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidValue))
}

func TestParse_Columns(t *testing.T) {
	values := url.Values{"columns": {"id,score"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"id", "score"}, plan.Select)
}

func TestParse_ColumnsUnknownColumnRejected(t *testing.T) {
	values := url.Values{"columns": {"id,nonexistent"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_UnknownKeyWithoutSeparatorIgnored(t *testing.T) {
	values := url.Values{"debug": {"true"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Empty(t, plan.Filters)
}

func TestParse_UnknownColumnInKeyRejected(t *testing.T) {
	values := url.Values{"nope__exact": {"x"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_UnknownSuffixRejected(t *testing.T) {
	values := url.Values{"score__bogus": {"1"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_OperatorIllegalOnType_InvalidParameter(t *testing.T) {
	// "contains" is string-only; is_true is bool.
	values := url.Values{"is_true__contains": {"x"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_OrderableOperatorIllegalOnString_InvalidParameter(t *testing.T) {
	values := url.Values{"liste__strictly_greater": {"x"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_TypeIncompatibleValue_InvalidValue(t *testing.T) {
	values := url.Values{"decompte__exact": {"not-an-int"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidValue))
}

func TestParse_InFilter_SplitsCommaList(t *testing.T) {
	values := url.Values{"decompte__in": {"1,2,3"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, plan.Filters[0].Values)
}

func TestParse_Sort(t *testing.T) {
	values := url.Values{"score__sort": {"desc"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, model.SortDesc, plan.Sorts[0].Direction)
}

func TestParse_SortRejectedWithAggregation(t *testing.T) {
	values := url.Values{"score__sort": {"desc"}, "decompte__groupby": {""}, "score__avg": {""}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_GroupByAndAggregate(t *testing.T) {
	values := url.Values{"decompte__groupby": {""}, "birth__less": {"1996"}, "score__avg": {""}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"decompte"}, plan.GroupBy)
	require.Len(t, plan.Aggregations, 1)
	require.Equal(t, "score__avg", plan.Aggregations[0].Alias)
	require.True(t, plan.IsAggregate())
}

func TestParse_BareGroupByWithNoAggregateIsAggregation(t *testing.T) {
	values := url.Values{"decompte__groupby": {""}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"decompte"}, plan.GroupBy)
	require.Empty(t, plan.Aggregations)
	require.True(t, plan.IsAggregate())
}

func TestParse_SortRejectedWithBareGroupBy(t *testing.T) {
	values := url.Values{"score__sort": {"desc"}, "decompte__groupby": {""}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_BareCountAggregate(t *testing.T) {
	values := url.Values{"__count": {""}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Len(t, plan.Aggregations, 1)
	require.Equal(t, "", plan.Aggregations[0].Column)
	require.Equal(t, "__count", plan.Aggregations[0].Alias)
}

func TestParse_BareAggregateOtherThanCountRejected(t *testing.T) {
	values := url.Values{"__avg": {""}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_SumIllegalOnNonNumeric(t *testing.T) {
	values := url.Values{"liste__sum": {""}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_ColumnsInconsistentWithAggregationProjectionRejected(t *testing.T) {
	values := url.Values{"decompte__groupby": {""}, "score__avg": {""}, "columns": {"id"}}
	_, err := Parse(values, testProfile(), testConfig())
	require.True(t, apperror.Is(err, apperror.CodeInvalidParameter))
}

func TestParse_ColumnsConsistentWithAggregationProjectionAccepted(t *testing.T) {
	values := url.Values{"decompte__groupby": {""}, "score__avg": {""}, "columns": {"decompte,score__avg"}}
	plan, err := Parse(values, testProfile(), testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"decompte", "score__avg"}, plan.Select)
}
