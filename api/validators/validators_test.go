package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
)

type payBody struct {
	CurrencyType enums.CurrencyType `json:"currencyType" validate:"required,currency"`
	Amount       decimal.Decimal    `json:"amount" validate:"gt=0"`
}

func decode(t *testing.T, body string, dest any) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return DecodeJSONBody(httptest.NewRecorder(), req, dest)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var got payBody
	require.NoError(t, decode(t, `{"currencyType":"stars_meal","amount":"2.5"}`, &got))
	assert.Equal(t, enums.CurrencyTypeStarsMeal, got.CurrencyType)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("2.5")))
}

func TestDecodeJSONBodyRejectsBadFields(t *testing.T) {
	var got payBody
	err := decode(t, `{"currencyType":"gold","amount":"0"}`, &got)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details["currencyType"], "stars_meal")
	assert.Equal(t, "must be greater than 0", details["amount"])
}

func TestDecodeJSONBodyRejectsNegativeAmount(t *testing.T) {
	var got payBody
	err := decode(t, `{"currencyType":"balance","amount":"-1"}`, &got)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	var got payBody
	assert.Error(t, decode(t, `{"currencyType":"balance","amount":"1","extra":true}`, &got))
	assert.Error(t, decode(t, `{"currencyType":"balance","amount":"1"}{"x":1}`, &got))
}

func TestDecodeJSONBodyLimitsSize(t *testing.T) {
	var got payBody
	big := `{"currencyType":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	err := decode(t, big, &got)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&unreadOnly=true&restaurantId=6f1c1a6e-4d1f-4c4f-9a43-0d7cbe8c9b11", nil)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	unread, err := ParseQueryBool(req, "unreadOnly")
	require.NoError(t, err)
	assert.True(t, unread)

	id, err := ParseQueryUUID(req, "restaurantId")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "6f1c1a6e-4d1f-4c4f-9a43-0d7cbe8c9b11", id.String())

	missing, err := ParseQueryUUID(req, "groupId")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestParseQueryHelpersReject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&unreadOnly=maybe&restaurantId=nope", nil)

	_, err := ParseQueryInt(req, "limit", 25, 1, 100)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryBool(req, "unreadOnly")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryUUID(req, "restaurantId")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "token", SanitizeString("  tok\x00en \n", 0))
	assert.Equal(t, "ab", SanitizeString("abc", 2))
	assert.Equal(t, "é", SanitizeString("éé", 3))
}
