package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

func TestReadRows_SkipsHeaderAndBlankRows(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"range":"Sheet1!A1:D4","majorDimension":"ROWS","values":[
			["Asset Name","Transaction Date","Type","Asset Price"],
			["SBER","2024-01-10","Buy","270,5"],
			[],
			["GAZP","2024-01-11","Sell"]]}`))
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL + "/"))
	rows, err := c.ReadRows(context.Background(), "api-key", "sheet-123")
	require.NoError(t, err)

	assert.Equal(t, "/v4/spreadsheets/sheet-123/values/Sheet1", gotPath)
	assert.Equal(t, "api-key", gotKey)
	require.Len(t, rows, 2)
	assert.Equal(t, models.SheetRow{AssetName: "SBER", Date: "2024-01-10", Type: "Buy", Price: "270,5"}, rows[0])
	assert.Equal(t, "", rows[1].Price)
}

func TestReadRows_MissingKey(t *testing.T) {
	c := NewClient()
	_, err := c.ReadRows(context.Background(), "", "sheet-123")
	assert.True(t, errors.Is(err, common.ErrCredentialMissing))
}

func TestReadRows_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL + "/"))
	_, err := c.ReadRows(context.Background(), "api-key", "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestReadRows_ServerErrorIsExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL + "/"))
	_, err := c.ReadRows(context.Background(), "api-key", "private")
	assert.True(t, errors.Is(err, common.ErrExternalUnavailable), "got %v", err)
}

func TestWriteRow_AppendsUserEntered(t *testing.T) {
	var gotPath, gotMethod string
	var gotQuery map[string][]string
	var body struct {
		Values [][]string `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotQuery = r.URL.Path, r.Method, r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"sheet-123","updates":{"updatedRows":1}}`))
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL+"/"), WithSheetName("Trades"))
	row := models.SheetRow{AssetName: "SBER", Date: "2024-01-10", Type: "Buy", Price: "270.5"}
	require.NoError(t, c.WriteRow(context.Background(), "api-key", "sheet-123", row))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.True(t, strings.HasSuffix(gotPath, "/values/Trades:append"), gotPath)
	assert.Equal(t, "USER_ENTERED", gotQuery["valueInputOption"][0])
	assert.Equal(t, "INSERT_ROWS", gotQuery["insertDataOption"][0])
	require.Len(t, body.Values, 1)
	assert.Equal(t, []string{"SBER", "2024-01-10", "Buy", "270.5"}, body.Values[0])
}
