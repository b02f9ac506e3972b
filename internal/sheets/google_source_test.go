package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newSheetsAPI(t *testing.T, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var gotRanges []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/v4/spreadsheets/doc-1/values:batchGet"):
			gotRanges = r.URL.Query()["ranges"]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"spreadsheetId": "doc-1",
				"valueRanges": []map[string]any{
					{"range": "'Shirts'!A1:B6", "values": [][]any{
						{"", "Shirt"}, {"", "19"}, {"", "501"}, {}, {"36", "+"}, {"38", "-"},
					}},
					{"range": "'Kid''s'!A1:A1"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/v4/spreadsheets/doc-1"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sheets": []map[string]any{
					{"properties": map[string]any{"title": "Shirts"}},
					{"properties": map[string]any{"title": "Kid's"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &gotRanges
}

func testClientOpts(srv *httptest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithHTTPClient(srv.Client()),
	}
}

func TestGoogleSourceSnapshot(t *testing.T) {
	srv, ranges := newSheetsAPI(t, http.StatusOK)
	src := NewGoogleSource(context.Background(), "key", "doc-1", testClientOpts(srv))

	snap, err := FetchSnapshot(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, []string{"Shirts", "Kid's"}, snap.Sheets)
	require.Equal(t, []string{"'Shirts'", "'Kid''s'"}, *ranges)
	require.Len(t, snap.Products, 1)
	require.Equal(t, 501, snap.Products[0].Article)
	require.Equal(t, []int{36}, snap.Products[0].Sizes)
}

func TestGoogleSourceEmptySheet(t *testing.T) {
	srv, _ := newSheetsAPI(t, http.StatusOK)
	src := NewGoogleSource(context.Background(), "key", "doc-1", testClientOpts(srv))

	grids, err := src.FetchValues(context.Background(), []string{"Shirts", "Kid's"})
	require.NoError(t, err)
	require.NotNil(t, grids["Kid's"])
	require.Empty(t, grids["Kid's"])
}

func TestGoogleSourceUnavailable(t *testing.T) {
	srv, _ := newSheetsAPI(t, http.StatusForbidden)
	src := NewGoogleSource(context.Background(), "bad", "doc-1", testClientOpts(srv))

	_, err := src.ListSheets(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	_, err = src.FetchValues(context.Background(), []string{"Shirts"})
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestGoogleSourceMissingConfig(t *testing.T) {
	_, err := NewGoogleSource(context.Background(), "key", "", nil).ListSheets(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	require.ErrorContains(t, err, "SHEET_ID")

	_, err = NewGoogleSource(context.Background(), "", "doc-1", nil).ListSheets(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	require.ErrorContains(t, err, "GOOGLE_API_KEY")
}
