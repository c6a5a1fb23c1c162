package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bjs/parser/internal/config"
	"bjs/parser/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
  "totalRecordCount": 280,
  "pageInfo": {"recordStart": 121, "recordEnd": 240},
  "records": [
    {
      "allMeta": {
        "title": "Kettle Chips, 30 ct.",
        "gbi_categories": [
          {"1": "Grocery, Household & Pet", "2": "Snacks", "3": "Chips"},
          null,
          {"2": "Snacks", "1": "Grocery, Household & Pet", "3": null}
        ],
        "visualVariant": [
          {"nonvisualVariant": [{"product_url": "/product/kettle-chips/1", "clubid_price": "14.99_0001;15.49_0002", "displayPrice": "15.99"}]},
          {"nonvisualVariant": [{"product_url": "/product/kettle-chips/2", "clubid_price": "9.99_0001", "displayPrice": "10.99"}]}
        ]
      }
    },
    {
      "allMeta": {
        "title": "Gift Box",
        "gbi_categories": [],
        "visualVariant": [
          {"nonvisualVariant": [{"product_url": "/product/gift-box", "displayPrice": 24.5}]}
        ]
      }
    }
  ]
}`

func newTestSearchConfig(endpoint string) config.SearchConfig {
	return config.SearchConfig{
		Endpoint:   endpoint,
		ClubID:     "0001",
		PageSize:   120,
		Timeout:    5,
		Area:       "BCProduction",
		Collection: "productionB2CProducts",
		Fields:     []string{"title", "gbi_categories"},
	}
}

func TestSearchMapsRecords(t *testing.T) {
	var request map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &request))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchFixture))
	}))
	defer srv.Close()

	client := NewSearchClient(newTestSearchConfig(srv.URL), nil)
	page, err := client.Search(context.Background(), 120)
	require.NoError(t, err)

	require.EqualValues(t, 120, request["skip"])
	require.EqualValues(t, 120, request["pageSize"])
	require.Equal(t, "BCProduction", request["area"])
	require.Contains(t, request, "query")
	require.Nil(t, request["query"])
	refinements := request["refinements"].([]interface{})
	require.Equal(t, "Club0001", refinements[0].(map[string]interface{})["value"])

	want := &domain.SearchPage{
		Skip:             120,
		RecordEnd:        240,
		TotalRecordCount: 280,
		Items: []domain.Item{
			{
				Name: "Kettle Chips, 30 ct.",
				Categories: [][]string{
					{"Grocery, Household & Pet", "Snacks", "Chips"},
					{"Grocery, Household & Pet", "Snacks"},
				},
				URL:   "/product/kettle-chips/1",
				Price: []string{"9.99", "14.99"},
			},
			{
				Name:       "Gift Box",
				Categories: [][]string{},
				URL:        "/product/gift-box",
				Price:      []string{"24.5"},
			},
		},
	}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Errorf("search page mismatch (-want +got):\n%s", diff)
	}
	require.False(t, page.Done())
}

func TestSearchPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewSearchClient(newTestSearchConfig(srv.URL), nil)
	_, err := client.Search(context.Background(), 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestSortOrdinalsNumerically(t *testing.T) {
	keys := []string{"10", "2", "1", "9"}
	sortOrdinals(keys)
	require.Equal(t, []string{"1", "2", "9", "10"}, keys)
}

func TestPriceSelection(t *testing.T) {
	meta := recordMeta{
		VisualVariant: []visualVariant{
			{NonvisualVariant: []nonvisualVariant{{ClubIDPrice: "5.00_0002", DisplayPrice: "7.00"}}},
			{NonvisualVariant: []nonvisualVariant{{DisplayPrice: "7.00"}}},
		},
	}
	// No entry for the club falls back to the display price
	require.Equal(t, []string{"7.00"}, meta.price("0001"))
	require.Equal(t, []string{"5.00", "7.00"}, meta.price("0002"))

	require.Nil(t, recordMeta{}.price("0001"))
	require.True(t, lessPrice("9.99", "10.49"))
}

func TestSearchRejectsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": [`))
	}))
	defer srv.Close()

	client := NewSearchClient(newTestSearchConfig(srv.URL), nil)
	page, err := client.Search(context.Background(), 0)
	require.Error(t, err)
	require.Nil(t, page)
}
