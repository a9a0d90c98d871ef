package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/pharmacy/internal/models"
)

type fakeES struct {
	mu    sync.Mutex
	calls []string
	body  map[string]string
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.body[r.Method+" "+r.URL.Path] = string(b)
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[{"_source":{"id":7,"name":"Paracetamol"}},{"_source":{"id":3,"name":"Panadol"}}]}}`))
	default:
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}
}

func newTestIndex(t *testing.T) (*MedicineIndex, *fakeES) {
	t.Helper()
	f := &fakeES{body: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &MedicineIndex{ES: es, Index: "medicines"}, f
}

func TestMedicineIndex_Put(t *testing.T) {
	idx, f := newTestIndex(t)
	m := &models.Medicine{ID: 7, Name: "Paracetamol", Company: "Acme", Barcode: "036000291452",
		Category: &models.Category{Name: "Analgesics"}}

	require.NoError(t, idx.Put(context.Background(), m))

	require.Len(t, f.calls, 1)
	assert.Equal(t, "PUT /medicines/_doc/7", f.calls[0])

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(f.body[f.calls[0]]), &doc))
	assert.Equal(t, "Analgesics", doc.Category)
}

func TestMedicineIndex_RemoveMissingIsNotAnError(t *testing.T) {
	idx, _ := newTestIndex(t)
	assert.NoError(t, idx.Remove(context.Background(), 99))
}

func TestMedicineIndex_SearchReturnsIDsInOrder(t *testing.T) {
	idx, f := newTestIndex(t)

	total, ids, err := idx.Search(context.Background(), "para", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []uint{7, 3}, ids)
	assert.Contains(t, f.body["POST /medicines/_search"], "multi_match")
}
