package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/pharmacy/internal/models"
)

// NewClient connects and checks the cluster answers Info.
func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// Document is the indexed projection of a medicine.
type Document struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Company  string `json:"company"`
	Barcode  string `json:"barcode"`
	Category string `json:"category,omitempty"`
}

func NewDocument(m *models.Medicine) Document {
	d := Document{ID: m.ID, Name: m.Name, Company: m.Company, Barcode: m.Barcode}
	if m.Category != nil {
		d.Category = m.Category.Name
	}
	return d
}

type MedicineIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func (s *MedicineIndex) Put(ctx context.Context, m *models.Medicine) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(NewDocument(m)); err != nil {
		return err
	}

	res, err := s.ES.Index(s.Index, &buf,
		s.ES.Index.WithContext(ctx),
		s.ES.Index.WithDocumentID(strconv.FormatUint(uint64(m.ID), 10)),
		s.ES.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("index medicine %d: %w", m.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index medicine %d: %s", m.ID, res.Status())
	}
	return nil
}

func (s *MedicineIndex) Remove(ctx context.Context, id uint) error {
	res, err := s.ES.Delete(s.Index, strconv.FormatUint(uint64(id), 10),
		s.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete medicine %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete medicine %d: %s", id, res.Status())
	}
	return nil
}

// Search returns matching medicine ids in relevance order.
func (s *MedicineIndex) Search(ctx context.Context, query string, from, size int) (int64, []uint, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "company", "category", "barcode"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	ids := make([]uint, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		ids[i] = hit.Source.ID
	}
	return r.Hits.Total.Value, ids, nil
}
