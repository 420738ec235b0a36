package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"picker-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderServiceClient_UpdateStatus(t *testing.T) {
	var method, path string
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewOrderServiceClient(UpstreamConfig{BaseURL: server.URL, UserID: 42, OrganizationID: 3})
	crate := &models.CrateLabel{Label: "CRATE-REF-1", Items: models.Manifest{"101": 5}}

	err := client.UpdateStatus(context.Background(), "REF-1", models.OrderStatusPacked, []string{crate.Label}, NewPackageMetadata(crate))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/order-service/order/REF-1", path)
	assert.Equal(t, float64(3), body["organizationId"])
	assert.Equal(t, "PACKED", body["status"])
	assert.JSONEq(t, `{"id":42}`, body["user"].(string))
	assert.JSONEq(t, `{"crates":["CRATE-REF-1"]}`, body["details"].(string))

	meta, err := json.Marshal(body["packageMetaData"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"packages":{"CRATE-REF-1":{"weight":0,"items":{"101":5}}}}`, string(meta))
}

func TestOrderServiceClient_StatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"created", http.StatusCreated, false},
		{"accepted", http.StatusAccepted, true},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("upstream says no"))
			}))
			defer server.Close()

			client := NewOrderServiceClient(UpstreamConfig{BaseURL: server.URL})
			err := client.UpdateStatus(context.Background(), "REF-2", "PACKED", nil, PackageMetadata{})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var upstream *UpstreamError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, tt.status, upstream.StatusCode)
			assert.Equal(t, "upstream says no", upstream.Body)
		})
	}
}

func TestOrderServiceClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewOrderServiceClient(UpstreamConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	err := client.UpdateStatus(context.Background(), "REF-3", "PACKED", nil, PackageMetadata{})
	require.Error(t, err)
	var upstream *UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestInventoryServiceClient_UpdateStock(t *testing.T) {
	var method, path string
	var body stockUpdate
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewInventoryServiceClient(UpstreamConfig{BaseURL: server.URL, OrganizationID: 9})
	require.NoError(t, client.UpdateStock(context.Background(), 101, 7, 5))

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/inventory-service/item", path)
	assert.Equal(t, stockUpdate{OrganizationID: 9, ProductID: 101, StoreID: 7, Stock: 5}, body)
}
