package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon/internal/entity"
)

func classifyFixture(t *testing.T, reply string, status int) (*ClassifyService, *fakeRepo, *int) {
	t.Helper()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 10, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		require.NotNil(t, req.Messages[0].Content[1].ImageURL)

		w.WriteHeader(status)
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)

	repo := newFakeRepo()
	svc := NewClassifyService(repo, newFakeStorage(), "sk-test", srv.URL, "gpt-4.1-mini", time.Hour)
	return svc, repo, &calls
}

func addClassifyAsset(t *testing.T, repo *fakeRepo, part, category, status string) {
	t.Helper()
	require.NoError(t, repo.CreateAsset(context.Background(), &entity.DbAsset{
		AssetID:  "item-1",
		UserID:   1,
		BlobKey:  "keys/item-1.jpg",
		Category: category,
		Part:     part,
		Status:   status,
	}))
}

func TestDetectAndStoreWritesPart(t *testing.T) {
	svc, repo, _ := classifyFixture(t, "Lower", http.StatusOK)
	addClassifyAsset(t, repo, "", entity.AssetCategoryItem, entity.AssetStatusAvailable)

	svc.detectAndStore("item-1")

	asset, err := repo.GetAssetByAssetID(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PartLower, asset.Part)
}

func TestDetectAndStoreIgnoresUnexpectedAnswer(t *testing.T) {
	svc, repo, _ := classifyFixture(t, "a dress, probably", http.StatusOK)
	addClassifyAsset(t, repo, "", entity.AssetCategoryItem, entity.AssetStatusAvailable)

	svc.detectAndStore("item-1")

	asset, err := repo.GetAssetByAssetID(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Empty(t, asset.Part)
}

func TestDetectAndStoreLeavesPartOnAPIError(t *testing.T) {
	svc, repo, _ := classifyFixture(t, "upper", http.StatusBadGateway)
	addClassifyAsset(t, repo, "", entity.AssetCategoryItem, entity.AssetStatusAvailable)

	svc.detectAndStore("item-1")

	asset, err := repo.GetAssetByAssetID(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Empty(t, asset.Part)
}

func TestDetectAndStoreSkipsNonCandidates(t *testing.T) {
	cases := []struct {
		name     string
		part     string
		category string
		status   string
	}{
		{"already classified", entity.PartUpper, entity.AssetCategoryItem, entity.AssetStatusAvailable},
		{"body image", "", entity.AssetCategoryBody, entity.AssetStatusAvailable},
		{"not available", "", entity.AssetCategoryItem, "deleted"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, calls := classifyFixture(t, "upper", http.StatusOK)
			addClassifyAsset(t, repo, tc.part, tc.category, tc.status)

			svc.detectAndStore("item-1")

			assert.Zero(t, *calls)
			asset, err := repo.GetAssetByAssetID(context.Background(), "item-1")
			require.NoError(t, err)
			assert.Equal(t, tc.part, asset.Part)
		})
	}
}

func TestDetectPartAsyncNoOpWithoutKey(t *testing.T) {
	repo := newFakeRepo()
	svc := NewClassifyService(repo, newFakeStorage(), "", "", "", time.Hour)
	// 没配 API key 时直接返回，不起 goroutine
	svc.DetectPartAsync("item-1")
}
