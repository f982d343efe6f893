package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tryon/internal/entity"
	"tryon/internal/model"
	"tryon/internal/storage"
)

const classifyPrompt = "Analyze this clothing image and determine which part of the body it belongs to. Respond with ONLY one word: 'upper' for upper body clothing (t-shirts, shirts, jackets, tops), 'lower' for lower body clothing (pants, jeans, skirts, shorts), or 'full_set' for full-body clothing (dresses, jumpsuits)."

// ClassifyService 上传后异步识别服装部位（OpenAI Vision 兼容接口）
type ClassifyService struct {
	repo       model.Repository
	storage    storage.Storage
	apiKey     string
	baseURL    string
	modelName  string
	signedTTL  time.Duration
	httpClient *http.Client
}

// NewClassifyService 创建分类服务实例
func NewClassifyService(repo model.Repository, store storage.Storage, apiKey, baseURL, modelName string, signedTTL time.Duration) *ClassifyService {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = "gpt-4.1-mini"
	}
	if signedTTL <= 0 {
		signedTTL = 2 * time.Hour
	}
	return &ClassifyService{
		repo:       repo,
		storage:    store,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		modelName:  modelName,
		signedTTL:  signedTTL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// DetectPartAsync 后台识别素材部位。失败不影响素材可用性，
// part 仍为空时生成阶段按服务商默认处理。
func (s *ClassifyService) DetectPartAsync(assetID string) {
	if s == nil || s.apiKey == "" {
		return
	}
	go s.detectAndStore(assetID)
}

func (s *ClassifyService) detectAndStore(assetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	log := logrus.WithField("asset_id", assetID)

	asset, err := s.repo.GetAssetByAssetID(ctx, assetID)
	if err != nil {
		log.WithError(err).Warn("classify: load asset failed")
		return
	}
	if asset == nil || asset.Category != entity.AssetCategoryItem {
		return
	}
	if asset.Part != "" || asset.Status != entity.AssetStatusAvailable {
		return
	}

	imageURL, err := s.storage.ResolveReadURL(ctx, asset.BlobKey, s.signedTTL)
	if err != nil {
		log.WithError(err).Warn("classify: resolve image url failed")
		return
	}

	part, err := s.detectPart(ctx, imageURL)
	if err != nil {
		log.WithError(err).Warn("classify: detection failed")
		return
	}
	if !entity.ValidPart(part) {
		log.WithField("part", part).Warn("classify: unexpected answer, leaving part empty")
		return
	}

	if err := s.repo.UpdateAsset(ctx, assetID, entity.AssetUpdates{Part: &part}); err != nil {
		log.WithError(err).Warn("classify: store part failed")
		return
	}
	log.WithField("part", part).Info("clothing part detected")
}

type classifyImageRef struct {
	URL string `json:"url"`
}

type classifyMessageContent struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *classifyImageRef `json:"image_url,omitempty"`
}

type classifyMessage struct {
	Role    string                   `json:"role"`
	Content []classifyMessageContent `json:"content"`
}

type classifyRequest struct {
	Model     string            `json:"model"`
	Messages  []classifyMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

type classifyResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *ClassifyService) detectPart(ctx context.Context, imageURL string) (string, error) {
	payload := classifyRequest{
		Model:     s.modelName,
		MaxTokens: 10,
		Messages: []classifyMessage{{
			Role: "user",
			Content: []classifyMessageContent{
				{Type: "text", Text: classifyPrompt},
				{Type: "image_url", ImageURL: &classifyImageRef{URL: imageURL}},
			},
		}},
	}

	bs, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(bs))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call vision api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("vision api http %d", resp.StatusCode)
	}

	var decoded classifyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("vision api: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("vision api returned no choices")
	}

	return strings.ToLower(strings.TrimSpace(decoded.Choices[0].Message.Content)), nil
}
