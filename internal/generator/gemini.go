package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tryon/internal/entity"
)

const (
	geminiModel          = "gemini-2.5-flash-image"
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiTimeout        = 180 * time.Second
)

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiGenerateResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiGenerator produces try-on images through the Gemini image model with
// a single synchronous generateContent call.
type GeminiGenerator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiGenerator(apiKey, baseURL string) *GeminiGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiGenerator{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: geminiTimeout},
	}
}

func (g *GeminiGenerator) Kind() string {
	return entity.ProviderGemini
}

func (g *GeminiGenerator) ReportsProgress() bool {
	return false
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"task_id":       req.TaskID,
		"clothing_cnt":  len(req.ClothingImageURLs),
		"provider_kind": g.Kind(),
	}).Info("gemini_generate_start")

	// 服装图在前、人体图在后，与提示词中的顺序一致
	parts := make([]geminiPart, 0, len(req.ClothingImageURLs)+2)
	for i, url := range req.ClothingImageURLs {
		part, err := g.buildImagePart(ctx, url)
		if err != nil {
			return nil, transportErr(g.Kind(), fmt.Sprintf("prepare clothing image %d", i+1), err)
		}
		parts = append(parts, part)
	}
	bodyPart, err := g.buildImagePart(ctx, req.BodyImageURL)
	if err != nil {
		return nil, transportErr(g.Kind(), "prepare body image", err)
	}
	parts = append(parts, bodyPart)
	parts = append(parts, geminiPart{Text: geminiTryOnPrompt(len(req.ClothingImageURLs))})

	payload := geminiGenerateRequest{Contents: []geminiContent{{Parts: parts}}}
	payload.GenerationConfig.ResponseModalities = []string{"IMAGE"}

	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, protocolErr(g.Kind(), "marshal request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, geminiModel)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, transportErr(g.Kind(), "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(g.Kind(), "call generateContent", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(g.Kind(), "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, transportErr(g.Kind(), fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(body)), nil)
	}

	var decoded geminiGenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, protocolErr(g.Kind(), "decode response", err)
	}
	if decoded.Error != nil {
		return nil, transportErr(g.Kind(), decoded.Error.Message, nil)
	}
	if len(decoded.Candidates) == 0 {
		return nil, protocolErr(g.Kind(), "response has no candidates", nil)
	}

	candidate := decoded.Candidates[0]
	if strings.Contains(strings.ToUpper(candidate.FinishReason), "IMAGE_OTHER") {
		logrus.WithFields(logrus.Fields{
			"task_id":       req.TaskID,
			"finish_reason": candidate.FinishReason,
		}).Warn("gemini_rejected_image")
		return nil, rejectedErr(g.Kind(), "Gemini refused to generate the image.")
	}
	if candidate.Content == nil {
		return nil, protocolErr(g.Kind(), "candidate has no content", nil)
	}

	for _, part := range candidate.Content.Parts {
		if part.InlineData == nil || strings.TrimSpace(part.InlineData.Data) == "" {
			continue
		}
		image, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, protocolErr(g.Kind(), "decode inline image", err)
		}
		logrus.WithFields(logrus.Fields{
			"task_id":    req.TaskID,
			"image_size": len(image),
		}).Info("gemini_generate_done")
		return image, nil
	}

	return nil, protocolErr(g.Kind(), "response contained no image part", nil)
}

// buildImagePart downloads the input and normalizes it into an inline JPEG.
func (g *GeminiGenerator) buildImagePart(ctx context.Context, url string) (geminiPart, error) {
	raw, err := downloadImage(ctx, g.httpClient, url)
	if err != nil {
		return geminiPart{}, err
	}
	normalized, err := normalizeForUpload(raw)
	if err != nil {
		return geminiPart{}, err
	}
	return geminiPart{
		InlineData: &geminiInlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(normalized),
		},
	}, nil
}

func geminiTryOnPrompt(numClothingItems int) string {
	if numClothingItems <= 1 {
		return "Create a professional e-commerce fashion photo. Take the clothing from the first image and let the woman from the second image wear it. Generate a realistic, full-body shot of the woman wearing the clothing, with the lighting and shadows adjusted to match the environment."
	}
	return fmt.Sprintf("Create a professional e-commerce fashion photo. Take all %d clothing items from the first images and let the woman from the final image wear them together. Generate a realistic, full-body shot with adjusted lighting and shadows.", numClothingItems)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

var _ Generator = (*GeminiGenerator)(nil)
