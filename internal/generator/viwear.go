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
)

const viwearTimeout = 120 * time.Second

// ViWearGenerator covers both ViWear model endpoints (flux and catvton),
// which share one request and response shape and differ only by URL.
type ViWearGenerator struct {
	kind       string
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewViWearGenerator(kind, endpoint, token string) *ViWearGenerator {
	return &ViWearGenerator{
		kind:       kind,
		endpoint:   strings.TrimSpace(endpoint),
		token:      token,
		httpClient: &http.Client{Timeout: viwearTimeout},
	}
}

func (v *ViWearGenerator) Kind() string {
	return v.kind
}

func (v *ViWearGenerator) ReportsProgress() bool {
	return false
}

type viwearRequest struct {
	Image   string `json:"image"`
	Garment string `json:"garment"`
	Part    string `json:"part"`
	Token   string `json:"token"`
}

type viwearResponse struct {
	ImageBase64 string `json:"image_base64"`
}

func (v *ViWearGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"task_id":       req.TaskID,
		"part":          req.Part,
		"provider_kind": v.kind,
	}).Info("viwear_generate_start")

	bodyData, err := downloadImage(ctx, v.httpClient, req.BodyImageURL)
	if err != nil {
		return nil, transportErr(v.kind, "download body image", err)
	}
	garmentData, err := downloadImage(ctx, v.httpClient, req.firstClothingURL())
	if err != nil {
		return nil, transportErr(v.kind, "download clothing image", err)
	}

	payload := viwearRequest{
		Image:   base64.StdEncoding.EncodeToString(bodyData),
		Garment: base64.StdEncoding.EncodeToString(garmentData),
		Part:    req.Part,
		Token:   v.token,
	}
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, protocolErr(v.kind, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, transportErr(v.kind, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(v.kind, "call model endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(v.kind, "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, transportErr(v.kind, fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(body)), nil)
	}

	var decoded viwearResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, protocolErr(v.kind, "decode response", err)
	}
	if strings.TrimSpace(decoded.ImageBase64) == "" {
		return nil, protocolErr(v.kind, "response missing image_base64 field", nil)
	}

	image, err := base64.StdEncoding.DecodeString(decoded.ImageBase64)
	if err != nil {
		return nil, protocolErr(v.kind, "decode image_base64", err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":    req.TaskID,
		"image_size": len(image),
	}).Info("viwear_generate_done")
	return image, nil
}

var _ Generator = (*ViWearGenerator)(nil)
