package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tryon/internal/entity"
)

const (
	fitroomDefaultBaseURL = "https://platform.fitroom.app"
	fitroomTasksPath      = "/api/tryon/v2/tasks"
	fitroomPollInterval   = 3 * time.Second
	fitroomMaxPollRounds  = 60
)

// FitroomGenerator drives the FitRoom create-then-poll API. It is the one
// provider that reports its own progress percentages while polling.
type FitroomGenerator struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

func NewFitroomGenerator(apiKey, baseURL string) *FitroomGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = fitroomDefaultBaseURL
	}
	return &FitroomGenerator{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: fitroomPollInterval,
	}
}

func (f *FitroomGenerator) Kind() string {
	return entity.ProviderFitroom
}

func (f *FitroomGenerator) ReportsProgress() bool {
	return true
}

type fitroomCreateResponse struct {
	TaskID json.Number `json:"task_id"`
	Status string      `json:"status"`
}

type fitroomStatusResponse struct {
	Status            string `json:"status"`
	Progress          *int   `json:"progress"`
	DownloadSignedURL string `json:"download_signed_url"`
	Error             string `json:"error"`
}

func (f *FitroomGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	clothType := req.Part
	if !entity.ValidPart(clothType) {
		clothType = entity.PartUpper
	}

	logrus.WithFields(logrus.Fields{
		"task_id":    req.TaskID,
		"cloth_type": clothType,
	}).Info("fitroom_generate_start")

	bodyData, err := downloadImage(ctx, f.httpClient, req.BodyImageURL)
	if err != nil {
		return nil, transportErr(f.Kind(), "download body image", err)
	}
	clothData, err := downloadImage(ctx, f.httpClient, req.firstClothingURL())
	if err != nil {
		return nil, transportErr(f.Kind(), "download clothing image", err)
	}

	providerTaskID, err := f.createTask(ctx, bodyData, clothData, clothType)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"task_id":          req.TaskID,
		"provider_task_id": providerTaskID,
	}).Info("fitroom_task_created")

	// 立即持久化服务商任务 ID，失败只记录，内存里仍有 ID 可以继续轮询
	if req.SaveProviderTask != nil {
		if err := req.SaveProviderTask(ctx, providerTaskID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"task_id":          req.TaskID,
				"provider_task_id": providerTaskID,
			}).Error("fitroom_save_provider_task_failed")
		}
	}

	return f.pollUntilDone(ctx, req, providerTaskID)
}

func (f *FitroomGenerator) createTask(ctx context.Context, bodyData, clothData []byte, clothType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	modelPart, err := writer.CreateFormFile("model_image", "model.jpg")
	if err != nil {
		return "", protocolErr(f.Kind(), "build multipart form", err)
	}
	if _, err := modelPart.Write(bodyData); err != nil {
		return "", protocolErr(f.Kind(), "write model image", err)
	}
	clothPart, err := writer.CreateFormFile("cloth_image", "cloth.jpg")
	if err != nil {
		return "", protocolErr(f.Kind(), "build multipart form", err)
	}
	if _, err := clothPart.Write(clothData); err != nil {
		return "", protocolErr(f.Kind(), "write cloth image", err)
	}
	if err := writer.WriteField("cloth_type", clothType); err != nil {
		return "", protocolErr(f.Kind(), "write cloth_type", err)
	}
	if err := writer.WriteField("hd_mode", "false"); err != nil {
		return "", protocolErr(f.Kind(), "write hd_mode", err)
	}
	if err := writer.Close(); err != nil {
		return "", protocolErr(f.Kind(), "close multipart form", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+fitroomTasksPath, &buf)
	if err != nil {
		return "", transportErr(f.Kind(), "create request", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("X-API-KEY", f.apiKey)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return "", transportErr(f.Kind(), "create provider task", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportErr(f.Kind(), "read create response", err)
	}
	if resp.StatusCode >= 400 {
		return "", transportErr(f.Kind(), fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(body)), nil)
	}

	var created fitroomCreateResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", protocolErr(f.Kind(), "decode create response", err)
	}
	providerTaskID := strings.TrimSpace(created.TaskID.String())
	if providerTaskID == "" {
		return "", protocolErr(f.Kind(), "create response missing task_id field", nil)
	}
	return providerTaskID, nil
}

func (f *FitroomGenerator) pollUntilDone(ctx context.Context, req Request, providerTaskID string) ([]byte, error) {
	statusURL := fmt.Sprintf("%s%s/%s", f.baseURL, fitroomTasksPath, providerTaskID)

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= fitroomMaxPollRounds; attempt++ {
		select {
		case <-ctx.Done():
			return nil, transportErr(f.Kind(), "poll cancelled", ctx.Err())
		case <-ticker.C:
		}

		status, err := f.fetchStatus(ctx, statusURL)
		if err != nil {
			return nil, err
		}

		// 服务商自报进度原样写入进度通道，字段缺失时按 10 处理
		progress := 10
		if status.Progress != nil {
			progress = *status.Progress
		}
		req.reportProgress(progress)

		switch strings.ToUpper(strings.TrimSpace(status.Status)) {
		case "COMPLETED":
			if strings.TrimSpace(status.DownloadSignedURL) == "" {
				return nil, protocolErr(f.Kind(), "completed without download_signed_url", nil)
			}
			image, err := downloadImage(ctx, f.httpClient, status.DownloadSignedURL)
			if err != nil {
				return nil, transportErr(f.Kind(), "download result", err)
			}
			logrus.WithFields(logrus.Fields{
				"task_id":          req.TaskID,
				"provider_task_id": providerTaskID,
				"image_size":       len(image),
			}).Info("fitroom_generate_done")
			return image, nil
		case "FAILED":
			message := strings.TrimSpace(status.Error)
			if message == "" {
				message = "Unknown error"
			}
			return nil, rejectedErr(f.Kind(), message)
		default:
			logrus.WithFields(logrus.Fields{
				"task_id":          req.TaskID,
				"provider_task_id": providerTaskID,
				"status":           status.Status,
				"progress":         progress,
				"attempt":          attempt,
			}).Debug("fitroom_poll_pending")
		}
	}

	return nil, timeoutErr(f.Kind(), fmt.Sprintf("generation timed out after %ds", fitroomMaxPollRounds*int(f.pollInterval.Seconds())))
}

func (f *FitroomGenerator) fetchStatus(ctx context.Context, statusURL string) (*fitroomStatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, transportErr(f.Kind(), "create poll request", err)
	}
	httpReq.Header.Set("X-API-KEY", f.apiKey)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(f.Kind(), "poll provider task", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(f.Kind(), "read poll response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, transportErr(f.Kind(), fmt.Sprintf("poll http %d: %s", resp.StatusCode, snippet(body)), nil)
	}

	var status fitroomStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, protocolErr(f.Kind(), "decode poll response", err)
	}
	return &status, nil
}

var _ Generator = (*FitroomGenerator)(nil)
