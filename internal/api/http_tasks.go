package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tryon/internal/entity"
	"tryon/internal/queue"
)

// CreateGeneration 创建试穿生成任务并入队
func (h *HTTPHandler) CreateGeneration(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	dbUser, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil || dbUser == nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load user for generation")
		InternalError(c, "failed to create task")
		return
	}

	task, err := h.generationService.CreateTask(ctx, dbUser, req)
	if err != nil {
		BadRequest(c, ErrCodeInvalidRequest, err.Error())
		return
	}

	if err := h.taskQueue.Enqueue(task.TaskID); err != nil {
		// 入队失败时回收刚创建的记录，客户端可直接重试
		if delErr := h.repo.DeleteGenerationTask(ctx, task.TaskID); delErr != nil {
			logrus.WithError(delErr).WithField("task_id", task.TaskID).Warn("failed to clean up unqueued task")
		}
		if errors.Is(err, queue.ErrQueueFull) {
			ServiceUnavailable(c, "too many pending tasks, try again later")
			return
		}
		logrus.WithError(err).Error("failed to enqueue generation task")
		ServiceUnavailable(c, "task queue unavailable")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.TaskID,
		"status":  task.Status,
	})
}

// GetTask 查询任务状态与实时进度
func (h *HTTPHandler) GetTask(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	taskID := strings.TrimSpace(c.Param("id"))
	if taskID == "" {
		MissingField(c, "id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status, err := h.generationService.TaskStatus(ctx, user.ID, taskID)
	if err != nil {
		logrus.WithError(err).WithField("task_id", taskID).Error("failed to load task status")
		InternalError(c, "failed to load task")
		return
	}
	if status == nil {
		NotFound(c, ErrCodeRecordNotFound, "task not found")
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListTasks 分页列出当前用户的生成任务
func (h *HTTPHandler) ListTasks(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var query entity.TaskQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		InvalidPayload(c)
		return
	}
	query.UserID = user.ID

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	tasks, meta, err := h.repo.ListGenerationTasks(ctx, query)
	if err != nil {
		logrus.WithError(err).Error("failed to list tasks")
		InternalError(c, "failed to list tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": tasks,
		"meta":  meta,
	})
}

// AdminListTasks 管理员查看全部用户的生成任务
func (h *HTTPHandler) AdminListTasks(c *gin.Context) {
	var query entity.TaskQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		InvalidPayload(c)
		return
	}
	// UserID 为零值时不过滤用户
	query.UserID = 0

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	tasks, meta, err := h.repo.ListGenerationTasks(ctx, query)
	if err != nil {
		logrus.WithError(err).Error("failed to list tasks")
		InternalError(c, "failed to list tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": tasks,
		"meta":  meta,
	})
}

// DeleteTask 删除当前用户的任务记录，不影响已生成的素材
func (h *HTTPHandler) DeleteTask(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	taskID := strings.TrimSpace(c.Param("id"))
	if taskID == "" {
		MissingField(c, "id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	task, err := h.repo.GetGenerationTaskByTaskID(ctx, taskID)
	if err != nil {
		logrus.WithError(err).Error("failed to load task")
		InternalError(c, "failed to delete task")
		return
	}
	if task == nil || task.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "task not found")
		return
	}

	if err := h.repo.DeleteGenerationTask(ctx, taskID); err != nil {
		logrus.WithError(err).Error("failed to delete task")
		InternalError(c, "failed to delete task")
		return
	}

	c.Status(http.StatusNoContent)
}
