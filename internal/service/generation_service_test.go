package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon/internal/entity"
	"tryon/internal/generator"
	"tryon/internal/storage"
)

// fakeRepo is a map-backed Repository good enough for orchestrator tests.
type fakeRepo struct {
	mu     sync.Mutex
	users  map[uint]*entity.DbUser
	assets map[string]*entity.DbAsset
	tasks  map[string]*entity.DbGenerationTask

	failTaskUpdates int // fail this many UpdateGenerationTask calls
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  make(map[uint]*entity.DbUser),
		assets: make(map[string]*entity.DbAsset),
		tasks:  make(map[string]*entity.DbGenerationTask),
	}
}

func (r *fakeRepo) CreateUser(_ context.Context, user *entity.DbUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = uint(len(r.users) + 1)
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeRepo) GetUserByID(_ context.Context, id uint) (*entity.DbUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (*entity.DbUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) UpdateUser(_ context.Context, _ uint, _ entity.UserUpdates) error {
	return nil
}

func (r *fakeRepo) CountUsers(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeRepo) CreateAsset(_ context.Context, asset *entity.DbAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.AssetID] = asset
	return nil
}

func (r *fakeRepo) GetAssetByAssetID(_ context.Context, assetID string) (*entity.DbAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assets[assetID], nil
}

func (r *fakeRepo) ListAssetsByAssetIDs(_ context.Context, assetIDs []string) ([]*entity.DbAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.DbAsset, 0, len(assetIDs))
	for _, id := range assetIDs {
		if a, ok := r.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListAssets(_ context.Context, _ entity.AssetQuery) ([]*entity.DbAsset, *entity.Meta, error) {
	return nil, &entity.Meta{}, nil
}

func (r *fakeRepo) UpdateAsset(_ context.Context, assetID string, updates entity.AssetUpdates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[assetID]
	if !ok {
		return nil
	}
	if updates.Part != nil {
		asset.Part = *updates.Part
	}
	if updates.Status != nil {
		asset.Status = *updates.Status
	}
	return nil
}

func (r *fakeRepo) DeleteAsset(_ context.Context, assetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assets, assetID)
	return nil
}

func (r *fakeRepo) CreateGenerationTask(_ context.Context, task *entity.DbGenerationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.CreatedAt = time.Now().UTC()
	r.tasks[task.TaskID] = task
	return nil
}

func (r *fakeRepo) GetGenerationTaskByTaskID(_ context.Context, taskID string) (*entity.DbGenerationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, nil
	}
	clone := *task
	return &clone, nil
}

func (r *fakeRepo) UpdateGenerationTask(_ context.Context, taskID string, updates entity.TaskUpdates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTaskUpdates > 0 {
		r.failTaskUpdates--
		return fmt.Errorf("simulated persistence failure")
	}
	task, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	if updates.Status != nil {
		task.Status = *updates.Status
	}
	if updates.ProviderTaskID != nil {
		task.ProviderTaskID = *updates.ProviderTaskID
	}
	if updates.ErrorMessage != nil {
		task.ErrorMessage = *updates.ErrorMessage
	}
	if updates.ResultAssetID != nil {
		task.ResultAssetID = *updates.ResultAssetID
	}
	if updates.CompletedAt != nil {
		task.CompletedAt = updates.CompletedAt
	}
	return nil
}

func (r *fakeRepo) ListGenerationTasks(_ context.Context, _ entity.TaskQuery) ([]*entity.DbGenerationTask, *entity.Meta, error) {
	return nil, &entity.Meta{}, nil
}

func (r *fakeRepo) DeleteGenerationTask(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
	return nil
}

func (r *fakeRepo) task(t *testing.T, taskID string) *entity.DbGenerationTask {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		t.Fatalf("task %s missing", taskID)
	}
	clone := *task
	return &clone
}

// fakeStorage resolves every key to a deterministic URL and records saves.
// Blobs are assumed present unless listed in missing.
type fakeStorage struct {
	mu      sync.Mutex
	saved   map[string][]byte
	missing map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: make(map[string][]byte), missing: make(map[string]bool)}
}

func (s *fakeStorage) Save(_ context.Context, data []byte, opts storage.SaveOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%s.%s", opts.Category, opts.BaseName, opts.Extension)
	s.saved[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *fakeStorage) ResolveReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.test/" + key, nil
}

func (s *fakeStorage) Exists(_ context.Context, key string, _ int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.missing[key], nil
}

// recordingProgress keeps the full sequence of reported percentages.
type recordingProgress struct {
	mu     sync.Mutex
	values map[string][]int
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{values: make(map[string][]int)}
}

func (p *recordingProgress) Set(_ context.Context, taskID string, percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[taskID] = append(p.values[taskID], percent)
	return nil
}

func (p *recordingProgress) Get(_ context.Context, taskID string) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := p.values[taskID]
	if len(seq) == 0 {
		return 0, false, nil
	}
	return seq[len(seq)-1], true, nil
}

func (p *recordingProgress) Close() error { return nil }

func (p *recordingProgress) sequence(taskID string) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values[taskID]...)
}

// scriptedGenerator runs a test-provided function and counts invocations.
type scriptedGenerator struct {
	kind            string
	reportsProgress bool
	generate        func(ctx context.Context, req generator.Request) ([]byte, error)

	mu    sync.Mutex
	calls int
}

func (g *scriptedGenerator) Kind() string          { return g.kind }
func (g *scriptedGenerator) ReportsProgress() bool { return g.reportsProgress }

func (g *scriptedGenerator) Generate(ctx context.Context, req generator.Request) ([]byte, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.generate(ctx, req)
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	repo     *fakeRepo
	store    *fakeStorage
	progress *recordingProgress
	gen      *scriptedGenerator
	svc      *GenerationService
	user     *entity.DbUser
}

func newFixture(t *testing.T, kind string, reportsProgress bool, generate func(ctx context.Context, req generator.Request) ([]byte, error)) *fixture {
	t.Helper()

	repo := newFakeRepo()
	store := newFakeStorage()
	prog := newRecordingProgress()
	gen := &scriptedGenerator{kind: kind, reportsProgress: reportsProgress, generate: generate}

	user := &entity.DbUser{Email: "fit@example.com", Role: entity.UserRoleUser, IsActive: true}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	svc := NewGenerationService(repo, store, generator.Registry{kind: gen}, prog, time.Hour)
	return &fixture{repo: repo, store: store, progress: prog, gen: gen, svc: svc, user: user}
}

func (f *fixture) addAsset(t *testing.T, assetID, category, part string, ownerID uint) {
	t.Helper()
	require.NoError(t, f.repo.CreateAsset(context.Background(), &entity.DbAsset{
		AssetID:  assetID,
		UserID:   ownerID,
		BlobKey:  "keys/" + assetID + ".jpg",
		FileSize: 100,
		Category: category,
		Part:     part,
		Status:   entity.AssetStatusAvailable,
	}))
}

func (f *fixture) createTask(t *testing.T, clothingIDs ...string) *entity.DbGenerationTask {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), f.user, entity.GenerateRequest{
		BodyAssetID:      "body-1",
		ClothingAssetIDs: clothingIDs,
		Provider:         f.gen.kind,
	})
	require.NoError(t, err)
	return task
}

func TestRunTaskCompletes(t *testing.T) {
	result := make([]byte, 2048)
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return result, nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusCompleted, stored.Status)
	assert.NotEmpty(t, stored.ResultAssetID)
	assert.Empty(t, stored.ErrorMessage)
	assert.NotNil(t, stored.CompletedAt)

	resultAsset, err := f.repo.GetAssetByAssetID(context.Background(), stored.ResultAssetID)
	require.NoError(t, err)
	require.NotNil(t, resultAsset)
	assert.Equal(t, entity.AssetCategoryGenerated, resultAsset.Category)
	assert.Equal(t, int64(2048), resultAsset.FileSize)
	assert.Equal(t, f.user.ID, resultAsset.UserID)

	// 直连服务商的模拟进度节奏
	assert.Equal(t, []int{5, 10, 40, 90, 100}, f.progress.sequence(task.TaskID))

	status, err := f.svc.TaskStatus(context.Background(), f.user.ID, task.TaskID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.Equal(t, stored.ResultAssetID, status.Result.AssetID)
	assert.NotEmpty(t, status.Result.URL)
}

func TestRunTaskProviderPartFromFirstClothing(t *testing.T) {
	var gotPart string
	f := newFixture(t, entity.ProviderVWFlux, false, func(_ context.Context, req generator.Request) ([]byte, error) {
		gotPart = req.Part
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartLower, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	assert.Equal(t, entity.PartLower, gotPart)
}

func TestRunTaskRejectionSurfacesProviderMessage(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return nil, &generator.Error{Kind: generator.KindRejected, Provider: entity.ProviderGemini, Message: "Gemini refused to generate the image."}
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "Gemini refused to generate the image.", stored.ErrorMessage)
	assert.Empty(t, stored.ResultAssetID)
	assert.NotNil(t, stored.CompletedAt)
}

func TestRunTaskTechnicalFailureGetsGenericMessage(t *testing.T) {
	f := newFixture(t, entity.ProviderVWCatVTON, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return nil, &generator.Error{Kind: generator.KindTransport, Provider: entity.ProviderVWCatVTON, Message: "http 502: backend down"}
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "generation failed using vwcatvton", stored.ErrorMessage)
	assert.NotContains(t, stored.ErrorMessage, "502")
}

func TestRunTaskMissingClothingNeverCallsProvider(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	// 创建后素材被删除，执行时校验失败
	require.NoError(t, f.repo.DeleteAsset(context.Background(), "cloth-1"))

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "clothing image not found", stored.ErrorMessage)
	assert.Zero(t, f.gen.callCount())
}

func TestRunTaskForeignClothingNeverCallsProvider(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	// 另一个用户的素材顶替原素材 ID
	require.NoError(t, f.repo.DeleteAsset(context.Background(), "cloth-1"))
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID+99)

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "clothing image not found", stored.ErrorMessage)
	assert.Zero(t, f.gen.callCount())
}

func TestRunTaskMissingBlobFails(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.store.mu.Lock()
	f.store.missing["keys/body-1.jpg"] = true
	f.store.mu.Unlock()

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "input image is no longer available", stored.ErrorMessage)
	assert.Zero(t, f.gen.callCount())
}

func TestRunTaskTerminalIsNoOp(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)
	first := f.repo.task(t, task.TaskID)
	require.Equal(t, entity.TaskStatusCompleted, first.Status)

	// 队列重复投递同一任务
	f.svc.RunTask(context.Background(), task.TaskID)

	second := f.repo.task(t, task.TaskID)
	assert.Equal(t, 1, f.gen.callCount())
	assert.Equal(t, first.ResultAssetID, second.ResultAssetID)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
}

func TestRunTaskProcessingPersistedBeforeProviderCall(t *testing.T) {
	var statusDuringCall string
	f := newFixture(t, entity.ProviderGemini, false, nil)
	f.gen.generate = func(ctx context.Context, req generator.Request) ([]byte, error) {
		task, err := f.repo.GetGenerationTaskByTaskID(ctx, req.TaskID)
		require.NoError(t, err)
		statusDuringCall = task.Status
		return []byte("img"), nil
	}
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	assert.Equal(t, entity.TaskStatusProcessing, statusDuringCall)
}

func TestRunTaskProviderTaskIDVisibleMidRun(t *testing.T) {
	var providerIDMidRun string
	f := newFixture(t, entity.ProviderFitroom, true, nil)
	f.gen.generate = func(ctx context.Context, req generator.Request) ([]byte, error) {
		require.NoError(t, req.SaveProviderTask(ctx, "fitroom-777"))
		task, err := f.repo.GetGenerationTaskByTaskID(ctx, req.TaskID)
		require.NoError(t, err)
		providerIDMidRun = task.ProviderTaskID
		req.Progress(35)
		req.Progress(80)
		return []byte("img"), nil
	}
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	assert.Equal(t, "fitroom-777", providerIDMidRun)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusCompleted, stored.Status)
	assert.Equal(t, "fitroom-777", stored.ProviderTaskID)

	// 自报进度的服务商不插入 40/90 模拟值
	assert.Equal(t, []int{5, 10, 35, 80, 100}, f.progress.sequence(task.TaskID))
}

func TestRunTaskProgressMonotonic(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	seq := f.progress.sequence(task.TaskID)
	for i := 1; i < len(seq); i++ {
		assert.GreaterOrEqual(t, seq[i], seq[i-1], "progress must never move backward: %v", seq)
	}
}

func TestRunTaskPanicForcesFailed(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		panic("provider blew up")
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "internal error", stored.ErrorMessage)
}

func TestFailTaskRetriesPersistOnce(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return nil, &generator.Error{Kind: generator.KindTransport, Provider: entity.ProviderGemini, Message: "boom"}
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	// processing 更新成功，终态第一次写入失败、重试成功
	f.repo.mu.Lock()
	f.repo.failTaskUpdates = 0
	f.repo.mu.Unlock()

	// 先让任务进入 processing 再注入一次失败
	f.gen.generate = func(_ context.Context, _ generator.Request) ([]byte, error) {
		f.repo.mu.Lock()
		f.repo.failTaskUpdates = 1
		f.repo.mu.Unlock()
		return nil, &generator.Error{Kind: generator.KindTransport, Provider: entity.ProviderGemini, Message: "boom"}
	}

	f.svc.RunTask(context.Background(), task.TaskID)

	stored := f.repo.task(t, task.TaskID)
	assert.Equal(t, entity.TaskStatusFailed, stored.Status)
	assert.Equal(t, "generation failed using gemini", stored.ErrorMessage)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	f.addAsset(t, "cloth-2", entity.AssetCategoryItem, entity.PartLower, f.user.ID)
	f.addAsset(t, "cloth-3", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)

	ctx := context.Background()

	cases := []struct {
		name    string
		req     entity.GenerateRequest
		wantErr string
	}{
		{
			name:    "unknown provider",
			req:     entity.GenerateRequest{BodyAssetID: "body-1", ClothingAssetIDs: []string{"cloth-1"}, Provider: "dalle"},
			wantErr: "unknown provider",
		},
		{
			name:    "no clothing",
			req:     entity.GenerateRequest{BodyAssetID: "body-1", ClothingAssetIDs: nil, Provider: entity.ProviderGemini},
			wantErr: "clothing images are required",
		},
		{
			name:    "too many clothing",
			req:     entity.GenerateRequest{BodyAssetID: "body-1", ClothingAssetIDs: []string{"cloth-1", "cloth-2", "cloth-3"}, Provider: entity.ProviderGemini},
			wantErr: "clothing images are required",
		},
		{
			name:    "missing body",
			req:     entity.GenerateRequest{BodyAssetID: "nope", ClothingAssetIDs: []string{"cloth-1"}, Provider: entity.ProviderGemini},
			wantErr: "body image not found",
		},
		{
			name:    "clothing used as body",
			req:     entity.GenerateRequest{BodyAssetID: "cloth-1", ClothingAssetIDs: []string{"cloth-2"}, Provider: entity.ProviderGemini},
			wantErr: "body image not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateTask(ctx, f.user, tc.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	// 两件服装是合法的
	task, err := f.svc.CreateTask(ctx, f.user, entity.GenerateRequest{
		BodyAssetID:      "body-1",
		ClothingAssetIDs: []string{"cloth-1", "cloth-2"},
		Provider:         entity.ProviderGemini,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusPending, task.Status)
	assert.Equal(t, []string{"cloth-1", "cloth-2"}, task.ClothingAssetIDs.ToSlice())
}

func TestTaskStatusScopedToOwner(t *testing.T) {
	f := newFixture(t, entity.ProviderGemini, false, func(_ context.Context, _ generator.Request) ([]byte, error) {
		return []byte("img"), nil
	})
	f.addAsset(t, "body-1", entity.AssetCategoryBody, "", f.user.ID)
	f.addAsset(t, "cloth-1", entity.AssetCategoryItem, entity.PartUpper, f.user.ID)
	task := f.createTask(t, "cloth-1")

	status, err := f.svc.TaskStatus(context.Background(), f.user.ID+1, task.TaskID)
	require.NoError(t, err)
	assert.Nil(t, status)
}
