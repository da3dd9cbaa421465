package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yoockh/careerpath/internal/logger"
	"github.com/yoockh/careerpath/internal/models"
	"github.com/yoockh/careerpath/internal/providers/textextract/pdftest"
	mongorepo "github.com/yoockh/careerpath/internal/repositories/mongo"
	"github.com/yoockh/careerpath/internal/storage"
	"github.com/yoockh/careerpath/internal/utils"
)

const validRoadmapJSON = `{"roadmap":[{"week":1,"title":"Review Python fundamentals","description":"...","resources":["https://x"]}]}`

type fakeGenerator struct {
	raw   string
	err   error
	block bool
	delay time.Duration // sleeps without watching ctx

	mu     sync.Mutex
	calls  int
	system string
	user   string
}

func (g *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.system, g.user = system, user
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.raw, g.err
}

func (g *fakeGenerator) Model() string { return "fake-model" }

type storedUser struct {
	resumeText string
	targetRole string
	roadmap    models.Roadmap
}

type memStore struct {
	mu    sync.Mutex
	users map[string]*storedUser
	saves int
}

func newMemStore(userIDs ...string) *memStore {
	s := &memStore{users: map[string]*storedUser{}}
	for _, id := range userIDs {
		s.users[id] = &storedUser{roadmap: models.Roadmap{}}
	}
	return s
}

func (s *memStore) Save(ctx context.Context, userID, resumeText, targetRole string, rm models.Roadmap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return utils.ErrNotFound
	}
	s.saves++
	u.resumeText, u.targetRole, u.roadmap = resumeText, targetRole, rm
	return nil
}

func (s *memStore) Load(ctx context.Context, userID string) (models.Roadmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return append(models.Roadmap{}, u.roadmap...), nil
}

func (s *memStore) ToggleWeek(ctx context.Context, userID string, week int) (models.Roadmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	found := false
	for i := range u.roadmap {
		if u.roadmap[i].Week == week {
			u.roadmap[i].Completed = !u.roadmap[i].Completed
			found = true
		}
	}
	if !found {
		return nil, mongorepo.ErrWeekNotFound
	}
	return append(models.Roadmap{}, u.roadmap...), nil
}

type memScratch struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes int
	putErr  error
}

func newMemScratch() *memScratch { return &memScratch{objects: map[string][]byte{}} }

func (s *memScratch) Put(ctx context.Context, name string, r io.Reader) (storage.Object, error) {
	if s.putErr != nil {
		return storage.Object{}, s.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	obj := storage.Object{Name: fmt.Sprintf("obj-%d-%s", s.puts, name), Size: int64(len(b))}
	s.objects[obj.Name] = b
	return obj, nil
}

func (s *memScratch) Read(ctx context.Context, obj storage.Object) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[obj.Name]
	if !ok {
		return nil, errors.New("object missing")
	}
	return b, nil
}

func (s *memScratch) Delete(ctx context.Context, obj storage.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.objects, obj.Name)
	return nil
}

func (s *memScratch) assertReleased(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deletes != s.puts || len(s.objects) != 0 {
		t.Fatalf("scratch not released: puts=%d deletes=%d live=%d", s.puts, s.deletes, len(s.objects))
	}
}

type memRuns struct {
	mu   sync.Mutex
	rows []*models.GenerationRun
	err  error
}

func (r *memRuns) Insert(ctx context.Context, run *models.GenerationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, run)
	return r.err
}

func (r *memRuns) last(t *testing.T) *models.GenerationRun {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) == 0 {
		t.Fatalf("no run recorded")
	}
	return r.rows[len(r.rows)-1]
}

type fixture struct {
	svc     RoadmapService
	gen     *fakeGenerator
	store   *memStore
	scratch *memScratch
	runs    *memRuns
}

func newFixture(gen *fakeGenerator, opts ...func(*RoadmapServiceDeps)) *fixture {
	f := &fixture{
		gen:     gen,
		store:   newMemStore("u1"),
		scratch: newMemScratch(),
		runs:    &memRuns{},
	}
	deps := RoadmapServiceDeps{
		Generator:         gen,
		Store:             f.store,
		Scratch:           f.scratch,
		Runs:              f.runs,
		Logger:            logger.Discard(),
		GenerationTimeout: time.Second,
	}
	for _, o := range opts {
		o(&deps)
	}
	f.svc = NewRoadmapService(deps)
	return f
}

func TestGenerateRoadmapPersistsValidatedRoadmap(t *testing.T) {
	f := newFixture(&fakeGenerator{raw: validRoadmapJSON})
	ctx := context.Background()

	rm, err := f.svc.GenerateRoadmap(ctx, "u1", pdftest.Build("Python, 3 years"), "Backend Engineer")
	if err != nil {
		t.Fatalf("GenerateRoadmap: %v", err)
	}
	if len(rm) != 1 || rm[0].Week != 1 || rm[0].Title != "Review Python fundamentals" {
		t.Fatalf("unexpected roadmap: %+v", rm)
	}

	loaded, err := f.svc.GetRoadmap(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRoadmap: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Week != 1 || loaded[0].Title != rm[0].Title || loaded[0].Resources[0] != "https://x" {
		t.Fatalf("loaded roadmap differs: %+v", loaded)
	}

	u := f.store.users["u1"]
	if !strings.Contains(u.resumeText, "Python, 3 years") || u.targetRole != "Backend Engineer" {
		t.Fatalf("source fields not stored with roadmap: %+v", u)
	}
	if !strings.Contains(f.gen.user, "Python, 3 years") || !strings.Contains(f.gen.user, "Target Role: Backend Engineer") {
		t.Fatalf("prompt missing inputs: %q", f.gen.user)
	}
	f.scratch.assertReleased(t)

	run := f.runs.last(t)
	if run.Status != models.RunStatusCompleted || run.ItemCount != 1 || run.Model != "fake-model" {
		t.Fatalf("unexpected run row: %+v", run)
	}
	want := []string{StageReceived, StageExtracting, StagePrompting, StageGenerating, StageValidating, StagePersisting, StageCleaningUp, StageCompleted}
	if strings.Join(run.Stages, ",") != strings.Join(want, ",") {
		t.Fatalf("stages: got=%v want=%v", run.Stages, want)
	}
}

func TestGenerateMalformedResponseLeavesStoreUntouched(t *testing.T) {
	f := newFixture(&fakeGenerator{raw: "Sure, here's your plan: ..."})
	prior := models.Roadmap{{Week: 1, Title: "Old plan", Resources: []string{}}}
	f.store.users["u1"].roadmap = prior

	_, err := f.svc.GenerateRoadmap(context.Background(), "u1", pdftest.Build("Python, 3 years"), "Backend Engineer")
	if !utils.IsKind(err, utils.KindMalformedResponse) {
		t.Fatalf("want MalformedResponseError, got %v", err)
	}
	if utils.StageOf(err) != StageValidating {
		t.Fatalf("stage: got=%q", utils.StageOf(err))
	}
	if strings.Contains(err.Error(), "Sure, here's") {
		t.Fatalf("raw payload leaked: %v", err)
	}

	loaded, err := f.svc.GetRoadmap(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetRoadmap: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Title != "Old plan" {
		t.Fatalf("prior roadmap changed: %+v", loaded)
	}
	if f.store.saves != 0 {
		t.Fatalf("store written on failure: saves=%d", f.store.saves)
	}
	f.scratch.assertReleased(t)

	run := f.runs.last(t)
	if run.Status != models.RunStatusFailed || run.FailedStage != StageValidating || run.ErrorKind != string(utils.KindMalformedResponse) {
		t.Fatalf("unexpected run row: %+v", run)
	}
}

func TestGenerateTimeoutReleasesUpload(t *testing.T) {
	f := newFixture(&fakeGenerator{block: true}, func(d *RoadmapServiceDeps) {
		d.GenerationTimeout = 20 * time.Millisecond
	})

	start := time.Now()
	_, err := f.svc.GenerateRoadmap(context.Background(), "u1", pdftest.Build("Python, 3 years"), "Backend Engineer")
	if !utils.IsKind(err, utils.KindGenerationTimeout) {
		t.Fatalf("want GenerationTimeoutError, got %v", err)
	}
	if utils.StageOf(err) != StageGenerating {
		t.Fatalf("stage: got=%q", utils.StageOf(err))
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("generation bound not applied")
	}
	f.scratch.assertReleased(t)
	if f.store.saves != 0 {
		t.Fatalf("store written on failure")
	}
}

func TestGenerateBoundHoldsForGeneratorIgnoringContext(t *testing.T) {
	gen := &fakeGenerator{raw: validRoadmapJSON, delay: 300 * time.Millisecond}
	f := newFixture(gen, func(d *RoadmapServiceDeps) {
		d.GenerationTimeout = 20 * time.Millisecond
	})

	start := time.Now()
	rm, err := f.svc.GenerateRoadmap(context.Background(), "u1", pdftest.Build("Python, 3 years"), "Backend Engineer")
	if !utils.IsKind(err, utils.KindGenerationTimeout) {
		t.Fatalf("want GenerationTimeoutError, got rm=%v err=%v", rm, err)
	}
	if utils.StageOf(err) != StageGenerating {
		t.Fatalf("stage: got=%q", utils.StageOf(err))
	}
	if elapsed := time.Since(start); elapsed >= gen.delay {
		t.Fatalf("waited for the slow generator: %s", elapsed)
	}

	// the late result must never reach the store
	time.Sleep(gen.delay + 50*time.Millisecond)
	f.store.mu.Lock()
	saves := f.store.saves
	f.store.mu.Unlock()
	if saves != 0 {
		t.Fatalf("late generation persisted: saves=%d", saves)
	}
	f.scratch.assertReleased(t)
}

func TestGenerateCancelledRequestStillReleasesUpload(t *testing.T) {
	f := newFixture(&fakeGenerator{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.svc.GenerateRoadmap(ctx, "u1", pdftest.Build("Python"), "")
	if !utils.IsKind(err, utils.KindGenerationUnavailable) {
		t.Fatalf("want GenerationUnavailableError, got %v", err)
	}
	f.scratch.assertReleased(t)
}

func TestGenerateFailureKinds(t *testing.T) {
	cases := []struct {
		name      string
		doc       []byte
		gen       *fakeGenerator
		kind      utils.Kind
		stage     string
		status    int
		generated bool
	}{
		{
			name:  "not a pdf",
			doc:   []byte("plain text resume"),
			gen:   &fakeGenerator{raw: validRoadmapJSON},
			kind:  utils.KindDocumentFormat,
			stage: StageExtracting, status: 400,
		},
		{
			name:  "pdf without text",
			doc:   pdftest.Build(),
			gen:   &fakeGenerator{raw: validRoadmapJSON},
			kind:  utils.KindDocumentEmpty,
			stage: StageExtracting, status: 400,
		},
		{
			name:  "quota",
			doc:   pdftest.Build("Go"),
			gen:   &fakeGenerator{err: utils.K(utils.KindGenerationQuota, "fake", "rate limited", nil)},
			kind:  utils.KindGenerationQuota,
			stage: StageGenerating, status: 503, generated: true,
		},
		{
			name:  "unclassified generator error",
			doc:   pdftest.Build("Go"),
			gen:   &fakeGenerator{err: errors.New("connection reset")},
			kind:  utils.KindGenerationUnavailable,
			stage: StageGenerating, status: 503, generated: true,
		},
		{
			name:  "item without title",
			doc:   pdftest.Build("Go"),
			gen:   &fakeGenerator{raw: `{"roadmap":[{"week":1,"title":"A"},{"week":2,"title":"  "}]}`},
			kind:  utils.KindInvalidRoadmapItem,
			stage: StageValidating, status: 502, generated: true,
		},
		{
			name:  "top level array",
			doc:   pdftest.Build("Go"),
			gen:   &fakeGenerator{raw: `[{"week":1,"title":"A"}]`},
			kind:  utils.KindMalformedResponse,
			stage: StageValidating, status: 502, generated: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(tc.gen)
			_, err := f.svc.GenerateRoadmap(context.Background(), "u1", tc.doc, "Backend Engineer")
			if !utils.IsKind(err, tc.kind) {
				t.Fatalf("want %s, got %v", tc.kind, err)
			}
			if got := utils.StageOf(err); got != tc.stage {
				t.Fatalf("stage: got=%q want=%q", got, tc.stage)
			}
			if got := utils.HTTPStatus(err); got != tc.status {
				t.Fatalf("status: got=%d want=%d", got, tc.status)
			}
			if (tc.gen.calls > 0) != tc.generated {
				t.Fatalf("generator calls=%d", tc.gen.calls)
			}
			if f.store.saves != 0 {
				t.Fatalf("store written on failure")
			}
			f.scratch.assertReleased(t)
		})
	}
}

func TestGenerateRejectsOversizedUpload(t *testing.T) {
	gen := &fakeGenerator{raw: validRoadmapJSON}
	f := newFixture(gen, func(d *RoadmapServiceDeps) { d.MaxUploadBytes = 16 })

	_, err := f.svc.Generate(context.Background(), GenerateRequest{
		UserID:     "u1",
		Filename:   "cv.pdf",
		Document:   bytes.NewReader(pdftest.Build("Python")),
		TargetRole: "Backend Engineer",
	})
	if !utils.IsKind(err, utils.KindDocumentFormat) || utils.StageOf(err) != StageReceived {
		t.Fatalf("want DocumentFormatError at Received, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called for oversized upload")
	}
	f.scratch.assertReleased(t)
}

func TestGenerateUnknownUser(t *testing.T) {
	f := newFixture(&fakeGenerator{raw: validRoadmapJSON})

	_, err := f.svc.GenerateRoadmap(context.Background(), "ghost", pdftest.Build("Python"), "Backend Engineer")
	if !utils.IsKind(err, utils.KindUserNotFound) || utils.StageOf(err) != StagePersisting {
		t.Fatalf("want UserNotFoundError at Persisting, got %v", err)
	}
	if utils.HTTPStatus(err) != 404 {
		t.Fatalf("status: got=%d", utils.HTTPStatus(err))
	}
	f.scratch.assertReleased(t)
}

func TestGenerateEmptyRolePassedThrough(t *testing.T) {
	gen := &fakeGenerator{raw: validRoadmapJSON}
	f := newFixture(gen)

	if _, err := f.svc.GenerateRoadmap(context.Background(), "u1", pdftest.Build("Python"), ""); err != nil {
		t.Fatalf("GenerateRoadmap: %v", err)
	}
	if !strings.HasSuffix(gen.user, "Target Role: ") {
		t.Fatalf("empty role not sent as is: %q", gen.user)
	}
	if f.store.users["u1"].targetRole != "" {
		t.Fatalf("role invented: %q", f.store.users["u1"].targetRole)
	}
}

func TestGenerateScratchFailure(t *testing.T) {
	f := newFixture(&fakeGenerator{raw: validRoadmapJSON})
	f.scratch.putErr = errors.New("disk full")

	_, err := f.svc.GenerateRoadmap(context.Background(), "u1", pdftest.Build("Python"), "role")
	if !utils.IsCode(err, utils.CodeUnavailable) || utils.StageOf(err) != StageReceived {
		t.Fatalf("want unavailable at Received, got %v", err)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator called without staged upload")
	}
}

func TestGenerateRejectedInputIsRecorded(t *testing.T) {
	cases := []struct {
		name string
		req  GenerateRequest
		deps func(*RoadmapServiceDeps)
	}{
		{name: "no user", req: GenerateRequest{Document: bytes.NewReader(pdftest.Build("Python"))}},
		{name: "no document", req: GenerateRequest{UserID: "u1"}},
		{
			name: "no generator",
			req:  GenerateRequest{UserID: "u1", Document: bytes.NewReader(pdftest.Build("Python"))},
			deps: func(d *RoadmapServiceDeps) { d.Generator = nil },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []func(*RoadmapServiceDeps)
			if tc.deps != nil {
				opts = append(opts, tc.deps)
			}
			f := newFixture(&fakeGenerator{raw: validRoadmapJSON}, opts...)

			_, err := f.svc.Generate(context.Background(), tc.req)
			if err == nil || utils.StageOf(err) != StageReceived {
				t.Fatalf("want error at Received, got %v", err)
			}

			run := f.runs.last(t)
			if run.Status != models.RunStatusFailed || run.FailedStage != StageReceived {
				t.Fatalf("run: status=%q failed_stage=%q", run.Status, run.FailedStage)
			}
			if got := strings.Join(run.Stages, ","); got != StageReceived+","+StageFailed {
				t.Fatalf("stages: got=%s", got)
			}
			if f.scratch.puts != 0 {
				t.Fatalf("upload staged for rejected input")
			}
		})
	}
}

func TestGenerateRunRecorderFailureIgnored(t *testing.T) {
	f := newFixture(&fakeGenerator{raw: validRoadmapJSON})
	f.runs.err = errors.New("postgres down")

	rm, err := f.svc.GenerateRoadmap(context.Background(), "u1", pdftest.Build("Python"), "role")
	if err != nil || len(rm) != 1 {
		t.Fatalf("recorder failure changed result: rm=%v err=%v", rm, err)
	}
}

func TestGetRoadmapIdempotent(t *testing.T) {
	f := newFixture(&fakeGenerator{})
	f.store.users["u1"].roadmap = models.Roadmap{{Week: 1, Title: "A", Resources: []string{}}, {Week: 2, Title: "B", Resources: []string{}}}

	a, err := f.svc.GetRoadmap(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetRoadmap: %v", err)
	}
	b, err := f.svc.GetRoadmap(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetRoadmap: %v", err)
	}
	if len(a) != 2 || len(a) != len(b) || a[0].Title != b[0].Title || a[1].Week != b[1].Week {
		t.Fatalf("loads differ: %+v vs %+v", a, b)
	}

	if _, err := f.svc.GetRoadmap(context.Background(), "ghost"); !utils.IsKind(err, utils.KindUserNotFound) {
		t.Fatalf("want UserNotFoundError, got %v", err)
	}
}

func TestToggleWeek(t *testing.T) {
	f := newFixture(&fakeGenerator{})
	f.store.users["u1"].roadmap = models.Roadmap{{Week: 1, Title: "A", Resources: []string{}}}

	rm, err := f.svc.ToggleWeek(context.Background(), "u1", 1)
	if err != nil {
		t.Fatalf("ToggleWeek: %v", err)
	}
	if !rm[0].Completed {
		t.Fatalf("week not completed: %+v", rm)
	}

	if _, err := f.svc.ToggleWeek(context.Background(), "u1", 0); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
	if _, err := f.svc.ToggleWeek(context.Background(), "u1", 9); !utils.IsKind(err, utils.KindRoadmapItemNotFound) {
		t.Fatalf("want RoadmapItemNotFoundError, got %v", err)
	}
	if _, err := f.svc.ToggleWeek(context.Background(), "ghost", 1); !utils.IsKind(err, utils.KindUserNotFound) {
		t.Fatalf("want UserNotFoundError, got %v", err)
	}
}
