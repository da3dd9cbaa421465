package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/careerpath/internal/models"
	"github.com/yoockh/careerpath/internal/providers/llm"
	"github.com/yoockh/careerpath/internal/providers/textextract"
	mongorepo "github.com/yoockh/careerpath/internal/repositories/mongo"
	"github.com/yoockh/careerpath/internal/roadmap"
	"github.com/yoockh/careerpath/internal/storage"
	"github.com/yoockh/careerpath/internal/utils"
	"gorm.io/datatypes"
)

// Pipeline stages, in order. A run ends in Completed or Failed.
const (
	StageReceived   = "Received"
	StageExtracting = "Extracting"
	StagePrompting  = "Prompting"
	StageGenerating = "Generating"
	StageValidating = "Validating"
	StagePersisting = "Persisting"
	StageCleaningUp = "CleaningUp"
	StageCompleted  = "Completed"
	StageFailed     = "Failed"
)

const (
	DefaultGenerationTimeout = 60 * time.Second
	DefaultMaxUploadBytes    = 10 << 20

	cleanupTimeout = 10 * time.Second
)

type GenerateRequest struct {
	UserID     string
	Filename   string
	Document   io.Reader
	TargetRole string
}

type RoadmapService interface {
	// Generate runs the full pipeline for one uploaded document. Either a
	// new roadmap is persisted and returned, or the stored roadmap is left
	// untouched and a stage-tagged error is returned.
	Generate(ctx context.Context, req GenerateRequest) (models.Roadmap, error)
	GenerateRoadmap(ctx context.Context, userID string, document []byte, targetRole string) (models.Roadmap, error)
	GetRoadmap(ctx context.Context, userID string) (models.Roadmap, error)
	ToggleWeek(ctx context.Context, userID string, week int) (models.Roadmap, error)
}

// RunRecorder stores the audit row of a finished run.
type RunRecorder interface {
	Insert(ctx context.Context, run *models.GenerationRun) error
}

type nopRunRecorder struct{}

func (nopRunRecorder) Insert(context.Context, *models.GenerationRun) error { return nil }

// NopRunRecorder discards runs. Used when no audit database is configured.
func NopRunRecorder() RunRecorder { return nopRunRecorder{} }

type RoadmapServiceDeps struct {
	Extractor textextract.Extractor
	Generator llm.Generator
	Store     mongorepo.RoadmapRepository
	Scratch   storage.Scratch
	Runs      RunRecorder
	Logger    *logrus.Logger

	GenerationTimeout time.Duration
	MaxUploadBytes    int64
}

type roadmapService struct {
	extractor textextract.Extractor
	generator llm.Generator
	store     mongorepo.RoadmapRepository
	scratch   storage.Scratch
	runs      RunRecorder
	log       *logrus.Logger

	timeout  time.Duration
	maxBytes int64
}

func NewRoadmapService(d RoadmapServiceDeps) RoadmapService {
	s := &roadmapService{
		extractor: d.Extractor,
		generator: d.Generator,
		store:     d.Store,
		scratch:   d.Scratch,
		runs:      d.Runs,
		log:       d.Logger,
		timeout:   d.GenerationTimeout,
		maxBytes:  d.MaxUploadBytes,
	}
	if s.extractor == nil {
		s.extractor = textextract.NewPDF()
	}
	if s.runs == nil {
		s.runs = NopRunRecorder()
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultGenerationTimeout
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxUploadBytes
	}
	return s
}

// pipelineRun carries the bookkeeping of one Generate call.
type pipelineRun struct {
	id      string
	start   time.Time
	stages  []string
	entry   *logrus.Entry
	docSize int64
	textLen int
}

func (r *pipelineRun) enter(stage string) {
	r.stages = append(r.stages, stage)
	r.entry.WithFields(logrus.Fields{
		"stage":      stage,
		"elapsed_ms": time.Since(r.start).Milliseconds(),
	}).Debug("roadmap.stage")
}

func (s *roadmapService) Generate(ctx context.Context, req GenerateRequest) (rm models.Roadmap, err error) {
	const op = "RoadmapService.Generate"

	run := &pipelineRun{id: uuid.NewString(), start: time.Now()}
	run.entry = s.log.WithFields(logrus.Fields{
		"run_id":  run.id,
		"user_id": req.UserID,
	})
	run.enter(StageReceived)

	switch {
	case req.UserID == "":
		err = utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	case req.Document == nil:
		err = utils.K(utils.KindDocumentFormat, op, "document is required", nil)
	case s.scratch == nil || s.generator == nil || s.store == nil:
		err = utils.E(utils.CodeInternal, op, "roadmap pipeline is not configured", nil)
	}
	if err != nil {
		err = utils.WithStage(err, StageReceived)
		s.finish(ctx, run, req, nil, err)
		return nil, err
	}

	// one byte past the limit tells an oversized upload apart from an exact fit
	obj, perr := s.scratch.Put(ctx, req.Filename, io.LimitReader(req.Document, s.maxBytes+1))
	if perr != nil {
		err = utils.WithStage(utils.E(utils.CodeUnavailable, op, "failed to stage upload", perr), StageReceived)
		s.finish(ctx, run, req, nil, err)
		return nil, err
	}
	run.docSize = obj.Size

	defer func() {
		run.enter(StageCleaningUp)
		s.release(ctx, run, obj)
		s.finish(ctx, run, req, rm, err)
	}()

	if obj.Size > s.maxBytes {
		return nil, utils.WithStage(utils.K(utils.KindDocumentFormat, op, "document is too large", nil), StageReceived)
	}

	run.enter(StageExtracting)
	data, rerr := s.scratch.Read(ctx, obj)
	if rerr != nil {
		return nil, utils.WithStage(utils.E(utils.CodeUnavailable, op, "failed to read staged upload", rerr), StageExtracting)
	}
	text, err := s.extractor.Extract(data)
	if err != nil {
		return nil, utils.WithStage(err, StageExtracting)
	}
	run.textLen = len(text)

	run.enter(StagePrompting)
	prompt := roadmap.BuildPrompt(text, req.TargetRole)

	run.enter(StageGenerating)
	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, utils.WithStage(err, StageGenerating)
	}

	run.enter(StageValidating)
	rm, err = roadmap.Validate(raw)
	if err != nil {
		return nil, utils.WithStage(err, StageValidating)
	}

	run.enter(StagePersisting)
	if err := s.store.Save(ctx, req.UserID, text, req.TargetRole, rm); err != nil {
		return nil, utils.WithStage(storeError(op, err), StagePersisting)
	}
	return rm, nil
}

type generation struct {
	raw string
	err error
}

// generate makes a single bounded attempt. The wait ends at the bound even
// when the generator ignores its context, and a result that arrives after
// the bound is discarded. Expiry is a timeout no matter which layer noticed
// it.
func (s *roadmapService) generate(ctx context.Context, p roadmap.Prompt) (string, error) {
	const op = "RoadmapService.generate"

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// buffered so a late generator never blocks on send
	done := make(chan generation, 1)
	go func() {
		raw, err := s.generator.Generate(gctx, p.System, p.User)
		done <- generation{raw: raw, err: err}
	}()

	var res generation
	select {
	case res = <-done:
	case <-gctx.Done():
		res = generation{err: gctx.Err()}
	}

	if ctx.Err() == nil && errors.Is(gctx.Err(), context.DeadlineExceeded) {
		cause := res.err
		if cause == nil {
			cause = gctx.Err()
		}
		return "", utils.K(utils.KindGenerationTimeout, op, "generation timed out", cause)
	}
	if res.err == nil {
		return res.raw, nil
	}
	if utils.KindOf(res.err) == "" {
		return "", utils.K(utils.KindGenerationUnavailable, op, "generation service unavailable", res.err)
	}
	return "", res.err
}

// release deletes the staged upload with a context that outlives request
// cancellation.
func (s *roadmapService) release(ctx context.Context, run *pipelineRun, obj storage.Object) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.scratch.Delete(cctx, obj); err != nil {
		run.entry.WithError(err).WithField("object", obj.Name).Error("roadmap.cleanup.failed")
	}
}

// finish logs the outcome and records the audit row. Recording failures
// never change the result.
func (s *roadmapService) finish(ctx context.Context, run *pipelineRun, req GenerateRequest, rm models.Roadmap, err error) {
	status := models.RunStatusCompleted
	if err != nil {
		status = models.RunStatusFailed
		run.stages = append(run.stages, StageFailed)
	} else {
		run.stages = append(run.stages, StageCompleted)
	}
	elapsed := time.Since(run.start).Milliseconds()

	if err != nil {
		run.entry.WithFields(logrus.Fields{
			"stage":      utils.StageOf(err),
			"error_kind": utils.KindOf(err),
			"error":      err.Error(),
			"elapsed_ms": elapsed,
		}).Warn("roadmap.generate.failed")
	} else {
		run.entry.WithFields(logrus.Fields{
			"items":      len(rm),
			"elapsed_ms": elapsed,
		}).Info("roadmap.generate.ok")
	}

	var model string
	if s.generator != nil {
		model = s.generator.Model()
	}
	meta, _ := json.Marshal(map[string]any{
		"document_bytes": run.docSize,
		"text_chars":     run.textLen,
	})
	row := &models.GenerationRun{
		ID:          run.id,
		UserID:      req.UserID,
		TargetRole:  req.TargetRole,
		Status:      status,
		FailedStage: utils.StageOf(err),
		ErrorKind:   string(utils.KindOf(err)),
		Stages:      run.stages,
		ItemCount:   len(rm),
		Model:       model,
		ElapsedMS:   elapsed,
		Metadata:    datatypes.JSON(meta),
		CreatedAt:   run.start.UTC(),
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if rerr := s.runs.Insert(rctx, row); rerr != nil {
		run.entry.WithError(rerr).Warn("roadmap.run.record_failed")
	}
}

func (s *roadmapService) GenerateRoadmap(ctx context.Context, userID string, document []byte, targetRole string) (models.Roadmap, error) {
	return s.Generate(ctx, GenerateRequest{
		UserID:     userID,
		Filename:   "resume.pdf",
		Document:   bytes.NewReader(document),
		TargetRole: targetRole,
	})
}

func (s *roadmapService) GetRoadmap(ctx context.Context, userID string) (models.Roadmap, error) {
	const op = "RoadmapService.GetRoadmap"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	rm, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return rm, nil
}

func (s *roadmapService) ToggleWeek(ctx context.Context, userID string, week int) (models.Roadmap, error) {
	const op = "RoadmapService.ToggleWeek"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if week < 1 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "week must be a positive integer", nil)
	}
	rm, err := s.store.ToggleWeek(ctx, userID, week)
	if err != nil {
		return nil, storeError(op, err)
	}
	return rm, nil
}

func storeError(op string, err error) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.K(utils.KindUserNotFound, op, "user not found", err)
	case errors.Is(err, mongorepo.ErrWeekNotFound):
		return utils.K(utils.KindRoadmapItemNotFound, op, "no roadmap item for that week", err)
	default:
		return utils.E(utils.CodeUnavailable, op, "roadmap store unavailable", err)
	}
}
