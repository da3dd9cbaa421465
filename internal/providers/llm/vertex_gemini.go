package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/careerpath/internal/utils"
)

const DefaultVertexModel = "gemini-1.5-flash"

// VertexGemini asks Gemini for an application/json response.
type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
	log       *logrus.Logger
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string, l *logrus.Logger) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultVertexModel
	}
	if l == nil {
		l = logrus.New()
	}
	return &VertexGemini{client: c, modelName: modelName, log: l}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Model() string { return v.modelName }

func (v *VertexGemini) Generate(ctx context.Context, system, user string) (string, error) {
	const op = "VertexGemini.Generate"
	start := time.Now()

	// a fresh handle per call; GenerativeModel is not safe to mutate concurrently
	m := v.client.GenerativeModel(v.modelName)
	m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, vertexgenai.Text(user))
	if err != nil {
		cerr := classify(ctx, op, err)
		v.log.WithFields(logrus.Fields{
			"model":      v.modelName,
			"error":      err.Error(),
			"error_kind": utils.KindOf(cerr),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Warn("llm.generate.failed")
		return "", cerr
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	if b.Len() == 0 {
		return "", utils.K(utils.KindGenerationUnavailable, op, "completion has no text", errors.New("empty candidates"))
	}

	v.log.WithFields(logrus.Fields{
		"model":      v.modelName,
		"bytes":      b.Len(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("llm.generate.ok")
	return b.String(), nil
}
