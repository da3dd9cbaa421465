package roadmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/yoockh/careerpath/internal/models"
	"github.com/yoockh/careerpath/internal/utils"
)

// ItemError names the roadmap element that failed validation.
type ItemError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("roadmap[%d].%s: %s", e.Index, e.Field, e.Reason)
}

// Validate parses the raw model output and returns the roadmap in the order
// the model gave it. Either every item is valid or nothing is returned.
// Duplicate week numbers are passed through.
func Validate(raw string) (models.Roadmap, error) {
	const op = "roadmap.Validate"

	doc, err := decodeStrict(stripCodeFence(raw))
	if err != nil {
		return nil, utils.K(utils.KindMalformedResponse, op, "response is not valid json", err)
	}

	schema, err := compiledEnvelope()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "roadmap schema unavailable", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, utils.K(utils.KindMalformedResponse, op, `response must be an object with a "roadmap" array`, err)
	}

	elems := doc.(map[string]any)["roadmap"].([]any)
	out := make(models.Roadmap, 0, len(elems))
	for i, el := range elems {
		item, ierr := normalizeItem(i, el)
		if ierr != nil {
			return nil, utils.K(utils.KindInvalidRoadmapItem, op, ierr.Error(), ierr)
		}
		out = append(out, item)
	}
	return out, nil
}

// decodeStrict decodes exactly one JSON value, keeping numbers as json.Number.
func decodeStrict(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func normalizeItem(idx int, el any) (models.RoadmapItem, *ItemError) {
	m, ok := el.(map[string]any)
	if !ok {
		return models.RoadmapItem{}, &ItemError{Index: idx, Field: "*", Reason: "item must be an object"}
	}

	week, ok := coerceWeek(m["week"])
	if !ok {
		return models.RoadmapItem{}, &ItemError{Index: idx, Field: "week", Reason: "must be a positive integer"}
	}

	title, _ := m["title"].(string)
	title = strings.TrimSpace(title)
	if title == "" {
		return models.RoadmapItem{}, &ItemError{Index: idx, Field: "title", Reason: "must be a non-empty string"}
	}

	// a non-string description reads as empty
	desc, _ := m["description"].(string)

	return models.RoadmapItem{
		Week:        week,
		Title:       title,
		Description: desc,
		Resources:   coerceResources(m["resources"]),
	}, nil
}

// coerceWeek accepts integral JSON numbers and numeric strings.
func coerceWeek(v any) (int, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return positiveInt(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return positiveInt(int64(f))
}

func positiveInt(n int64) (int, bool) {
	if n < 1 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// coerceResources keeps string entries verbatim, empty ones included, and
// drops anything else. A bare string becomes a one-element list unless it
// is blank.
func coerceResources(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, r := range t {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

// stripCodeFence removes a surrounding ```json fence some models add even
// in JSON mode.
func stripCodeFence(s string) string {
	clean := strings.TrimSpace(s)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	return strings.TrimSpace(clean)
}
