package content

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// DecodeJob builds a Job from a loosely typed record such as a database row map.
// Skill lists may arrive as JSON-encoded strings, comma separated strings or arrays.
func DecodeJob(record map[string]any) (*Job, error) {
	job, err := decode[Job](record)
	if err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	job.ExperienceLevel = strings.ToLower(strings.TrimSpace(job.ExperienceLevel))
	job.RemoteType = strings.ToLower(strings.TrimSpace(job.RemoteType))
	job.Status = strings.ToLower(strings.TrimSpace(job.Status))
	job.City = strings.TrimSpace(job.City)
	return job, nil
}

// DecodeCandidate builds a Candidate from a loosely typed record.
func DecodeCandidate(record map[string]any) (*Candidate, error) {
	candidate, err := decode[Candidate](record)
	if err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}

	candidate.City = strings.TrimSpace(candidate.City)
	return candidate, nil
}

// DecodeDocument builds a Document from a loosely typed record.
func DecodeDocument(record map[string]any) (*Document, error) {
	doc, err := decode[Document](record)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc.SharedType = strings.ToLower(strings.TrimSpace(doc.SharedType))
	doc.PlanLevel = strings.ToLower(strings.TrimSpace(doc.PlanLevel))
	doc.AccessLevel = strings.ToLower(strings.TrimSpace(doc.AccessLevel))
	return doc, nil
}

func decode[T any](record map[string]any) (*T, error) {
	var out T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToSliceHook,
			stringToTimeHook,
		),
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(record); err != nil {
		return nil, err
	}
	return &out, nil
}

func stringToSliceHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return ParseList(data.(string))
}

func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	raw := strings.TrimSpace(data.(string))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unsupported time value %q", raw)
}

// ParseList reads a list stored as a JSON array string or a comma separated string.
func ParseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}

	if strings.HasPrefix(raw, "[") {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("parse list %q: %w", raw, err)
		}
		return trimAll(values), nil
	}

	return trimAll(strings.Split(raw, ",")), nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
