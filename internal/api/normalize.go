package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/debemdeboas/backoffice/internal/model"
)

// normalizeList accepts a bare array or an envelope holding the array under key
// or "data". Anything else yields an empty list.
func normalizeList(raw []byte, key string) []model.Record {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []model.Record{}
	}

	var arr []any
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &arr); err != nil {
			return []model.Record{}
		}
		return toRecords(arr)
	}

	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		return []model.Record{}
	}
	for _, k := range []string{key, "data"} {
		if k == "" {
			continue
		}
		if list, ok := env[k].([]any); ok {
			return toRecords(list)
		}
	}
	return []model.Record{}
}

func toRecords(list []any) []model.Record {
	out := make([]model.Record, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, model.Record(m))
		}
	}
	return out
}

// normalizeItem accepts a bare record or an envelope holding it under key or "data".
func normalizeItem(raw []byte, key string) (model.Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for _, k := range []string{key, "data"} {
		if k == "" {
			continue
		}
		if item, ok := env[k].(map[string]any); ok {
			return model.Record(item), nil
		}
	}
	if _, hasSuccess := env["success"]; hasSuccess && model.Record(env).ID() == "" {
		return nil, nil
	}
	return model.Record(env), nil
}

// envelopeFailure returns the message of a {"success": false} body.
func envelopeFailure(raw []byte) (string, bool) {
	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Success == nil || *env.Success {
		return "", false
	}
	if env.Message != "" {
		return env.Message, true
	}
	if env.Error != "" {
		return env.Error, true
	}
	return "request rejected", true
}

// errorMessage extracts a readable message from an error response body.
func errorMessage(raw []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	msg := string(bytes.TrimSpace(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
