package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/aula/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	apiErr := &model.APIError{
		Code:     "TEST_ERROR",
		Message:  "テストエラーです。",
		Category: "validation",
		Action:   "正しい値を入力してください。",
	}

	WriteErrorResponse(w, http.StatusUnprocessableEntity, apiErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Success {
		t.Error("success should be false")
	}
	if body.Error.Code != "TEST_ERROR" {
		t.Errorf("code = %q, want %q", body.Error.Code, "TEST_ERROR")
	}
	if body.Error.Message != "テストエラーです。" {
		t.Errorf("message = %q, want %q", body.Error.Message, "テストエラーです。")
	}
	if body.Error.Category != "validation" {
		t.Errorf("category = %q, want %q", body.Error.Category, "validation")
	}
	if body.Error.Action != "正しい値を入力してください。" {
		t.Errorf("action = %q, want %q", body.Error.Action, "正しい値を入力してください。")
	}
}

// TestWriteErrorResponse_DifferentStatusCodes は異なるステータスコードで正しく動作することを検証する。
func TestWriteErrorResponse_DifferentStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		code       string
		category   string
	}{
		{"Unauthorized", http.StatusUnauthorized, model.ErrCodeNotAuthenticated, "auth"},
		{"Forbidden", http.StatusForbidden, model.ErrCodeForbidden, "permission"},
		{"NotFound", http.StatusNotFound, model.ErrCodeCourseNotFound, "not_found"},
		{"Unprocessable", http.StatusUnprocessableEntity, model.ErrCodeInvalidDateRange, "validation"},
		{"Internal", http.StatusInternalServerError, model.ErrCodeUpstreamFault, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorResponse(w, tt.statusCode, &model.APIError{
				Code:     tt.code,
				Message:  "test",
				Category: tt.category,
				Action:   "test action",
			})

			resp := w.Result()
			if resp.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			var body ErrorEnvelope
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}

			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
			if body.Error.Category != tt.category {
				t.Errorf("category = %q, want %q", body.Error.Category, tt.category)
			}
		})
	}
}

// TestStatusCodeFor_MapsCategoryToStatus はカテゴリからHTTPステータスが導出されることを検証する。
func TestStatusCodeFor_MapsCategoryToStatus(t *testing.T) {
	tests := []struct {
		category string
		want     int
	}{
		{"auth", http.StatusUnauthorized},
		{"permission", http.StatusForbidden},
		{"not_found", http.StatusNotFound},
		{"validation", http.StatusUnprocessableEntity},
		{"system", http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := StatusCodeFor(&model.APIError{Category: tt.category})
		if got != tt.want {
			t.Errorf("StatusCodeFor(%q) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if body.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body.Error.Code, "INTERNAL_ERROR")
	}
	if body.Error.Category != "system" {
		t.Errorf("category = %q, want %q", body.Error.Category, "system")
	}
	if body.Error.Action == "" {
		t.Error("action should not be empty")
	}
}

// TestErrorEnvelope_AllFieldsPresent は全フィールドがJSONレスポンスに含まれることを検証する。
func TestErrorEnvelope_AllFieldsPresent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusUnprocessableEntity, &model.APIError{
		Code:     "CODE",
		Message:  "MSG",
		Category: "CAT",
		Action:   "ACT",
	})

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if _, ok := raw["success"]; !ok {
		t.Error("missing required field: success")
	}

	inner, ok := raw["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("error field missing or not an object: %v", raw["error"])
	}

	requiredFields := []string{"code", "message", "category", "action"}
	for _, field := range requiredFields {
		if _, ok := inner[field]; !ok {
			t.Errorf("missing required field: error.%s", field)
		}
	}
}
