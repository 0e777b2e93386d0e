package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
)

// handleServiceError はサービス層のエラーをJSONのHTTPレスポンスに変換する。
// APIError以外は内部エラーとしてログに記録し、詳細は返さない。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// userFacingError はページに表示するエラーとHTTPステータスを返す。
// APIError以外は内部エラーとしてログに記録し、一般的なメッセージに置き換える。
func userFacingError(err error) (*model.APIError, int) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr, middleware.HTTPStatus(apiErr)
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	return model.NewInternalError(), http.StatusInternalServerError
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。失敗時は検証エラーを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("Request body must be a valid JSON object")
	}
	return nil
}

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20
