package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roadmap/internal/middleware"
	"github.com/hitoshi/roadmap/internal/model"
	"github.com/hitoshi/roadmap/internal/roadmap"
	"github.com/hitoshi/roadmap/internal/status"
)

// maxCommentBodySize はコメント投稿リクエストボディの上限（64KB）。
const maxCommentBodySize = 64 << 10

// RoadmapServiceInterface はIssueハンドラーが必要とするサービスインターフェース。
type RoadmapServiceInterface interface {
	// ListIssues はIssue一覧とキャッシュヒット有無を返す。
	ListIssues(ctx context.Context) ([]model.Issue, bool, error)
	// ListComments はIssueのコメント一覧とキャッシュヒット有無を返す。
	ListComments(ctx context.Context, issueID string) ([]model.Comment, bool, error)
	// AddComment は匿名コメントを投稿する。
	AddComment(ctx context.Context, issueID string, sub model.CommentSubmission) error
	// Board は公開ステータスごとにまとめたIssue一覧を返す。
	Board(ctx context.Context) ([]roadmap.Column, bool, error)
}

// IssueHandler は公開ロードマップAPIのHTTPハンドラー。
type IssueHandler struct {
	service RoadmapServiceInterface
	logger  *slog.Logger
}

// NewIssueHandler はIssueHandlerを生成する。
func NewIssueHandler(service RoadmapServiceInterface, logger *slog.Logger) *IssueHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueHandler{
		service: service,
		logger:  logger,
	}
}

// addCommentRequest はコメント投稿リクエストのボディ。
// honeypotは型を問わず受け取り、判定はサービス層で行う。
type addCommentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Comment  string `json:"comment"`
	Honeypot any    `json:"honeypot"`
}

// addCommentResponse はコメント投稿成功時のレスポンス。
type addCommentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusResponse は公開ステータス一覧の要素。
type statusResponse struct {
	Value model.PublicStatus `json:"value"`
	Label string             `json:"label"`
}

// ListIssues はIssue一覧を返す。
// GET /api/issues
func (h *IssueHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	issues, cached, err := h.service.ListIssues(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeListResponse(w, r, issues, cached)
}

// ListComments はIssueのコメント一覧を返す。
// GET /api/issues/{id}/comments
func (h *IssueHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	issueID, ok := issueIDParam(w, r)
	if !ok {
		return
	}

	comments, cached, err := h.service.ListComments(r.Context(), issueID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeListResponse(w, r, comments, cached)
}

// AddComment は匿名コメントを投稿する。
// POST /api/issues/{id}/comments
func (h *IssueHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	issueID, ok := issueIDParam(w, r)
	if !ok {
		return
	}

	var req addCommentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommentBodySize))
	if err := dec.Decode(&req); err != nil {
		reason := "The request body must be a JSON object."
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = "The request body is too large."
		} else if errors.Is(err, io.EOF) {
			reason = "The request body is empty."
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}

	err := h.service.AddComment(r.Context(), issueID, model.CommentSubmission{
		Name:     req.Name,
		Email:    req.Email,
		Comment:  req.Comment,
		Honeypot: req.Honeypot,
		ClientID: middleware.ClientIPFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, addCommentResponse{
		Success: true,
		Message: "Comment added successfully",
	})
}

// Board は公開ステータスごとのIssue一覧を返す。
// GET /api/board
func (h *IssueHandler) Board(w http.ResponseWriter, r *http.Request) {
	columns, cached, err := h.service.Board(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeListResponse(w, r, columns, cached)
}

// Statuses は公開ステータスの一覧を表示順で返す。
// GET /api/statuses
func (h *IssueHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	all := status.All()
	out := make([]statusResponse, 0, len(all))
	for _, s := range all {
		out = append(out, statusResponse{Value: s, Label: status.Label(s)})
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// Health はヘルスチェック用のエンドポイント。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// issueIDParam はURLパスからIssue IDを取り出す。空の場合は400を書き込みfalseを返す。
func issueIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	issueID := strings.TrimSpace(chi.URLParam(r, "id"))
	if issueID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("Issue ID is required."))
		return "", false
	}
	return issueID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func (h *IssueHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			h.logger.Error("request failed",
				slog.String("code", apiErr.Code),
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			)
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	h.logger.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidSubmission, model.ErrCodeValidation, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeIssueNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
