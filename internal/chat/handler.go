package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/chatbot-auth/internal/auth"
	"github.com/redmonkez12/chatbot-auth/internal/httputil"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
)

// Handler contains HTTP handlers for chat endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// NewChatRequest represents the new chat request body
type NewChatRequest struct {
	Title *string `json:"chatTitle"`
}

// NewChatResponse is returned by NewChat
type NewChatResponse struct {
	Message string `json:"message"`
	Chat    *Chat  `json:"chat"`
}

// AddMessageRequest represents the add message request body
type AddMessageRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewChat handles chat creation
// @Summary      Start a new chat
// @Description  Reuses the last chat while it has no messages, otherwise creates a new one
// @Tags         chats
// @Accept       json
// @Produce      json
// @Param        request body NewChatRequest false "Optional title"
// @Success      200 {object} NewChatResponse "Last chat reused"
// @Success      201 {object} NewChatResponse "Chat created"
// @Failure      401 {object} httputil.DetailsResponse
// @Router       /chats/new [post]
func (h *Handler) NewChat(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not logged in!", httputil.CodeMissingSession, http.StatusUnauthorized)
		return
	}

	// body is optional
	var req NewChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	result, err := h.service.EnsureActiveChat(r.Context(), userID, req.Title)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.RespondErrorWithCode(w, "No user found!", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to ensure active chat", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to create chat", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if result.Reused {
		httputil.RespondJSON(w, NewChatResponse{Message: "use last chat", Chat: result.Chat}, http.StatusOK)
		return
	}

	httputil.RespondJSON(w, NewChatResponse{Message: "chat created success", Chat: result.Chat}, http.StatusCreated)
}

// List returns the caller's chats
// @Summary      List chats
// @Tags         chats
// @Produce      json
// @Success      200 {array} Chat
// @Failure      401 {object} httputil.DetailsResponse
// @Router       /chats [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not logged in!", httputil.CodeMissingSession, http.StatusUnauthorized)
		return
	}

	chats, err := h.service.List(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list chats", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list chats", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, chats, http.StatusOK)
}

// AddMessage appends a message to one of the caller's chats
// @Summary      Add a message
// @Tags         chats
// @Accept       json
// @Produce      json
// @Param        chatID path string true "Chat ID"
// @Param        request body AddMessageRequest true "Message"
// @Success      201 {object} Message
// @Failure      400 {object} httputil.DetailsResponse
// @Failure      404 {object} httputil.DetailsResponse
// @Router       /chats/{chatID}/messages [post]
func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not logged in!", httputil.CodeMissingSession, http.StatusUnauthorized)
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "chat not found", httputil.CodeChatNotFound, http.StatusNotFound)
		return
	}

	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	msg, err := h.service.AddMessage(r.Context(), userID, chatID, req.Role, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidRole):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeEmptyMessage, http.StatusBadRequest)
		// another user's chat is reported as missing
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotOwner):
			httputil.RespondErrorWithCode(w, "chat not found", httputil.CodeChatNotFound, http.StatusNotFound)
		default:
			logger.Error("failed to add message", "error", err.Error(), "chat_id", chatID)
			httputil.RespondErrorWithCode(w, "failed to add message", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	httputil.RespondJSON(w, msg, http.StatusCreated)
}
