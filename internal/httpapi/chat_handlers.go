package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"llamadeskd/internal/chat"
	"llamadeskd/internal/store"
	"llamadeskd/pkg/types"
)

// mountChatRoutes registers persisted-chat CRUD and the streaming completion
// proxy.
func mountChatRoutes(r chi.Router, d Deps) {
	r.Post("/chats", func(w http.ResponseWriter, req *http.Request) {
		var body types.CreateChatRequest
		if !decodeJSON(w, req, &body) || !validateRequest(w, body) {
			return
		}
		host := body.Host
		if host == "" {
			host = d.ServerHost
		}
		c, err := d.Chats.CreateChat(req.Context(), body.ModelName, host, body.Port)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, c)
	})

	r.Get("/chats", func(w http.ResponseWriter, req *http.Request) {
		chats, err := d.Chats.ListChats(req.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if chats == nil {
			chats = []types.Chat{}
		}
		writeJSON(w, chats)
	})

	r.Get("/chats/{id}/messages", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if _, err := d.Chats.GetChat(req.Context(), id); err != nil {
			writeChatError(w, err)
			return
		}
		msgs, err := d.Chats.Messages(req.Context(), id)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if msgs == nil {
			msgs = []types.ChatMessage{}
		}
		writeJSON(w, msgs)
	})

	r.Post("/chats/{id}/messages", func(w http.ResponseWriter, req *http.Request) {
		var body types.AppendMessageRequest
		if !decodeJSON(w, req, &body) || !validateRequest(w, body) {
			return
		}
		msg := types.ChatMessage{
			Role:      body.Role,
			Content:   body.Content,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := d.Chats.AppendMessage(req.Context(), chi.URLParam(req, "id"), msg); err != nil {
			writeChatError(w, err)
			return
		}
		writeJSON(w, msg)
	})

	r.Delete("/chats/{id}/messages/{timestamp}", func(w http.ResponseWriter, req *http.Request) {
		ts, err := strconv.ParseInt(chi.URLParam(req, "timestamp"), 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid message timestamp")
			return
		}
		if err := d.Chats.DeleteMessage(req.Context(), chi.URLParam(req, "id"), ts); err != nil {
			writeChatError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/chats/{id}/clear", func(w http.ResponseWriter, req *http.Request) {
		if err := d.Chats.ClearChat(req.Context(), chi.URLParam(req, "id")); err != nil {
			writeChatError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/chats/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := d.Chats.DeleteChat(req.Context(), chi.URLParam(req, "id")); err != nil {
			writeChatError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/session", func(w http.ResponseWriter, req *http.Request) {
		blob, err := d.Chats.SessionState(req.Context(), "desktop")
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if blob == nil {
			blob = json.RawMessage(`{}`)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(blob)
	})

	r.Put("/session", func(w http.ResponseWriter, req *http.Request) {
		var blob json.RawMessage
		if !decodeJSON(w, req, &blob) {
			return
		}
		if err := d.Chats.SetSessionState(req.Context(), "desktop", blob); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// chatCompletions godoc
	// @Summary Stream a chat completion from a running llama-server
	// @Accept json
	// @Produce text/event-stream
	// @Router /chat/completions [post]
	r.Post("/chat/completions", func(w http.ResponseWriter, req *http.Request) {
		var body types.ChatCompletionRequest
		if !decodeJSON(w, req, &body) || !validateRequest(w, body) {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		start := time.Now()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		// Join server base context with request context so shutdown cancels
		// in-flight generations too.
		ctx, cancel := joinContexts(serverBaseCtx, req.Context())
		defer cancel()

		client := chat.NewClient(body.Host, body.Port)
		res, err := client.StreamChat(ctx, body.Messages, func(delta string) error {
			streamedDeltasTotal.Inc()
			return writeSSE(w, flusher, sseDelta{Content: delta})
		})
		completionsTotal.WithLabelValues(res.Stats.StopReason).Inc()

		// The stream already carries a status line; errors from here on ride
		// inside the event stream instead of an HTTP status.
		final := sseFinal{Done: true, Stats: res.Stats}
		if err != nil && ctx.Err() == nil {
			final.Error = err.Error()
		}
		_ = writeSSE(w, flusher, final)
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()

		if body.ChatID != "" && res.Content != "" {
			// Persist even when the client disconnected mid-stream; a
			// cancelled generation keeps its partial content and stats.
			pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pcancel()
			msg := chat.AssistantMessage(res)
			if perr := d.Chats.AppendMessage(pctx, body.ChatID, msg); perr != nil && !store.IsChatNotFound(perr) {
				logger().Error().Err(perr).Str("chat_id", body.ChatID).Msg("persist assistant message")
			}
		}
		logRequestEnd(req, http.StatusOK, start, err)
	})
}

type sseDelta struct {
	Content string `json:"content"`
}

type sseFinal struct {
	Done  bool                  `json:"done"`
	Stats types.GenerationStats `json:"stats"`
	Error string                `json:"error,omitempty"`
}

func writeSSE(w http.ResponseWriter, f http.Flusher, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: " + string(b) + "\n\n")); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// writeChatError maps store errors to HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case store.IsChatNotFound(err), store.IsMessageNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
