package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/themacmarketer/llm-council/internal/council"
	"github.com/themacmarketer/llm-council/internal/storage"
)

// SendMessageRequest is the body for both message endpoints.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// listConversations returns metadata for every conversation, newest first.
// GET /api/conversations
func (s *Server) listConversations(c *gin.Context) {
	conversations, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to list conversations: %v", err)})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// createConversation creates a new empty conversation.
// POST /api/conversations
func (s *Server) createConversation(c *gin.Context) {
	conversation, err := s.store.Create(uuid.New().String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create conversation: %v", err)})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// getConversation returns one full conversation.
// GET /api/conversations/:id
func (s *Server) getConversation(c *gin.Context) {
	conversation, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get conversation: %v", err)})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// sendMessage runs the full deliberation and returns all stages at once.
// POST /api/conversations/:id/message
func (s *Server) sendMessage(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get conversation: %v", err)})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	isFirstMessage := len(conversation.Messages) == 0
	history := historyTurns(conversation)

	if err := s.store.AppendUserMessage(conversationID, request.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to add user message: %v", err)})
		return
	}

	if isFirstMessage {
		go s.generateTitle(conversationID, request.Content, nil)
	}

	result, err := s.pipeline.Run(c.Request.Context(), request.Content, history)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Council process failed: %v", err)})
		return
	}

	if err := s.store.AppendAssistantMessage(conversationID, storage.AssistantMessage(result)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to add assistant message: %v", err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

// sendMessageStream runs the deliberation and forwards its progress events
// over SSE as they occur.
// POST /api/conversations/:id/message/stream
func (s *Server) sendMessageStream(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get conversation: %v", err)})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	isFirstMessage := len(conversation.Messages) == 0
	history := historyTurns(conversation)

	if err := s.store.AppendUserMessage(conversationID, request.Content); err != nil {
		s.sendSSEEvent(c, council.Event{Type: council.EventError, Message: fmt.Sprintf("Failed to add user message: %v", err)})
		return
	}

	var titleChan chan string
	if isFirstMessage {
		titleChan = make(chan string, 1)
		go s.generateTitle(conversationID, request.Content, titleChan)
	}

	ctx := c.Request.Context()
	for ev := range s.pipeline.RunStream(ctx, request.Content, history) {
		switch ev.Type {
		case council.EventComplete:
			// Title generation is a side channel; surface it before the
			// terminal event so the frontend settles in one pass.
			if titleChan != nil {
				if title := <-titleChan; title != "" {
					s.sendSSEEvent(c, council.Event{Type: council.EventTitleComplete, Data: gin.H{"title": title}})
				}
			}

			result := ev.Data.(*council.Result)
			if err := s.store.AppendAssistantMessage(conversationID, storage.AssistantMessage(result)); err != nil {
				s.sendSSEEvent(c, council.Event{Type: council.EventError, Message: fmt.Sprintf("Failed to save message: %v", err)})
				return
			}
			s.sendSSEEvent(c, ev)
		default:
			s.sendSSEEvent(c, ev)
		}
	}
}

// fetchURL extracts readable content from a page for quoting into a query.
// POST /api/fetch-url
func (s *Server) fetchURL(c *gin.Context) {
	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	content, err := s.fetcher.Fetch(c.Request.Context(), request.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch URL content: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": content})
}

// generateTitle produces and stores a conversation title. When ch is
// non-nil the title (or empty string on failure) is delivered there too.
func (s *Server) generateTitle(conversationID, content string, ch chan<- string) {
	title, err := s.pipeline.GenerateTitle(context.Background(), content)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation", conversationID).Msg("title generation failed")
		title = ""
	}
	stored := title
	if stored == "" {
		stored = "New Conversation"
	}
	if err := s.store.UpdateTitle(conversationID, stored); err != nil {
		s.log.Warn().Err(err).Str("conversation", conversationID).Msg("failed to update title")
	}
	if ch != nil {
		ch <- title
		close(ch)
	}
}

// historyTurns flattens stored messages into the prior-turn context the
// pipeline receives: user content as-is, assistant turns as the chairman's
// final answer.
func historyTurns(conversation *storage.Conversation) []council.Turn {
	var turns []council.Turn
	for _, msg := range conversation.Messages {
		switch {
		case msg.Role == "user":
			turns = append(turns, council.Turn{Role: "user", Content: msg.Content})
		case msg.Stage3 != nil:
			turns = append(turns, council.Turn{Role: "assistant", Content: msg.Stage3.Response})
		}
	}
	return turns
}

// sendSSEEvent writes one event in SSE framing and flushes immediately.
func (s *Server) sendSSEEvent(c *gin.Context, ev council.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal SSE event")
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
