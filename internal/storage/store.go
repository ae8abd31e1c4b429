// Package storage persists conversations as one JSON file each under a
// data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Store reads and writes conversation records. Methods are safe for the
// backend's access pattern of one writer per conversation.
type Store struct {
	dataDir string
	log     zerolog.Logger
}

// NewStore creates a Store rooted at dataDir.
func NewStore(dataDir string, logger zerolog.Logger) *Store {
	return &Store{dataDir: dataDir, log: logger.With().Str("component", "storage").Logger()}
}

func (s *Store) ensureDataDir() error {
	return os.MkdirAll(s.dataDir, 0755)
}

func (s *Store) conversationPath(conversationID string) string {
	return filepath.Join(s.dataDir, conversationID+".json")
}

// Create initializes an empty conversation with a default title.
func (s *Store) Create(conversationID string) (*Conversation, error) {
	conversation := &Conversation{
		ID:        conversationID,
		CreatedAt: time.Now().UTC(),
		Title:     "New Conversation",
		Messages:  []Message{},
	}
	if err := s.Save(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// Get loads a conversation by ID. Returns nil without error when the
// conversation does not exist.
func (s *Store) Get(conversationID string) (*Conversation, error) {
	path := s.conversationPath(conversationID)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conversation Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse conversation JSON: %w", err)
	}
	return &conversation, nil
}

// Save writes a conversation to disk as formatted JSON.
func (s *Store) Save(conversation *Conversation) error {
	if err := s.ensureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := os.WriteFile(s.conversationPath(conversation.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}

// List returns metadata for every stored conversation, newest first.
// Unreadable or invalid files are skipped.
func (s *Store) List() ([]ConversationMetadata, error) {
	if err := s.ensureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	conversations := make([]ConversationMetadata, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dataDir, entry.Name()))
		if err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable conversation")
			continue
		}

		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping invalid conversation")
			continue
		}

		conversations = append(conversations, ConversationMetadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})

	return conversations, nil
}

// AppendUserMessage adds a user turn to a conversation.
func (s *Store) AppendUserMessage(conversationID, content string) error {
	return s.appendMessage(conversationID, Message{Role: "user", Content: content})
}

// AppendAssistantMessage adds a completed deliberation's persistable
// record to a conversation.
func (s *Store) AppendAssistantMessage(conversationID string, msg Message) error {
	return s.appendMessage(conversationID, msg)
}

func (s *Store) appendMessage(conversationID string, msg Message) error {
	conversation, err := s.Get(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Messages = append(conversation.Messages, msg)
	return s.Save(conversation)
}

// UpdateTitle replaces a conversation's title.
func (s *Store) UpdateTitle(conversationID, title string) error {
	conversation, err := s.Get(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Title = title
	return s.Save(conversation)
}
