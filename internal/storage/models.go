package storage

import (
	"time"

	"github.com/themacmarketer/llm-council/internal/council"
)

// Conversation is the durable record for one chat: an append-only message
// sequence plus display metadata.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// ConversationMetadata is the listing view of a conversation.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// Message is one turn. User turns carry Content; assistant turns carry the
// per-stage records. This is the persistable subset of a deliberation:
// the anonymization map and aggregate rankings are deliberately absent and
// have no field to land in.
type Message struct {
	Role    string           `json:"role"`
	Content string           `json:"content,omitempty"`
	Stage0  *ResearchRecord  `json:"stage0,omitempty"`
	Stage1  []ResponseRecord `json:"stage1,omitempty"`
	Stage2  []RankingRecord  `json:"stage2,omitempty"`
	Stage3  *SynthesisRecord `json:"stage3,omitempty"`
}

// ResearchRecord is the stored Stage-0 outcome.
type ResearchRecord struct {
	Model       string            `json:"model"`
	Response    string            `json:"response,omitempty"`
	HasResearch bool              `json:"has_research"`
	SubQueries  []council.SubQuery `json:"sub_queries,omitempty"`
	SubResults  []council.SubResult `json:"sub_results,omitempty"`
}

// ResponseRecord is one successful Stage-1 answer.
type ResponseRecord struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// RankingRecord is one evaluator's Stage-2 verdict: raw text plus the
// parsed label order, nothing else.
type RankingRecord struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// SynthesisRecord is the chairman's Stage-3 answer.
type SynthesisRecord struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// AssistantMessage projects a deliberation result onto the persistable
// record shape. Failed Stage-1 attempts and all ephemeral metadata are
// dropped here; only textual stage content survives.
func AssistantMessage(res *council.Result) Message {
	msg := Message{Role: "assistant"}

	msg.Stage0 = &ResearchRecord{
		Model:       res.Stage0.Model,
		Response:    res.Stage0.SynthesizedText,
		HasResearch: res.Stage0.HasResearch,
		SubQueries:  res.Stage0.SubQueries,
		SubResults:  res.Stage0.SubResults,
	}

	for _, r := range res.Stage1 {
		if r.Succeeded {
			msg.Stage1 = append(msg.Stage1, ResponseRecord{Model: r.Model, Response: r.Content})
		}
	}

	for _, r := range res.Stage2 {
		msg.Stage2 = append(msg.Stage2, RankingRecord{
			Model:         r.Model,
			Ranking:       r.Ranking,
			ParsedRanking: r.ParsedRanking,
		})
	}

	msg.Stage3 = &SynthesisRecord{Model: res.Stage3.Model, Response: res.Stage3.Response}

	return msg
}
