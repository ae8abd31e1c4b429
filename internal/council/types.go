// Package council implements the four-stage deliberation pipeline:
// optional web research, parallel response collection, anonymized peer
// ranking, and chairman synthesis.
package council

import (
	"errors"
	"time"
)

// ErrorKind classifies why a single model call produced no usable content.
type ErrorKind string

const (
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindTransport ErrorKind = "transport"
	ErrKindStatus    ErrorKind = "status"
	ErrKindEmpty     ErrorKind = "empty"
	ErrKindParse     ErrorKind = "parse"
)

// Terminal pipeline errors. Per-call failures degrade; these abort the run.
var (
	ErrAllModelsFailed = errors.New("all council models failed to respond")
	ErrChairmanFailed  = errors.New("chairman synthesis failed")
)

// ModelResponse is the outcome of one model invocation. A failed call is a
// value, not an error: Succeeded is false and ErrorKind says why.
type ModelResponse struct {
	Model     string    `json:"model"`
	Content   string    `json:"response"`
	Succeeded bool      `json:"succeeded"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// SubQuery is one focused research query produced by decomposition.
type SubQuery struct {
	Label string `json:"label"`
	Text  string `json:"query"`
}

// SubResult pairs a sub-query with the research text it produced.
type SubResult struct {
	Query    SubQuery `json:"query"`
	Response string   `json:"response"`
}

// Stage0Result is the outcome of the research stage. When HasResearch is
// false the remaining fields describe why: either decomposition declined
// research (empty SubQueries) or every sub-query failed.
type Stage0Result struct {
	Model           string      `json:"model"`
	SynthesizedText string      `json:"response,omitempty"`
	HasResearch     bool        `json:"has_research"`
	SubQueries      []SubQuery  `json:"sub_queries"`
	SubResults      []SubResult `json:"sub_results"`
}

// Stage2Ranking is one evaluator's verdict over the anonymized responses.
// Ranking holds the full raw text; ParsedRanking the extracted labels in
// preference order. ParseSucceeded is false when no labels could be
// recovered, which excludes this evaluator from aggregation.
type Stage2Ranking struct {
	Model          string   `json:"model"`
	Ranking        string   `json:"ranking"`
	ParsedRanking  []string `json:"parsed_ranking"`
	ParseSucceeded bool     `json:"parse_succeeded"`
}

// Stage3Response is the chairman's final synthesis.
type Stage3Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// AggregateRanking is a model's mean 1-based position across all parsed
// rankings that mention it.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Metadata is ephemeral per-request information: the anonymization map and
// the aggregate rankings. It is returned to the caller and never persisted.
type Metadata struct {
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}

// Result aggregates all four stages plus ephemeral metadata for one
// deliberation. Stage1 preserves configured council order and includes
// failed attempts; downstream stages only ever saw the successes.
type Result struct {
	Stage0   Stage0Result    `json:"stage0"`
	Stage1   []ModelResponse `json:"stage1"`
	Stage2   []Stage2Ranking `json:"stage2"`
	Stage3   Stage3Response  `json:"stage3"`
	Metadata Metadata        `json:"metadata"`
}

// Turn is one prior conversation turn supplied as context to Stage 1.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config fixes the model lineup and per-call budgets for a Pipeline.
// Immutable once constructed.
type Config struct {
	CouncilModels []string
	ChairmanModel string

	// ResearchModel powers Stage 0 and title generation. Empty disables
	// the research stage entirely.
	ResearchModel string

	// ChairmanRanks adds the chairman as an extra Stage-2 evaluator.
	ChairmanRanks bool

	QueryTimeout     time.Duration
	DecomposeTimeout time.Duration
	ResearchTimeout  time.Duration
	TitleTimeout     time.Duration
}

// State tracks pipeline progress through its stages.
type State int

const (
	StateIdle State = iota
	StateStage0
	StateStage1
	StateStage2
	StateStage3
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStage0:
		return "stage0"
	case StateStage1:
		return "stage1"
	case StateStage2:
		return "stage2"
	case StateStage3:
		return "stage3"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
