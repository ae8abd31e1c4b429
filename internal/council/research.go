package council

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

const decomposePromptTemplate = `You are a research planning assistant. Given a user question, determine if it references specific products, tools, platforms, companies, frameworks, or niche topics that would benefit from web research.

If the question only involves well-known, general knowledge topics (e.g., Python, Excel, basic business concepts), respond with:
{"needs_research": false}

If research would help, break the question into 2-3 focused web search sub-queries, each targeting a DIFFERENT aspect:
- Sub-query 1: What the product/tool/platform IS (factual overview)
- Sub-query 2: Practical use cases, workflows, tutorials, community examples
- Sub-query 3: Context-specific info relevant to the question (e.g., industry-specific, regional)

Rules:
- Maximum 3 sub-queries
- Each sub-query should be concise (under 20 words)
- Each should target a genuinely different angle

Respond in JSON format ONLY, no other text:
{"needs_research": true, "sub_queries": ["query1", "query2", "query3"]}

User question: %s`

const researchPromptTemplate = `You are a web research assistant. Search the web and provide thorough, practical information about the following topic.

Research topic: %s

Provide comprehensive findings including:
- What it is (official description, key features, purpose)
- Practical use cases and real-world examples
- Getting started guides, tutorials, or community resources
- Pricing, licensing, or availability info if applicable
- Notable alternatives or competitors

Be factual and cite specific details. If you cannot find information, say so clearly rather than guessing.`

// maxSubQueries caps decomposition output.
const maxSubQueries = 3

// Models wrap JSON in prose or markdown fences; grab the first object.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{[^}]+\}`)

type decomposition struct {
	NeedsResearch bool     `json:"needs_research"`
	SubQueries    []string `json:"sub_queries"`
}

// decomposeQuery asks the research model to split the query into focused
// sub-queries. Any failure, including unparseable output, falls back to
// researching the original query verbatim. Never fails upward.
func (p *Pipeline) decomposeQuery(ctx context.Context, userQuery string) decomposition {
	fallback := decomposition{NeedsResearch: true, SubQueries: []string{userQuery}}

	prompt := fmt.Sprintf(decomposePromptTemplate, userQuery)
	resp := p.client.Invoke(ctx, p.cfg.ResearchModel, prompt, p.cfg.DecomposeTimeout)
	if !resp.Succeeded {
		p.log.Warn().Str("model", p.cfg.ResearchModel).Str("error_kind", string(resp.ErrorKind)).
			Msg("query decomposition failed, researching original query")
		return fallback
	}

	raw := jsonObjectPattern.FindString(strings.TrimSpace(resp.Content))
	if raw == "" {
		return fallback
	}

	var parsed decomposition
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		p.log.Warn().Err(err).Msg("decomposition JSON unparseable, researching original query")
		return fallback
	}

	if !parsed.NeedsResearch {
		return decomposition{NeedsResearch: false}
	}
	if len(parsed.SubQueries) == 0 {
		return fallback
	}
	if len(parsed.SubQueries) > maxSubQueries {
		parsed.SubQueries = parsed.SubQueries[:maxSubQueries]
	}
	return parsed
}

// stage0Research runs decomposition, fans the sub-queries out to the
// research model in parallel, and concatenates the successes in sub-query
// order. Degrades to HasResearch=false when research is declined or every
// sub-query fails; never returns an error.
func (p *Pipeline) stage0Research(ctx context.Context, userQuery string, emit func(Event)) Stage0Result {
	emit(Event{Type: EventStage0Start})
	emit(Event{Type: EventStage0Decomposing})

	decomp := p.decomposeQuery(ctx, userQuery)
	if !decomp.NeedsResearch {
		result := Stage0Result{Model: p.cfg.ResearchModel, HasResearch: false}
		emit(Event{Type: EventStage0Complete, Data: result})
		return result
	}

	subQueries := make([]SubQuery, len(decomp.SubQueries))
	for i, text := range decomp.SubQueries {
		subQueries[i] = SubQuery{Label: fmt.Sprintf("Research %d", i+1), Text: text}
	}
	emit(Event{Type: EventStage0SubQueries, Data: subQueries})

	g, gctx := errgroup.WithContext(ctx)
	responses := make([]ModelResponse, len(subQueries))
	for i, sq := range subQueries {
		i, sq := i, sq
		emit(Event{Type: EventStage0Researching, Data: sq})
		g.Go(func() error {
			prompt := fmt.Sprintf(researchPromptTemplate, sq.Text)
			responses[i] = p.client.Invoke(gctx, p.cfg.ResearchModel, prompt, p.cfg.ResearchTimeout)
			return nil
		})
	}
	_ = g.Wait()

	var subResults []SubResult
	for i, resp := range responses {
		if !resp.Succeeded || strings.TrimSpace(resp.Content) == "" {
			p.log.Warn().Str("sub_query", subQueries[i].Text).Str("error_kind", string(resp.ErrorKind)).
				Msg("research sub-query dropped")
			continue
		}
		sub := SubResult{Query: subQueries[i], Response: resp.Content}
		subResults = append(subResults, sub)
		emit(Event{Type: EventStage0SubResult, Data: sub})
	}

	if len(subResults) == 0 {
		result := Stage0Result{Model: p.cfg.ResearchModel, HasResearch: false, SubQueries: subQueries}
		emit(Event{Type: EventStage0Complete, Data: result})
		return result
	}

	emit(Event{Type: EventStage0Synthesizing})

	result := Stage0Result{
		Model:           p.cfg.ResearchModel,
		SynthesizedText: mergeSubResults(subResults),
		HasResearch:     true,
		SubQueries:      subQueries,
		SubResults:      subResults,
	}
	emit(Event{Type: EventStage0Complete, Data: result})
	return result
}

// mergeSubResults concatenates research findings with a header per
// sub-query. A single result is used verbatim. Pure string assembly, no
// model call.
func mergeSubResults(subResults []SubResult) string {
	if len(subResults) == 1 {
		return subResults[0].Response
	}
	sections := make([]string, len(subResults))
	for i, sub := range subResults {
		sections[i] = fmt.Sprintf("### %s\n\n%s", sub.Query.Text, sub.Response)
	}
	return strings.Join(sections, "\n\n---\n\n")
}
