package council

import (
	"context"
	"fmt"
	"strings"
)

const rankingPromptTemplate = `You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`

const chairmanPromptTemplate = `You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

%sSTAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`

// stage1Collect fans the user query out to every council model in
// parallel. The returned slice is in configured model order and includes
// failed attempts; callers filter with successes.
func (p *Pipeline) stage1Collect(ctx context.Context, userQuery, researchContext string, history []Turn) []ModelResponse {
	prompt := buildStage1Prompt(userQuery, researchContext, history)
	return invokeAll(ctx, p.client, p.cfg.CouncilModels, prompt, p.cfg.QueryTimeout)
}

// buildStage1Prompt prepends research findings and prior turns, when
// present, to the user's question.
func buildStage1Prompt(userQuery, researchContext string, history []Turn) string {
	var b strings.Builder
	if researchContext != "" {
		b.WriteString("Background research has been conducted on the topics in the user's query. Use this context to provide an accurate, informed response:\n\n")
		b.WriteString(researchContext)
		b.WriteString("\n\n---\n\n")
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n\n")
		for _, turn := range history {
			b.WriteString(fmt.Sprintf("%s: %s\n\n", turn.Role, turn.Content))
		}
		b.WriteString("---\n\n")
	}
	b.WriteString(userQuery)
	return b.String()
}

// stage2Rankings anonymizes the succeeded Stage-1 responses, asks every
// evaluator to rank them, and parses each verdict. Returns the rankings
// (one per evaluator that responded) and the fresh label-to-model map.
// Failed responses are invisible here: labels cover successes only.
func (p *Pipeline) stage2Rankings(ctx context.Context, userQuery string, stage1Succeeded []ModelResponse) ([]Stage2Ranking, map[string]string) {
	labelToModel := make(map[string]string, len(stage1Succeeded))
	var responsesText strings.Builder
	for i, result := range stage1Succeeded {
		label := fmt.Sprintf("Response %c", 'A'+i)
		labelToModel[label] = result.Model
		responsesText.WriteString(fmt.Sprintf("%s:\n%s\n\n", label, result.Content))
	}

	prompt := fmt.Sprintf(rankingPromptTemplate, userQuery, responsesText.String())

	evaluators := p.cfg.CouncilModels
	if p.cfg.ChairmanRanks && !contains(evaluators, p.cfg.ChairmanModel) {
		evaluators = append(append([]string{}, evaluators...), p.cfg.ChairmanModel)
	}

	responses := invokeAll(ctx, p.client, evaluators, prompt, p.cfg.QueryTimeout)

	var rankings []Stage2Ranking
	for _, resp := range responses {
		if !resp.Succeeded {
			p.log.Warn().Str("model", resp.Model).Str("error_kind", string(resp.ErrorKind)).
				Msg("evaluator dropped from stage 2")
			continue
		}
		parsed, ok := ParseRankingFromText(resp.Content)
		if !ok {
			p.log.Warn().Str("model", resp.Model).Msg("no ranking recoverable from evaluator verdict")
		}
		rankings = append(rankings, Stage2Ranking{
			Model:          resp.Model,
			Ranking:        resp.Content,
			ParsedRanking:  parsed,
			ParseSucceeded: ok,
		})
	}

	return rankings, labelToModel
}

// stage3Synthesize issues the single chairman call carrying the full
// transcript. The chairman sees real model names; anonymization applies
// only to peer review. Failure here is terminal.
func (p *Pipeline) stage3Synthesize(ctx context.Context, userQuery string, stage0 Stage0Result, stage1Succeeded []ModelResponse, stage2 []Stage2Ranking, aggregate []AggregateRanking) (Stage3Response, error) {
	var stage1Text strings.Builder
	for _, result := range stage1Succeeded {
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", result.Model, result.Content))
	}

	var stage2Text strings.Builder
	for _, result := range stage2 {
		stage2Text.WriteString(fmt.Sprintf("Model: %s\nRanking: %s\n\n", result.Model, result.Ranking))
	}
	if len(aggregate) > 0 {
		stage2Text.WriteString("Aggregate ranking (average peer position, best first):\n")
		for i, agg := range aggregate {
			stage2Text.WriteString(fmt.Sprintf("%d. %s (average rank %.2f across %d rankings)\n",
				i+1, agg.Model, agg.AverageRank, agg.RankingsCount))
		}
	}

	var researchSection string
	if stage0.HasResearch {
		researchSection = fmt.Sprintf("STAGE 0 - Background Research:\n%s\n\n", stage0.SynthesizedText)
	}

	prompt := fmt.Sprintf(chairmanPromptTemplate, userQuery, researchSection, stage1Text.String(), stage2Text.String())

	resp := p.client.Invoke(ctx, p.cfg.ChairmanModel, prompt, p.cfg.QueryTimeout)
	if !resp.Succeeded {
		return Stage3Response{}, fmt.Errorf("%w: %s (%s)", ErrChairmanFailed, p.cfg.ChairmanModel, resp.ErrorKind)
	}

	return Stage3Response{Model: p.cfg.ChairmanModel, Response: resp.Content}, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
