package council

import (
	"context"
	"fmt"
	"strings"
)

const titlePromptTemplate = `Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`

const maxTitleLength = 50

// GenerateTitle produces a short conversation title from the first user
// message, using the research model when configured and the chairman
// otherwise. Callers fall back to a default title on error.
func (p *Pipeline) GenerateTitle(ctx context.Context, userQuery string) (string, error) {
	model := p.cfg.ResearchModel
	if model == "" {
		model = p.cfg.ChairmanModel
	}

	resp := p.client.Invoke(ctx, model, fmt.Sprintf(titlePromptTemplate, userQuery), p.cfg.TitleTimeout)
	if !resp.Succeeded {
		return "", fmt.Errorf("title generation failed: %s (%s)", model, resp.ErrorKind)
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, "\"'")
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength-3] + "..."
	}
	return title, nil
}
