package council

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// fakeClient is a scriptable ModelClient. The respond function decides the
// outcome per call; every call is recorded for assertions.
type fakeClient struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(model, prompt string) ModelResponse
}

type fakeCall struct {
	Model  string
	Prompt string
}

func (f *fakeClient) Invoke(ctx context.Context, model, prompt string, timeout time.Duration) ModelResponse {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Model: model, Prompt: prompt})
	f.mu.Unlock()

	resp := f.respond(model, prompt)
	resp.Model = model
	return resp
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) callsMatching(substr string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if strings.Contains(c.Prompt, substr) {
			out = append(out, c)
		}
	}
	return out
}

func ok(content string) ModelResponse {
	return ModelResponse{Content: content, Succeeded: true}
}

func failed(kind ErrorKind) ModelResponse {
	return ModelResponse{Succeeded: false, ErrorKind: kind}
}

// Prompt fingerprints, keyed off fixed phrases in each stage's template.
const (
	decomposeMarker = "research planning assistant"
	researchMarker  = "web research assistant"
	evalMarker      = "evaluating different responses"
	chairmanMarker  = "Chairman of an LLM Council"
	titleMarker     = "very short title"
)

func promptKind(prompt string) string {
	switch {
	case strings.Contains(prompt, decomposeMarker):
		return "decompose"
	case strings.Contains(prompt, researchMarker):
		return "research"
	case strings.Contains(prompt, evalMarker):
		return "ranking"
	case strings.Contains(prompt, chairmanMarker):
		return "chairman"
	case strings.Contains(prompt, titleMarker):
		return "title"
	default:
		return "answer"
	}
}

func testConfig(models ...string) Config {
	return Config{
		CouncilModels:    models,
		ChairmanModel:    "test/chairman",
		ResearchModel:    "test/researcher",
		QueryTimeout:     time.Second,
		DecomposeTimeout: time.Second,
		ResearchTimeout:  time.Second,
		TitleTimeout:     time.Second,
	}
}

func newTestPipeline(cfg Config, client ModelClient) *Pipeline {
	return New(cfg, client, zerolog.Nop())
}
