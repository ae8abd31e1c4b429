package council

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Pipeline sequences the deliberation stages against a fixed model lineup.
// Safe for concurrent use: all per-request state lives on the stack of a
// single run.
type Pipeline struct {
	cfg    Config
	client ModelClient
	log    zerolog.Logger
}

// New constructs a Pipeline. The Config is captured by value and never
// mutated; the ModelClient is the only collaborator.
func New(cfg Config, client ModelClient, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, client: client, log: logger.With().Str("component", "council").Logger()}
}

// RunStream executes the full deliberation and returns an ordered channel
// of progress events. The channel is closed after the terminal event
// (complete or error). Cancelling ctx cancels every in-flight model call.
func (p *Pipeline) RunStream(ctx context.Context, userQuery string, history []Turn) <-chan Event {
	ch := make(chan Event, 16)

	go func() {
		defer close(ch)
		emit := func(ev Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		result, err := p.execute(ctx, userQuery, history, emit)
		if err != nil {
			emit(Event{Type: EventError, Message: err.Error(), Err: err})
			return
		}
		emit(Event{Type: EventComplete, Data: result})
	}()

	return ch
}

// Run executes the deliberation to completion and returns the aggregated
// result. It drains the same event stream RunStream exposes, so batch and
// streaming callers share one execution path and ordering.
func (p *Pipeline) Run(ctx context.Context, userQuery string, history []Turn) (*Result, error) {
	var result *Result
	var runErr error

	for ev := range p.RunStream(ctx, userQuery, history) {
		switch ev.Type {
		case EventComplete:
			result = ev.Data.(*Result)
		case EventError:
			runErr = ev.Err
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	if result == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("deliberation ended without a result")
	}
	return result, nil
}

// execute walks the stage state machine in order. Stage 0 and Stage 2
// degrade on partial failure; Stage 1 with zero successes and any Stage 3
// failure are terminal.
func (p *Pipeline) execute(ctx context.Context, userQuery string, history []Turn, emit func(Event)) (*Result, error) {
	state := StateIdle
	transition := func(next State) {
		p.log.Debug().Stringer("from", state).Stringer("to", next).Msg("pipeline transition")
		state = next
	}

	// Stage 0: optional research grounding. Skipped without events when no
	// research model is configured.
	var stage0 Stage0Result
	if p.cfg.ResearchModel != "" {
		transition(StateStage0)
		stage0 = p.stage0Research(ctx, userQuery, emit)
	}

	// Stage 1: independent answers.
	transition(StateStage1)
	emit(Event{Type: EventStage1Start})
	stage1 := p.stage1Collect(ctx, userQuery, stage0.SynthesizedText, history)
	stage1OK := successes(stage1)
	if len(stage1OK) == 0 {
		transition(StateFailed)
		return nil, ErrAllModelsFailed
	}
	p.log.Info().Int("succeeded", len(stage1OK)).Int("attempted", len(stage1)).Msg("stage 1 collected")
	emit(Event{Type: EventStage1Complete, Data: stage1OK})

	// Stage 2: anonymized peer review.
	transition(StateStage2)
	emit(Event{Type: EventStage2Start})
	stage2, labelToModel := p.stage2Rankings(ctx, userQuery, stage1OK)
	aggregate := CalculateAggregateRankings(stage2, labelToModel)
	metadata := Metadata{LabelToModel: labelToModel, AggregateRankings: aggregate}
	emit(Event{Type: EventStage2Complete, Data: stage2, Metadata: metadata})

	// Stage 3: chairman synthesis.
	transition(StateStage3)
	emit(Event{Type: EventStage3Start})
	stage3, err := p.stage3Synthesize(ctx, userQuery, stage0, stage1OK, stage2, aggregate)
	if err != nil {
		transition(StateFailed)
		return nil, err
	}
	emit(Event{Type: EventStage3Complete, Data: stage3})

	transition(StateComplete)
	return &Result{
		Stage0:   stage0,
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: metadata,
	}, nil
}
