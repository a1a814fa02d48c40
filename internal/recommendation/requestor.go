package recommendation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dropcheck/internal/geminiservice"
	"github.com/rs/zerolog"
)

// Generator is the model backend used by a Requestor.
type Generator interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema *geminiservice.Schema) (string, error)
}

// Requestor turns a Request into a validated Bundle.
//
// Each call issues exactly one Generator call. Concurrent calls with the same
// Request are not coalesced; every caller gets its own model call.
type Requestor struct {
	gen Generator
}

func NewRequestor(gen Generator) *Requestor {
	return &Requestor{gen: gen}
}

// Request validates req, renders the prompt, calls the model and parses the
// answer. Errors match ErrInvalidRequest, ErrGenerationFailed or
// ErrMalformedOutput.
func (r *Requestor) Request(ctx context.Context, req Request) (Bundle, error) {
	log := zerolog.Ctx(ctx)

	if res := Validate(req); !res.OK() {
		log.Info().Int("field_errors", len(res.Errors)).Msg("Rejected recommendation request")
		return Bundle{}, res.Err()
	}

	prompt := BuildPrompt(req)

	start := time.Now()
	raw, err := r.gen.GenerateStructured(ctx, SystemPrompt, prompt, BundleSchema)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Recommendation request cancelled by caller")
		} else {
			log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Recommendation generation failed")
		}
		return Bundle{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	bundle, err := ParseBundle(raw)
	if err != nil {
		log.Error().Err(err).Int("response_bytes", len(raw)).Msg("Model returned malformed recommendations")
		return Bundle{}, err
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("Recommendations generated")
	return bundle, nil
}
