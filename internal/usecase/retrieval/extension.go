package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/request"
)

const extensionSystemPrompt = `You rewrite search queries for a retrieval system.
Given a user query and optional background, produce a single expanded query
that surfaces more relevant documents. Reply with the rewritten query only,
no explanation.`

// extendQuery runs the optional query extension stage. Returns the extended
// query and its cost fact, or the original query and nil when the generation
// model fails. Degradation is silent towards the caller.
func (s *SinglePass) extendQuery(
	ctx context.Context, req *request.Request,
) (string, *domain.ExtensionCost) {
	prompt := req.Query()
	if req.ExtensionBackground() != "" {
		prompt = fmt.Sprintf("Background: %s\n\nQuery: %s", req.ExtensionBackground(), req.Query())
	}

	gen, err := s.gen.Generate(ctx, domain.GenerationRequest{
		Model:  req.ExtensionModel(),
		System: extensionSystemPrompt,
		Prompt: prompt,
	})
	if err != nil || gen.Text == "" {
		s.logger.Warn("query extension failed, using original query",
			zap.String("model", req.ExtensionModel()), zap.Error(err))
		return req.Query(), nil
	}

	return gen.Text, &domain.ExtensionCost{
		Model:        gen.Model,
		InputTokens:  gen.InputTokens,
		OutputTokens: gen.OutputTokens,
	}
}
