package generation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// systemPrompt constrains the model to the retrieved context. Answers
// outside the context are refused rather than invented.
const systemPrompt = "You are a document analysis agent. Your goal is to provide fast, " +
	"highly accurate responses based strictly on the provided context.\n\n" +
	"OPERATING GUIDELINES:\n" +
	"1. CONTEXTUAL FIDELITY: Only use the provided <context> tags to answer. " +
	"If the answer isn't there, simply say: 'Information not available in current documents.'\n" +
	"2. CITATIONS: Use concise inline citations like [source_file.pdf].\n" +
	"3. FORMATTING: Use Markdown headers and bullet points for readability.\n" +
	"4. PRECISION: Maintain the exact numerical values found in the context (no rounding unless specified).\n" +
	"5. NO CONVERSATIONAL FILLER: Do not say 'Based on the documents...' or 'I hope this helps.' " +
	"Start the answer immediately."

// completionClient is the surface the generator needs from Client.
type completionClient interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Generator turns a query and retrieved context into a final answer.
// It never returns an error: every failure mode maps to a user-facing
// SERVICE_ERROR string, so a model outage degrades the answer instead
// of failing the request.
type Generator struct {
	client completionClient
	logger *zap.Logger
}

// NewGenerator creates a generator around a completions client.
func NewGenerator(client completionClient, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, logger: logger}
}

// GenerateAnswer asks the model to answer query using only context.
func (g *Generator) GenerateAnswer(ctx context.Context, query, docContext string) string {
	g.logger.Info("invoking completion model",
		zap.String("model", g.client.Model()),
		zap.String("query", truncate(query, 50)),
	)

	prompt := fmt.Sprintf(
		"Here is the retrieved document context:\n<context>\n%s\n</context>\n\nUSER QUESTION: %s",
		docContext, query,
	)

	answer, err := g.client.ChatCompletion(ctx, systemPrompt, prompt)
	if err == nil {
		return answer
	}

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		g.logger.Error("completion api error", zap.Int("status", apiErr.StatusCode))
		if apiErr.StatusCode == 404 {
			return fmt.Sprintf("SERVICE_ERROR: Model '%s' not found. Please check your model configuration.", g.client.Model())
		}
		return "SERVICE_ERROR: Unable to generate a response. Please try again or check the server logs."
	case errors.Is(err, ErrMalformedResponse):
		g.logger.Error("malformed completion response", zap.Error(err))
		return "SERVICE_ERROR: Unable to generate a response. Please try again or check the server logs."
	default:
		g.logger.Error("unexpected completion error", zap.Error(err))
		return fmt.Sprintf("SERVICE_ERROR: Unable to generate a response. Error: %s", truncate(err.Error(), 100))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
