package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/internal/spatial"
	"assisted-venue-dedup/pkg/circuit"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/logging"
)

// Verdict is an advisory second opinion on a duplicate pair. It never gates
// a merge; operators weigh it alongside the computed confidence.
type Verdict struct {
	SameVenue  bool    `json:"same_venue"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ChatCompleter is the slice of the OpenAI client the reviewer needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PairReviewer asks an LLM whether two venue records describe the same
// physical venue. Calls run behind a circuit breaker; when the breaker is
// open the reviewer fails fast with a provider error instead of queueing
// on a struggling upstream.
type PairReviewer struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *logging.ComponentLogger
}

func NewPairReviewer(apiKey, model string, timeout time.Duration, logger *logging.Logger) *PairReviewer {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = constants.ReviewerDefaultAPITimeout
	}
	breaker := circuit.New(circuit.Config{
		Name:              "openai_reviewer",
		OperationTimeout:  constants.ReviewerOperationTimeout,
		OpenFor:           constants.ReviewerOpenFor,
		MaxConsecFailures: 3,
		WindowSize:        10,
		FailureRate:       constants.ReviewerCircuitFailureRate,
		SlowCallThreshold: constants.ReviewerSlowCallThreshold,
		SlowCallRate:      constants.ReviewerCircuitSlowCallRate,
	}, logger)
	return &PairReviewer{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		breaker: breaker,
		logger:  logger.WithComponent("review"),
	}
}

// NewPairReviewerWithClient wires a custom client; tests use this.
func NewPairReviewerWithClient(client ChatCompleter, model string, logger *logging.Logger) *PairReviewer {
	r := NewPairReviewer("test", model, time.Second, logger)
	r.client = client
	return r
}

// ReviewPair returns the model's verdict for the pair described by the two
// venues and their computed evidence.
func (r *PairReviewer) ReviewPair(ctx context.Context, a, b models.Venue, pair models.DuplicatePair) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var verdict *Verdict
	err := r.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(a, b, pair)},
			},
			Temperature:    0.2,
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}
		verdict, err = parseVerdict(resp.Choices[0].Message.Content)
		return err
	}, nil)
	if err != nil {
		r.logger.Error("pair review failed", err,
			logging.Int64("venue_id_1", pair.VenueID1),
			logging.Int64("venue_id_2", pair.VenueID2))
		return nil, errs.NewProvider("ReviewPair", "openai", "pair review failed", err)
	}
	return verdict, nil
}

func buildUserPrompt(a, b models.Venue, pair models.DuplicatePair) string {
	var sb strings.Builder
	writeVenue := func(label string, v models.Venue) {
		fmt.Fprintf(&sb, "%s:\n  Name: %s\n  Address: %s\n", label, v.Name, v.Address)
		if v.HasCoords() {
			fmt.Fprintf(&sb, "  Coordinates: %.6f, %.6f\n", *v.Lat, *v.Lng)
		}
	}
	writeVenue("Venue A", a)
	writeVenue("Venue B", b)
	fmt.Fprintf(&sb, "Computed name similarity: %.2f\n", pair.Similarity)
	if d := spatial.PairDistance(a, b); d != nil {
		fmt.Fprintf(&sb, "Distance apart: %.0f meters\n", *d)
	} else {
		sb.WriteString("Distance apart: unknown (missing coordinates)\n")
	}
	return sb.String()
}

func parseVerdict(response string) (*Verdict, error) {
	// Clean response (remove markdown code blocks if present)
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var v Verdict
	if err := json.Unmarshal([]byte(response), &v); err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return nil, fmt.Errorf("review confidence %v outside [0, 1]", v.Confidence)
	}
	return &v, nil
}

const systemPrompt = `You are a venue catalog reviewer. Given two venue records, decide whether they describe the SAME physical venue (duplicates) or different venues.
Consider name variants, abbreviations, chains with multiple locations, and address evidence.
Output JSON: {"same_venue": true|false, "confidence": 0.0-1.0, "reasoning": "one short sentence"}`
