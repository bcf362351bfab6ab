// Package analysis turns a dream description or interview into a
// structured psychological analysis.
package analysis

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"dreamer/pkg/errs"
	"dreamer/pkg/inference"
	"dreamer/pkg/schema"
	"dreamer/pkg/utils"
)

const temperature = 0.7

// Input is either a free-text dream or an interview. Messages wins when
// both are present.
type Input struct {
	Dream    string           `json:"dream,omitempty"`
	Messages []schema.Message `json:"messages,omitempty"`
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.Dream) == "" && len(in.Messages) == 0 {
		return errs.Validation("please describe your dream")
	}
	return validateMessages(in.Messages)
}

func validateMessages(messages []schema.Message) error {
	for i, m := range messages {
		if m.Role != schema.RoleUser && m.Role != schema.RoleAssistant {
			return errs.Validation("message %d: role must be user or assistant", i)
		}
	}
	return nil
}

// Subject is the dream text stored with the record: the dreamer's final
// turn of the interview, or the dream itself when there is no interview.
func (in Input) Subject() string {
	for i := len(in.Messages) - 1; i >= 0; i-- {
		if m := in.Messages[i]; m.Role == schema.RoleUser {
			return strings.TrimSpace(m.Content)
		}
	}
	return strings.TrimSpace(in.Dream)
}

// Transcript renders the user turn sent to the model.
func Transcript(in Input) string {
	if len(in.Messages) == 0 {
		return "Dream description: " + strings.TrimSpace(in.Dream)
	}
	var b strings.Builder
	b.WriteString(transcriptHeader)
	for _, m := range in.Messages {
		b.WriteByte('\n')
		if m.Role == schema.RoleUser {
			b.WriteString("Dreamer: ")
		} else {
			b.WriteString("Interviewer: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

type Options struct {
	// MaxPromptTokens bounds system prompt plus transcript. Oldest turns
	// are dropped to fit.
	MaxPromptTokens int
	// CountTokens defaults to utils.NumTokens.
	CountTokens func(string) int
	// JSONSchema requests json_schema output instead of json_object.
	JSONSchema bool
}

type Service struct {
	llm  inference.Inferencer
	chat inference.Inferencer
	opts Options

	// OnAnalysis observes each analysis outcome; used for metrics.
	OnAnalysis func(outcome string)
}

// New returns a Service. chat may be nil, in which case interviews use llm.
func New(llm, chat inference.Inferencer, opts Options) *Service {
	opts.MaxPromptTokens = cmp.Or(opts.MaxPromptTokens, 6000)
	if opts.CountTokens == nil {
		opts.CountTokens = utils.NumTokens
	}
	if chat == nil {
		chat = llm
	}
	return &Service{llm: llm, chat: chat, opts: opts}
}

// Analyze validates in, asks the model for an analysis and validates the
// answer. Bad input fails before any provider call.
func (s *Service) Analyze(ctx context.Context, in Input) (schema.Analysis, error) {
	if err := in.Validate(); err != nil {
		return schema.Analysis{}, err
	}

	in.Messages = s.fit(analysisPrompt, in.Messages, Transcript)

	format := schema.JSONObjectResponseFormat()
	if s.opts.JSONSchema {
		format = schema.StructuredOutputsResponseFormat()
	}
	params := &openai.ChatCompletionNewParams{
		ResponseFormat: format,
		Temperature:    openai.Float(temperature),
	}

	start := time.Now()
	out, err := s.llm.Infer(ctx, params, analysisPrompt, Transcript(in))
	if err != nil {
		s.observe("provider_error")
		return schema.Analysis{}, err
	}

	analysis, err := Parse(s.llm.Name(), out)
	if err != nil {
		s.observe("malformed")
		log.Warn("malformed analysis", "provider", s.llm.Name(), "payload", utils.LimitStr(out, 200), "err", err)
		return schema.Analysis{}, err
	}

	s.observe("ok")
	log.Info("dream analysed", "provider", s.llm.Name(), "symbols", len(analysis.Symbols), "traits", analysis.PersonalityTraits != nil, "duration", time.Since(start))
	return analysis, nil
}

// Parse decodes and validates a model answer. Any failure is a
// *errs.ProviderError wrapping errs.ErrMalformedAnalysis.
func Parse(provider, raw string) (schema.Analysis, error) {
	analysis, err := schema.DecodeAnalysis([]byte(utils.CleanJSON(raw)))
	if err != nil {
		return schema.Analysis{}, &errs.ProviderError{Provider: provider, Err: err}
	}
	return analysis, nil
}

// Interview returns the interviewer's next question.
func (s *Service) Interview(ctx context.Context, messages []schema.Message) (string, error) {
	if len(messages) == 0 {
		return "", errs.Validation("messages must not be empty")
	}
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	messages = s.fit(interviewPrompt, messages, Transcript)
	reply, err := s.chat.Chat(ctx, &openai.ChatCompletionNewParams{
		Temperature: openai.Float(temperature),
	}, interviewPrompt, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// fit drops the oldest turns until system plus the rendered messages fit
// the token budget. The last user turn is always kept.
func (s *Service) fit(system string, messages []schema.Message, render func(Input) string) []schema.Message {
	if len(messages) == 0 {
		return messages
	}
	last := len(messages) - 1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == schema.RoleUser {
			last = i
			break
		}
	}

	budget := s.opts.MaxPromptTokens - s.opts.CountTokens(system)
	start := 0
	for start < last && s.opts.CountTokens(render(Input{Messages: messages[start:]})) > budget {
		start++
	}
	if start > 0 {
		log.Debug("trimmed conversation to fit token budget", "dropped", start, "kept", len(messages)-start)
	}
	return messages[start:]
}

func (s *Service) observe(outcome string) {
	if s.OnAnalysis != nil {
		s.OnAnalysis(outcome)
	}
}
