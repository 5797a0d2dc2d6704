// Package assistant answers questions about uploaded books, extracts their
// first chapter and runs the conversational assistant, all against an
// OpenAI-compatible chat completion endpoint.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// NoAnswerMessage is returned when the model gives an empty answer to a
	// book question.
	NoAnswerMessage = "The AI did not provide a specific answer for this question. This could be due to processing difficulties, no relevant information found in the document, or the question being unanswerable based on the content."
	// ChatFallbackMessage is returned when the chat model gives an empty reply.
	ChatFallbackMessage = "मुझे क्षमा करें, मैं अभी प्रतिक्रिया उत्पन्न नहीं कर सका। कृपया पुन: प्रयास करें।"

	questionTemperature = 0.5
	chatTemperature     = 0.7
	// maxToolRounds bounds the tool call loop of a single chat turn.
	maxToolRounds = 3
)

var (
	// ErrMissingAPIKey is returned by New without an API key.
	ErrMissingAPIKey = errors.New("missing LLM API key")
	// ErrEmptyQuestion is returned for a blank question or chat message.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrNoChoices is returned when the endpoint returns no completion.
	ErrNoChoices = errors.New("completion returned no choices")
)

// Roles used in chat history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures the endpoint.
type Config struct {
	APIKey string
	// BaseURL selects an OpenAI-compatible endpoint; empty means OpenAI.
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client runs the assistant flows.
type Client struct {
	api        completer
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for an OpenAI-compatible endpoint.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = httpClient

	return newClient(openai.NewClientWithConfig(config), cfg.Model, httpClient, logger), nil
}

func newClient(api completer, model string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{api: api, model: model, httpClient: httpClient, logger: logger}
}

// ExtractFirstChapter returns the first chapter of doc, the whole text when
// the book is a single chapter, or "" when no chapter can be determined.
func (c *Client) ExtractFirstChapter(ctx context.Context, doc Document) (string, error) {
	prompt, err := render(chapterTmpl, doc)
	if err != nil {
		return "", err
	}

	msg, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{userMessage(prompt, doc)},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("extract first chapter: %w", err)
	}

	var out struct {
		FirstChapterText string `json:"firstChapterText"`
	}
	if err := json.Unmarshal([]byte(stripFence(msg.Content)), &out); err != nil {
		return "", fmt.Errorf("extract first chapter: decode response: %w", err)
	}

	c.logger.Info("first chapter extracted", "document", doc.Name, "chars", len(out.FirstChapterText))
	return strings.TrimSpace(out.FirstChapterText), nil
}

// AnswerQuestion answers question from the content of doc only.
func (c *Client) AnswerQuestion(ctx context.Context, doc Document, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	prompt, err := render(questionTmpl, struct {
		Text     string
		Question string
	}{doc.Text, question})
	if err != nil {
		return "", err
	}

	msg, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages:    []openai.ChatCompletionMessage{userMessage(prompt, doc)},
		Temperature: questionTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}

	answer := strings.TrimSpace(msg.Content)
	if answer == "" {
		c.logger.Warn("empty answer from model", "question", question)
		return NoAnswerMessage, nil
	}
	return answer, nil
}

// Chat replies to message given the prior history. The model may call the
// webpage and YouTube tools before answering.
func (c *Client) Chat(ctx context.Context, history []Message, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyQuestion
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Messages:    messages,
			Temperature: chatTemperature,
		}
		if round < maxToolRounds {
			req.Tools = chatTools
		}

		msg, err := c.complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("chat: %w", err)
		}

		if len(msg.ToolCalls) == 0 || round >= maxToolRounds {
			reply := strings.TrimSpace(msg.Content)
			if reply == "" {
				c.logger.Warn("empty chat reply from model")
				return ChatFallbackMessage, nil
			}
			return reply, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			c.logger.Debug("running tool", "tool", call.Function.Name)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    c.runTool(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}
}

// userMessage carries prompt and, for PDF books, the file itself as a data
// URI part. Content and MultiContent are mutually exclusive.
func userMessage(prompt string, doc Document) openai.ChatCompletionMessage {
	if !doc.IsPDF() {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: doc.dataURI()},
			},
		},
	}
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	req.Model = c.model
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, ErrNoChoices
	}
	return resp.Choices[0].Message, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
