package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAPI implements API on top of the OpenAI Assistants endpoints.
type OpenAIAPI struct {
	client *openai.Client
}

// OpenAIOptions configures the SDK client.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// NewOpenAIAPI builds an API backed by the official SDK.
func NewOpenAIAPI(opts OpenAIOptions) *OpenAIAPI {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(reqOpts...)
	return &OpenAIAPI{client: &client}
}

func (a *OpenAIAPI) GetAssistant(ctx context.Context, assistantID string) error {
	_, err := a.client.Beta.Assistants.Get(ctx, assistantID)
	return err
}

func (a *OpenAIAPI) CreateThread(ctx context.Context) (string, error) {
	thread, err := a.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (a *OpenAIAPI) AddUserMessage(ctx context.Context, threadID, content string) error {
	_, err := a.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	return err
}

func (a *OpenAIAPI) StartRun(ctx context.Context, threadID, assistantID, instructions string) (Run, error) {
	run, err := a.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID:  assistantID,
		Instructions: openai.String(instructions),
	})
	if err != nil {
		return Run{}, err
	}
	return toRun(run), nil
}

func (a *OpenAIAPI) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := a.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, err
	}
	return toRun(run), nil
}

func (a *OpenAIAPI) LatestMessageText(ctx context.Context, threadID string) (string, error) {
	page, err := a.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Limit: openai.Int(1),
		Order: openai.BetaThreadMessageListParamsOrderDesc,
	})
	if err != nil {
		return "", err
	}
	if len(page.Data) == 0 || len(page.Data[0].Content) == 0 {
		return "", ErrEmptyAnswer
	}

	block := page.Data[0].Content[0]
	if block.Type != "text" {
		return "", fmt.Errorf("%w: first block is %q", ErrEmptyAnswer, block.Type)
	}
	if block.Text.Value == "" {
		return "", ErrEmptyAnswer
	}
	return block.Text.Value, nil
}

func toRun(run *openai.Run) Run {
	return Run{
		ID:        run.ID,
		Status:    RunStatus(run.Status),
		LastError: run.LastError.Message,
	}
}
