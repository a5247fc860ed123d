package summary

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/tanpawarit/atelier-storefront/pkg/algolia"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

// Completer is the hosted agent completions endpoint.
type Completer interface {
	Complete(ctx context.Context, messages []algolia.Message) (string, error)
}

// AgentSummarizer asks the hosted shopping agent for a summary.
type AgentSummarizer struct {
	completer Completer
	topHits   int
}

func NewAgentSummarizer(completer Completer, topHits int) *AgentSummarizer {
	return &AgentSummarizer{completer: completer, topHits: topHits}
}

func (s *AgentSummarizer) Summarize(ctx context.Context, query string, hits []contract.Hit) (contract.Summary, error) {
	content, err := s.completer.Complete(ctx, []algolia.Message{
		{Role: "user", Content: BuildPrompt(query, hits, s.topHits)},
	})
	if err != nil {
		return contract.Summary{}, err
	}
	return Parse(content, query)
}

// ChatModelSummarizer runs prompt -> chat model -> parse as one compiled graph.
type ChatModelSummarizer struct {
	runner  compose.Runnable[map[string]any, contract.Summary]
	topHits int
}

func NewChatModelSummarizer(ctx context.Context, chatModel einomodel.BaseChatModel, topHits int) (*ChatModelSummarizer, error) {
	runner, err := compileSummaryGraph(ctx, chatModel, SystemPrompt())
	if err != nil {
		return nil, err
	}
	return &ChatModelSummarizer{runner: runner, topHits: topHits}, nil
}

func (s *ChatModelSummarizer) Summarize(ctx context.Context, query string, hits []contract.Hit) (contract.Summary, error) {
	out, err := s.runner.Invoke(ctx, map[string]any{
		"input": BuildPrompt(query, hits, s.topHits),
	})
	if err != nil {
		return contract.Summary{}, fmt.Errorf("%w: summary graph: %v", contract.ErrUpstream, err)
	}
	out.Query = query
	return out, nil
}

func compileSummaryGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, contract.Summary], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, contract.Summary]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add summary prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add summary model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (contract.Summary, error) {
			if msg == nil {
				return contract.Summary{}, fmt.Errorf("%w: empty model response", contract.ErrUpstream)
			}
			return Parse(msg.Content, "")
		}),
	); err != nil {
		return nil, fmt.Errorf("add summary parse node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add summary edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add summary edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse"); err != nil {
		return nil, fmt.Errorf("add summary edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse", compose.END); err != nil {
		return nil, fmt.Errorf("add summary edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("summary.graph"))
	if err != nil {
		return nil, fmt.Errorf("compile summary graph: %w", err)
	}
	return runner, nil
}
