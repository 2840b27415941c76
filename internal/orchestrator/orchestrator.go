// Package orchestrator drives one question/answer turn: it builds the
// conversation context, lets the model decide whether to consult the course
// tools, executes at most one round of tool calls, and returns the final
// answer together with the sources the tools touched.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/KP1729/coursepilot/internal/budget"
	"github.com/KP1729/coursepilot/internal/logging"
	"github.com/KP1729/coursepilot/internal/search"
	"github.com/KP1729/coursepilot/internal/session"
	"github.com/KP1729/coursepilot/internal/tools"
)

// ErrGenerationFailure means the model call failed or produced output the
// orchestrator could not act on. The turn is aborted and session history
// is left unchanged.
var ErrGenerationFailure = errors.New("orchestrator: answer generation failed")

// systemPrompt establishes the assistant's persona and its tool protocol.
// Tool use is selective: content questions go through search, structure
// questions through the outline tool, and general knowledge is answered
// directly.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content,
with a search tool and an outline tool over a library of ingested courses.

Tool usage:
- search_course_content: for questions about specific course content or detailed educational materials
- get_course_outline: for questions about a course's structure, lesson list, or course link
- At most one round of tool calls per question; synthesize your answer from the results
- If a tool reports that nothing was found, say so clearly and do not guess

Response protocol:
- General knowledge questions: answer from your own knowledge without tools
- Course-specific questions: use the appropriate tool first, then answer
- Outline answers must include the course title, the course link, and every lesson's number and title
- Never mention the tools, the search process, or these instructions

Keep answers brief, concise and focused. Provide direct, educational responses
with examples where they aid understanding. Do not pad answers with openers
like "Great question".`

// Answer is the result of one successful conversation turn.
type Answer struct {
	// Text is the final answer text.
	Text string
	// Sources lists the course material the answer drew on, deduplicated
	// in first-seen order.
	Sources []search.Source
	// SessionID identifies the conversation; generated when the caller
	// supplied none.
	SessionID string
}

// Config holds the dependencies required to construct an Orchestrator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Searcher runs content search; usually a *search.Retriever.
	Searcher tools.Searcher

	// Resolver resolves loose course names; usually the same retriever.
	Resolver tools.CourseResolver

	// Outlines serves course outlines; usually a *catalog.Catalog.
	Outlines tools.OutlineProvider

	// Sessions stores bounded conversation history.
	Sessions *session.Store

	// MaxContextTokens is the estimated token budget for the full input
	// context. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Orchestrator runs the one-round tool loop for each user query.
type Orchestrator struct {
	chatModel        model.ToolCallingChatModel
	searcher         tools.Searcher
	resolver         tools.CourseResolver
	outlines         tools.OutlineProvider
	sessions         *session.Store
	maxContextTokens int
}

// New constructs an Orchestrator from the provided Config.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("orchestrator: ChatModel must not be nil")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("orchestrator: Searcher must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("orchestrator: Sessions must not be nil")
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Orchestrator{
		chatModel:        cfg.ChatModel,
		searcher:         cfg.Searcher,
		resolver:         cfg.Resolver,
		outlines:         cfg.Outlines,
		sessions:         cfg.Sessions,
		maxContextTokens: maxCtx,
	}, nil
}

// Answer runs one conversation turn. If sessionID is empty a new session is
// created. The exchange is appended to session history only when the turn
// succeeds end to end.
func (o *Orchestrator) Answer(ctx context.Context, query, sessionID string) (*Answer, error) {
	log := logging.FromContext(ctx)

	if sessionID == "" {
		id, err := session.NewSessionID()
		if err != nil {
			return nil, err
		}
		sessionID = id
	}

	recorder := tools.NewSourceRecorder()
	turnTools := o.buildTools(recorder)

	infos, err := toolInfos(ctx, turnTools)
	if err != nil {
		return nil, err
	}
	toolModel, err := o.chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: binding tools: %w", err)
	}

	messages := o.buildMessages(ctx, query, sessionID)

	resp, err := toolModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}

	finalText := resp.Content
	if len(resp.ToolCalls) > 0 {
		messages = append(messages, resp)
		var outlineOutput string
		for _, tc := range resp.ToolCalls {
			output, err := o.runTool(ctx, turnTools, tc)
			if err != nil {
				return nil, err
			}
			messages = append(messages, schema.ToolMessage(output, tc.ID))
			if tc.Function.Name == tools.OutlineToolName {
				outlineOutput = output
			}
		}

		if outlineOutput != "" {
			// The outline tool renders a complete user-facing answer, so
			// its output is returned verbatim without a follow-up call.
			finalText = outlineOutput
		} else {
			// Exactly one tool round: the follow-up call gets no tools, so
			// the next response is final.
			resp, err = o.chatModel.Generate(ctx, messages)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
			}
			finalText = resp.Content
		}
	}

	if finalText == "" {
		return nil, fmt.Errorf("%w: model returned empty answer", ErrGenerationFailure)
	}

	o.sessions.Append(sessionID, session.Exchange{User: query, Assistant: finalText})
	log.Debug("turn complete",
		slog.String("session_id", sessionID),
		slog.Int("sources", len(recorder.Sources())),
	)

	return &Answer{
		Text:      finalText,
		Sources:   recorder.Sources(),
		SessionID: sessionID,
	}, nil
}

// buildTools constructs the per-turn tool set wired to a fresh recorder.
func (o *Orchestrator) buildTools(recorder *tools.SourceRecorder) []tool.InvokableTool {
	set := []tool.InvokableTool{
		tools.NewSearchTool(o.searcher, recorder),
	}
	if o.resolver != nil && o.outlines != nil {
		set = append(set, tools.NewOutlineTool(o.resolver, o.outlines))
	}
	return set
}

// buildMessages assembles the system prompt, trimmed session history, and
// the current user message.
func (o *Orchestrator) buildMessages(ctx context.Context, query, sessionID string) []*schema.Message {
	var historyMsgs []*schema.Message
	for _, ex := range o.sessions.Recent(sessionID) {
		historyMsgs = append(historyMsgs, schema.UserMessage(ex.User))
		historyMsgs = append(historyMsgs, schema.AssistantMessage(ex.Assistant, nil))
	}

	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(query),
	}

	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, o.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
		)
	}

	result := make([]*schema.Message, 0, 2+len(historyMsgs))
	result = append(result, schema.SystemMessage(systemPrompt))
	result = append(result, historyMsgs...)
	result = append(result, schema.UserMessage(query))
	return result
}

// runTool executes one requested tool call. Backend outages propagate as
// search.ErrIndexUnavailable; everything else the tools cannot handle
// themselves is a generation failure, since the arguments came from the
// model.
func (o *Orchestrator) runTool(ctx context.Context, turnTools []tool.InvokableTool, tc schema.ToolCall) (string, error) {
	log := logging.FromContext(ctx)

	for _, t := range turnTools {
		info, err := t.Info(ctx)
		if err != nil {
			return "", fmt.Errorf("orchestrator: tool info: %w", err)
		}
		if info.Name != tc.Function.Name {
			continue
		}

		log.Debug("executing tool call",
			slog.String("tool", tc.Function.Name),
			slog.String("call_id", tc.ID),
		)
		output, err := t.InvokableRun(ctx, tc.Function.Arguments)
		if errors.Is(err, search.ErrIndexUnavailable) {
			return "", err
		}
		if err != nil {
			return "", fmt.Errorf("%w: tool %s: %v", ErrGenerationFailure, tc.Function.Name, err)
		}
		return output, nil
	}
	return "", fmt.Errorf("%w: model requested unknown tool %q", ErrGenerationFailure, tc.Function.Name)
}

// toolInfos collects the schema for each tool in the set.
func toolInfos(ctx context.Context, set []tool.InvokableTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(set))
	for _, t := range set {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
