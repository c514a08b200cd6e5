package attribution

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/kildespor/kildespor/config"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/models"
)

// TurnState names the phases of one chat turn, in order.
type TurnState string

const (
	StateReceived   TurnState = "received"
	StateRetrieving TurnState = "retrieving"
	StateSourcing   TurnState = "sourcing"
	StateFiltering  TurnState = "filtering"
	StateEnriching  TurnState = "enriching"
	StateCorrecting TurnState = "correcting"
	StatePersisted  TurnState = "persisted"
)

// answerPrompt steers the engine's synthesized answer.
const answerPrompt = "Answer using only the retrieved video transcripts. " +
	"Respond in the same language as the question. " +
	"If the transcripts do not cover the question, say so instead of guessing."

// ConversationStore is the slice of persistence the orchestrator needs.
// *store.Store satisfies it.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, orgID, title string) (models.Conversation, error)
	GetConversation(ctx context.Context, id, userID, orgID string) (models.Conversation, bool, error)
	AddMessage(ctx context.Context, convID, role, content string, sources []models.Source) (models.Message, error)
	History(ctx context.Context, convID string, max int) ([]models.HistoryEntry, error)
}

// Pipeline runs complete chat turns: retrieval, answer synthesis, dual-path
// source attribution, filtering, enrichment, correction and persistence.
type Pipeline struct {
	Registry      *retrieval.Registry
	Conversations ConversationStore
	Resolver      *Resolver
	Searcher      *Searcher
	Filter        *RelevanceFilter
	Enricher      *Enricher
	Corrector     *Corrector
	Annotator     Annotator
	Engine        config.EngineConfig
	Logger        *log.Logger
}

// TurnResult is what the chat endpoint returns to the client.
type TurnResult struct {
	ConversationID string         `json:"conversation_id"`
	UserMessage    models.Message `json:"user_message"`
	Assistant      models.Message `json:"assistant_message"`
}

// Run executes one turn. The user message is persisted before any retrieval,
// so a failed turn still leaves the question in the conversation. The
// assistant message is persisted exactly once, after correction, with
// whatever sources survived filtering (possibly none).
func (p *Pipeline) Run(ctx context.Context, user models.User, conversationID, message string) (TurnResult, error) {
	res, err := p.run(ctx, user, conversationID, message)
	if err != nil {
		turnsTotal.WithLabelValues("error").Inc()
		return TurnResult{}, err
	}
	turnsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, user models.User, conversationID, message string) (TurnResult, error) {
	conv, err := p.conversation(ctx, user, conversationID, message)
	if err != nil {
		return TurnResult{}, err
	}
	p.setState(conv.ID, StateReceived)

	// History of prior turns only; the current question rides in the query.
	history, err := p.Conversations.History(ctx, conv.ID, p.Engine.HistoryDepth)
	if err != nil {
		return TurnResult{}, err
	}

	userMsg, err := p.Conversations.AddMessage(ctx, conv.ID, "user", message, nil)
	if err != nil {
		return TurnResult{}, err
	}

	p.setState(conv.ID, StateRetrieving)
	instance, err := p.Registry.Instance(user.OrganizationID)
	if err != nil {
		return TurnResult{}, err
	}

	// The header path and the answer path only share the engine instance;
	// run them concurrently.
	var (
		wg            sync.WaitGroup
		headerSources []models.Source
		answerSources []models.Source
		answer        string
		headerErr     error
		answerErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		headerSources, headerErr = p.headerPath(ctx, instance, history, message, user)
	}()
	go func() {
		defer wg.Done()
		answer, answerSources, answerErr = p.answerPath(ctx, instance, history, message, user)
	}()
	wg.Wait()
	if answerErr != nil {
		return TurnResult{}, fmt.Errorf("answer retrieval: %w", answerErr)
	}
	if headerErr != nil {
		return TurnResult{}, fmt.Errorf("header retrieval: %w", headerErr)
	}
	sourcesResolvedTotal.WithLabelValues("header").Add(float64(len(headerSources)))
	sourcesResolvedTotal.WithLabelValues("answer").Add(float64(len(answerSources)))

	p.setState(conv.ID, StateSourcing)
	sources, err := p.mergePaths(ctx, user, message, answer, answerSources, headerSources)
	if err != nil {
		return TurnResult{}, err
	}

	p.setState(conv.ID, StateFiltering)
	filtered := p.Filter.Filter(sources, answer, message)
	sourcesFilteredTotal.Add(float64(len(sources) - len(filtered)))

	if len(filtered) > 0 {
		p.setState(conv.ID, StateEnriching)
		filtered = p.Enricher.Enrich(ctx, filtered)

		p.setState(conv.ID, StateCorrecting)
		answer = p.Corrector.Correct(ctx, answer, message, filtered)
	}

	if filtered == nil {
		filtered = []models.Source{}
	}
	assistant, err := p.Conversations.AddMessage(ctx, conv.ID, "assistant", answer, filtered)
	if err != nil {
		return TurnResult{}, err
	}
	p.setState(conv.ID, StatePersisted)

	return TurnResult{ConversationID: conv.ID, UserMessage: userMsg, Assistant: assistant}, nil
}

func (p *Pipeline) conversation(ctx context.Context, user models.User, id, message string) (models.Conversation, error) {
	if id == "" {
		return p.Conversations.CreateConversation(ctx, user.ID, user.OrganizationID, models.TitleFromMessage(message))
	}
	conv, found, err := p.Conversations.GetConversation(ctx, id, user.ID, user.OrganizationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !found {
		return models.Conversation{}, models.ErrConversationNotFound
	}
	return conv, nil
}

// headerPath fetches retrieval contexts in both modes, parses their metadata
// headers and resolves them against stored segments. Vector-mode context goes
// first in the concatenation so its headers win duplicate (video, start) keys.
func (p *Pipeline) headerPath(ctx context.Context, ins *retrieval.Instance, history []models.HistoryEntry, message string, user models.User) ([]models.Source, error) {
	vectorCtx, err := ins.Query(ctx, retrieval.QueryRequest{
		Query:       message,
		Mode:        retrieval.ModeVector,
		TopK:        p.Engine.ContextTopK,
		ContextOnly: true,
	})
	if err != nil {
		return nil, err
	}
	mixCtx, err := ins.Query(ctx, retrieval.QueryRequest{
		Query:       message,
		Mode:        retrieval.ModeMix,
		TopK:        p.Engine.ContextTopK,
		History:     history,
		ContextOnly: true,
	})
	if err != nil {
		return nil, err
	}

	headers := retrieval.ParseHeaders(vectorCtx+"\n"+mixCtx, p.Logger)
	headersParsedTotal.Add(float64(len(headers)))
	return p.Resolver.Resolve(ctx, headers, message, user)
}

// answerPath synthesizes the answer in mix mode and searches segments
// grounded on it.
func (p *Pipeline) answerPath(ctx context.Context, ins *retrieval.Instance, history []models.HistoryEntry, message string, user models.User) (string, []models.Source, error) {
	answer, err := ins.Query(ctx, retrieval.QueryRequest{
		Query:      message,
		Mode:       retrieval.ModeMix,
		TopK:       p.Engine.AnswerTopK,
		History:    history,
		UserPrompt: answerPrompt,
	})
	if err != nil {
		return "", nil, err
	}
	sources, err := p.Searcher.FromAnswer(ctx, answer, message, user)
	if err != nil {
		return "", nil, err
	}
	return answer, sources, nil
}

// mergePaths picks the turn's source set. Answer-grounded sources lead when
// present. With neither path producing anything, a plain query search is the
// last resort. Header-only results are validated against the answer: when
// fewer than half mention its entities or keywords, the answer search is
// retried and substituted if it finds anything.
func (p *Pipeline) mergePaths(ctx context.Context, user models.User, message, answer string, answerSources, headerSources []models.Source) ([]models.Source, error) {
	if len(answerSources) > 0 {
		return MergeSources(answerSources, headerSources), nil
	}
	if len(headerSources) == 0 {
		fallback, err := p.Searcher.Fallback(ctx, message, user)
		if err != nil {
			return nil, err
		}
		sourcesResolvedTotal.WithLabelValues("fallback").Add(float64(len(fallback)))
		return fallback, nil
	}

	entities := p.Annotator.Entities(answer)
	keywords := p.Annotator.Keywords(answer)
	if len(entities) == 0 && len(keywords) == 0 {
		return headerSources, nil
	}
	if 2*RelevantCount(headerSources, entities, keywords) >= len(headerSources) {
		return headerSources, nil
	}

	p.logf("only %d of %d header source(s) relevant to answer, retrying answer search",
		RelevantCount(headerSources, entities, keywords), len(headerSources))
	retry, err := p.Searcher.FromAnswer(ctx, answer, message, user)
	if err != nil {
		return nil, err
	}
	if len(retry) > 0 {
		return retry, nil
	}
	return headerSources, nil
}

func (p *Pipeline) setState(convID string, state TurnState) {
	if p.Logger != nil {
		p.Logger.Printf("turn %s: %s", convID, state)
	}
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}
