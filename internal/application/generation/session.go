package generation

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/domain/stream"
	"github.com/alchemorsel/recipegen/internal/ports/inbound"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Session holds the state of one client: the in-flight generation and
// the last recipe shown. Starting a generation cancels the previous one
// and fragments it still delivers are dropped.
type Session struct {
	id      uuid.UUID
	service *Service
	acc     *stream.Accumulator

	mu         sync.Mutex
	cancel     context.CancelFunc
	canceled   stream.Token
	generating bool
	latest     *inbound.GenerationResult
	lastUsed   time.Time
}

func newSession(service *Service) *Session {
	return &Session{
		id:       uuid.New(),
		service:  service,
		acc:      stream.NewAccumulator(),
		lastUsed: time.Now(),
	}
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Generating reports whether a generation is in flight
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// Latest returns the most recent completed generation, if any
func (s *Session) Latest() *inbound.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Text returns the text accumulated by the current generation
func (s *Session) Text() string {
	return s.acc.String()
}

// LastUsed returns when the session last started or finished a generation
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Cancel stops the in-flight generation, if any. The stopped generation
// returns context.Canceled.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.generating {
		s.canceled = s.acc.Current()
	}
	s.generating = false
	s.acc.Reset()
}

func (s *Session) begin(ctx context.Context) (stream.Token, context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	token := s.acc.Reset()
	genCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.generating = true
	s.lastUsed = time.Now()
	return token, genCtx, cancel
}

// finish publishes result if token still owns the session.
func (s *Session) finish(token stream.Token, result *inbound.GenerationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acc.Current() != token {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generating = false
	s.lastUsed = time.Now()
	if result != nil {
		s.latest = result
	}
	return true
}

// Generation is a claimed slot in a session. Begin claims it and Run
// streams it; a later Begin or Cancel takes the slot away.
type Generation struct {
	session *Session
	req     recipe.Request
	token   stream.Token
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
}

// Begin validates req and claims the session for it, cancelling the
// generation in flight. Callers that spawn Run concurrently must call
// Begin in request order.
func (s *Session) Begin(ctx context.Context, req recipe.Request) (*Generation, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.service.metrics.GenerationFinished(s.service.provider.Name(), outbound.OutcomeInvalid, 0, 0)
		return nil, validationError(err)
	}

	token, genCtx, cancel := s.begin(ctx)
	return &Generation{
		session: s,
		req:     req,
		token:   token,
		parent:  ctx,
		ctx:     genCtx,
		cancel:  cancel,
	}, nil
}

// Generate streams a recipe for req. progress receives the full text
// after every fragment of this generation.
func (s *Session) Generate(ctx context.Context, req recipe.Request, progress inbound.ProgressFunc) (*inbound.GenerationResult, error) {
	g, err := s.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return g.Run(progress)
}

// Run streams the claimed generation. It returns ErrSuperseded when a
// newer generation took the session and context.Canceled when the
// session or the parent context was cancelled.
func (g *Generation) Run(progress inbound.ProgressFunc) (*inbound.GenerationResult, error) {
	s := g.session
	svc := s.service
	req, token, ctx := g.req, g.token, g.parent
	provider := svc.provider.Name()
	logger := svc.logger.With(zap.String("session_id", s.id.String()))
	defer g.cancel()

	generationID := uuid.New()
	genCtx, span := svc.tracer.Start(g.ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.id", generationID.String()),
		attribute.String("generation.provider", provider),
		attribute.Int("generation.ingredients", len(req.Ingredients)),
		attribute.String("generation.cooking_time", req.CookingTime),
	)

	start := time.Now()
	svc.metrics.GenerationStarted(provider)
	logger.Info("Generating recipe",
		zap.String("generation_id", generationID.String()),
		zap.Strings("ingredients", req.Ingredients),
		zap.String("cooking_time", req.CookingTime),
	)

	count := 0
	fail := func(outcome string, err error) (*inbound.GenerationResult, error) {
		svc.metrics.GenerationFinished(provider, outcome, count, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.finish(token, nil)
		return nil, err
	}

	fragments, err := svc.provider.StreamChat(genCtx, svc.chatRequest(req))
	if err != nil {
		if outcome, stopped := s.interrupted(token); stopped != nil {
			return fail(outcome, stopped)
		}
		if ctx.Err() != nil {
			return fail(outbound.OutcomeCanceled, ctx.Err())
		}
		logger.Error("Chat provider rejected request", zap.Error(err))
		return fail(outbound.OutcomeFailed, transportError(provider, err))
	}
	defer fragments.Close()

	var raw string
	for fragments.Next() {
		text, ok := s.acc.AppendFor(token, fragments.Fragment())
		if !ok {
			outcome, stopped := s.interrupted(token)
			return fail(outcome, stopped)
		}
		raw = text
		count++
		if progress != nil {
			progress(raw)
		}
	}
	if err := fragments.Err(); err != nil {
		if outcome, stopped := s.interrupted(token); stopped != nil {
			return fail(outcome, stopped)
		}
		if ctx.Err() != nil {
			return fail(outbound.OutcomeCanceled, ctx.Err())
		}
		logger.Error("Recipe stream failed",
			zap.String("generation_id", generationID.String()),
			zap.Int("fragments", count),
			zap.Error(err),
		)
		return fail(outbound.OutcomeFailed, transportError(provider, err))
	}

	extracted := recipe.Extract(raw, req)
	if extracted.Recovered {
		logger.Warn("Recipe extraction recovered from a panic",
			zap.String("generation_id", generationID.String()))
	}

	result := &inbound.GenerationResult{
		ID:        generationID,
		Provider:  provider,
		RawText:   raw,
		Recipe:    extracted.Recipe,
		Defaulted: extracted.Defaulted,
		Recovered: extracted.Recovered,
		Fragments: count,
		Duration:  time.Since(start),
	}
	if !s.finish(token, result) {
		outcome, stopped := s.interrupted(token)
		return fail(outcome, stopped)
	}

	svc.metrics.GenerationFinished(provider, outbound.OutcomeSuccess, count, result.Duration)
	span.SetAttributes(
		attribute.Int("generation.fragments", count),
		attribute.String("recipe.difficulty", string(result.Recipe.Difficulty)),
	)
	logger.Info("Recipe generated",
		zap.String("generation_id", generationID.String()),
		zap.String("title", result.Recipe.Title),
		zap.Int("fragments", count),
		zap.Strings("defaulted", result.Defaulted),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// interrupted reports how token lost the session: a user cancel or a
// newer generation. err is nil while token still owns it.
func (s *Session) interrupted(token stream.Token) (string, error) {
	s.mu.Lock()
	canceled := s.canceled == token
	s.mu.Unlock()

	switch {
	case canceled:
		return outbound.OutcomeCanceled, context.Canceled
	case s.acc.Current() != token:
		return outbound.OutcomeSuperseded, ErrSuperseded
	}
	return "", nil
}
