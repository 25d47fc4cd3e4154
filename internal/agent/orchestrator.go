// Package agent orchestrates a tutoring turn: emotional analysis, memory
// retrieval, a reasoning pass, and a personalized streamed response.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/llm"
	"github.com/mindpalace/sensei/internal/memory"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/storage"
	apperrors "github.com/mindpalace/sensei/pkg/errors"
)

// Pipeline step names, surfaced on errors so clients see where a turn died.
const (
	StepValidateMessages = "validate_messages"
	StepLoadUser         = "load_user"
	StepLoadProfile      = "load_user_profile"
	StepAnalyzeEmotion   = "analyze_emotion"
	StepRetrieveMemories = "retrieve_memories"
	StepReason           = "reason"
	StepGenerate         = "generate_response"
	StepPersist          = "persist_turn"
)

// Persist modes. Detach answers without waiting for memory and chat writes;
// await blocks until the turn is durably recorded.
const (
	PersistDetach = "detach"
	PersistAwait  = "await"
)

// Options tunes the orchestrator.
type Options struct {
	MemoryLimit int
	PersistMode string
}

// Result is one completed tutoring turn.
type Result struct {
	Response  string                `json:"response"`
	Steps     []models.ReActStep    `json:"steps"`
	Emotional models.EmotionalState `json:"emotional_state"`
	Memories  int                   `json:"memories_used"`
	Replayed  bool                  `json:"replayed,omitempty"`
}

// Orchestrator runs tutoring turns against the memory service, profile
// store, and chat model.
type Orchestrator struct {
	store      storage.Storage
	memories   *memory.Service
	classifier Classifier
	generator  llm.Generator
	dedupe     *DedupeCache
	opts       Options
	logger     *zap.Logger
}

// NewOrchestrator wires an orchestrator. dedupe may be nil to disable
// request deduplication.
func NewOrchestrator(store storage.Storage, memories *memory.Service, classifier Classifier, generator llm.Generator, dedupe *DedupeCache, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = 5
	}
	if opts.PersistMode == "" {
		opts.PersistMode = PersistDetach
	}
	return &Orchestrator{
		store:      store,
		memories:   memories,
		classifier: classifier,
		generator:  generator,
		dedupe:     dedupe,
		opts:       opts,
		logger:     logger,
	}
}

// Chat runs one tutoring turn. onDelta receives response fragments as they
// stream; it may be nil. Requests carrying the same non-empty requestID
// collapse to one execution, with duplicates replaying the finished
// response verbatim.
func (o *Orchestrator) Chat(ctx context.Context, userID, requestID string, messages []models.ChatMessage, onDelta func(string)) (*Result, error) {
	if o.dedupe == nil || requestID == "" {
		return o.run(ctx, userID, messages, onDelta)
	}

	entry, claimed := o.dedupe.Claim(requestID)
	if !claimed {
		response, err := entry.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if onDelta != nil {
			onDelta(response)
		}
		o.logger.Info("replayed duplicate request",
			zap.String("request_id", requestID),
			zap.String("user_id", userID))
		return &Result{Response: response, Replayed: true}, nil
	}

	res, err := o.run(ctx, userID, messages, onDelta)
	if err != nil {
		// Release concurrent waiters with the error, but drop the slot so
		// a retry with the same request ID re-executes instead of
		// replaying the failure until the TTL expires.
		entry.Complete("", err)
		o.dedupe.Forget(requestID, entry)
		return nil, err
	}
	entry.Complete(res.Response, nil)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, userID string, messages []models.ChatMessage, onDelta func(string)) (*Result, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}
	lastContent := messages[len(messages)-1].Content

	if _, err := o.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("user %s not found", userID)).WithStep(StepLoadUser)
		}
		return nil, stepError(StepLoadUser, err)
	}

	profile, err := o.loadProfile(ctx, userID)
	if err != nil {
		return nil, stepError(StepLoadProfile, err)
	}

	emotional, err := o.classifier.Analyze(ctx, messages)
	if err != nil {
		return nil, stepError(StepAnalyzeEmotion, err)
	}

	recalled, err := o.memories.Search(ctx, userID, lastContent, o.opts.MemoryLimit)
	if err != nil {
		return nil, stepError(StepRetrieveMemories, err)
	}

	reasoning, err := o.generator.Generate(ctx, reasonSystemPrompt, o.reasonMessages(profile, emotional, recalled, messages))
	if err != nil {
		return nil, stepError(StepReason, err)
	}
	steps := parseReActSteps(reasoning)

	response, err := o.generator.GenerateStream(ctx, generateSystemPrompt(profile, emotional, steps), messages, onDelta)
	if err != nil {
		return nil, stepError(StepGenerate, err)
	}

	if err := o.persistTurn(ctx, userID, messages, response, emotional); err != nil {
		return nil, stepError(StepPersist, err)
	}

	return &Result{
		Response:  response,
		Steps:     steps,
		Emotional: emotional,
		Memories:  len(recalled),
	}, nil
}

func validateMessages(messages []models.ChatMessage) error {
	if len(messages) == 0 {
		return apperrors.NewValidation("messages must not be empty").WithStep(StepValidateMessages)
	}
	for i, m := range messages {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return apperrors.NewValidation(fmt.Sprintf("message %d has invalid role %q", i, m.Role)).WithStep(StepValidateMessages)
		}
		if strings.TrimSpace(m.Content) == "" {
			return apperrors.NewValidation(fmt.Sprintf("message %d has empty content", i)).WithStep(StepValidateMessages)
		}
	}
	if messages[len(messages)-1].Role != models.RoleUser {
		return apperrors.NewValidation("last message must come from the user").WithStep(StepValidateMessages)
	}
	return nil
}

// loadProfile returns the stored profile, or defaults when none exists yet.
func (o *Orchestrator) loadProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := o.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		profile = &models.UserProfile{UserID: userID}
	} else if err != nil {
		return nil, err
	}
	profile.ApplyDefaults()
	return profile, nil
}

const reasonSystemPrompt = `You are the reasoning engine of a personal AI tutor.
Think through how to answer the student step by step. For each step write:
Thought: what you are considering
Action: what to do about it
Observation: what that tells you
Separate steps with a blank line.`

func (o *Orchestrator) reasonMessages(profile *models.UserProfile, emotional models.EmotionalState, recalled []*models.MemoryEntry, messages []models.ChatMessage) []models.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Student profile: learning style %s, difficulty %s", profile.LearningStyle, profile.Difficulty)
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, ", interests: %s", strings.Join(profile.Interests, ", "))
	}
	fmt.Fprintf(&b, "\nEmotional state: %s (%s confidence)\n", emotional.Mood, emotional.Confidence)
	if len(recalled) > 0 {
		b.WriteString("Relevant past exchanges:\n")
		for _, m := range recalled {
			for _, msg := range m.Messages {
				fmt.Fprintf(&b, "- %s: %s\n", msg.Role, msg.Content)
			}
		}
	}
	b.WriteString("\nConversation:\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return []models.ChatMessage{{Role: models.RoleUser, Content: b.String()}}
}

func generateSystemPrompt(profile *models.UserProfile, emotional models.EmotionalState, steps []models.ReActStep) string {
	var b strings.Builder
	b.WriteString("You are a supportive personal AI tutor.\n")
	fmt.Fprintf(&b, "Adapt your answer to a %s learning style at %s difficulty.\n", profile.LearningStyle, profile.Difficulty)
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, "Where natural, connect ideas to the student's interests: %s.\n", strings.Join(profile.Interests, ", "))
	}
	fmt.Fprintf(&b, "The student seems %s; respond accordingly.\n", emotional.Mood)
	if len(steps) > 0 {
		b.WriteString("Your reasoning so far:\n")
		for _, s := range steps {
			if s.Thought != "" {
				fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
			}
			if s.Action != "" {
				fmt.Fprintf(&b, "Action: %s\n", s.Action)
			}
			if s.Observation != "" {
				fmt.Fprintf(&b, "Observation: %s\n", s.Observation)
			}
		}
	}
	return b.String()
}

// persistTurn records the exchange as a memory and appends it to chat
// history. In detach mode the writes happen in the background with errors
// logged; in await mode a failure fails the turn.
func (o *Orchestrator) persistTurn(ctx context.Context, userID string, messages []models.ChatMessage, response string, emotional models.EmotionalState) error {
	turn := append(append([]models.ChatMessage{}, messages...), models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: response,
	})
	metadata := map[string]interface{}{
		"mood":       string(emotional.Mood),
		"confidence": string(emotional.Confidence),
	}

	persist := func(ctx context.Context) error {
		if _, err := o.memories.Add(ctx, userID, turn, metadata); err != nil {
			return fmt.Errorf("failed to record memory: %w", err)
		}
		lastTwo := turn[len(turn)-2:]
		if err := o.store.AppendChatMessages(ctx, userID, lastTwo); err != nil {
			return fmt.Errorf("failed to append chat history: %w", err)
		}
		return nil
	}

	if o.opts.PersistMode == PersistAwait {
		return persist(ctx)
	}
	go func() {
		// Detached from the request; give the writes their own deadline.
		bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := persist(bgCtx); err != nil {
			o.logger.Error("background persist failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}()
	return nil
}

func stepError(step string, err error) error {
	ae := apperrors.AsAppError(err)
	if errors.Is(err, context.DeadlineExceeded) {
		ae = apperrors.NewTimeout(err.Error()).WithCause(err)
	}
	if ae.Step == "" {
		ae = ae.WithStep(step)
	}
	return ae
}
