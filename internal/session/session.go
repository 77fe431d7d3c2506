// Package session drives one practice session: it loads a composed question
// list, accepts exactly one answer per position and reports a summary.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pavelanni/recall/internal/model"
)

// State is the phase a session is in.
type State int

const (
	StateLoading  State = iota // Waiting for the composed question list
	StateEmpty                 // Nothing due and nothing new
	StateReady                 // Showing a question, waiting for an answer
	StateFeedback              // Showing the graded answer
	StateComplete              // All questions answered, summary available
	StateFailed                // Unrecoverable error, retry or restart
)

var stateNames = [...]string{"loading", "empty", "ready", "feedback", "complete", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// ErrInvalidTransition is returned when an input is not accepted in the
// current state.
var ErrInvalidTransition = errors.New("transition not allowed")

// Backend is the quiz API as seen by a session.
type Backend interface {
	Compose(ctx context.Context) (model.QuizSession, error)
	Submit(ctx context.Context, answer model.AnswerSubmit, idempotencyKey string) (model.AnswerResult, error)
	Complete(ctx context.Context, req model.SessionComplete) (model.SessionSummary, error)
}

// Snapshot is a read-only copy of a session's observable state.
type Snapshot struct {
	State       State
	SessionID   string
	Question    *model.QuestionView
	Position    int
	Total       int
	ReviewCount int
	NewCount    int
	Answered    int
	Correct     int
	LastResult  *model.AnswerResult
	Summary     *model.SessionSummary
	Err         error
}

// Machine is one session. All methods are safe for concurrent use; at most
// one backend call is in flight and a second transition attempted meanwhile
// fails with model.ErrConcurrentTransition.
type Machine struct {
	backend Backend

	mu       sync.Mutex
	busy     bool
	state    State
	quiz     model.QuizSession
	position int
	answered int
	correct  int
	last     *model.AnswerResult
	summary  *model.SessionSummary
	err      error
}

// New returns a machine in StateLoading. Call Start to compose the session.
func New(b Backend) *Machine {
	return &Machine{backend: b, state: StateLoading}
}

// begin claims the machine for a transition from one of the allowed states.
func (m *Machine) begin(allowed ...State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return fmt.Errorf("session is %s: %w", m.state, model.ErrConcurrentTransition)
	}
	for _, s := range allowed {
		if m.state == s {
			m.busy = true
			return nil
		}
	}
	return fmt.Errorf("cannot leave %s: %w", m.state, ErrInvalidTransition)
}

// end releases the machine. Must be called with mu held.
func (m *Machine) end() {
	m.busy = false
}

// fail moves to StateFailed. Must be called with mu held.
func (m *Machine) fail(err error) {
	m.state = StateFailed
	m.err = err
}

// Start composes the session. Any failure, including transport failure,
// moves to StateFailed; an empty composition moves to StateEmpty.
func (m *Machine) Start(ctx context.Context) error {
	if err := m.begin(StateLoading); err != nil {
		return err
	}
	return m.load(ctx)
}

// Retry composes a fresh session after a failure.
func (m *Machine) Retry(ctx context.Context) error {
	if err := m.begin(StateFailed); err != nil {
		return err
	}
	m.reset()
	return m.load(ctx)
}

// Restart abandons the current session and composes a fresh one.
func (m *Machine) Restart(ctx context.Context) error {
	if err := m.begin(StateEmpty, StateReady, StateFeedback, StateComplete, StateFailed); err != nil {
		return err
	}
	m.reset()
	return m.load(ctx)
}

func (m *Machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateLoading
	m.quiz = model.QuizSession{}
	m.position, m.answered, m.correct = 0, 0, 0
	m.last, m.summary, m.err = nil, nil, nil
}

func (m *Machine) load(ctx context.Context) error {
	quiz, err := m.backend.Compose(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.end()
	if err != nil {
		m.fail(err)
		return fmt.Errorf("compose session: %w", err)
	}
	m.quiz = quiz
	if len(quiz.Questions) == 0 {
		m.state = StateEmpty
		return nil
	}
	m.state = StateReady
	return nil
}

// Answer submits the learner's choice for the current question. Transport
// failures keep the machine in StateReady so the answer can be resent under
// the same idempotency key; other failures are fatal.
func (m *Machine) Answer(ctx context.Context, choiceID string) (model.AnswerResult, error) {
	if err := m.begin(StateReady); err != nil {
		return model.AnswerResult{}, err
	}

	m.mu.Lock()
	q := m.quiz.Questions[m.position]
	sub := model.AnswerSubmit{
		QuestionID:     q.ID,
		ChosenChoiceID: choiceID,
		SessionID:      m.quiz.SessionID,
		Position:       m.position,
	}
	// Without a session id there is nothing to scope a key to.
	var key string
	if m.quiz.SessionID != "" {
		key = m.quiz.SessionID + ":" + strconv.Itoa(m.position)
	}
	m.mu.Unlock()

	res, err := m.backend.Submit(ctx, sub, key)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.end()
	if err != nil {
		if !errors.Is(err, model.ErrTransport) {
			m.fail(err)
		}
		return model.AnswerResult{}, fmt.Errorf("submit answer: %w", err)
	}
	m.answered++
	if res.IsCorrect {
		m.correct++
	}
	m.last = &res
	m.state = StateFeedback
	return res, nil
}

// Continue advances past the feedback. After the last question it reports
// the session to the backend and moves to StateComplete; a transport failure
// while reporting keeps the machine in StateFeedback.
func (m *Machine) Continue(ctx context.Context) error {
	if err := m.begin(StateFeedback); err != nil {
		return err
	}

	m.mu.Lock()
	if m.position+1 < len(m.quiz.Questions) {
		m.position++
		m.last = nil
		m.state = StateReady
		m.end()
		m.mu.Unlock()
		return nil
	}
	req := model.SessionComplete{
		QuestionsAnswered: m.answered,
		QuestionsCorrect:  m.correct,
		SessionID:         m.quiz.SessionID,
	}
	m.mu.Unlock()

	summary, err := m.backend.Complete(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.end()
	if err != nil {
		if !errors.Is(err, model.ErrTransport) {
			m.fail(err)
		}
		return fmt.Errorf("complete session: %w", err)
	}
	m.summary = &summary
	m.state = StateComplete
	return nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:       m.state,
		SessionID:   m.quiz.SessionID,
		Position:    m.position,
		Total:       len(m.quiz.Questions),
		ReviewCount: m.quiz.ReviewCount,
		NewCount:    m.quiz.NewCount,
		Answered:    m.answered,
		Correct:     m.correct,
		Err:         m.err,
	}
	if (m.state == StateReady || m.state == StateFeedback) && m.position < len(m.quiz.Questions) {
		q := m.quiz.Questions[m.position]
		s.Question = &q
	}
	if m.last != nil {
		r := *m.last
		s.LastResult = &r
	}
	if m.summary != nil {
		sum := *m.summary
		s.Summary = &sum
	}
	return s
}
