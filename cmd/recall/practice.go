package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pavelanni/recall/internal/client"
	appI18n "github.com/pavelanni/recall/internal/i18n"
	"github.com/pavelanni/recall/internal/model"
	"github.com/pavelanni/recall/internal/session"
)

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run a practice session in the terminal against a running server",
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "Base URL of the quiz API")
	f.String("learner", "default-learner", "Learner id")
	f.StringP("lang", "l", "en", "Language (en, ru)")
	addLogFlags(cmd)
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))

	c := client.New(v.GetString("server"), v.GetString("learner"), client.WithLanguage(lang))
	p := &practice{
		m:           session.New(c),
		in:          bufio.NewScanner(os.Stdin),
		out:         cmd.OutOrStdout(),
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
	return p.run(ctx)
}

type practice struct {
	m           *session.Machine
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
}

func (p *practice) say(s string) {
	fmt.Fprintln(p.out, s)
}

func (p *practice) prompt(s string) {
	if p.interactive {
		fmt.Fprint(p.out, s)
	}
}

// readLine returns io.EOF when input ends.
func (p *practice) readLine() (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *practice) waitRetry(ctx context.Context, err error) error {
	p.prompt(appI18n.Td(ctx, "TransportRetry", map[string]any{"Error": err.Error()}))
	_, rerr := p.readLine()
	return rerr
}

func (p *practice) run(ctx context.Context) error {
	if err := p.m.Start(ctx); err != nil && p.m.State() != session.StateFailed {
		return err
	}
	if snap := p.m.Snapshot(); snap.Total > 0 {
		p.say(appI18n.Tp(ctx, "QuestionsInSession", snap.Total))
	}

	for {
		snap := p.m.Snapshot()
		switch snap.State {
		case session.StateEmpty:
			p.say(appI18n.T(ctx, "SessionEmpty"))
			return nil

		case session.StateFailed:
			p.say(appI18n.Td(ctx, "SessionFailed", map[string]any{"Error": snap.Err.Error()}))
			if !errors.Is(snap.Err, model.ErrTransport) {
				return snap.Err
			}
			if err := p.waitRetry(ctx, snap.Err); err != nil {
				return nil
			}
			if err := p.m.Retry(ctx); err != nil && p.m.State() != session.StateFailed {
				return err
			}

		case session.StateReady:
			if err := p.ask(ctx, snap); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}

		case session.StateFeedback:
			if err := p.m.Continue(ctx); err != nil {
				if !errors.Is(err, model.ErrTransport) {
					continue
				}
				if rerr := p.waitRetry(ctx, err); rerr != nil {
					return nil
				}
			}

		case session.StateComplete:
			p.summary(ctx, snap.Summary)
			return nil

		default:
			return fmt.Errorf("unexpected session state %s", snap.State)
		}
	}
}

func (p *practice) ask(ctx context.Context, snap session.Snapshot) error {
	q := snap.Question
	p.say("")
	p.say(appI18n.Td(ctx, "QuestionHeader", map[string]any{"N": snap.Position + 1, "Total": snap.Total}))
	p.say(q.Text)
	for i, c := range q.Choices {
		p.say(fmt.Sprintf("  %d) %s", i+1, c.Text))
	}

	var choiceID string
	for choiceID == "" {
		p.prompt(appI18n.T(ctx, "ChoicePrompt"))
		line, err := p.readLine()
		if err != nil {
			return err
		}
		choiceID = resolveChoice(q.Choices, line)
	}

	for {
		res, err := p.m.Answer(ctx, choiceID)
		if err == nil {
			p.feedback(ctx, q, res)
			return nil
		}
		if !errors.Is(err, model.ErrTransport) {
			// The machine is in StateFailed now; the run loop reports it.
			return nil
		}
		if rerr := p.waitRetry(ctx, err); rerr != nil {
			return rerr
		}
	}
}

// resolveChoice accepts a 1-based number or a choice id.
func resolveChoice(choices []model.Choice, input string) string {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1].ID
	}
	for _, c := range choices {
		if strings.EqualFold(c.ID, input) {
			return c.ID
		}
	}
	return ""
}

func (p *practice) feedback(ctx context.Context, q *model.QuestionView, res model.AnswerResult) {
	if res.IsCorrect {
		p.say(appI18n.T(ctx, "AnswerCorrect"))
	} else {
		correct := res.CorrectChoiceID
		for _, c := range q.Choices {
			if c.ID == res.CorrectChoiceID {
				correct = c.Text
			}
		}
		p.say(appI18n.Td(ctx, "AnswerIncorrect", map[string]any{"Choice": correct}))
	}
	if res.Explanation != "" {
		p.say(res.Explanation)
	}
	p.say(appI18n.Td(ctx, "NextReview", map[string]any{"Date": humanize.Time(res.NextReviewAt)}))
}

func (p *practice) summary(ctx context.Context, s *model.SessionSummary) {
	if s == nil {
		return
	}
	p.say("")
	p.say(appI18n.Td(ctx, "SessionSummary", map[string]any{
		"Correct":  s.QuestionsCorrect,
		"Answered": s.QuestionsAnswered,
		"Accuracy": strconv.FormatFloat(s.Accuracy, 'f', 1, 64),
	}))
	p.say(appI18n.Tp(ctx, "StreakDays", s.Streak))
}
