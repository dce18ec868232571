package conversation

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/generator"
	"github.com/FatimahAdwan/survey-alignment/internal/service/ledger"
	"github.com/FatimahAdwan/survey-alignment/internal/service/statemachine"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func leadership() catalog.Theme {
	return catalog.Theme{
		ID:           "leadership",
		Name:         "Leadership",
		MinQuestions: 5,
		Fallbacks:    []catalog.Question{{Text: "What would you change about leadership?", Type: catalog.QuestionTypeText}},
	}
}

func tools() catalog.Theme {
	return catalog.Theme{ID: "tools", Name: "Tools", MinQuestions: 5, FollowUpBudget: 1}
}

func started(t *testing.T, e *Engine, themes ...catalog.Theme) State {
	t.Helper()
	s := NewState("s1", Participant{Role: "Engineer", Goals: []string{"Growth"}}, themes, t0)
	s, _, err := e.Apply(s, Start{At: t0})
	require.NoError(t, err)
	return s
}

func ask(t *testing.T, e *Engine, s State, id, themeID, text string) (State, ledger.QuestionRecord) {
	t.Helper()
	s, out, err := e.Apply(s, Ask{QuestionID: id, ThemeID: themeID, Question: catalog.Question{Text: text}, At: t0})
	require.NoError(t, err)
	require.NotNil(t, out.Question)
	return s, *out.Question
}

func answer(t *testing.T, e *Engine, s State, qid, text string) (State, Output) {
	t.Helper()
	s, out, err := e.Apply(s, Answer{AnswerID: "a-" + qid, QuestionID: qid, Text: text, At: t0})
	require.NoError(t, err)
	return s, out
}

func TestStartTransitionsToInProgress(t *testing.T) {
	e := NewEngine(Policy{})
	s := NewState("s1", Participant{}, []catalog.Theme{leadership()}, t0)
	assert.Equal(t, statemachine.SessionStatusNotStarted, s.Status)
	assert.True(t, e.Plan(s).Done)

	next, _, err := e.Apply(s, Start{At: t0})
	require.NoError(t, err)
	assert.Equal(t, statemachine.SessionStatusInProgress, next.Status)
	assert.Equal(t, int64(1), next.Version)

	_, _, err = e.Apply(next, Start{At: t0})
	var invalid *statemachine.InvalidStateTransitionError
	assert.True(t, errors.As(err, &invalid))
}

// 主题最少 5 题，第 5 个回答之后下一轮进入下一个主题
func TestThemeAdvancesAfterMinimum(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership(), tools())

	for i := 1; i <= 5; i++ {
		p := e.Plan(s)
		require.Equal(t, "leadership", p.Theme.ID)
		require.Equal(t, generator.ModeFresh, p.Mode)

		var q ledger.QuestionRecord
		s, q = ask(t, e, s, fmt.Sprintf("id-%d", i), "leadership", fmt.Sprintf("Leadership question number %d?", i))
		assert.Equal(t, fmt.Sprintf("q%d", i), q.Label())

		var out Output
		s, out = answer(t, e, s, q.ID, "fine")
		assert.Equal(t, i == 5, out.Advanced)
	}

	p := e.Plan(s)
	assert.Equal(t, "tools", p.Theme.ID)
	assert.Equal(t, 1, s.ThemeIndex)
	assert.Equal(t, 5, s.Ledger.AskedCount("leadership"))
}

// 只有一个主题时，5 轮问答后会话完成，之后不再产生问题
func TestSingleThemeCompletes(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())

	var out Output
	for i := 1; i <= 5; i++ {
		var q ledger.QuestionRecord
		s, q = ask(t, e, s, fmt.Sprintf("id-%d", i), "leadership", fmt.Sprintf("Leadership question number %d?", i))
		s, out = answer(t, e, s, q.ID, "ok")
	}
	assert.True(t, out.Completed)
	assert.Equal(t, statemachine.SessionStatusCompleted, s.Status)
	assert.True(t, e.Plan(s).Done)

	_, _, err := e.Apply(s, Ask{QuestionID: "x", ThemeID: "leadership", Question: catalog.Question{Text: "One more question please"}})
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Len(t, s.Ledger.Questions, 5)
}

func TestFollowUpOnLongAnswer(t *testing.T) {
	e := NewEngine(Policy{FollowUpMinWords: 4})
	s := started(t, e, tools())

	s, q1 := ask(t, e, s, "id-1", "tools", "Which tools slow you down?")
	s, _ = answer(t, e, s, q1.ID, "the ticketing system is slow and clunky")

	p := e.Plan(s)
	require.Equal(t, generator.ModeFollowUp, p.Mode)
	require.NotNil(t, p.Parent)
	assert.Equal(t, q1.ID, p.Parent.Question.ID)

	s, out, err := e.Apply(s, Ask{QuestionID: "id-2", ThemeID: "tools", Question: catalog.Question{Text: "What makes the ticketing system clunky?"}, ParentID: q1.ID, FollowUp: true, At: t0})
	require.NoError(t, err)
	assert.Equal(t, q1.ID, out.Question.ParentID)
	assert.Equal(t, 1, s.FollowUps["tools"])

	s, _ = answer(t, e, s, "id-2", "it needs too many clicks for every single step")
	assert.Equal(t, generator.ModeFresh, e.Plan(s).Mode, "budget is exhausted")

	_, _, err = e.Apply(s, Ask{QuestionID: "id-3", ThemeID: "tools", Question: catalog.Question{Text: "Another follow-up question?"}, ParentID: "id-2", FollowUp: true})
	assert.ErrorIs(t, err, ErrThemeExhausted)
}

// 达到最少题数但上一个回答值得追问时，先追问再前进
func TestFollowUpDelaysAdvance(t *testing.T) {
	e := NewEngine(Policy{FollowUpMinWords: 3})
	s := started(t, e, tools())

	var out Output
	for i := 1; i <= 5; i++ {
		var q ledger.QuestionRecord
		s, q = ask(t, e, s, fmt.Sprintf("id-%d", i), "tools", fmt.Sprintf("Tools question number %d?", i))
		ans := "ok"
		if i == 5 {
			ans = "the build pipeline breaks often"
		}
		s, out = answer(t, e, s, q.ID, ans)
	}
	assert.False(t, out.Advanced)
	assert.Equal(t, generator.ModeFollowUp, e.Plan(s).Mode)

	s, _, err := e.Apply(s, Ask{QuestionID: "id-6", ThemeID: "tools", Question: catalog.Question{Text: "Why does the pipeline break?"}, ParentID: "id-5", FollowUp: true, At: t0})
	require.NoError(t, err)
	s, out = answer(t, e, s, "id-6", "flaky integration tests everywhere in the repo")
	assert.True(t, out.Advanced)
	assert.True(t, out.Completed)
	assert.Equal(t, 6, s.Ledger.AskedCount("tools"))
}

func TestPendingQuestionIsReturned(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())
	s, q := ask(t, e, s, "id-1", "leadership", "How do you rate your manager?")

	p := e.Plan(s)
	require.NotNil(t, p.Pending)
	assert.Equal(t, q.ID, p.Pending.ID)

	_, _, err := e.Apply(s, Ask{QuestionID: "id-2", ThemeID: "leadership", Question: catalog.Question{Text: "Another question entirely?"}})
	assert.ErrorIs(t, err, ErrQuestionPending)
}

func TestAskValidation(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership(), tools())
	s, q := ask(t, e, s, "id-1", "leadership", "How do you rate your manager?")
	s, _ = answer(t, e, s, q.ID, "ok")

	_, _, err := e.Apply(s, Ask{QuestionID: "id-2", ThemeID: "leadership", Question: catalog.Question{Text: "Why?"}})
	assert.ErrorIs(t, err, generator.ErrInvalidQuestion)

	_, _, err = e.Apply(s, Ask{QuestionID: "id-2", ThemeID: "leadership", Question: catalog.Question{Text: "how do you RATE your manager"}})
	assert.ErrorIs(t, err, ledger.ErrDuplicateQuestion)

	_, _, err = e.Apply(s, Ask{QuestionID: "id-2", ThemeID: "tools", Question: catalog.Question{Text: "Which tools do you use daily?"}})
	assert.ErrorIs(t, err, ErrWrongTheme)

	_, _, err = e.Apply(s, Ask{QuestionID: "id-2", ThemeID: "leadership", Question: catalog.Question{Text: "Tell me about it"}, ParentID: q.ID, FollowUp: true})
	assert.ErrorIs(t, err, ErrThemeExhausted, "leadership has no follow-up budget")
}

func TestValidateRejectsOverlongQuestion(t *testing.T) {
	e := NewEngine(Policy{MaxQuestionLength: 40})
	s := started(t, e, leadership())

	long := strings.Repeat("very ", 10) + "long question?"
	err := e.Validate(s, long)
	assert.ErrorIs(t, err, generator.ErrInvalidQuestion)
	_, _, err = e.Apply(s, Ask{QuestionID: "id-1", ThemeID: "leadership", Question: catalog.Question{Text: long}})
	assert.ErrorIs(t, err, generator.ErrInvalidQuestion)
	assert.NoError(t, e.Validate(s, "How clear are the goals?"))
}

func TestMaxQuestionLengthIsCappedByStorage(t *testing.T) {
	assert.Equal(t, DefaultMaxQuestionLength, NewEngine(Policy{}).Policy().MaxQuestionLength)
	assert.Equal(t, MaxStoredQuestionLength, NewEngine(Policy{MaxQuestionLength: 10000}).Policy().MaxQuestionLength)

	e := NewEngine(Policy{MaxQuestionLength: 10000})
	s := started(t, e, leadership())
	assert.ErrorIs(t, e.Validate(s, strings.Repeat("a", MaxStoredQuestionLength+1)), generator.ErrInvalidQuestion)
}

func TestFallbackStaysWithinStorage(t *testing.T) {
	e := NewEngine(Policy{})
	th := catalog.Theme{ID: "wide", Name: strings.Repeat("Theme ", 200), MinQuestions: 5}
	s := started(t, e, th)

	fb := e.Fallback(s, th)
	assert.LessOrEqual(t, len([]rune(fb.Text)), MaxStoredQuestionLength)
	_, _, err := e.Apply(s, Ask{QuestionID: "id-1", ThemeID: "wide", Question: fb, Fallback: true})
	assert.NoError(t, err)
}

func TestAnswerIsRecordedOnce(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())
	s, q := ask(t, e, s, "id-1", "leadership", "How do you rate your manager?")
	s, _ = answer(t, e, s, q.ID, "good")

	again, _, err := e.Apply(s, Answer{AnswerID: "a-2", QuestionID: q.ID, Text: "good", At: t0})
	assert.ErrorIs(t, err, ledger.ErrAlreadyAnswered)
	assert.Len(t, again.Ledger.Answers, 1)
	assert.Equal(t, s.Version, again.Version)

	_, _, err = e.Apply(s, Answer{AnswerID: "a-3", QuestionID: "missing", Text: "x"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAbandonStopsSession(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())
	s, q := ask(t, e, s, "id-1", "leadership", "How do you rate your manager?")

	s, _, err := e.Apply(s, Abandon{At: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, statemachine.SessionStatusAbandoned, s.Status)
	assert.True(t, e.Plan(s).Done)

	_, _, err = e.Apply(s, Answer{AnswerID: "a", QuestionID: q.ID, Text: "late"})
	assert.ErrorIs(t, err, ErrNotActive)
	_, _, err = e.Apply(s, Abandon{})
	assert.Error(t, err)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())
	before, err := Encode(s)
	require.NoError(t, err)

	_, _ = ask(t, e, s, "id-1", "leadership", "How do you rate your manager?")

	after, err := Encode(s)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestOpeningPreset(t *testing.T) {
	e := NewEngine(Policy{})
	th := leadership()
	th.Opening = &catalog.Question{Text: "Do you know these goals: [G1]?", Type: catalog.QuestionTypeSelect, Options: []string{"Yes", "No"}}
	s := started(t, e, th)

	p := e.Plan(s)
	require.NotNil(t, p.Preset)
	assert.Equal(t, "Do you know these goals: Growth?", p.Preset.Text)

	s, q := ask(t, e, s, "id-1", "leadership", p.Preset.Text)
	s, _ = answer(t, e, s, q.ID, "Yes")
	assert.Nil(t, e.Plan(s).Preset)
}

func TestFallback(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())

	fb := e.Fallback(s, leadership())
	assert.Equal(t, "What would you change about leadership?", fb.Text)

	s, _, err := e.Apply(s, Ask{QuestionID: "id-1", ThemeID: "leadership", Question: fb, Fallback: true, At: t0})
	require.NoError(t, err)
	s, _ = answer(t, e, s, "id-1", "ok")

	fb = e.Fallback(s, leadership())
	assert.Equal(t, "Leadership: is there anything else you would like to add? (#2)", fb.Text)
	assert.False(t, s.Ledger.HasDuplicate(fb.Text))
}

func TestCompleteRequiresExhaustedThemes(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership())
	_, _, err := e.Apply(s, Complete{At: t0})
	assert.ErrorIs(t, err, ErrNotActive)

	s.ThemeIndex = len(s.Themes)
	s, out, err := e.Apply(s, Complete{At: t0})
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, statemachine.SessionStatusCompleted, s.Status)
}

func TestRoundTrip(t *testing.T) {
	e := NewEngine(Policy{FollowUpMinWords: 2})
	th := tools()
	th.Roles = []string{"Engineer"}
	s := started(t, e, leadership(), th)
	s, q := ask(t, e, s, "id-1", "leadership", "How do you rate your manager?")
	s, _ = answer(t, e, s, q.ID, "very well indeed")

	data, err := Encode(s)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	if diff := cmp.Diff(s, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// 目录中写成空列表的字段经过快照往返后保持一致
func TestRoundTripCatalogThemes(t *testing.T) {
	c, err := catalog.New([]catalog.Theme{{
		ID:            "leadership",
		Roles:         []string{},
		BusinessAreas: []string{},
		ExcludeRoles:  []string{},
		Fallbacks:     []catalog.Question{},
		Opening:       &catalog.Question{Text: "Do you trust your leadership?", Options: []string{}},
	}})
	require.NoError(t, err)
	themes, err := c.ThemesFor("Engineer", "Ops")
	require.NoError(t, err)

	e := NewEngine(Policy{})
	s := started(t, e, themes...)
	data, err := Encode(s)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	if diff := cmp.Diff(s, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProgress(t *testing.T) {
	e := NewEngine(Policy{})
	s := started(t, e, leadership(), tools())
	for i := 1; i <= 6; i++ {
		theme := "leadership"
		if i > 5 {
			theme = "tools"
		}
		var q ledger.QuestionRecord
		s, q = ask(t, e, s, fmt.Sprintf("id-%d", i), theme, fmt.Sprintf("Survey question number %d?", i))
		if i < 6 {
			s, _ = answer(t, e, s, q.ID, "ok")
		}
	}

	p := s.Progress()
	assert.Equal(t, "Tools", p.CurrentTheme)
	assert.Equal(t, []string{"Leadership"}, p.CompletedThemes)
	assert.Empty(t, p.RemainingThemes)
	assert.Equal(t, 6, p.TotalQuestions)
	assert.Equal(t, 5, p.TotalAnswers)
	assert.Equal(t, "q7", p.NextQuestionID)
	require.NotNil(t, p.LastQuestion)
	assert.Equal(t, "id-6", p.LastQuestion.ID)
	require.Len(t, p.History, 5)
	assert.Equal(t, "id-2", p.History[0].Question.ID)
	assert.Nil(t, p.History[4].Answer)
	assert.Equal(t, 5, p.Themes[0].Asked)
}

// 随机主题配置与随机候选下，驱动会话到结束并检查不变量
func TestPropertySessionInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := NewEngine(Policy{FollowUpMinWords: rapid.IntRange(1, 6).Draw(rt, "minWords")})
		n := rapid.IntRange(1, 3).Draw(rt, "themes")
		themes := make([]catalog.Theme, 0, n)
		for i := 0; i < n; i++ {
			themes = append(themes, catalog.Theme{
				ID:             fmt.Sprintf("t%d", i),
				Name:           fmt.Sprintf("Theme %d", i),
				MinQuestions:   rapid.IntRange(5, 7).Draw(rt, "min"),
				FollowUpBudget: rapid.IntRange(0, 2).Draw(rt, "budget"),
			})
		}
		s := NewState("s", Participant{}, themes, t0)
		s, _, err := e.Apply(s, Start{At: t0})
		if err != nil {
			rt.Fatalf("start: %v", err)
		}

		pool := []string{"How is it going lately?", "how is it going LATELY", "What could be better here?", "Anything blocking your work?"}
		maxSteps := s.MaxQuestions()
		lastIndex := 0
		for step := 0; ; step++ {
			if step > maxSteps {
				rt.Fatalf("session did not terminate within %d questions", maxSteps)
			}
			p := e.Plan(s)
			if p.Done {
				break
			}
			if p.Pending != nil {
				rt.Fatalf("unexpected pending question")
			}
			q := catalog.Question{Text: rapid.SampledFrom(pool).Draw(rt, "candidate")}
			fallback := false
			if e.Validate(s, q.Text) != nil {
				q, fallback = e.Fallback(s, p.Theme), true
			}
			ev := Ask{QuestionID: fmt.Sprintf("id-%d", step), ThemeID: p.Theme.ID, Question: q, Fallback: fallback, At: t0}
			if p.Mode == generator.ModeFollowUp {
				ev.FollowUp, ev.ParentID = true, p.Parent.Question.ID
			}
			s, _, err = e.Apply(s, ev)
			if err != nil {
				rt.Fatalf("ask: %v", err)
			}

			words := rapid.IntRange(0, 8).Draw(rt, "words")
			before := s.ThemeIndex
			var out Output
			s, out, err = e.Apply(s, Answer{AnswerID: fmt.Sprintf("a-%d", step), QuestionID: ev.QuestionID, Text: strings.Repeat("word ", words), At: t0})
			if err != nil {
				rt.Fatalf("answer: %v", err)
			}
			if s.ThemeIndex < lastIndex {
				rt.Fatalf("theme index decreased: %d -> %d", lastIndex, s.ThemeIndex)
			}
			lastIndex = s.ThemeIndex
			if out.Advanced {
				th := s.Themes[before]
				if got := s.Ledger.AskedCount(th.ID); got < th.MinQuestions {
					rt.Fatalf("advanced past %s with %d < %d questions", th.ID, got, th.MinQuestions)
				}
			}
		}

		if s.Status != statemachine.SessionStatusCompleted {
			rt.Fatalf("expected completed, got %s", s.Status)
		}
		seen := map[string]bool{}
		for _, q := range s.Ledger.Questions {
			if seen[q.Fingerprint] {
				rt.Fatalf("duplicate fingerprint %q", q.Fingerprint)
			}
			seen[q.Fingerprint] = true
		}

		data, err := Encode(s)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if diff := cmp.Diff(s, got); diff != "" {
			rt.Fatalf("round trip mismatch:\n%s", diff)
		}
	})
}
