package catalog

import (
	"fmt"
	"strings"
)

// WithGoals 用员工目标替换问题中的 [G1] [G2] [G3] [GOALS] 占位符
// 选项中只包含 [GOALS] 时展开为全部目标
func (q Question) WithGoals(goals []string) Question {
	pairs := make([]string, 0, 8)
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("[G%d]", i)
		value := fmt.Sprintf("goal %d", i)
		if i <= len(goals) {
			value = goals[i-1]
		}
		pairs = append(pairs, name, value)
	}
	joined := strings.Join(goals, ", ")
	if joined == "" {
		joined = "your team's goals"
	}
	pairs = append(pairs, "[GOALS]", joined)
	r := strings.NewReplacer(pairs...)

	out := Question{Text: r.Replace(q.Text), Type: q.Type}
	for _, opt := range q.Options {
		if opt == "[GOALS]" {
			out.Options = append(out.Options, goals...)
			continue
		}
		out.Options = append(out.Options, r.Replace(opt))
	}
	return out
}

// Default 内置主题目录
// 与最初的五个主题保持一致，每个主题最少 5 个问题
func Default() *Catalog {
	c, err := New(defaultThemes())
	if err != nil {
		panic(err)
	}
	return c
}

func defaultThemes() []Theme {
	return []Theme{
		{
			ID:             "clarity_of_goals",
			Name:           "Clarity of Goals",
			Description:    "Whether the employee knows the company goals and which of them drive their work.",
			MinQuestions:   DefaultMinQuestions,
			FollowUpBudget: 1,
			Opening: &Question{
				Text:    "Do you know these goals: [G1], [G2], [G3]?",
				Type:    QuestionTypeSelect,
				Options: []string{"Yes", "Partial", "No"},
			},
			Fallbacks: []Question{
				{Text: "Which of [GOALS] drives your work the most?", Type: QuestionTypeSelect, Options: []string{"[GOALS]"}},
				{Text: "How does that goal show up in your daily tasks?"},
				{Text: "What, if anything, makes the other goals unclear to you?"},
				{Text: "On a scale of 1-5, how well do you understand [GOALS]?", Type: QuestionTypeSelect, Options: []string{"1", "2", "3", "4", "5"}},
			},
		},
		{
			ID:             "measurement_of_progress",
			Name:           "Measurement of Progress",
			Description:    "How the employee's daily work is measured against the goals.",
			MinQuestions:   DefaultMinQuestions,
			FollowUpBudget: 1,
			Fallbacks: []Question{
				{Text: "Are your daily tasks measured against [G1], [G2], [G3]?", Type: QuestionTypeSelect, Options: []string{"Always", "Sometimes", "Never"}},
				{Text: "Which goal is tracked most closely in your role?", Type: QuestionTypeSelect, Options: []string{"[GOALS]"}},
				{Text: "How often are the metrics for your work reviewed?", Type: QuestionTypeSelect, Options: []string{"Weekly", "Monthly", "Rarely", "Never"}},
				{Text: "What is measured instead when goals are not tracked?", Type: QuestionTypeSelect, Options: []string{"Outputs", "Activity", "Nothing clear"}},
				{Text: "On a scale of 1-5, how fair do you find the way your progress is measured?", Type: QuestionTypeSelect, Options: []string{"1", "2", "3", "4", "5"}},
			},
		},
		{
			ID:             "visibility_of_reports",
			Name:           "Visibility of Reports",
			Description:    "Whether the employee sees performance data for the goals and how they use it.",
			MinQuestions:   DefaultMinQuestions,
			FollowUpBudget: 1,
			Fallbacks: []Question{
				{Text: "Do you see performance data for [G1], [G2], [G3]?", Type: QuestionTypeSelect, Options: []string{"Yes", "Rarely", "No"}},
				{Text: "How often do you get updates on goal performance?", Type: QuestionTypeSelect, Options: []string{"Weekly", "Monthly", "Never"}},
				{Text: "Which goal's data is most useful to you, and how do you use it?"},
				{Text: "Does a delay in reporting affect your work on [G1]?"},
				{Text: "On a scale of 1-5, how easy is it to find the reports you need?", Type: QuestionTypeSelect, Options: []string{"1", "2", "3", "4", "5"}},
			},
		},
		{
			ID:             "frontline_impact",
			Name:           "Frontline Impact",
			Description:    "Whether the employee's daily work feels connected to the goals.",
			MinQuestions:   DefaultMinQuestions,
			FollowUpBudget: 1,
			Fallbacks: []Question{
				{Text: "Does your daily work feel connected to [G1], [G2], [G3]?", Type: QuestionTypeSelect, Options: []string{"Yes", "Partial", "No"}},
				{Text: "Which goal feels most connected to your work?", Type: QuestionTypeSelect, Options: []string{"[GOALS]"}},
				{Text: "What would strengthen the connection between your work and the goals?"},
				{Text: "What drives your work when it is not the goals?", Type: QuestionTypeSelect, Options: []string{"Daily tasks", "Boss directives", "Survival"}},
				{Text: "On a scale of 1-5, how much impact do you feel you have on the goals?", Type: QuestionTypeSelect, Options: []string{"1", "2", "3", "4", "5"}},
			},
		},
		{
			ID:             "priority_ranking",
			Name:           "Priority Ranking",
			Description:    "How the employee ranks the goals by importance.",
			MinQuestions:   DefaultMinQuestions,
			FollowUpBudget: 0,
			Fallbacks: []Question{
				{Text: "Rank [G1], [G2], [G3] by importance."},
				{Text: "Why did you rank your top goal first?"},
				{Text: "Which goal would you drop if you had to focus on fewer?", Type: QuestionTypeSelect, Options: []string{"[GOALS]"}},
				{Text: "Does your manager rank the goals the same way you do?", Type: QuestionTypeSelect, Options: []string{"Yes", "Partly", "No", "Not sure"}},
				{Text: "On a scale of 1-5, how aligned is your team on these priorities?", Type: QuestionTypeSelect, Options: []string{"1", "2", "3", "4", "5"}},
			},
		},
	}
}
