package llm

import _ "embed"

var (
	//go:embed prompts/translate.txt
	promptTranslate string
	//go:embed prompts/classify.txt
	promptClassify string
	//go:embed prompts/analyze.txt
	promptAnalyze string
	//go:embed prompts/report.txt
	promptReport string
)

// SystemPrompt returns the system prompt for task and whether the task was recognized.
func SystemPrompt(task Task) (string, bool) {
	switch task {
	case TaskTranslate:
		return promptTranslate, true
	case TaskClassify:
		return promptClassify, true
	case TaskAnalyze:
		return promptAnalyze, true
	case TaskReport:
		return promptReport, true
	default:
		return "", false
	}
}
