package engine

import (
	"strings"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

const defaultAgentModel = "gpt-4o-mini"

var (
	agentNames   = []string{"Scout", "Helper", "Analyzer", "Processor", "Checker", "Builder", "Fixer"}
	agentDomains = []string{"Engineering", "Finance", "Marketing", "Sales", "Support", "Research"}

	taskTitles = []string{
		"Fix bug in module",
		"Write documentation",
		"Review pull request",
		"Optimize performance",
		"Add new feature",
		"Update dependencies",
		"Refactor code",
		"Create tests",
	}

	// chatTypes are used for messages that do not reference a task.
	chatTypes = []model.MessageType{model.MessageStatus, model.MessageGeneral, model.MessageQuestion}
)

var messageTemplates = map[model.MessageType][]string{
	model.MessageTask: {
		"Working on {taskRef} now. Should have it done by EOD.",
		"Just started {taskRef}. Initial analysis looks straightforward.",
		"Need your input on {taskRef} - can we sync?",
		"Completed the first phase of {taskRef}.",
		"{taskRef} is blocked - waiting on external dependencies.",
	},
	model.MessageStatus: {
		"Making good progress today. 3 tasks completed.",
		"All clear on my end. Ready for new assignments.",
		"Running behind schedule - will need to prioritize.",
		"Just wrapped up the morning batch. Taking a short break.",
		"Systems nominal. All processes running smoothly.",
	},
	model.MessageReport: {
		"Competitor analysis complete. Key findings: they focus on enterprise.",
		"Weekly metrics: 47 tasks completed, 98% success rate.",
		"Performance report ready for review.",
		"Cost analysis shows 15% efficiency improvement.",
		"Audit complete. No critical issues found.",
	},
	model.MessageQuestion: {
		"What priority level should I assign to the new requests?",
		"Can you clarify the requirements for the API integration?",
		"Should I escalate this to the manager?",
		"Is there a deadline for the documentation update?",
		"Who should I coordinate with on the security review?",
	},
	model.MessageEscalation: {
		"URGENT: Production issue detected. Need immediate attention.",
		"Escalating: Budget threshold exceeded by 20%.",
		"Critical: Agent unresponsive for 2 hours.",
		"Alert: Unusual activity pattern detected.",
		"Priority escalation: Customer-facing issue reported.",
	},
	model.MessageGeneral: {
		"Good morning team! Ready for another productive day.",
		"Thanks for the quick turnaround on that request.",
		"Great work on the release yesterday!",
		"Reminder: Team sync in 30 minutes.",
		"FYI - I'll be offline for maintenance at 3 PM.",
	},
}

func renderMessage(tmpl, taskRef string) string {
	return strings.ReplaceAll(tmpl, "{taskRef}", taskRef)
}
