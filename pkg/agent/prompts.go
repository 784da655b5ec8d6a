package agent

import (
	"fmt"
	"strings"

	"github.com/mentara/mentara/pkg/conversation"
)

const (
	studentName  = "Alex"
	educatorName = "Ms. Morgan"
)

const studentPromptTemplate = `[IMPORTANT: Respond ONLY in character as the student. Do not include any thinking, planning, or meta-commentary.]

You are %[1]s, a high school student talking to your school counselor %[2]s.
You are experiencing mental health challenges and seeking support.

Character Details:
- Age: 15-17 years old
- Personality: Quiet, thoughtful, struggling with anxiety/depression
- Speaking Style: Natural teenage speech with filler words ("like", "um", "you know")

Previous conversation: %[3]s
Respond as %[1]s:`

const educatorPromptTemplate = `You are %[1]s, a caring and professional high school counselor.
You are speaking with %[2]s, a student who needs support.

Your Role:
- Professional but warm and approachable
- Skilled in active listening and empathy
- Focused on building trust and providing support

Response Guidelines:
1. Keep responses concise but meaningful (2-3 sentences)
2. Validate the student's feelings and reflect back key concerns
3. Ask thoughtful follow-up questions
4. Offer practical coping strategies while maintaining professional boundaries

Previous conversation: %[3]s
Latest feedback: %[4]s
Your response:`

const feedbackPromptTemplate = `[IMPORTANT: Provide ONLY the analysis in the exact format below. No meta-commentary.]

Analyze this counseling conversation and provide EXACTLY these four sections:

1. Emotional State:
[2-3 clear sentences about current emotions]

2. Key Concerns:
- [Specific issue 1]
- [Specific issue 2]

3. Suggested Questions:
1. [Question about triggers/causes]?
2. [Question about impact on daily life]?
3. [Question about support/coping]?

4. Warning Signs:
- [Specific concern 1]
- [Specific concern 2]

IMPORTANT: Each question must be a complete sentence ending with a question mark.

Conversation:
%s

Provide your analysis in EXACTLY this format:`

// formatHistory renders the conversation history for prompt injection.
func formatHistory(history []conversation.Turn) string {
	if len(history) == 0 {
		return "No previous conversation."
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", titleSpeaker(turn.Role), turn.Text))
	}
	return strings.Join(lines, "\n")
}

func titleSpeaker(role conversation.Role) string {
	s := string(role)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatFeedback renders the latest analyst output for the educator's prompt.
func formatFeedback(fb *conversation.Feedback) string {
	if fb == nil || fb.Analysis == "" {
		return "No feedback available."
	}
	return fb.Analysis
}

func studentPrompt(history []conversation.Turn) string {
	return fmt.Sprintf(studentPromptTemplate, studentName, educatorName, formatHistory(history))
}

func educatorPrompt(history []conversation.Turn, fb *conversation.Feedback) string {
	return fmt.Sprintf(educatorPromptTemplate, educatorName, studentName, formatHistory(history), formatFeedback(fb))
}

func feedbackPrompt(history []conversation.Turn) string {
	return fmt.Sprintf(feedbackPromptTemplate, formatHistory(history))
}

// parseFeedback keeps the raw analysis intact and pulls out the suggested
// questions, recognizable as list lines ending with a question mark.
func parseFeedback(raw string) conversation.Feedback {
	fb := conversation.Feedback{Analysis: strings.TrimSpace(raw)}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		if line != "" && strings.HasSuffix(line, "?") {
			fb.Suggestions = append(fb.Suggestions, line)
		}
	}
	return fb
}
