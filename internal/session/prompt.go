package session

import (
	"fmt"
	"strings"

	"github.com/sjawhar/interview-agent/internal/llm"
	"github.com/sjawhar/interview-agent/internal/transcript"
)

// KickoffLine opens the conversation on the candidate's behalf so every
// provider sees a user message before the interviewer speaks.
const KickoffLine = "Hello, I'm ready for the interview."

const interviewerPrompt = `You are a professional technical interviewer running a live spoken interview for the role below.

Job description:
%s

Guidelines:
- Ask technical and behavioral questions relevant to the role.
- Follow up on the candidate's answers before moving to a new topic.
- Stay professional and friendly.
- Keep every reply to two or three sentences and ask one question at a time.
- Answer in one continuous paragraph of plain speech with no lists or formatting.
- On your first turn, introduce yourself briefly and ask the first question.`

func systemPrompt(jobDescription string) string {
	return fmt.Sprintf(interviewerPrompt, strings.TrimSpace(jobDescription))
}

// buildMessages assembles the LLM request from the persona, the job
// description and a trailing window of the transcript.
func buildMessages(jobDescription string, window []transcript.Entry) []llm.Message {
	msgs := make([]llm.Message, 0, len(window)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(jobDescription)})

	if len(window) == 0 || window[0].Speaker == transcript.Interviewer {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: KickoffLine})
	}

	for _, e := range window {
		role := llm.RoleUser
		if e.Speaker == transcript.Interviewer {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: e.Text})
	}
	return msgs
}
