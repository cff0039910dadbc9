package research

import (
	"fmt"
	"strings"
	"time"
)

// FormatConfig carries the numeric/format report parameters. It is built
// once from configuration and threaded unchanged through every assembler
// sub-call so introduction, body and conclusion never diverge.
type FormatConfig struct {
	TotalWords    int
	CitationStyle string
	Tone          string
	Language      string
}

func personaPrompt(topic string) string {
	return fmt.Sprintf(`This task involves researching a given topic, regardless of its complexity.
Classify the topic into one research agent persona.
Respond with a JSON object of the shape:
{"server": "<emoji> <Agent Name>", "agent_role_prompt": "<role system prompt>"}

Examples of agents: "💰 Finance Agent", "📈 Business Analyst Agent", "🌍 Travel Agent",
"🧬 Science Agent", "💻 Computer Security Analyst Agent", "🤖 Default Agent".

Topic: %s`, topic)
}

func subQueriesPrompt(topic string, n int) string {
	return fmt.Sprintf(`Write %d google search queries to form an objective opinion on the following task: "%s"
Use the current date if needed: %s.
Respond with a JSON list of strings only, in the following format: ["query 1", "query 2"]`,
		n, topic, time.Now().Format("January 2, 2006"))
}

func condensePrompt(topic, context string) string {
	return fmt.Sprintf(`Summarize the following text based on the task: "%s".
Keep every factual detail, figure, number and source attribution that could support the task.
Do not add commentary.

Text:
%s`, topic, context)
}

func subtopicsPrompt(topic, context string, max int) string {
	return fmt.Sprintf(`Provided the main topic "%s" and the research data below, construct a list of subtopics
which indicate the headers of a report document to be generated on the task.
- Limit the number of subtopics to a maximum of %d.
- Each subtopic must be relevant to the main topic and the research data.
- Do not include any introduction or conclusion subtopic.
Respond with a JSON list of strings only.

Research data:
%s`, topic, max, context)
}

func researchReportPrompt(in AssembleInput, format FormatConfig) string {
	return fmt.Sprintf(`Information:
"""
%s
"""

Using the above information, answer the following query or task: "%s" in a detailed report.
The report should focus on the answer to the query, should be well structured, informative,
in-depth and comprehensive, with facts and numbers if available and at least %d words.
- You MUST write the report in markdown format.
- You MUST write the report with a %s tone.
- Use in-text citation references in %s format with markdown hyperlinks.
- Write the report in %s.
Assume the current date is %s.`,
		in.Context, in.Query.Text, format.TotalWords, toneOrObjective(format.Tone),
		format.CitationStyle, format.Language, time.Now().Format("January 2, 2006"))
}

func subtopicReportPrompt(in AssembleInput, format FormatConfig) string {
	var existing strings.Builder
	if len(in.ExistingHeaders) > 0 {
		existing.WriteString("Existing subtopic report headers:\n")
		for _, h := range in.ExistingHeaders {
			existing.WriteString("- " + h + "\n")
		}
	}
	if len(in.ExistingContent) > 0 {
		existing.WriteString("\nContent already covered by sibling subtopic reports:\n\"\"\"\n")
		existing.WriteString(strings.Join(in.ExistingContent, "\n\n"))
		existing.WriteString("\n\"\"\"\n")
	}

	return fmt.Sprintf(`Context:
"""
%s
"""

Main topic: "%s"
Subtopic: "%s"

Construct a detailed report section on the subtopic under the main topic, using the context above.
%s
- You MUST NOT repeat headers or content already written above. If overlap with existing content
  is unavoidable, add only the new delta and state explicitly what it adds.
- Use only the smaller two markdown header levels (### and ####) for structure. Do NOT use #
  or ## headers; the top-level header belongs to the umbrella report.
- Do NOT include an introduction, conclusion or summary section.
- The report section should be at least %d words, written with a %s tone, in %s,
  with in-text citations in %s format as markdown hyperlinks.
Assume the current date is %s.`,
		in.Context, in.MainTopic, in.Query.Text, existing.String(),
		format.TotalWords, toneOrObjective(format.Tone), format.Language,
		format.CitationStyle, time.Now().Format("January 2, 2006"))
}

func outlineReportPrompt(in AssembleInput, format FormatConfig) string {
	return fmt.Sprintf(`Information:
"""
%s
"""

Using the above information, generate an outline for a research report in markdown format
for the following query or task: "%s".
The outline should provide a well structured framework of headers and subheaders, up to %d words total.
Write the outline in %s.`,
		in.Context, in.Query.Text, format.TotalWords, format.Language)
}

func introductionPrompt(topic, context string, format FormatConfig) string {
	return fmt.Sprintf(`Context:
"""
%s
"""

Prepare a detailed report introduction on the topic: "%s".
- The introduction should be succinct, well-structured and informative, in markdown.
- Use a single # markdown header for the report title, then the introduction prose.
- Write in %s with a %s tone.
Assume the current date is %s.`,
		context, topic, format.Language, toneOrObjective(format.Tone),
		time.Now().Format("January 2, 2006"))
}

func conclusionPrompt(topic, report string, format FormatConfig) string {
	return fmt.Sprintf(`Report:
"""
%s
"""

Write a concise conclusion for the above report on "%s", summarizing the main findings
and their implications, in markdown, in %s with a %s tone.
Do not repeat the report verbatim and do not use a top-level header.`,
		report, topic, format.Language, toneOrObjective(format.Tone))
}

func reviewPrompt(draft string, guidelines []string) string {
	return fmt.Sprintf(`You are an expert research article reviewer.
Review the draft below against the following guidelines:
%s

If the draft satisfies every guideline, respond with exactly the word: None
Otherwise respond with concise revision notes listing only what must change.

Draft:
"""
%s
"""`, "- "+strings.Join(guidelines, "\n- "), draft)
}

func revisePrompt(draft, notes string) string {
	return fmt.Sprintf(`Draft:
"""
%s
"""

Reviewer notes:
"""
%s
"""

Revise the draft to fully address the reviewer notes while preserving everything that was not criticized.
Respond with a JSON object: {"draft": "<the full revised draft>", "revision_notes": "<what you changed and why>"}`,
		draft, notes)
}

func toneOrObjective(tone string) string {
	if tone == "" {
		return "objective"
	}
	return tone
}
