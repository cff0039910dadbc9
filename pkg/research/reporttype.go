package research

import "fmt"

// ReportType is the closed set of report styles. Each type maps to one
// prompt builder in the table below, resolved once at workflow start.
type ReportType string

const (
	ReportTypeResearch ReportType = "research_report"
	ReportTypeSubtopic ReportType = "subtopic_report"
	ReportTypeDetailed ReportType = "detailed_report"
	ReportTypeOutline  ReportType = "outline_report"
)

// ParseReportType validates a wire-level report type string.
func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case ReportTypeResearch, ReportTypeSubtopic, ReportTypeDetailed, ReportTypeOutline:
		return ReportType(s), nil
	case "":
		return ReportTypeResearch, nil
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// promptBuilder renders the user prompt for one report style.
type promptBuilder func(in AssembleInput, format FormatConfig) string

var reportPrompts = map[ReportType]promptBuilder{
	ReportTypeResearch: researchReportPrompt,
	ReportTypeSubtopic: subtopicReportPrompt,
	ReportTypeDetailed: researchReportPrompt,
	ReportTypeOutline:  outlineReportPrompt,
}

// promptFor resolves the prompt builder for a report type. The table is
// closed, so a miss is a contract error.
func promptFor(rt ReportType) (promptBuilder, error) {
	b, ok := reportPrompts[rt]
	if !ok {
		return nil, fmt.Errorf("no prompt registered for report type %q", rt)
	}
	return b, nil
}
