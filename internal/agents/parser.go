package agents

import (
	"errors"
	"regexp"
	"strings"
)

var ErrParse = errors.New("could not parse LLM output")

// ParseError describes oracle output that is neither a final answer nor a complete action.
// Its message is fed back to the oracle as the observation of the step.
type ParseError struct {
	Reason string
	Output string
}

func (e *ParseError) Error() string {
	return e.Reason
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

type DecisionKind int

const (
	DecisionInvalid DecisionKind = iota
	DecisionFinal
	DecisionAction
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionFinal:
		return "final"
	case DecisionAction:
		return "action"
	default:
		return "invalid"
	}
}

// Decision is one parsed oracle turn.
type Decision struct {
	Kind        DecisionKind
	Thought     string
	FinalAnswer string
	Action      string
	ActionInput string
	// Log is the oracle text the decision was read from, minus any invented observation.
	Log string
	Err *ParseError
}

// Labels may be preceded by list markers or markdown emphasis, and followed by emphasis before the colon.
const labelPrefix = `(?im)^[ \t>#*_-]*`

var (
	finalAnswerRe = regexp.MustCompile(labelPrefix + `final[ \t]*answer[ \t*_]*:[ \t*_]*`)
	actionRe      = regexp.MustCompile(labelPrefix + `action[ \t]*\d*[ \t*_]*:[ \t*_]*(.*)$`)
	actionInputRe = regexp.MustCompile(labelPrefix + `action[ \t]*\d*[ \t]*input[ \t]*\d*[ \t*_]*:[ \t*_]*`)
	observationRe = regexp.MustCompile(labelPrefix + `observation[ \t*_]*:`)
	// Action Input written on the same line as Action.
	inlineInputRe = regexp.MustCompile(`(?i)(?:^|[ \t*_]+)action[ \t]*\d*[ \t]*input[ \t]*\d*[ \t*_]*:[ \t*_]*`)
	thoughtRe     = regexp.MustCompile(labelPrefix + `thought[ \t*_]*:[ \t*_]*`)
	codeFenceRe   = regexp.MustCompile("^```[a-zA-Z]*\\s*|\\s*```$")
)

// ParseOutput reads a Final Answer or an Action/Action Input pair out of oracle text.
// When both are present the label that comes first wins. It never panics; output
// matching neither form yields a DecisionInvalid carrying a ParseError.
func ParseOutput(text string) Decision {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))

	finalLoc := finalAnswerRe.FindStringIndex(text)
	actionLoc := actionRe.FindStringSubmatchIndex(text)

	if finalLoc != nil && (actionLoc == nil || finalLoc[0] < actionLoc[0]) {
		answer := text[finalLoc[1]:]
		if loc := observationRe.FindStringIndex(answer); loc != nil {
			answer = answer[:loc[0]]
		}
		answer = strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), "*_"))
		log := text[:finalLoc[1]] + answer
		if answer == "" {
			return invalid(log, "Invalid Format: Missing text after 'Final Answer:'")
		}
		return Decision{
			Kind:        DecisionFinal,
			Thought:     thoughtBefore(text, finalLoc[0]),
			FinalAnswer: answer,
			Log:         log,
		}
	}

	if actionLoc == nil {
		log := text
		if loc := observationRe.FindStringIndex(text); loc != nil {
			log = strings.TrimSpace(text[:loc[0]])
		}
		return invalid(log, "Invalid Format: Missing 'Action:' after 'Thought:'")
	}

	nameEnd, inputStart := actionLoc[3], -1
	if loc := inlineInputRe.FindStringIndex(text[actionLoc[2]:actionLoc[3]]); loc != nil {
		nameEnd, inputStart = actionLoc[2]+loc[0], actionLoc[2]+loc[1]
	} else if loc := actionInputRe.FindStringIndex(text[actionLoc[1]:]); loc != nil {
		inputStart = actionLoc[1] + loc[1]
	}
	name := cleanToolName(text[actionLoc[2]:nameEnd])
	if inputStart < 0 {
		log := text
		if loc := observationRe.FindStringIndex(text[actionLoc[1]:]); loc != nil {
			log = strings.TrimSpace(text[:actionLoc[1]+loc[0]])
		}
		return invalid(log, "Invalid Format: Missing 'Action Input:' after 'Action:'")
	}

	input := text[inputStart:]
	end := len(input)
	for _, re := range []*regexp.Regexp{observationRe, finalAnswerRe, thoughtRe} {
		if loc := re.FindStringIndex(input); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	input = input[:end]
	log := strings.TrimSpace(text[:inputStart] + input)

	if name == "" {
		return invalid(log, "Invalid Format: Missing tool name after 'Action:'")
	}

	return Decision{
		Kind:        DecisionAction,
		Thought:     thoughtBefore(text, actionLoc[0]),
		Action:      name,
		ActionInput: cleanActionInput(input),
		Log:         log,
	}
}

func invalid(log, reason string) Decision {
	return Decision{
		Kind:    DecisionInvalid,
		Thought: thoughtBefore(log, len(log)),
		Log:     log,
		Err:     &ParseError{Reason: reason, Output: log},
	}
}

// thoughtBefore returns the free text ahead of the first label at end, without its "Thought:" label.
func thoughtBefore(text string, end int) string {
	head := text[:end]
	if loc := thoughtRe.FindStringIndex(head); loc != nil {
		head = head[loc[1]:]
	}
	for _, re := range []*regexp.Regexp{actionRe, finalAnswerRe, observationRe} {
		if loc := re.FindStringIndex(head); loc != nil {
			head = head[:loc[0]]
		}
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(head), "*_"))
}

func cleanToolName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`'\" []")
	if i := strings.IndexAny(s, " \t(["); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, ".,:;")
}

func cleanActionInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
