package pipeline

import "github.com/yourorg/labreport-extract/internal/token"

// DetectBody finds the first line whose leading token resolves to a
// canonical test code and returns the body (every subsequent line whose
// leading token also resolves), plus the index into lines where the body
// starts (spec §4.2). Non-resolving lines after the start are dropped and
// recorded in droppedLines.
//
// resolveCode is injected so this stage has no direct lexicon dependency,
// matching the rest of the pipeline's pure-function style.
func DetectBody(lines []token.Line, resolveCode func(string) (string, bool)) (bodyStart int, body []token.Line, droppedLines []int, err error) {
	bodyStart = -1
	for i, line := range lines {
		if line.FirstText() == "" {
			continue
		}
		if _, ok := resolveCode(line.FirstText()); ok {
			bodyStart = i
			break
		}
	}
	if bodyStart == -1 {
		return -1, nil, nil, &PipelineError{Kind: ErrInputInsufficient, Code: "no_body", Msg: "no line has a code-resolvable leading token"}
	}

	for i := bodyStart; i < len(lines); i++ {
		line := lines[i]
		canonical, ok := resolveCode(line.FirstText())
		if !ok {
			droppedLines = append(droppedLines, i)
			continue
		}
		body = append(body, canonicalizeLeadingToken(line, canonical))
	}
	return bodyStart, body, droppedLines, nil
}

// canonicalizeLeadingToken replaces the first token's text with its
// canonical code on a cloned line, never mutating the original (spec §4.2).
func canonicalizeLeadingToken(line token.Line, canonical string) token.Line {
	if len(line) == 0 {
		return line
	}
	out := append(token.Line(nil), line...)
	first := out[0]
	first.Text = canonical
	out[0] = first
	return out
}
