package agent

import (
	"strings"

	"github.com/mindpalace/sensei/internal/models"
)

// parseReActSteps splits model reasoning output into thought, action, and
// observation fields. Blocks are separated by blank lines; inside a block,
// lines are assigned by their "Thought:", "Action:", or "Observation:"
// prefix. Output carrying none of the prefixes degrades to a single step
// with the raw text as the thought, so malformed reasoning is never lost.
func parseReActSteps(output string) []models.ReActStep {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil
	}

	blocks := splitBlocks(trimmed)
	var steps []models.ReActStep
	for _, block := range blocks {
		step, matched := parseBlock(block)
		if matched {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return []models.ReActStep{{Thought: trimmed}}
	}
	return steps
}

func splitBlocks(text string) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var current []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func parseBlock(block string) (models.ReActStep, bool) {
	var step models.ReActStep
	matched := false
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Thought:"):
			step.Thought = appendField(step.Thought, strings.TrimSpace(strings.TrimPrefix(trimmed, "Thought:")))
			matched = true
		case strings.HasPrefix(trimmed, "Action:"):
			step.Action = appendField(step.Action, strings.TrimSpace(strings.TrimPrefix(trimmed, "Action:")))
			matched = true
		case strings.HasPrefix(trimmed, "Observation:"):
			step.Observation = appendField(step.Observation, strings.TrimSpace(strings.TrimPrefix(trimmed, "Observation:")))
			matched = true
		}
	}
	return step, matched
}

func appendField(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}
