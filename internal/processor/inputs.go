package processor

import (
	"fmt"

	"github.com/geekxflood/ndpsdecode/internal/capture"
)

// DefaultGrammar is used for hex and binary captures when none is named.
const DefaultGrammar = "attribute-value"

// InputsFromCapture turns every segment of c into an Input. Packet captures
// default to the AgentX grammar, everything else to DefaultGrammar.
func InputsFromCapture(c *capture.Capture, grammar string) []Input {
	if c == nil {
		return nil
	}

	if grammar == "" {
		grammar = DefaultGrammar
		if c.Format == capture.FormatPcap || c.Format == capture.FormatPcapNG {
			grammar = GrammarAgentX
		}
	}

	inputs := make([]Input, 0, len(c.Segments))
	for _, seg := range c.Segments {
		source := c.Name
		switch {
		case seg.Source != "":
			source = fmt.Sprintf("%s#%d %s", c.Name, seg.Index, seg.Source)
		case len(c.Segments) > 1:
			source = fmt.Sprintf("%s#%d", c.Name, seg.Index)
		}
		inputs = append(inputs, Input{Source: source, Grammar: grammar, Data: seg.Data})
	}
	return inputs
}
