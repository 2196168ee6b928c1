package advisor

import (
	"fmt"
	"strings"

	"github.com/ironsheep/floorplan-advisor/internal/session"
)

const analysisTemplate = `You are an expert architect analyzing a floorplan. Provide precise, **actionable recommendations** to optimize the space.

## **Extracted Room Data**
%s

## **Wall & Room Connectivity Analysis**
- **Walls Detected**: %s

## **Key Architectural Considerations**
**Space Efficiency**
- Identify underutilized areas.
- Suggest optimizations for better functionality.

**Traffic Flow**
- Detect bottlenecks or congestion points.
- Recommend layout adjustments for better movement.

**Natural Lighting**
- Identify areas that need more light exposure.
- Suggest where windows or skylights should be added.

**Room Expansion & Layout Enhancements**
- Suggest which walls could be reconfigured or removed.
- Propose creative solutions to improve space utilization.

**Ensure responses are structured and easy to read.**
**Provide expert insights with real-world architectural principles.**
**Format recommendations clearly using bullet points or short paragraphs and keep them brief.**
**Leave spacing between each consideration so anyone can read easily.**
`

// AnalysisPrompt builds the prompt for a freshly extracted floorplan.
// features is the "Walls: W, Rooms: R" summary and text the normalized
// OCR output.
func AnalysisPrompt(features, text string) Request {
	return Request{
		Kind:   Analysis,
		Prompt: fmt.Sprintf(analysisTemplate, text, features),
	}
}

// ChatPrompt builds the prompt for a follow-up question. The floorplan
// summary is included only once a floorplan has been analyzed.
func ChatPrompt(message string, ctx session.Context) Request {
	var summary string
	if ctx.Analyzed && ctx.Features != session.NoFloorplan {
		summary = fmt.Sprintf("**Floorplan Summary**:\n- %s\n- Extracted Text: %s", ctx.Features, ctx.Text)
	}

	var b strings.Builder
	b.WriteString("User Question: ")
	b.WriteString(message)
	b.WriteString("\n")
	b.WriteString(summary)
	b.WriteString("\nProvide an expert response.")

	return Request{Kind: Chat, Prompt: b.String()}
}
