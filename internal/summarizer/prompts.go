package summarizer

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/paperlens/models"
)

// tierGuidance calibrates the reduce output to its audience.
var tierGuidance = map[models.Tier]string{
	models.TierLow:    "an accessible high-level overview in layman terms, using concise bullet points",
	models.TierMedium: "a balanced technical summary with intuition and a bit of math/CS detail where helpful",
	models.TierHigh:   "a dense technical summary for experts, assuming domain familiarity",
}

// chunkPrompt asks for one partial summary. The complexity tier is applied
// only at reduce time, so every chunk gets the same instruction.
func chunkPrompt(chunk string) string {
	return fmt.Sprintf(`You are analyzing one section of an academic paper. Summarize the following CHUNK.
Focus on: problem statement, motivation, key ideas/methods, experiments, results, limitations.
Keep it short and factual; this partial summary will be merged with others later.

Return ONLY clean HTML using <h2>, <p>, and <ul><li> for structure.
Do not include any extraneous text outside HTML.

CHUNK:
%s
`, chunk)
}

// reducePrompt synthesizes the ordered partial summaries into the final
// tier-calibrated summary.
func reducePrompt(tier models.Tier, partials []string) string {
	return fmt.Sprintf(`Synthesize a cohesive paper summary from these PARTIAL chunk summaries, given in document order.
Write %s.
Structure with headings: <h2>TL;DR</h2>, <h2>Problem</h2>, <h2>Approach</h2>, <h2>Key Contributions</h2>, <h2>Results</h2>, <h2>Limitations</h2>.
A partial marked as unavailable means that section of the paper could not be summarized; work with what remains.

Return ONLY clean HTML using <h2>, <p>, and <ul><li> for structure.
Do not include any extraneous text outside HTML.

PARTIALS:
%s
`, tierGuidance[tier], strings.Join(partials, "\n\n"))
}

// failedChunkPlaceholder stands in for a chunk whose model call exhausted
// its retries.
func failedChunkPlaceholder(index int) string {
	return fmt.Sprintf("[section %d unavailable]", index+1)
}
