package scan

import (
	"fmt"
	"strings"

	"github.com/bkyoung/secscan/internal/domain"
)

// SystemPrompt frames every scan request. It pins the output contract so
// the parse step has a stable schema to hold the model to.
const SystemPrompt = `You are a security analyst reviewing source code for vulnerabilities.
Report only issues you can point to in the provided code. Respond with JSON only, no prose.`

const outputContract = `Respond with a JSON object of this exact shape:
{
  "findings": [
    {
      "category": "<one of: %s>",
      "line_start": <first affected line, absolute file line number>,
      "line_end": <last affected line, absolute file line number>,
      "description": "<what the issue is and why it matters>",
      "confidence": <integer 1-10, 10 = certain>,
      "excerpt": "<the vulnerable code, verbatim>"
    }
  ]
}
Return {"findings": []} when the code is clean.`

// BuildChunkPrompt renders the analysis prompt for one chunk. Content is
// line-numbered in file coordinates so reported locations need no mapping.
func BuildChunkPrompt(chunk domain.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following code for security vulnerabilities.\n\n")
	fmt.Fprintf(&b, "File: %s\n", chunk.Path)
	if chunk.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", chunk.Language)
	}
	fmt.Fprintf(&b, "Lines %d-%d:\n\n", chunk.StartLine, chunk.EndLine)
	b.WriteString(chunk.Numbered())
	b.WriteString("\n")
	fmt.Fprintf(&b, outputContract, strings.Join(domain.Categories(), ", "))
	return b.String()
}

// BuildRepairPrompt asks the model to fix unparsable output. The previous
// raw response and the parse error travel back so the model can see what
// went wrong.
func BuildRepairPrompt(chunk domain.Chunk, previous string, parseErr error) string {
	var b strings.Builder
	b.WriteString("Your previous response could not be parsed.\n\n")
	fmt.Fprintf(&b, "Parse error: %v\n\n", parseErr)
	b.WriteString("Previous response:\n")
	b.WriteString(previous)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Re-analyze file %s lines %d-%d and respond again.\n\n", chunk.Path, chunk.StartLine, chunk.EndLine)
	fmt.Fprintf(&b, outputContract, strings.Join(domain.Categories(), ", "))
	return b.String()
}
