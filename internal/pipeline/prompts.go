package pipeline

import (
	"strings"
)

const extractionPreamble = "You are an expert system designed to extract structured information from unstructured financial text messages.\n" +
	"Analyze the text provided by the user and extract the relevant details.\n\n"

// BuildExtractionPrompt renders the extraction prompt for one input text.
// The text is embedded verbatim; it is never truncated here.
func BuildExtractionPrompt(text, formatInstructions string) string {
	var b strings.Builder
	b.Grow(len(extractionPreamble) + len(formatInstructions) + len(text) + 128)

	b.WriteString(extractionPreamble)
	b.WriteString("Adhere strictly to the following JSON schema for your response:\n")
	b.WriteString(formatInstructions)
	b.WriteString("\n\n")
	b.WriteString("Here is the text you need to analyze:\n")
	b.WriteString("\"")
	b.WriteString(text)
	b.WriteString("\"\n")

	return b.String()
}
