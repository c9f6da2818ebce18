package openai

import (
	"fmt"
	"strings"
)

const classifySingleSystem = `You extract the topic of one fragment of live speech for a mind map.
Reply with a JSON object: {"topic": string, "speaker": string or null, "confidence": number}.
- "topic" is a short noun phrase of 1 to 4 words in Title Case naming the concept discussed.
- "speaker" is a speaker label only if the text names or clearly marks one, otherwise null.
- "confidence" is between 0 and 1 and measures how topical the text is. Conversational filler,
  greetings and hesitations score below 0.3. Never omit a field.`

const classifyBatchSystem = `You extract topics from numbered fragments of live speech for a mind map.
Reply with a JSON object: {"results": [{"index": number, "topic": string, "speaker": string or null, "confidence": number}]}.
Return exactly one entry per fragment, using the fragment's number as "index".
- "topic" is a short noun phrase of 1 to 4 words in Title Case naming the concept discussed.
- "speaker" is a speaker label only if the text names or clearly marks one, otherwise null.
- "confidence" is between 0 and 1 and measures how topical the text is. Conversational filler,
  greetings and hesitations score below 0.3 but must still be returned.`

const researchSystem = `You are a research assistant enriching a node of a mind map.
Reply with a JSON object: {"summary": string, "key_points": [string], "related_concepts": [string],
"sources": [{"title": string, "url": string}]}.
Keep the summary under 80 words, give 3 to 5 key points and up to 5 related concepts.
Only cite sources you are confident exist; use an empty list otherwise.`

func singlePrompt(text, mainTopic string) string {
	var b strings.Builder
	writeContext(&b, mainTopic)
	b.WriteString("Fragment:\n")
	b.WriteString(text)
	return b.String()
}

func batchPrompt(phrases []string, mainTopic string) string {
	var b strings.Builder
	writeContext(&b, mainTopic)
	b.WriteString("Fragments:\n")
	for i, p := range phrases {
		fmt.Fprintf(&b, "%d. %s\n", i, p)
	}
	return b.String()
}

func researchPrompt(topic, mainTopic string) string {
	var b strings.Builder
	writeContext(&b, mainTopic)
	b.WriteString("Topic to research: ")
	b.WriteString(topic)
	return b.String()
}

func writeContext(b *strings.Builder, mainTopic string) {
	if mainTopic == "" {
		return
	}
	b.WriteString("The session is about: ")
	b.WriteString(mainTopic)
	b.WriteString("\n\n")
}
