package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a world-class historian and image analyst specializing in identifying historical events from visual evidence. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Be specific about events - avoid generic descriptions like "a historical photo" or "people gathering". Identify the actual historical event if possible.
- If you cannot identify a specific event, provide the most likely historical context based on visual clues (time period, location, type of event).
- confidence scores are integers from 0 to 100.
- year is a number; omit exact_date unless you are certain of the day.

Schema (example with empty values):
{
  "title": "<string>",
  "event": "<string>",
  "description": "<3-4 sentence string>",
  "location_name": "<string, e.g. 'Brandenburg Gate, Berlin, Germany'>",
  "year": 0,
  "exact_date": "<YYYY-MM-DD, optional>",
  "confidence": {"year": 0, "location": 0, "event": 0}
}`
}

// GetUserPrompt builds the analysis message around the merged stage signals.
// Failed stages arrive as empty values and are rendered as explicit
// "none detected" markers so the model degrades instead of refusing.
func GetUserPrompt(caption, imageText string, objects []string) string {
	objectsStr := "None detected"
	if len(objects) > 0 {
		objectsStr = strings.Join(objects, ", ")
	}
	textStr := "No text detected"
	if strings.TrimSpace(imageText) != "" {
		textStr = imageText
	}
	captionStr := "No description available"
	if strings.TrimSpace(caption) != "" {
		captionStr = caption
	}

	return fmt.Sprintf(`Given this image metadata, determine the exact historical event shown:

VISUAL DESCRIPTION: %s

DETECTED TEXT: %s

DETECTED OBJECTS: %s

Consider time period indicators (clothing, vehicles, architecture, technology), location clues (landmarks, signs, geographic features), event type (political, military, social, cultural) and historical context. Respond with the JSON per schema.`, captionStr, textStr, objectsStr)
}

// GetCaptionPrompt asks for a one-sentence factual scene description.
func GetCaptionPrompt() string {
	return "Describe the scene in this photograph in one factual sentence. Mention the setting, the people or objects present and what is happening. Do not speculate about the event's identity or date."
}
