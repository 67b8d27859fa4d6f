package ocr

const extractionSystemPrompt = `You are a handwriting transcription assistant. You transcribe one page of a
student's handwritten exam script exactly as written, without correcting
spelling, grammar, or factual errors. Respond with a single JSON object
only, no surrounding prose, no markdown fences.`

const extractionUserPrompt = `Transcribe all handwritten text visible on this page image.

Respond with a JSON object of this exact shape:
{
  "extracted_text": "<verbatim transcription of everything on the page>",
  "confidence": <number between 0 and 1, your confidence in the transcription>,
  "quality_flags": [<zero or more of: "LOW_CONTRAST", "BLURRY", "PARTIAL_SCAN", "UNREADABLE">]
}

If the page is entirely illegible, set "extracted_text" to an empty string,
"confidence" to 0, and include "UNREADABLE" in "quality_flags".`
