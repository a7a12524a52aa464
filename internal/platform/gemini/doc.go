// Package gemini implements the research and reply capabilities on top of
// Google's Gemini API.
//
// Generator satisfies both generation.Researcher and
// generation.MessageGenerator. Prompts are text templates embedded in the
// binary; either can be replaced by a file on disk through LLMConfig.
// Research responses are requested as JSON and decoded into a
// domain.Company carrying only the researched fields.
//
// Calls are retried with exponential backoff and jitter on transient
// failures (network errors, 429 and 5xx responses). Safety blocks and
// malformed responses are permanent and returned immediately.
package gemini
