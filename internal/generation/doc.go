// Package generation defines the capabilities the worker daemon calls to do
// its real work: researching a company and drafting a recruiter reply. The
// interfaces keep task handlers independent of the language model behind
// them (Gemini in production, fakes in tests).
package generation
