// Package advisor obtains architectural recommendations from a large
// language model.
//
// Three providers are supported: any OpenAI-compatible endpoint (Groq by
// default), the Gemini API and a local Ollama server. New wraps the chosen
// provider in Guarded, which applies the configured timeout and rate
// limit.
//
// Analysis prompts are delivered as a system message with a 500 token
// budget; chat prompts as a user message with 600 tokens. Every failure
// wraps ErrAdvisor.
package advisor
