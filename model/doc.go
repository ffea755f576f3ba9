// Package model defines the provider-agnostic contract for the reasoning
// process that drives the control loop and the generative summarizer.
//
// A Model maps a conversation (instructions plus role-tagged text messages) to
// a stream of Responses. Most callers only need the final text, which Complete
// extracts. Providers live in the anthropic and openai subpackages;
// ScriptedModel replays canned replies for tests and examples.
package model
