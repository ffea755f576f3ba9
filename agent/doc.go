// Package agent contains the step-wise control loop that lets an external
// reasoning model use the tool router before committing to a final answer.
//
// Each step the model is asked for exactly one JSON action:
//
//	{"action":"tool","name":"<tool>","args":{...}}
//	{"action":"final","answer":"...","citations":["id1"]}
//
// Tool actions are dispatched through a tool.Router and the normalized result
// is appended to the conversation as {"tool_result": ...}. Ids observed in
// "hits" and "docs" accumulate into the seen-id set the guard checks final
// answers against. The loop ends on a validated final answer, on the first
// error, or when the step ceiling is reached.
//
// Loop instances hold no per-run state and may be shared between goroutines.
package agent
