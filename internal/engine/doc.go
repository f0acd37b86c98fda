// Package engine contains the sleep vote: the evaluator that decides when a
// world skips its night, the event sink the host reports bed activity to, and
// the heartbeat that runs both on a single goroutine.
//
// ARCHITECTURAL RULE: The engine never talks to a concrete game server. It reads
// world state through HostQuery and changes it through HostActions.
package engine
