// Package relay keeps the outbound relay connection alive and reports its
// health.
//
// Transition is a pure function from (Machine, Event) to the next Machine and
// a list of effects. Monitor owns the only copy of the Machine, feeds it events
// from dial results, timers and the link, and executes the effects. Every
// status change is published on the CONNECTION_STATUS channel.
package relay
