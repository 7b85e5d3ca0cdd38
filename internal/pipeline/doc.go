// Package pipeline turns a data source snapshot into metric observations.
//
// A snapshot is a tree of entities (place, device, sensor, gateway...). The
// Walker visits it depth-first and, for every state, normalizes the state
// name, classifies its value and attaches the tags of the entity and its
// ancestors before handing the observation to an Emitter.
//
//	w := pipeline.NewWalker(log, "cozytouch", adapters.CozytouchLayouts)
//	rec := pipeline.NewRecorder()
//	stats := w.Walk(snapshot, rec)
//
// Nothing in this package keeps state between cycles.
package pipeline
