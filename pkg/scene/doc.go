// Package scene compiles a symbolic scene description into the flat fact set
// the inference engine matches rules against.
//
// A description has four sections:
//
//	situation      ego-centric atoms, passed through as facts
//	control_device (device, relevance, previous, current)
//	road_user      (user, position, previous, current)
//	intention      (subject, intent)
//
// Device and road-user tuples expand into several facts each, covering the
// existence, the previous and current state, and the position of the
// object relative to ego. Intentions become "ego, intend, <intent>" facts
// and are also collected, in the order given, into the scene's intention
// list.
//
// A tuple with the wrong number of terms or a blank term fails the whole
// scene with a *ParseError naming the section and statement.
package scene
