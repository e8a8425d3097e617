// Package rulebase loads and validates the traffic rule base and the class
// taxonomy the rules are written against.
//
// Rule files are a sequence of records:
//
//	- id: 58
//	  action: reduce_speed
//	  conditions:
//	    - ego, approaching, vulnerable_road_user
//	    - vulnerable_road_user, same_lane_front_of, ego
//
// JSON is accepted as well (selected by the .json extension), which is the
// format the rule bases are usually authored in. Ids may be written as
// numbers or quoted strings.
//
// Taxonomy files map a class term to the concrete terms it covers:
//
//	vehicle: [vehicle, car, van]
//	large_vehicle: [large_vehicle, bus, truck]
//
// Loaded values are read-only; the compiler derives its matching structures
// from them once per load.
package rulebase
