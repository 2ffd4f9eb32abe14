// Package httpapi exposes a connected pad over HTTP.
//
// The control endpoints mirror the pad's command set:
//
//	POST     /!start_belt
//	POST     /!stop_belt
//	GET|POST /!change_speed?speed=<0..60>
//	POST     /!change_mode?mode=<manual|automatic|standby>
//
// Read endpoints report what the pad last said:
//
//	GET /!state     latest decoded state
//	GET /!history   recent states, oldest first
//	GET /ws         websocket stream of states as they arrive
//
// Successful commands reply with a JSON string. Every failure replies with
// a JSON object {"reason": "..."}.
package httpapi
