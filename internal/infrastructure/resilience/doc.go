/*
Package resilience provides a circuit breaker for outbound calls.

# Overview

This package implements the circuit breaker pattern to keep a flaky or
unreachable extension store from stalling the host. Calls flow through the
breaker while it is closed, fail fast while it is open, and probe in limited
numbers while it is half-open.

# Usage

	breaker := resilience.New("store", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Printf("breaker %s: %s -> %s", name, from, to)
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Call()
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                          |
	                                      [failure]
	                                          |
	                                          v
	                                        Open
*/
package resilience
