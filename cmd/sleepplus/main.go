// Command sleepplus runs the sleep-vote server and talks to a running one.
// main only handles wiring. NO business logic belongs here.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
