// Package main is the herdsync agent: an offline-first sync engine
// for livestock records, exposing the local cache over REST and a
// websocket for live updates.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
