// Package main is the entry point for QuotaGate.
package main

func main() {
	Execute()
}
