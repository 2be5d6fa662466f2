package main

import "solana-wallet-tracker/internal/cli"

func main() {
	cli.Execute()
}
