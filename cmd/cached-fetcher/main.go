package main

import cmd "github.com/rohmanhakim/cached-fetcher/internal/cli"

func main() {
	cmd.Execute()
}
