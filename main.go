package main

import "github.com/jlieth/legacy-scrobbler/cmd"

func main() {
	cmd.Execute()
}
