package main

import "github.com/jfmyers9/backscrobble/cmd"

func main() {
	cmd.Execute()
}
