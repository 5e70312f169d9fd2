package main

import "race-registration/cmd"

func main() {
	cmd.Execute()
}
