package main

import "tripmate-backend/cmd"

func main() {
	cmd.Run()
}
