package main

import "ragmill/cmd"

func main() {
	cmd.Execute()
}
