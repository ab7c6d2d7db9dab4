package main

import "github.com/diogo/sentichat/internal/commands"

func main() {
	commands.Execute()
}
