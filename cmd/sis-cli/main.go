package main

import (
	"uthsis-backend/cmd/sis-cli/commands"
)

func main() {
	commands.Execute()
}
