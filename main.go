package main

import "github.com/bareeqalyusr/bnpl-backend/cmd"

func main() {
	cmd.Execute()
}
