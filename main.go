package main

import "github.com/vibast-solutions/ms-go-yappy/cmd"

func main() {
	cmd.Execute()
}
