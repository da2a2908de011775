package main

import "github.com/B0gdanovAleksandr/ayurveda-now/cmd"

func main() {
	cmd.Execute()
}
