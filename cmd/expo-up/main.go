package main

import "github.com/oshokin/expo-up/cmd/expo-up/cmd"

func main() {
	cmd.Execute()
}
