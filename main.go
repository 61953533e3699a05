package main

import "github.com/grabpic/pipeline/cmd"

func main() {
	cmd.Execute()
}
