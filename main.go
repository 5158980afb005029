package main

import "github.com/rehanbawakhan/vdetection/cmd"

func main() {
	cmd.Execute()
}
