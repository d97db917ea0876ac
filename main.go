package main

import "github.com/jayteealao/branchsync/cmd"

func main() {
	cmd.Execute()
}
