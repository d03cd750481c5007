package main

import "github.com/gagarinchain/accountguard/cmd"

func main() {
	cmd.Execute()
}
