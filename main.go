package main

import "opsconsole/cmd"

func main() {
	cmd.Execute()
}
