package main

import "IntentCode/client/intent-cli/cmd"

func main() {
	cmd.Execute()
}
