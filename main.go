package main

import "github.com/frahmantamala/merchant-settlement/cmd"

func main() {
	cmd.Execute()
}
