package main

import "github.com/nextlevelbuilder/envgate/cmd"

func main() {
	cmd.Execute()
}
