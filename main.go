package main

import "github.com/ValentinKolb/hmdlink/cmd"

func main() {
	cmd.Execute()
}
