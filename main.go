package main

import "github.com/andresmejia3/biomech/cmd"

func main() {
	cmd.Execute()
}
