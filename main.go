/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/shoplist/core/cmd"

func main() {
	cmd.Execute()
}
