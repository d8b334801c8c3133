/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/bayanihan-data/povassess/cmd"

func main() {
	cmd.Execute()
}
