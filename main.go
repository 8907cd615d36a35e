package main

import "github.com/innodbcluster/admin-engine/cmd"

func main() {
	cmd.Execute()
}
