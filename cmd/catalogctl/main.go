// Package main provides the catalog administration CLI
package main

import "github.com/biblioteca/catalog-api/cmd/catalogctl/cmd"

func main() {
	cmd.Execute()
}
