// This program performs administrative tasks for a ubilog node.
package main

import "github.com/ardanlabs/ubilog/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
