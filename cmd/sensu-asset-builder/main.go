package main

import "github.com/adammcdonagh/sensu-asset-builder/cmd/sensu-asset-builder/cmd"

func main() {
	cmd.Execute()
}
